package echoapi

import (
	"context"
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
	"github.com/trezcool/tutorcenter/storage/database/inmem"
	"github.com/trezcool/tutorcenter/tests"
)

var now = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	conf     *core.Config
	app      *Server
	repo     *inmemdb.Repository
	center   attendance.Center
	tutor    attendance.Entity
	student  attendance.Entity
	loner    attendance.Entity
	adminTok string
	tutorTok string
	lonerTok string
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig()
	repo := inmemdb.NewRepository(inmemdb.Open())
	logger := new(testutil.Logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	attendance.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { attendance.NowFunc = time.Now })

	f := fixture{
		conf: conf,
		repo: repo,
		app: NewServer(ServerDeps{
			Conf:           conf,
			Logger:         logger,
			AttendanceSvc:  attendance.NewService(repo, repo, repo, logger, conf),
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		}),
	}
	f.center = testutil.CreateCenter(t, repo, "Indiranagar", testutil.Bangalore.Lat(), testutil.Bangalore.Lon())
	f.tutor = testutil.CreateEntity(t, repo, attendance.Tutor, "Asha", f.center.ID)
	f.student = testutil.CreateEntity(t, repo, attendance.Student, "Bala", f.center.ID)
	f.loner = testutil.CreateEntity(t, repo, attendance.Student, "Chitra", "")
	f.adminTok = getToken(t, conf, NewClaims(conf, "admin-1", "Admin", ""))
	f.tutorTok = getToken(t, conf, NewClaims(conf, f.tutor.ID, f.tutor.Name, f.tutor.Type))
	f.lonerTok = getToken(t, conf, NewClaims(conf, f.loner.ID, f.loner.Name, f.loner.Type))
	return f
}

func getToken(t *testing.T, conf *core.Config, claims *Claims) string {
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func locationBody(lat, lng float64) []byte {
	data, _ := json.Marshal(attendance.LocationRequest{Location: []float64{lat, lng}})
	return data
}

// metersNorth returns the latitude m meters north of the test center.
func metersNorth(m float64) float64 {
	return testutil.Bangalore.Lat() + m/geo.EarthRadius*180/math.Pi
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData map[string]interface{} // subset of the JSON object returned
}

func (tt httpTest) run(t *testing.T, app http.Handler) {
	t.Run(tt.name, func(t *testing.T) {
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
		app.ServeHTTP(rec, req)
		require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

		if tt.wantData != nil {
			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), rec.Body.String())
			for k, v := range tt.wantData {
				assert.Equal(t, v, got[k], "key %q in %s", k, rec.Body.String())
			}
		}
	})
}

func TestHome(t *testing.T) {
	f := setup(t)
	req, rec := newAuthRequest(http.MethodGet, "/", "")
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to TutorCenter API!", rec.Body.String())
}

func TestAttendanceApi_checkIn(t *testing.T) {
	f := setup(t)
	path := "/v1/attendance/check-in"

	tests := []httpTest{
		{name: "no token", method: http.MethodPost, path: path, body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusUnauthorized, wantData: map[string]interface{}{"error": "missing or malformed jwt"}},
		{name: "bad token", method: http.MethodPost, path: path, token: "lol", body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusUnauthorized, wantData: map[string]interface{}{"error": "invalid or expired jwt"}},
		{name: "admin token", method: http.MethodPost, path: path, token: f.adminTok, body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusForbidden, wantData: map[string]interface{}{"error": "permission denied"}},
		{name: "malformed body", method: http.MethodPost, path: path, token: f.tutorTok, body: []byte(`{"location":`),
			wantCode: http.StatusBadRequest},
		{name: "missing location", method: http.MethodPost, path: path, token: f.tutorTok, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: map[string]interface{}{"kind": "invalid_location"}},
		{name: "latitude out of range", method: http.MethodPost, path: path, token: f.tutorTok, body: locationBody(91, 0),
			wantCode: http.StatusBadRequest, wantData: map[string]interface{}{"kind": "invalid_location"}},
		{name: "no center", method: http.MethodPost, path: path, token: f.lonerTok, body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusConflict, wantData: map[string]interface{}{"kind": "center_not_assigned", "error": "no center assigned"}},
		{name: "out of range", method: http.MethodPost, path: path, token: f.tutorTok, body: locationBody(metersNorth(5000), testutil.Bangalore.Lon()),
			wantCode: http.StatusForbidden, wantData: map[string]interface{}{
				"kind":          "out_of_range",
				"error":         "you are 5000 meters away from your center (allowed: 1300 meters)",
				"radius_meters": 1300.0,
				"center":        []interface{}{testutil.Bangalore.Lat(), testutil.Bangalore.Lon()},
			}},
		{name: "in range", method: http.MethodPost, path: path, token: f.tutorTok, body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusOK, wantData: map[string]interface{}{
				"date":        "2024-03-14",
				"status":      "present",
				"center_id":   f.center.ID,
				"center_name": "Indiranagar",
				"recorded_at": "2024-03-14T09:30:00Z",
			}},
	}
	for _, tt := range tests {
		tt.run(t, f.app)
	}

	recs, err := f.repo.ListRecords(context.Background(), f.tutor.ID, now, now)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAttendanceApi_proximity(t *testing.T) {
	f := setup(t)
	path := "/v1/attendance/proximity"

	tests := []httpTest{
		{name: "near", method: http.MethodPost, path: path, token: f.tutorTok, body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusOK, wantData: map[string]interface{}{"within": true, "radius_meters": 100.0}},
		{name: "too far for login", method: http.MethodPost, path: path, token: f.tutorTok, body: locationBody(metersNorth(500), testutil.Bangalore.Lon()),
			wantCode: http.StatusOK, wantData: map[string]interface{}{"within": false}},
		{name: "no center", method: http.MethodPost, path: path, token: f.lonerTok, body: locationBody(metersNorth(50), testutil.Bangalore.Lon()),
			wantCode: http.StatusConflict, wantData: map[string]interface{}{"kind": "center_not_assigned"}},
	}
	for _, tt := range tests {
		tt.run(t, f.app)
	}

	recs, err := f.repo.ListRecords(context.Background(), f.tutor.ID, now, now)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAttendanceApi_mark(t *testing.T) {
	f := setup(t)
	path := "/v1/attendance/mark"
	body := func(entityID, centerID, date, status string) []byte {
		data, _ := json.Marshal(map[string]string{"entity_id": entityID, "center_id": centerID, "date": date, "status": status})
		return data
	}

	tests := []httpTest{
		{name: "entity token", method: http.MethodPost, path: path, token: f.tutorTok, body: body(f.tutor.ID, "", "2024-03-10", "present"),
			wantCode: http.StatusForbidden},
		{name: "invalid fields", method: http.MethodPost, path: path, token: f.adminTok, body: body("", "", "10/03/2024", "late"),
			wantCode: http.StatusBadRequest, wantData: map[string]interface{}{
				"entity_id": "this field is required",
				"date":      "must be a date formatted as YYYY-MM-DD",
				"status":    "status must be one of: present, absent",
			}},
		{name: "unknown entity", method: http.MethodPost, path: path, token: f.adminTok, body: body("nobody", "", "2024-03-10", "present"),
			wantCode: http.StatusNotFound, wantData: map[string]interface{}{"kind": "entity_not_found"}},
		{name: "unknown center", method: http.MethodPost, path: path, token: f.adminTok, body: body(f.tutor.ID, "gone", "2024-03-10", "present"),
			wantCode: http.StatusNotFound, wantData: map[string]interface{}{"kind": "center_not_found"}},
		{name: "entity without a center", method: http.MethodPost, path: path, token: f.adminTok, body: body(f.loner.ID, "", "2024-03-10", "Present"),
			wantCode: http.StatusOK, wantData: map[string]interface{}{"date": "2024-03-10", "status": "present", "marked_by": "admin-1"}},
		{name: "absent", method: http.MethodPost, path: path, token: f.adminTok, body: body(f.tutor.ID, "", "2024-03-11", "absent"),
			wantCode: http.StatusOK, wantData: map[string]interface{}{"status": "absent", "center_id": f.center.ID}},
	}
	for _, tt := range tests {
		tt.run(t, f.app)
	}
}

func TestAttendanceApi_report(t *testing.T) {
	f := setup(t)
	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		_, err := f.repo.UpsertRecord(context.Background(), f.tutor.ID, attendance.Record{Date: mustDay(t, d), Status: attendance.StatusPresent, RecordedAt: now})
		require.NoError(t, err)
	}

	t.Run("rows", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/report?year=2024&month=3&type=tutor", f.adminTok)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rows []attendance.MonthlyReportRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, f.tutor.ID, rows[0].EntityID)
		assert.Len(t, rows[0].Days, 31)
		assert.Equal(t, 3, rows[0].PresentDays)
		assert.Equal(t, "Indiranagar", rows[0].Center.Name)
	})

	t.Run("by center", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/report?year=2024&month=2&center_id="+f.center.ID, f.adminTok)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rows []attendance.MonthlyReportRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		assert.Len(t, rows, 2)
	})

	tests := []httpTest{
		{name: "entity token", method: http.MethodGet, path: "/v1/attendance/report?year=2024&month=3", token: f.tutorTok,
			wantCode: http.StatusForbidden},
		{name: "missing month", method: http.MethodGet, path: "/v1/attendance/report?year=2024", token: f.adminTok,
			wantCode: http.StatusBadRequest, wantData: map[string]interface{}{"month": "this field is required"}},
		{name: "bad type", method: http.MethodGet, path: "/v1/attendance/report?year=2024&month=3&type=parent", token: f.adminTok,
			wantCode: http.StatusBadRequest, wantData: map[string]interface{}{"type": "type must be one of: tutor, student"}},
		{name: "non numeric year", method: http.MethodGet, path: "/v1/attendance/report?year=lol&month=3", token: f.adminTok,
			wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt.run(t, f.app)
	}
}

func TestAttendanceApi_entityAttendance(t *testing.T) {
	f := setup(t)
	_, err := f.repo.UpsertRecord(context.Background(), f.tutor.ID, attendance.Record{Date: mustDay(t, "2024-03-05"), Status: attendance.StatusPresent, RecordedAt: now})
	require.NoError(t, err)

	path := "/v1/entities/" + f.tutor.ID + "/attendance"
	tests := []httpTest{
		{name: "self, current month", method: http.MethodGet, path: path, token: f.tutorTok,
			wantCode: http.StatusOK, wantData: map[string]interface{}{"entity_id": f.tutor.ID, "present_days": 1.0, "total_days": 31.0}},
		{name: "admin, other month", method: http.MethodGet, path: path + "?year=2024&month=2", token: f.adminTok,
			wantCode: http.StatusOK, wantData: map[string]interface{}{"present_days": 0.0, "total_days": 29.0}},
		{name: "someone else", method: http.MethodGet, path: path, token: f.lonerTok,
			wantCode: http.StatusNotFound},
		{name: "bad month", method: http.MethodGet, path: path + "?month=13", token: f.tutorTok,
			wantCode: http.StatusBadRequest},
		{name: "admin, unknown entity", method: http.MethodGet, path: "/v1/entities/nobody/attendance", token: f.adminTok,
			wantCode: http.StatusNotFound, wantData: map[string]interface{}{"kind": "entity_not_found"}},
	}
	for _, tt := range tests {
		tt.run(t, f.app)
	}
}

func TestServer_refreshToken(t *testing.T) {
	f := setup(t)

	req, rec := newAuthRequest(http.MethodPost, "/v1/token-refresh", f.tutorTok)
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	expired := NewClaims(f.conf, f.tutor.ID, f.tutor.Name, f.tutor.Type, time.Now().Add(-5*time.Hour).Unix())
	httpTest{name: "refresh expired", method: http.MethodPost, path: "/v1/token-refresh", token: getToken(t, f.conf, expired),
		wantCode: http.StatusForbidden, wantData: map[string]interface{}{"error": "refresh has expired"}}.run(t, f.app)
}

func mustDay(t *testing.T, s string) time.Time {
	day, err := attendance.ParseDay(s)
	require.NoError(t, err)
	return day
}
