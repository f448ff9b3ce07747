package attendance

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/geo"
)

// Status of an attendance Record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// EntityType tells tutors and students apart.
type EntityType string

const (
	Tutor   EntityType = "tutor"
	Student EntityType = "student"
)

func (t EntityType) Valid() bool {
	return t == Tutor || t == Student
}

// NotAssigned labels report rows whose entity has no usable center.
const NotAssigned = "Not Assigned"

// Entity is a tutor or a student that accrues attendance.
type Entity struct {
	ID       string     `json:"id"`
	Type     EntityType `json:"type"`
	Name     string     `json:"name"`
	CenterID string     `json:"center_id,omitempty"` // empty when unassigned
}

// Center is a fixed physical location entities are assigned to.
type Center struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location orb.Point `json:"-"`
}

// HasLocation reports whether the center coordinates can be used for geofencing.
// The unset [0, 0] default is not usable.
func (c Center) HasLocation() bool {
	return !geo.IsUnset(c.Location) && geo.Validate(c.Location) == nil
}

func (c Center) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		Location []float64 `json:"location"`
	}{c.ID, c.Name, geo.Pair(c.Location)})
}

// Record is one day of attendance for one entity.
type Record struct {
	Date       time.Time  // calendar day, midnight UTC
	Status     Status
	Location   *orb.Point // nil for administrative marks
	CenterID   string
	CenterName string
	MarkedBy   string // empty for self check-ins
	RecordedAt time.Time
}

// IsSelfCheckIn reports whether the entity marked itself.
func (r Record) IsSelfCheckIn() bool {
	return r.MarkedBy == ""
}

type recordJSON struct {
	Date       string    `json:"date"`
	Status     Status    `json:"status"`
	Location   []float64 `json:"location"`
	CenterID   string    `json:"center_id,omitempty"`
	CenterName string    `json:"center_name,omitempty"`
	MarkedBy   string    `json:"marked_by,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	rj := recordJSON{
		Date:       DayKey(r.Date),
		Status:     r.Status,
		CenterID:   r.CenterID,
		CenterName: r.CenterName,
		MarkedBy:   r.MarkedBy,
		RecordedAt: r.RecordedAt.UTC(),
	}
	if r.Location != nil {
		rj.Location = geo.Pair(*r.Location)
	}
	return json.Marshal(rj)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	day, err := ParseDay(rj.Date)
	if err != nil {
		return err
	}
	*r = Record{
		Date:       day,
		Status:     rj.Status,
		CenterID:   rj.CenterID,
		CenterName: rj.CenterName,
		MarkedBy:   rj.MarkedBy,
		RecordedAt: rj.RecordedAt,
	}
	if rj.Location != nil {
		p, err := geo.ParsePair(rj.Location)
		if err != nil {
			return err
		}
		r.Location = &p
	}
	return nil
}

// CenterInfo identifies the center of a report row.
type CenterInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// MonthlyReportRow holds one entity's attendance for every day of a month.
type MonthlyReportRow struct {
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	EntityType EntityType      `json:"entity_type"`
	Center     CenterInfo      `json:"center"`
	Days       map[string]bool `json:"attendance"` // day -> present
	Recorded   map[string]bool `json:"recorded"`   // day -> a record exists
	// PresentDays over TotalDays; TotalDays is the month length.
	PresentDays int     `json:"present_days"`
	TotalDays   int     `json:"total_days"`
	Rate        float64 `json:"attendance_rate"`
}

// EntityFilter narrows EntityDirectory.ListEntities. Zero values match everything.
type EntityFilter struct {
	Type     EntityType
	CenterID string
}

// ProximityResult is the outcome of a proximity check.
type ProximityResult struct {
	Within   bool    `json:"within"`
	Distance float64 `json:"distance_meters"`
	Radius   float64 `json:"radius_meters"`
	Center   Center  `json:"center"`
}

// MarkRequest is an administrative attendance override.
type MarkRequest struct {
	EntityID string `json:"entity_id" validate:"required"`
	CenterID string `json:"center_id"`
	Date     string `json:"date" validate:"required,date"`
	Status   Status `json:"status" validate:"required,status"`
	ActorID  string `json:"-"`
}

func (mr *MarkRequest) Clean() {
	mr.EntityID = core.CleanString(mr.EntityID)
	mr.CenterID = core.CleanString(mr.CenterID)
	mr.Date = core.CleanString(mr.Date)
	mr.Status = Status(core.CleanString(string(mr.Status), true /* lower */))
}

// ReportQuery selects the rows of a monthly report.
type ReportQuery struct {
	Year      int        `query:"year" validate:"required,min=1970,max=9999"`
	Month     int        `query:"month" validate:"required,min=1,max=12"`
	CenterID  string     `query:"center_id"`
	Type      EntityType `query:"type" validate:"omitempty,entitytype"`
	EntityIDs []string   `query:"entity_id"`
}

func (rq *ReportQuery) Clean() {
	rq.CenterID = core.CleanString(rq.CenterID)
	rq.Type = EntityType(core.CleanString(string(rq.Type), true /* lower */))
}

// LocationRequest carries a location observed by the client as [latitude, longitude].
// It is checked by the service, which reports a bad pair as KindInvalidLocation.
type LocationRequest struct {
	Location []float64 `json:"location"`
}
