package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/tutorcenter/apps/api/echo"
	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
	"github.com/trezcool/tutorcenter/storage"
	"github.com/trezcool/tutorcenter/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := testutil.NewConfig()
	conf.Storage = core.StorageMemory
	logger := new(testutil.Logger)

	backend, err := storage.Open(context.Background(), conf, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	var out bytes.Buffer
	return &commandLine{
		conf:    conf,
		backend: backend,
		svc:     attendance.NewService(backend.Repo, backend.Repo, backend.Centers, logger, conf),
		out:     &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) run(t *testing.T, cli *commandLine) {
	t.Run(tt.name, func(t *testing.T) {
		err := cli.run(append([]string{"admin"}, tt.args...))
		switch {
		case tt.wantErr != nil:
			assert.ErrorIs(t, err, tt.wantErr)
		case tt.wantErrStr != "":
			assert.EqualError(t, err, tt.wantErrStr)
		default:
			assert.NoError(t, err)
		}
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	cliTest{name: "memory storage", args: []string{"migrate", "up"}, wantErr: errNoMigrations}.run(t, cli)

	// the driver connects lazily; the mocked goose never uses it
	db, err := sql.Open("postgres", "postgres://localhost/none?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cli.backend.SQL = db

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "holiday", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	cliTest{name: "no command", wantErr: errHelp}.run(t, cli)
	cliTest{name: "unknown command", args: []string{"lol"}, wantErr: errHelp}.run(t, cli)
	assert.Contains(t, out.String(), "addcenter -name NAME -lat LAT -lng LNG")
}

func Test_commandLine_addCenter(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"addcenter"}, wantErr: errHelp},
		{name: "no longitude", args: []string{"addcenter", "-name", "Indiranagar", "-lat", "12.9716"}, wantErr: errHelp},
		{name: "latitude out of range", args: []string{"addcenter", "-name", "Indiranagar", "-lat", "95", "-lng", "77.5946"},
			wantErr: geo.ErrInvalidPair},
		{name: "0,0", args: []string{"addcenter", "-name", "Null Island", "-lat", "0", "-lng", "0"},
			wantErrStr: "center location cannot be 0,0"},
		{name: "create", args: []string{"addcenter", "-id", "blr-1", "-name", " Indiranagar ", "-lat", "12.9716", "-lng", "77.5946"}},
		{name: "update", args: []string{"addcenter", "-id", "blr-1", "-name", "Indiranagar 2nd Stage", "-lat", "12.9784", "-lng", "77.6408"}},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}

	assert.Equal(t, "blr-1\nblr-1\n", out.String())
	ctr, err := cli.backend.Repo.GetCenter(ctx, "blr-1")
	require.NoError(t, err)
	assert.Equal(t, "Indiranagar 2nd Stage", ctr.Name)
	assert.InDelta(t, 12.9784, ctr.Location.Lat(), 1e-9)
	assert.InDelta(t, 77.6408, ctr.Location.Lon(), 1e-9)
}

func Test_commandLine_addEntity(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	ctr := testutil.CreateCenter(t, cli.backend.Repo, "Indiranagar", testutil.Bangalore.Lat(), testutil.Bangalore.Lon())

	tests := []cliTest{
		{name: "no args", args: []string{"addentity"}, wantErr: errHelp},
		{name: "no type", args: []string{"addentity", "-name", "Asha"}, wantErr: errHelp},
		{name: "bad type", args: []string{"addentity", "-name", "Asha", "-type", "parent"},
			wantErrStr: `type must be one of: tutor, student (got "parent")`},
		{name: "unknown center", args: []string{"addentity", "-name", "Asha", "-type", "tutor", "-center", "gone"},
			wantErr: attendance.ErrCenterNotFound},
		{name: "tutor", args: []string{"addentity", "-id", "t-1", "-name", "Asha", "-type", "Tutor", "-center", ctr.ID}},
		{name: "student without center", args: []string{"addentity", "-id", "s-1", "-name", "Bala", "-type", "student"}},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}

	assert.Equal(t, "t-1\ns-1\n", out.String())
	tutor, err := cli.backend.Repo.GetEntity(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.Entity{ID: "t-1", Type: attendance.Tutor, Name: "Asha", CenterID: ctr.ID}, tutor)
	student, err := cli.backend.Repo.GetEntity(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, student.CenterID)
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)
	tutor := testutil.CreateEntity(t, cli.backend.Repo, attendance.Tutor, "Asha", "")

	tests := []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "bad role", args: []string{"token", "-id", tutor.ID, "-role", "parent"},
			wantErrStr: `role must be one of: admin, tutor, student (got "parent")`},
		{name: "unknown entity", args: []string{"token", "-id", "nobody", "-role", "tutor"}, wantErr: attendance.ErrEntityNotFound},
		{name: "wrong role", args: []string{"token", "-id", tutor.ID, "-role", "student"},
			wantErrStr: fmt.Sprintf("%s is a tutor, not a student", tutor.ID)},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}
	assert.Empty(t, out.String())

	parse := func(t *testing.T, args ...string) *echoapi.Claims {
		out.Reset()
		require.NoError(t, cli.run(append([]string{"admin", "token"}, args...)))

		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
			return []byte(cli.conf.SecretKey), nil
		})
		require.NoError(t, err)
		return claims
	}

	claims := parse(t, "-id", tutor.ID, "-role", "tutor")
	assert.Equal(t, tutor.ID, claims.Subject)
	assert.Equal(t, attendance.Tutor, claims.EntityType)
	assert.Equal(t, "Asha", claims.Name)
	assert.False(t, claims.IsAdmin)

	claims = parse(t, "-id", "ops", "-role", "ADMIN")
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.IsAdmin)
	assert.Empty(t, claims.EntityType)
}

func Test_commandLine_report(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()
	ctr := testutil.CreateCenter(t, cli.backend.Repo, "Indiranagar", testutil.Bangalore.Lat(), testutil.Bangalore.Lon())
	tutor := testutil.CreateEntity(t, cli.backend.Repo, attendance.Tutor, "Asha", ctr.ID)
	testutil.CreateEntity(t, cli.backend.Repo, attendance.Student, "Bala", "")

	for date, status := range map[string]attendance.Status{
		"2024-02-01": attendance.StatusPresent,
		"2024-02-02": attendance.StatusAbsent,
		"2024-02-29": attendance.StatusPresent,
	} {
		_, err := cli.svc.MarkAttendance(ctx, attendance.MarkRequest{EntityID: tutor.ID, Date: date, Status: status, ActorID: "ops"})
		require.NoError(t, err)
	}

	cliTest{name: "no month", args: []string{"report", "-year", "2024"}, wantErr: errHelp}.run(t, cli)
	err := cli.run([]string{"admin", "report", "-year", "2024", "-month", "13"})
	assert.Equal(t, attendance.KindInvalidRequest, attendance.KindOf(err))

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "report", "-year", "2024", "-month", "2"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Asha")
	assert.Contains(t, lines[1], "2/29")
	assert.Contains(t, lines[1], "6.9%")
	assert.Contains(t, lines[1], "PA"+strings.Repeat(".", 26)+"P")
	assert.Contains(t, lines[2], "Bala")
	assert.Contains(t, lines[2], attendance.NotAssigned)
	assert.Contains(t, lines[2], strings.Repeat(".", 29))

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "report", "-year", "2024", "-month", "2", "-type", "student"}))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Bala")
}
