package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
)

// Bangalore is the center location used across tests.
var Bangalore = geo.NewPoint(12.9716, 77.5946)

// NewConfig returns a config for tests that does not read the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "TutorCenter",
		SecretKey: "secret",
		Storage:   core.StorageMemory,
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Attendance: core.AttendanceConfig{
			CheckInRadius: 1300,
			LoginRadius:   100,
			TimeZone:      "UTC",
		},
	}
}

// Logger collects log lines instead of printing them.
type Logger struct {
	mu    sync.Mutex
	Lines []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

func CreateCenter(t *testing.T, reg attendance.Registry, name string, lat, lng float64) attendance.Center {
	t.Helper()
	ctr, err := reg.CreateCenter(context.Background(), attendance.Center{Name: name, Location: geo.NewPoint(lat, lng)})
	if err != nil {
		t.Fatalf("createCenter() failed: %v", err)
	}
	return ctr
}

func CreateEntity(t *testing.T, reg attendance.Registry, typ attendance.EntityType, name, centerID string) attendance.Entity {
	t.Helper()
	ent, err := reg.CreateEntity(context.Background(), attendance.Entity{Type: typ, Name: name, CenterID: centerID})
	if err != nil {
		t.Fatalf("createEntity() failed: %v", err)
	}
	return ent
}

// UniqueName suffixes name so integration tests sharing a database do not collide.
func UniqueName(name string) string {
	return fmt.Sprintf("%s %d", name, time.Now().UnixNano())
}
