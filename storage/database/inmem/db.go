package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/tutorcenter/core/attendance"
)

// DB is a process-local database. Every table shares one lock, so an upsert
// is a single critical section per call.
type DB struct {
	mutex    sync.RWMutex
	centers  map[string]attendance.Center
	entities map[string]attendance.Entity
	records  map[string]map[time.Time]attendance.Record // entityID -> day -> record
	pkCount  int
}

func Open() *DB {
	return &DB{
		centers:  make(map[string]attendance.Center),
		entities: make(map[string]attendance.Entity),
		records:  make(map[string]map[time.Time]attendance.Record),
	}
}

func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.centers = make(map[string]attendance.Center)
	db.entities = make(map[string]attendance.Entity)
	db.records = make(map[string]map[time.Time]attendance.Record)
	return nil
}
