package inmemdb

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/trezcool/tutorcenter/core/attendance"
)

type Repository struct {
	db *DB
}

var (
	_ attendance.Store           = (*Repository)(nil) // interface compliance check
	_ attendance.EntityDirectory = (*Repository)(nil)
	_ attendance.CenterDirectory = (*Repository)(nil)
	_ attendance.Registry        = (*Repository)(nil)
)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (repo *Repository) nextID(prefix string) string {
	repo.db.pkCount++
	return prefix + strconv.Itoa(repo.db.pkCount)
}

func (repo *Repository) CreateCenter(_ context.Context, ctr attendance.Center) (attendance.Center, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if ctr.ID == "" {
		ctr.ID = repo.nextID("ctr-")
	}
	repo.db.centers[ctr.ID] = ctr
	return ctr, nil
}

func (repo *Repository) CreateEntity(_ context.Context, ent attendance.Entity) (attendance.Entity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if ent.ID == "" {
		ent.ID = repo.nextID(string(ent.Type) + "-")
	}
	repo.db.entities[ent.ID] = ent
	return ent, nil
}

func (repo *Repository) GetCenter(_ context.Context, id string) (attendance.Center, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ctr, ok := repo.db.centers[id]; ok {
		return ctr, nil
	}
	return attendance.Center{}, attendance.ErrCenterNotFound
}

func (repo *Repository) GetEntity(_ context.Context, id string) (attendance.Entity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ent, ok := repo.db.entities[id]; ok {
		return ent, nil
	}
	return attendance.Entity{}, attendance.ErrEntityNotFound
}

func (repo *Repository) ListEntities(_ context.Context, filter attendance.EntityFilter) ([]attendance.Entity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ents := make([]attendance.Entity, 0, len(repo.db.entities))
	for _, ent := range repo.db.entities {
		if filter.Type != "" && ent.Type != filter.Type {
			continue
		}
		if filter.CenterID != "" && ent.CenterID != filter.CenterID {
			continue
		}
		ents = append(ents, ent)
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })
	return ents, nil
}

func (repo *Repository) FindRecord(_ context.Context, entityID string, day time.Time) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.records[entityID][attendance.Day(day, time.UTC)]; ok {
		return rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *Repository) UpsertRecord(_ context.Context, entityID string, rec attendance.Record) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.entities[entityID]; !ok {
		return attendance.Record{}, attendance.ErrEntityNotFound
	}
	rec.Date = attendance.Day(rec.Date, time.UTC)
	days, ok := repo.db.records[entityID]
	if !ok {
		days = make(map[time.Time]attendance.Record)
		repo.db.records[entityID] = days
	}
	days[rec.Date] = rec
	return rec, nil
}

func (repo *Repository) ListRecords(_ context.Context, entityID string, from, to time.Time) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	from, to = attendance.Day(from, time.UTC), attendance.Day(to, time.UTC)
	recs := make([]attendance.Record, 0)
	for day, rec := range repo.db.records[entityID] {
		if day.Before(from) || day.After(to) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs, nil
}
