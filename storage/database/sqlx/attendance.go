package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
)

const (
	fkViolation = "23503"

	recordColumns = `entity_id, day, status, latitude, longitude, center_id, center_name, marked_by, recorded_at`
)

type (
	centerRow struct {
		ID        string       `db:"id"`
		Name      string       `db:"name"`
		Latitude  null.Float64 `db:"latitude"`
		Longitude null.Float64 `db:"longitude"`
	}

	entityRow struct {
		ID       string      `db:"id"`
		Type     string      `db:"type"`
		Name     string      `db:"name"`
		CenterID null.String `db:"center_id"`
	}

	recordRow struct {
		EntityID   string       `db:"entity_id"`
		Day        time.Time    `db:"day"`
		Status     string       `db:"status"`
		Latitude   null.Float64 `db:"latitude"`
		Longitude  null.Float64 `db:"longitude"`
		CenterID   null.String  `db:"center_id"`
		CenterName null.String  `db:"center_name"`
		MarkedBy   null.String  `db:"marked_by"`
		RecordedAt time.Time    `db:"recorded_at"`
	}
)

func (r centerRow) center() attendance.Center {
	ctr := attendance.Center{ID: r.ID, Name: r.Name}
	if r.Latitude.Valid && r.Longitude.Valid {
		ctr.Location = geo.NewPoint(r.Latitude.Float64, r.Longitude.Float64)
	}
	return ctr
}

func (r entityRow) entity() attendance.Entity {
	return attendance.Entity{
		ID:       r.ID,
		Type:     attendance.EntityType(r.Type),
		Name:     r.Name,
		CenterID: r.CenterID.String,
	}
}

func (r recordRow) record() attendance.Record {
	rec := attendance.Record{
		Date:       attendance.Day(r.Day, time.UTC),
		Status:     attendance.Status(r.Status),
		CenterID:   r.CenterID.String,
		CenterName: r.CenterName.String,
		MarkedBy:   r.MarkedBy.String,
		RecordedAt: r.RecordedAt.UTC(),
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		p := geo.NewPoint(r.Latitude.Float64, r.Longitude.Float64)
		rec.Location = &p
	}
	return rec
}

// Repository stores centers, entities and attendance records in PostgreSQL.
type Repository struct {
	db *sqlx.DB
}

var (
	_ attendance.Store           = (*Repository)(nil) // interface compliance check
	_ attendance.EntityDirectory = (*Repository)(nil)
	_ attendance.CenterDirectory = (*Repository)(nil)
	_ attendance.Registry        = (*Repository)(nil)
)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *Repository) CreateCenter(ctx context.Context, ctr attendance.Center) (attendance.Center, error) {
	if ctr.ID == "" {
		ctr.ID = uuid.NewString()
	}
	row := centerRow{ID: ctr.ID, Name: ctr.Name}
	if !geo.IsUnset(ctr.Location) {
		row.Latitude = null.Float64From(ctr.Location.Lat())
		row.Longitude = null.Float64From(ctr.Location.Lon())
	}
	q := `INSERT INTO center (id, name, latitude, longitude) VALUES (:id, :name, :latitude, :longitude)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return attendance.Center{}, attendance.NewStoreError(err, "inserting center")
	}
	return ctr, nil
}

func (repo *Repository) CreateEntity(ctx context.Context, ent attendance.Entity) (attendance.Entity, error) {
	if ent.ID == "" {
		ent.ID = uuid.NewString()
	}
	row := entityRow{ID: ent.ID, Type: string(ent.Type), Name: ent.Name}
	if ent.CenterID != "" {
		row.CenterID = null.StringFrom(ent.CenterID)
	}
	q := `INSERT INTO entity (id, type, name, center_id) VALUES (:id, :type, :name, :center_id)
		ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, name = EXCLUDED.name, center_id = EXCLUDED.center_id`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return attendance.Entity{}, attendance.NewStoreError(err, "inserting entity")
	}
	return ent, nil
}

func (repo *Repository) GetCenter(ctx context.Context, id string) (attendance.Center, error) {
	var row centerRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, name, latitude, longitude FROM center WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Center{}, attendance.ErrCenterNotFound
		}
		return attendance.Center{}, attendance.NewStoreError(err, "selecting center")
	}
	return row.center(), nil
}

func (repo *Repository) GetEntity(ctx context.Context, id string) (attendance.Entity, error) {
	var row entityRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, type, name, center_id FROM entity WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Entity{}, attendance.ErrEntityNotFound
		}
		return attendance.Entity{}, attendance.NewStoreError(err, "selecting entity")
	}
	return row.entity(), nil
}

func (repo *Repository) ListEntities(ctx context.Context, filter attendance.EntityFilter) ([]attendance.Entity, error) {
	var rows []entityRow
	q := `SELECT id, type, name, center_id FROM entity
		WHERE ($1 = '' OR type = $1) AND ($2 = '' OR center_id = $2)
		ORDER BY id`
	if err := repo.db.SelectContext(ctx, &rows, q, string(filter.Type), filter.CenterID); err != nil {
		return nil, attendance.NewStoreError(err, "selecting entities")
	}
	ents := make([]attendance.Entity, 0, len(rows))
	for _, row := range rows {
		ents = append(ents, row.entity())
	}
	return ents, nil
}

func (repo *Repository) FindRecord(ctx context.Context, entityID string, day time.Time) (attendance.Record, error) {
	var row recordRow
	q := `SELECT ` + recordColumns + ` FROM attendance_record WHERE entity_id = $1 AND day = $2::date`
	if err := repo.db.GetContext(ctx, &row, q, entityID, attendance.DayKey(day)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, attendance.NewStoreError(err, "selecting attendance record")
	}
	return row.record(), nil
}

// UpsertRecord relies on the (entity_id, day) primary key: concurrent writers for
// the same day serialize on the conflict and the last one wins.
func (repo *Repository) UpsertRecord(ctx context.Context, entityID string, rec attendance.Record) (attendance.Record, error) {
	args := []interface{}{
		entityID,
		attendance.DayKey(rec.Date),
		string(rec.Status),
		null.Float64{},
		null.Float64{},
		null.NewString(rec.CenterID, rec.CenterID != ""),
		null.NewString(rec.CenterName, rec.CenterName != ""),
		null.NewString(rec.MarkedBy, rec.MarkedBy != ""),
		rec.RecordedAt.UTC(),
	}
	if rec.Location != nil {
		args[3] = null.Float64From(rec.Location.Lat())
		args[4] = null.Float64From(rec.Location.Lon())
	}

	q := `INSERT INTO attendance_record (` + recordColumns + `)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (entity_id, day) DO UPDATE SET
			status = EXCLUDED.status,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			center_id = EXCLUDED.center_id,
			center_name = EXCLUDED.center_name,
			marked_by = EXCLUDED.marked_by,
			recorded_at = EXCLUDED.recorded_at
		RETURNING ` + recordColumns

	var row recordRow
	if err := repo.db.QueryRowxContext(ctx, q, args...).StructScan(&row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == fkViolation {
			return attendance.Record{}, attendance.ErrEntityNotFound
		}
		return attendance.Record{}, attendance.NewStoreError(err, "upserting attendance record")
	}
	return row.record(), nil
}

func (repo *Repository) ListRecords(ctx context.Context, entityID string, from, to time.Time) ([]attendance.Record, error) {
	var rows []recordRow
	q := `SELECT ` + recordColumns + ` FROM attendance_record
		WHERE entity_id = $1 AND day BETWEEN $2::date AND $3::date
		ORDER BY day`
	if err := repo.db.SelectContext(ctx, &rows, q, entityID, attendance.DayKey(from), attendance.DayKey(to)); err != nil {
		return nil, attendance.NewStoreError(err, "selecting attendance records")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}
