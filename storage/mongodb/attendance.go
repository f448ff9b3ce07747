package mongodb

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
)

// maxUpsertAttempts bounds the set-or-push loop of UpsertRecord.
const maxUpsertAttempts = 5

var errUpsertConflict = errors.New("attendance day kept changing under concurrent writers")

type (
	// pointDoc is a GeoJSON point: coordinates are [longitude, latitude].
	pointDoc struct {
		Type        string    `bson:"type"`
		Coordinates []float64 `bson:"coordinates"`
	}

	centerDoc struct {
		ID       string    `bson:"_id"`
		Name     string    `bson:"name"`
		Location *pointDoc `bson:"location,omitempty"`
	}

	// entityDoc embeds the attendance of the entity, at most one element per date.
	entityDoc struct {
		ID         string      `bson:"_id"`
		Type       string      `bson:"type"`
		Name       string      `bson:"name"`
		CenterID   string      `bson:"center_id,omitempty"`
		Attendance []recordDoc `bson:"attendance,omitempty"`
	}

	recordDoc struct {
		Date       time.Time `bson:"date"`
		Status     string    `bson:"status"`
		Location   *pointDoc `bson:"location,omitempty"`
		CenterID   string    `bson:"center_id,omitempty"`
		CenterName string    `bson:"center_name,omitempty"`
		MarkedBy   string    `bson:"marked_by,omitempty"`
		RecordedAt time.Time `bson:"recorded_at"`
	}
)

func newPointDoc(p *orb.Point) *pointDoc {
	if p == nil {
		return nil
	}
	return &pointDoc{Type: "Point", Coordinates: []float64{p.Lon(), p.Lat()}}
}

func (p *pointDoc) point() (orb.Point, bool) {
	if p == nil || len(p.Coordinates) != 2 {
		return orb.Point{}, false
	}
	return geo.NewPoint(p.Coordinates[1], p.Coordinates[0]), true
}

func (d centerDoc) center() attendance.Center {
	ctr := attendance.Center{ID: d.ID, Name: d.Name}
	if pt, ok := d.Location.point(); ok {
		ctr.Location = pt
	}
	return ctr
}

func (d entityDoc) entity() attendance.Entity {
	return attendance.Entity{
		ID:       d.ID,
		Type:     attendance.EntityType(d.Type),
		Name:     d.Name,
		CenterID: d.CenterID,
	}
}

func newRecordDoc(rec attendance.Record) recordDoc {
	return recordDoc{
		Date:       attendance.Day(rec.Date, time.UTC),
		Status:     string(rec.Status),
		Location:   newPointDoc(rec.Location),
		CenterID:   rec.CenterID,
		CenterName: rec.CenterName,
		MarkedBy:   rec.MarkedBy,
		RecordedAt: rec.RecordedAt.UTC(),
	}
}

func (d recordDoc) record() attendance.Record {
	rec := attendance.Record{
		Date:       attendance.Day(d.Date, time.UTC),
		Status:     attendance.Status(d.Status),
		CenterID:   d.CenterID,
		CenterName: d.CenterName,
		MarkedBy:   d.MarkedBy,
		RecordedAt: d.RecordedAt.UTC(),
	}
	if pt, ok := d.Location.point(); ok {
		rec.Location = &pt
	}
	return rec
}

// Repository stores centers and entities, with each entity's attendance embedded in its document.
type Repository struct {
	centers  *mongo.Collection
	entities *mongo.Collection
}

var (
	_ attendance.Store           = (*Repository)(nil) // interface compliance check
	_ attendance.EntityDirectory = (*Repository)(nil)
	_ attendance.CenterDirectory = (*Repository)(nil)
	_ attendance.Registry        = (*Repository)(nil)
)

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		centers:  db.Collection(centerCollection),
		entities: db.Collection(entityCollection),
	}
}

// withoutAttendance keeps directory reads from loading the embedded records.
var withoutAttendance = bson.M{"attendance": 0}

func (repo *Repository) CreateCenter(ctx context.Context, ctr attendance.Center) (attendance.Center, error) {
	if ctr.ID == "" {
		ctr.ID = primitive.NewObjectID().Hex()
	}
	doc := centerDoc{ID: ctr.ID, Name: ctr.Name}
	if !geo.IsUnset(ctr.Location) {
		doc.Location = newPointDoc(&ctr.Location)
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.centers.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return attendance.Center{}, attendance.NewStoreError(err, "upserting center")
	}
	return ctr, nil
}

// CreateEntity creates or renames/reassigns an entity, keeping its attendance.
func (repo *Repository) CreateEntity(ctx context.Context, ent attendance.Entity) (attendance.Entity, error) {
	if ent.ID == "" {
		ent.ID = primitive.NewObjectID().Hex()
	}
	update := bson.M{"$set": bson.M{"type": string(ent.Type), "name": ent.Name, "center_id": ent.CenterID}}
	opts := options.Update().SetUpsert(true)
	if _, err := repo.entities.UpdateOne(ctx, bson.M{"_id": ent.ID}, update, opts); err != nil {
		return attendance.Entity{}, attendance.NewStoreError(err, "upserting entity")
	}
	return ent, nil
}

func (repo *Repository) GetCenter(ctx context.Context, id string) (attendance.Center, error) {
	var doc centerDoc
	if err := repo.centers.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return attendance.Center{}, attendance.ErrCenterNotFound
		}
		return attendance.Center{}, attendance.NewStoreError(err, "finding center")
	}
	return doc.center(), nil
}

func (repo *Repository) GetEntity(ctx context.Context, id string) (attendance.Entity, error) {
	var doc entityDoc
	opts := options.FindOne().SetProjection(withoutAttendance)
	if err := repo.entities.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return attendance.Entity{}, attendance.ErrEntityNotFound
		}
		return attendance.Entity{}, attendance.NewStoreError(err, "finding entity")
	}
	return doc.entity(), nil
}

func (repo *Repository) ListEntities(ctx context.Context, filter attendance.EntityFilter) ([]attendance.Entity, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if filter.CenterID != "" {
		query["center_id"] = filter.CenterID
	}
	opts := options.Find().SetProjection(withoutAttendance).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := repo.entities.Find(ctx, query, opts)
	if err != nil {
		return nil, attendance.NewStoreError(err, "finding entities")
	}
	var docs []entityDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, attendance.NewStoreError(err, "decoding entities")
	}
	ents := make([]attendance.Entity, 0, len(docs))
	for _, doc := range docs {
		ents = append(ents, doc.entity())
	}
	return ents, nil
}

func (repo *Repository) FindRecord(ctx context.Context, entityID string, day time.Time) (attendance.Record, error) {
	day = attendance.Day(day, time.UTC)
	var doc entityDoc
	opts := options.FindOne().SetProjection(bson.M{"attendance.$": 1})
	err := repo.entities.FindOne(ctx, bson.M{"_id": entityID, "attendance.date": day}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, attendance.NewStoreError(err, "finding attendance record")
	}
	if len(doc.Attendance) == 0 {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return doc.Attendance[0].record(), nil
}

// UpsertRecord replaces the element dated rec.Date, or pushes one when there is none.
// Both updates are single-document and conditional, so two writers racing on a new
// day cannot both push: the loser's $ne guard fails and it retries as a replace.
func (repo *Repository) UpsertRecord(ctx context.Context, entityID string, rec attendance.Record) (attendance.Record, error) {
	doc := newRecordDoc(rec)

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		res, err := repo.entities.UpdateOne(ctx,
			bson.M{"_id": entityID, "attendance.date": doc.Date},
			bson.M{"$set": bson.M{"attendance.$": doc}},
		)
		if err != nil {
			return attendance.Record{}, attendance.NewStoreError(err, "replacing attendance record")
		}
		if res.MatchedCount > 0 {
			return doc.record(), nil
		}

		res, err = repo.entities.UpdateOne(ctx,
			bson.M{"_id": entityID, "attendance.date": bson.M{"$ne": doc.Date}},
			bson.M{"$push": bson.M{"attendance": doc}},
		)
		if err != nil {
			return attendance.Record{}, attendance.NewStoreError(err, "pushing attendance record")
		}
		if res.MatchedCount > 0 {
			return doc.record(), nil
		}

		// neither matched: the entity is gone, or another writer pushed the day first
		n, err := repo.entities.CountDocuments(ctx, bson.M{"_id": entityID})
		if err != nil {
			return attendance.Record{}, attendance.NewStoreError(err, "counting entities")
		}
		if n == 0 {
			return attendance.Record{}, attendance.ErrEntityNotFound
		}
	}
	return attendance.Record{}, attendance.NewStoreError(errUpsertConflict, "upserting attendance record")
}

func (repo *Repository) ListRecords(ctx context.Context, entityID string, from, to time.Time) ([]attendance.Record, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": entityID}}},
		{{Key: "$unwind", Value: "$attendance"}},
		{{Key: "$match", Value: bson.M{"attendance.date": bson.M{
			"$gte": attendance.Day(from, time.UTC),
			"$lte": attendance.Day(to, time.UTC),
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "attendance.date", Value: 1}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$attendance"}}},
	}
	cur, err := repo.entities.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, attendance.NewStoreError(err, "aggregating attendance records")
	}
	var docs []recordDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, attendance.NewStoreError(err, "decoding attendance records")
	}
	recs := make([]attendance.Record, 0, len(docs))
	for _, doc := range docs {
		recs = append(recs, doc.record())
	}
	return recs, nil
}
