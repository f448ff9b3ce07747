package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/geo"
)

var NowFunc = time.Now // mockable

type (
	// Store owns the dated attendance records of every entity.
	// UpsertRecord must be atomic per (entityID, Record.Date).
	Store interface {
		FindRecord(ctx context.Context, entityID string, day time.Time) (Record, error)
		UpsertRecord(ctx context.Context, entityID string, rec Record) (Record, error)
		// ListRecords returns the records dated within [from, to], ordered by date.
		ListRecords(ctx context.Context, entityID string, from, to time.Time) ([]Record, error)
	}

	// EntityDirectory is a read-only lookup of tutors and students.
	EntityDirectory interface {
		GetEntity(ctx context.Context, id string) (Entity, error)
		ListEntities(ctx context.Context, filter EntityFilter) ([]Entity, error)
	}

	// CenterDirectory is a read-only lookup of centers.
	CenterDirectory interface {
		GetCenter(ctx context.Context, id string) (Center, error)
	}

	// Registry creates centers and entities. Used by the admin tooling only.
	Registry interface {
		CreateCenter(ctx context.Context, ctr Center) (Center, error)
		CreateEntity(ctx context.Context, ent Entity) (Entity, error)
	}

	ServiceInterface interface {
		SubmitAttendance(ctx context.Context, entityID string, observed []float64, now time.Time) (Record, error)
		VerifyProximity(ctx context.Context, entityID string, observed []float64) (ProximityResult, error)
		MarkAttendance(ctx context.Context, req MarkRequest) (Record, error)
		BuildMonthlyReport(ctx context.Context, query ReportQuery) ([]MonthlyReportRow, error)
		EntitySummary(ctx context.Context, entityID string, year, month int) (MonthlyReportRow, error)
		GetEntity(ctx context.Context, id string) (Entity, error)
	}

	Service struct {
		store         Store
		entities      EntityDirectory
		centers       CenterDirectory
		logger        core.Logger
		checkInPolicy geo.Policy
		loginPolicy   geo.Policy
		loc           *time.Location
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(store Store, entities EntityDirectory, centers CenterDirectory, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		store:         store,
		entities:      entities,
		centers:       centers,
		logger:        logger,
		checkInPolicy: geo.NewPolicy("check-in", conf.Attendance.CheckInRadius),
		loginPolicy:   geo.NewPolicy("login", conf.Attendance.LoginRadius),
		loc:           conf.Attendance.Location(),
	}
}

func (svc *Service) GetEntity(ctx context.Context, id string) (Entity, error) {
	return svc.entities.GetEntity(ctx, core.CleanString(id))
}

// SubmitAttendance records a self check-in for today. The observed [latitude, longitude]
// must be within the check-in radius of the entity's assigned center.
// Checking in again on the same day replaces the earlier record.
func (svc *Service) SubmitAttendance(ctx context.Context, entityID string, observed []float64, now time.Time) (Record, error) {
	ent, ctr, pt, err := svc.locate(ctx, entityID, observed)
	if err != nil {
		return Record{}, svc.fail("submitting attendance", err, ent)
	}

	ev, err := svc.checkInPolicy.Evaluate(pt, ctr.Location)
	if err != nil {
		return Record{}, svc.fail("submitting attendance", ErrInvalidLocation, ent)
	}
	if !ev.Within {
		return Record{}, svc.fail("submitting attendance", &OutOfRangeError{
			Distance: ev.Distance,
			Radius:   ev.Radius,
			Observed: pt,
			Center:   ctr.Location,
		}, ent)
	}

	rec := Record{
		Date:       Day(now, svc.loc),
		Status:     StatusPresent,
		Location:   &pt,
		CenterID:   ctr.ID,
		CenterName: ctr.Name,
		RecordedAt: now.UTC(),
	}
	rec, err = svc.store.UpsertRecord(ctx, ent.ID, rec)
	if err != nil {
		return Record{}, svc.fail("submitting attendance", err, ent)
	}
	return rec, nil
}

// VerifyProximity checks the observed [latitude, longitude] against the login radius.
// Being out of range is not an error here; nothing is persisted.
func (svc *Service) VerifyProximity(ctx context.Context, entityID string, observed []float64) (ProximityResult, error) {
	ent, ctr, pt, err := svc.locate(ctx, entityID, observed)
	if err != nil {
		return ProximityResult{}, svc.fail("verifying proximity", err, ent)
	}
	ev, err := svc.loginPolicy.Evaluate(pt, ctr.Location)
	if err != nil {
		return ProximityResult{}, svc.fail("verifying proximity", ErrInvalidLocation, ent)
	}
	return ProximityResult{Within: ev.Within, Distance: ev.Distance, Radius: ev.Radius, Center: ctr}, nil
}

// MarkAttendance is the administrative override: no geofencing, any day, any status.
func (svc *Service) MarkAttendance(ctx context.Context, req MarkRequest) (Record, error) {
	req.Clean()
	if !req.Status.Valid() {
		return Record{}, newInvalidRequest("status", "status must be one of: present, absent")
	}
	day, err := ParseDay(req.Date)
	if err != nil {
		return Record{}, newInvalidRequest("date", "must be a date formatted as YYYY-MM-DD")
	}
	if req.ActorID == "" {
		return Record{}, newInvalidRequest("actor", "an acting admin is required")
	}

	ent, err := svc.entities.GetEntity(ctx, req.EntityID)
	if err != nil {
		return Record{}, svc.fail("marking attendance", err, Entity{ID: req.EntityID})
	}

	rec := Record{
		Date:       day,
		Status:     req.Status,
		MarkedBy:   req.ActorID,
		RecordedAt: NowFunc().UTC(),
	}
	centerID := req.CenterID
	if centerID == "" {
		centerID = ent.CenterID
	}
	if centerID != "" {
		ctr, err := svc.centers.GetCenter(ctx, centerID)
		switch {
		case err == nil:
			rec.CenterID, rec.CenterName = ctr.ID, ctr.Name
		case req.CenterID == "" && errors.Is(err, ErrCenterNotFound):
			// a dangling assignment does not block an override
		default:
			return Record{}, svc.fail("marking attendance", err, ent)
		}
	}

	rec, err = svc.store.UpsertRecord(ctx, ent.ID, rec)
	if err != nil {
		return Record{}, svc.fail("marking attendance", err, ent)
	}
	svc.logger.Info(fmt.Sprintf("attendance marked %s for %s on %s", rec.Status, ent.ID, DayKey(rec.Date)),
		map[string]interface{}{"actor": req.ActorID})
	return rec, nil
}

// locate resolves the entity, its center and the observed point, failing closed
// on any missing or unusable piece.
func (svc *Service) locate(ctx context.Context, entityID string, observed []float64) (Entity, Center, orb.Point, error) {
	ent, err := svc.entities.GetEntity(ctx, core.CleanString(entityID))
	if err != nil {
		return Entity{ID: entityID}, Center{}, orb.Point{}, err
	}
	if ent.CenterID == "" {
		return ent, Center{}, orb.Point{}, ErrCenterNotAssigned
	}
	ctr, err := svc.centers.GetCenter(ctx, ent.CenterID)
	if err != nil {
		return ent, Center{}, orb.Point{}, err
	}
	if !ctr.HasLocation() {
		return ent, ctr, orb.Point{}, &Error{
			Kind:    KindCenterLocationMissing,
			Message: ErrCenterLocationMissing.Message,
			Err:     fmt.Errorf("center %s has coordinates %v", ctr.ID, geo.Pair(ctr.Location)),
		}
	}
	pt, err := geo.ParsePair(observed)
	if err != nil {
		return ent, ctr, orb.Point{}, ErrInvalidLocation
	}
	return ent, ctr, pt, nil
}

// fail logs err at a level matching its kind and wraps it with op.
func (svc *Service) fail(op string, err error, ent Entity) error {
	kind := KindOf(err)
	switch {
	case kind == KindOutOfRange:
		svc.logger.Info(fmt.Sprintf("%s: %v", op, err), ent)
	case IsIntegrityFailure(kind):
		svc.logger.Error(fmt.Sprintf("%s: %s: %v", op, kind, err), err, ent)
	case kind == "":
		svc.logger.Error(fmt.Sprintf("%s: %v", op, err), err, ent)
	default:
		svc.logger.Warn(fmt.Sprintf("%s: %s: %v", op, kind, err), ent)
	}
	return errors.WithMessage(err, op)
}
