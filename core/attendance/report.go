package attendance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorcenter/core"
)

// BuildMonthlyReport returns one row per selected entity with an entry for every
// day of the month. Days without a present record are false, so the month length
// is always the denominator of the attendance rate.
func (svc *Service) BuildMonthlyReport(ctx context.Context, query ReportQuery) ([]MonthlyReportRow, error) {
	query.Clean()
	if query.Month < 1 || query.Month > 12 {
		return nil, newInvalidRequest("month", "month must be between 1 and 12")
	}
	if query.Year < 1970 || query.Year > 9999 {
		return nil, newInvalidRequest("year", "year must be between 1970 and 9999")
	}
	if query.Type != "" && !query.Type.Valid() {
		return nil, newInvalidRequest("type", "type must be one of: tutor, student")
	}

	ents, err := svc.reportEntities(ctx, query)
	if err != nil {
		return nil, svc.fail("building report", err, Entity{})
	}

	days := MonthDays(query.Year, time.Month(query.Month))
	first, last := days[0], days[len(days)-1]
	centers := make(map[string]CenterInfo)

	rows := make([]MonthlyReportRow, 0, len(ents))
	for _, ent := range ents {
		ctrInfo, err := svc.centerInfo(ctx, ent.CenterID, centers)
		if err != nil {
			return nil, svc.fail("building report", err, ent)
		}
		recs, err := svc.store.ListRecords(ctx, ent.ID, first, last)
		if err != nil {
			return nil, svc.fail("building report", err, ent)
		}
		rows = append(rows, denseRow(ent, ctrInfo, days, recs))
	}
	return rows, nil
}

// EntitySummary returns the report row of one entity. A zero year or month
// defaults to the current one.
func (svc *Service) EntitySummary(ctx context.Context, entityID string, year, month int) (MonthlyReportRow, error) {
	now := NowFunc().In(svc.loc)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	rows, err := svc.BuildMonthlyReport(ctx, ReportQuery{Year: year, Month: month, EntityIDs: []string{entityID}})
	if err != nil {
		return MonthlyReportRow{}, err
	}
	if len(rows) == 0 {
		return MonthlyReportRow{}, ErrEntityNotFound
	}
	return rows[0], nil
}

func (svc *Service) reportEntities(ctx context.Context, query ReportQuery) ([]Entity, error) {
	var ents []Entity
	if len(query.EntityIDs) == 0 {
		var err error
		ents, err = svc.entities.ListEntities(ctx, EntityFilter{Type: query.Type, CenterID: query.CenterID})
		if err != nil {
			return nil, err
		}
	} else {
		seen := make(map[string]bool, len(query.EntityIDs))
		for _, id := range query.EntityIDs {
			id = core.CleanString(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ent, err := svc.entities.GetEntity(ctx, id)
			if err != nil {
				return nil, err
			}
			if (query.Type == "" || ent.Type == query.Type) && (query.CenterID == "" || ent.CenterID == query.CenterID) {
				ents = append(ents, ent)
			}
		}
	}
	sort.SliceStable(ents, func(i, j int) bool {
		if ents[i].Name != ents[j].Name {
			return ents[i].Name < ents[j].Name
		}
		return ents[i].ID < ents[j].ID
	})
	return ents, nil
}

// centerInfo resolves a center label, caching lookups for the duration of one report.
// Unassigned and dangling centers get the NotAssigned label.
func (svc *Service) centerInfo(ctx context.Context, id string, cache map[string]CenterInfo) (CenterInfo, error) {
	if id == "" {
		return CenterInfo{Name: NotAssigned}, nil
	}
	if info, ok := cache[id]; ok {
		return info, nil
	}
	info := CenterInfo{Name: NotAssigned}
	ctr, err := svc.centers.GetCenter(ctx, id)
	if err == nil {
		info = CenterInfo{ID: ctr.ID, Name: ctr.Name}
	} else if errors.Is(err, ErrCenterNotFound) {
		svc.logger.Warn(fmt.Sprintf("building report: dangling center reference %s", id))
	} else {
		return CenterInfo{}, err
	}
	cache[id] = info
	return info, nil
}

func denseRow(ent Entity, ctr CenterInfo, days []time.Time, recs []Record) MonthlyReportRow {
	row := MonthlyReportRow{
		EntityID:   ent.ID,
		EntityName: ent.Name,
		EntityType: ent.Type,
		Center:     ctr,
		Days:       make(map[string]bool, len(days)),
		Recorded:   make(map[string]bool, len(days)),
		TotalDays:  len(days),
	}
	for _, d := range days {
		key := DayKey(d)
		row.Days[key] = false
		row.Recorded[key] = false
	}
	for _, rec := range recs {
		key := DayKey(rec.Date)
		if _, ok := row.Days[key]; !ok {
			continue // outside the month
		}
		row.Recorded[key] = true
		if rec.Status == StatusPresent && !row.Days[key] {
			row.Days[key] = true
			row.PresentDays++
		}
	}
	if row.TotalDays > 0 {
		row.Rate = math.Round(float64(row.PresentDays)/float64(row.TotalDays)*1000) / 10 // percent, 1 decimal
	}
	return row
}
