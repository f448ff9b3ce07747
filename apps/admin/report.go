package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/trezcool/tutorcenter/core/attendance"
)

// dayMarks renders a row's month as one character per day:
// P present, A recorded absent, . nothing recorded.
func dayMarks(row attendance.MonthlyReportRow, days []string) string {
	var b strings.Builder
	for _, d := range days {
		switch {
		case row.Days[d]:
			b.WriteByte('P')
		case row.Recorded[d]:
			b.WriteByte('A')
		default:
			b.WriteByte('.')
		}
	}
	return b.String()
}

// report prints the dense monthly report as a table.
func (cli *commandLine) report(query attendance.ReportQuery) error {
	rows, err := cli.svc.BuildMonthlyReport(context.Background(), query)
	if err != nil {
		return err
	}

	dates := attendance.MonthDays(query.Year, time.Month(query.Month))
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, attendance.DayKey(d))
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tCENTER\tPRESENT\tRATE\tDAYS")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%.1f%%\t%s\n",
			row.EntityID, row.EntityName, row.EntityType, row.Center.Name,
			row.PresentDays, row.TotalDays, row.Rate, dayMarks(row, keys))
	}
	return w.Flush()
}
