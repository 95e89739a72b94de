// Package metrics derives the per-inspection metric rows and folds them into the admin dashboard.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
)

const (
	IdealDurationSeconds = 900
	durationTolerance    = 300
	maxDurationPenalty   = 10
	DefaultWeeks         = 8
)

// PerformanceScore rates an inspector on one inspection: 100 minus 5 per critical and 2 per warning,
// minus one point per minute beyond five minutes away from the ideal duration (at most 10).
func PerformanceScore(critical, warning int, durationSeconds int64) int {
	score := 100 - 5*critical - 2*warning

	diff := durationSeconds - IdealDurationSeconds
	if diff < 0 {
		diff = -diff
	}
	if diff > durationTolerance {
		penalty := int(diff / 60)
		if penalty > maxDurationPenalty {
			penalty = maxDurationPenalty
		}
		score -= penalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// WeekStart returns Sunday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// Rows builds the five metric rows recorded for a persisted inspection.
func Rows(inspectionID uuid.UUID, rec inspection.Record, now time.Time) []model.InspectionMetric {
	ok := 0
	if rec.CriticalCount == 0 && rec.WarningCount == 0 {
		ok = 1
	}
	week := WeekStart(now)

	row := func(typ model.MetricType, period model.MetricPeriod, v model.MetricPayload) model.InspectionMetric {
		v.Timestamp = now
		return model.InspectionMetric{
			InspectionID: inspectionID,
			Type:         typ,
			Period:       period,
			Value:        v,
			RecordedAt:   now,
		}
	}

	return []model.InspectionMetric{
		row(model.MetricInspectionTime, model.MetricPeriodDaily, model.MetricPayload{
			WorkerID: rec.Operator.ID,
			Duration: rec.DurationSeconds,
		}),
		row(model.MetricWeeklyInspections, model.MetricPeriodWeekly, model.MetricPayload{
			Count:     1,
			WeekStart: &week,
		}),
		row(model.MetricIssueDistribution, model.MetricPeriodDaily, model.MetricPayload{
			Critical: rec.CriticalCount,
			Warning:  rec.WarningCount,
			OK:       ok,
		}),
		row(model.MetricFleetCondition, model.MetricPeriodDaily, model.MetricPayload{
			TruckID:   rec.Vehicle.ID,
			Condition: rec.Score,
		}),
		row(model.MetricInspectorPerformance, model.MetricPeriodDaily, model.MetricPayload{
			WorkerID: rec.Operator.ID,
			Score:    PerformanceScore(rec.CriticalCount, rec.WarningCount, rec.DurationSeconds),
		}),
	}
}

type WeekCount struct {
	WeekStart time.Time `json:"week_start"`
	Count     int       `json:"count"`
}

type IssueDistribution struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	OK       int `json:"ok"`
}

type TruckCondition struct {
	TruckID   string    `json:"truck_id"`
	Condition int       `json:"condition"`
	At        time.Time `json:"timestamp"`
}

type InspectorSummary struct {
	WorkerID           string  `json:"worker_id"`
	Inspections        int     `json:"inspections"`
	AverageDuration    float64 `json:"average_duration_seconds"`
	AverageDurationFmt string  `json:"average_duration"`
	AveragePerformance float64 `json:"average_performance"`
	LatestPerformance  int     `json:"latest_performance"`
}

type Dashboard struct {
	WeeklyInspections []WeekCount        `json:"weekly_inspections"`
	Issues            IssueDistribution  `json:"issue_distribution"`
	FleetCondition    []TruckCondition   `json:"fleet_condition"`
	FleetAverage      float64            `json:"fleet_average_condition"`
	Inspectors        []InspectorSummary `json:"inspectors"`
}

// Aggregate folds metric rows into a dashboard. Weekly counts cover the given number of weeks
// ending with the week containing now; weeks without inspections report zero.
func Aggregate(rows []model.InspectionMetric, now time.Time, weeks int) Dashboard {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	loc := now.Location()

	current := WeekStart(now)
	weekly := make([]WeekCount, weeks)
	slot := make(map[int64]int, weeks)
	for i := 0; i < weeks; i++ {
		ws := current.AddDate(0, 0, -7*(weeks-1-i))
		weekly[i] = WeekCount{WeekStart: ws}
		slot[ws.Unix()] = i
	}

	type inspectorAcc struct {
		durations int64
		timed     int
		scores    int
		scored    int
		latest    int
		latestAt  time.Time
	}
	inspectors := map[string]*inspectorAcc{}
	acc := func(id string) *inspectorAcc {
		a, ok := inspectors[id]
		if !ok {
			a = &inspectorAcc{}
			inspectors[id] = a
		}
		return a
	}
	trucks := map[string]TruckCondition{}

	var d Dashboard
	for _, m := range rows {
		v := m.Value
		at := v.Timestamp
		if at.IsZero() {
			at = m.RecordedAt
		}
		switch m.Type {
		case model.MetricInspectionTime:
			a := acc(v.WorkerID)
			a.durations += v.Duration
			a.timed++
		case model.MetricWeeklyInspections:
			ws := m.RecordedAt
			if v.WeekStart != nil {
				ws = *v.WeekStart
			}
			if i, ok := slot[WeekStart(ws.In(loc)).Unix()]; ok {
				weekly[i].Count += v.Count
			}
		case model.MetricIssueDistribution:
			d.Issues.Critical += v.Critical
			d.Issues.Warning += v.Warning
			d.Issues.OK += v.OK
		case model.MetricFleetCondition:
			if prev, ok := trucks[v.TruckID]; !ok || !at.Before(prev.At) {
				trucks[v.TruckID] = TruckCondition{TruckID: v.TruckID, Condition: v.Condition, At: at}
			}
		case model.MetricInspectorPerformance:
			a := acc(v.WorkerID)
			a.scores += v.Score
			a.scored++
			if a.scored == 1 || !at.Before(a.latestAt) {
				a.latest = v.Score
				a.latestAt = at
			}
		}
	}

	d.WeeklyInspections = weekly

	d.FleetCondition = make([]TruckCondition, 0, len(trucks))
	total := 0
	for _, tc := range trucks {
		d.FleetCondition = append(d.FleetCondition, tc)
		total += tc.Condition
	}
	sort.Slice(d.FleetCondition, func(i, j int) bool {
		return d.FleetCondition[i].TruckID < d.FleetCondition[j].TruckID
	})
	if len(trucks) > 0 {
		d.FleetAverage = float64(total) / float64(len(trucks))
	}

	d.Inspectors = make([]InspectorSummary, 0, len(inspectors))
	for id, a := range inspectors {
		s := InspectorSummary{WorkerID: id, Inspections: a.timed, LatestPerformance: a.latest}
		if a.timed > 0 {
			s.AverageDuration = float64(a.durations) / float64(a.timed)
		}
		s.AverageDurationFmt = FormatDuration(int64(s.AverageDuration))
		if a.scored > 0 {
			s.AveragePerformance = float64(a.scores) / float64(a.scored)
		}
		d.Inspectors = append(d.Inspectors, s)
	}
	sort.Slice(d.Inspectors, func(i, j int) bool {
		return d.Inspectors[i].WorkerID < d.Inspectors[j].WorkerID
	})

	return d
}
