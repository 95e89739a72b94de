package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
)

func record(handle, workerID string, critical int) inspection.Record {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	return inspection.Record{
		SessionHandle:   handle,
		Operator:        inspection.Operator{ID: workerID, Name: workerID},
		Vehicle:         inspection.Vehicle{ID: "T001", Model: "Freightliner M2", Year: 2019, Status: "active"},
		Locale:          "en",
		Score:           inspection.Score(critical, 0),
		CriticalCount:   critical,
		StartedAt:       start,
		EndedAt:         start.Add(15 * time.Minute),
		DurationSeconds: 900,
	}
}

func TestInspectionServiceSaveIsIdempotent(t *testing.T) {
	rows := newMemInspections()
	metricStore := &memMetrics{}
	svc := NewInspectionService(rows, metricStore, newMemRenderer(), zerolog.Nop())
	ctx := context.Background()

	first, err := svc.Save(ctx, record("h1", "W001", 0))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := svc.Save(ctx, record("h1", "W001", 0))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second || len(rows.rows) != 1 {
		t.Fatalf("duplicate save: %s vs %s, %d rows", first, second, len(rows.rows))
	}
	if len(metricStore.rows) != 5 {
		t.Fatalf("metrics recorded %d times", len(metricStore.rows))
	}
}

func TestInspectionServiceMetricFailureDoesNotFailSave(t *testing.T) {
	svc := NewInspectionService(newMemInspections(), &memMetrics{err: errors.New("disk full")}, newMemRenderer(), zerolog.Nop())
	if _, err := svc.Save(context.Background(), record("h1", "W001", 0)); err != nil {
		t.Fatalf("save failed on metric error: %v", err)
	}
}

func TestInspectionServiceAccess(t *testing.T) {
	rows := newMemInspections()
	renderer := newMemRenderer()
	svc := NewInspectionService(rows, &memMetrics{}, renderer, zerolog.Nop())
	ctx := context.Background()

	rec := record("h1", "W001", 1)
	idStr, _ := svc.Save(ctx, rec)
	if _, err := svc.Render(ctx, rec); err != nil {
		t.Fatalf("render: %v", err)
	}
	_, _ = svc.Save(ctx, record("h2", "W002", 0))
	id := uuid.MustParse(idStr)

	page, err := svc.List(ctx, worker, model.InspectionFilter{WorkerID: "W002"})
	if err != nil || page.Total != 1 || page.Items[0].WorkerID != "W001" {
		t.Fatalf("worker list not scoped: %+v %v", page, err)
	}
	page, _ = svc.List(ctx, admin, model.InspectionFilter{})
	if page.Total != 2 {
		t.Fatalf("admin list: %d", page.Total)
	}

	if _, err := svc.Get(ctx, other, id); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign get: %v", err)
	}
	if _, err := svc.Get(ctx, worker, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing get: %v", err)
	}

	name, data, err := svc.Report(ctx, admin, id)
	if err != nil || name != "FleetGuard_T001.pdf" || len(data) == 0 {
		t.Fatalf("report: %q %d %v", name, len(data), err)
	}

	var h2 uuid.UUID
	for rid, row := range rows.rows {
		if row.SessionHandle == "h2" {
			h2 = rid
		}
	}
	if _, _, err := svc.Report(ctx, other, h2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("report without pdf: %v", err)
	}
}

func TestDashboardService(t *testing.T) {
	rows := newMemInspections()
	metricStore := &memMetrics{}
	svc := NewInspectionService(rows, metricStore, newMemRenderer(), zerolog.Nop())
	ctx := context.Background()
	_, _ = svc.Save(ctx, record("h1", "W001", 1))
	_, _ = svc.Save(ctx, record("h2", "W002", 0))

	dash := NewDashboardService(rows, metricStore)
	stats, err := dash.Stats(ctx)
	if err != nil || stats.Total != 2 || stats.WithCritical != 1 || stats.Vehicles != 1 {
		t.Fatalf("stats: %+v %v", stats, err)
	}

	d, err := dash.Metrics(ctx, 0)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if d.Issues.Critical != 1 || d.Issues.OK != 1 || len(d.Inspectors) != 2 {
		t.Fatalf("dashboard: %+v", d)
	}
	if last := d.WeeklyInspections[len(d.WeeklyInspections)-1]; last.Count != 2 {
		t.Fatalf("current week count: %+v", d.WeeklyInspections)
	}
}
