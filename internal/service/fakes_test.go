package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
	"fleetguard/internal/repository"
)

type stubAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (a *stubAnalyzer) Analyze(_ context.Context, photos []inspection.Photo, _ checklist.Item) []inspection.Analysis {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	out := make([]inspection.Analysis, len(photos))
	for i := range out {
		out[i] = inspection.Analysis{Status: "Optimal condition", Issues: []string{"No problems"}}
	}
	return out
}

type stubVehicles map[string]inspection.Vehicle

func (v stubVehicles) Lookup(_ context.Context, id string) (*inspection.Vehicle, error) {
	vehicle, ok := v[id]
	if !ok {
		return nil, inspection.ErrVehicleNotFound
	}
	return &vehicle, nil
}

type memInspections struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*model.Inspection
	failing error
	reports map[string][2]string
}

func newMemInspections() *memInspections {
	return &memInspections{rows: map[uuid.UUID]*model.Inspection{}, reports: map[string][2]string{}}
}

func (m *memInspections) CreateOrGet(_ context.Context, row *model.Inspection) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return false, m.failing
	}
	for _, existing := range m.rows {
		if existing.SessionHandle == row.SessionHandle {
			*row = *existing
			return false, nil
		}
	}
	row.ID = uuid.New()
	copied := *row
	m.rows[row.ID] = &copied
	return true, nil
}

func (m *memInspections) GetByID(_ context.Context, id uuid.UUID) (*model.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memInspections) List(_ context.Context, filter model.InspectionFilter) ([]model.Inspection, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Inspection
	for _, row := range m.rows {
		if filter.WorkerID != "" && row.WorkerID != filter.WorkerID {
			continue
		}
		out = append(out, *row)
	}
	return out, int64(len(out)), nil
}

func (m *memInspections) SetReport(_ context.Context, handle, filename, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[handle] = [2]string{filename, location}
	for _, row := range m.rows {
		if row.SessionHandle == handle {
			row.ReportFilename = &filename
			row.ReportLocation = &location
		}
	}
	return nil
}

func (m *memInspections) Stats(_ context.Context, recent int) (*repository.InspectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.InspectionStats{Total: int64(len(m.rows))}
	trucks := map[string]bool{}
	for _, row := range m.rows {
		if row.CriticalCount > 0 {
			stats.WithCritical++
		}
		trucks[row.TruckID] = true
		if len(stats.Recent) < recent {
			stats.Recent = append(stats.Recent, *row)
		}
	}
	stats.Vehicles = int64(len(trucks))
	return stats, nil
}

type memMetrics struct {
	mu   sync.Mutex
	rows []model.InspectionMetric
	err  error
}

func (m *memMetrics) CreateBatch(_ context.Context, rows []model.InspectionMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memMetrics) List(_ context.Context, filter model.MetricFilter) ([]model.InspectionMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.InspectionMetric
	for _, r := range m.rows {
		if filter.From != nil && r.RecordedAt.Before(*filter.From) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type memRenderer struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemRenderer() *memRenderer {
	return &memRenderer{files: map[string][]byte{}}
}

func (r *memRenderer) Render(_ context.Context, rec inspection.Record) (*inspection.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := "FleetGuard_" + rec.Vehicle.ID + ".pdf"
	location := "mem://" + rec.SessionHandle
	r.files[location] = []byte("%PDF-1.3 " + rec.SessionHandle)
	return &inspection.Report{Filename: name, Location: location, Size: len(r.files[location])}, nil
}

func (r *memRenderer) Fetch(_ context.Context, location string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.files[location]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

type memWorkers struct {
	workers map[string]*model.Worker
	touched map[string]time.Time
}

func (m *memWorkers) GetByID(_ context.Context, id string) (*model.Worker, error) {
	w, ok := m.workers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return w, nil
}

func (m *memWorkers) GetByEmail(_ context.Context, email string) (*model.Worker, error) {
	for _, w := range m.workers {
		if w.Email != nil && strings.EqualFold(*w.Email, email) {
			return w, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memWorkers) TouchActivity(_ context.Context, id string, at time.Time) error {
	if m.touched == nil {
		m.touched = map[string]time.Time{}
	}
	m.touched[id] = at
	return nil
}
