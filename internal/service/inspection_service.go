package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fleetguard/internal/inspection"
	"fleetguard/internal/metrics"
	"fleetguard/internal/model"
	"fleetguard/internal/report"
	"fleetguard/internal/repository"
)

type InspectionStore interface {
	CreateOrGet(ctx context.Context, inspection *model.Inspection) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Inspection, error)
	List(ctx context.Context, filter model.InspectionFilter) ([]model.Inspection, int64, error)
	SetReport(ctx context.Context, sessionHandle, filename, location string) error
	Stats(ctx context.Context, recent int) (*repository.InspectionStats, error)
}

type MetricStore interface {
	CreateBatch(ctx context.Context, metrics []model.InspectionMetric) error
	List(ctx context.Context, filter model.MetricFilter) ([]model.InspectionMetric, error)
}

type ReportRenderer interface {
	Render(ctx context.Context, record inspection.Record) (*inspection.Report, error)
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// InspectionService stores completed records and serves the inspection history.
// It is the persistence and report collaborator of the inspection manager.
type InspectionService struct {
	inspections InspectionStore
	metrics     MetricStore
	reports     ReportRenderer
	now         func() time.Time
	log         zerolog.Logger
}

func NewInspectionService(inspections InspectionStore, metricStore MetricStore, reports ReportRenderer, log zerolog.Logger) *InspectionService {
	return &InspectionService{
		inspections: inspections,
		metrics:     metricStore,
		reports:     reports,
		now:         time.Now,
		log:         log.With().Str("component", "inspections").Logger(),
	}
}

// Save stores the record once per session handle; repeated calls return the existing row id.
// Metrics are recorded only for a new row and their failure does not fail the save.
func (s *InspectionService) Save(ctx context.Context, rec inspection.Record) (string, error) {
	row := model.NewInspection(rec)
	created, err := s.inspections.CreateOrGet(ctx, row)
	if err != nil {
		return "", err
	}
	if !created {
		s.log.Info().Str("session", rec.SessionHandle).Str("inspection_id", row.ID.String()).Msg("inspection already stored")
		return row.ID.String(), nil
	}

	if err := s.metrics.CreateBatch(ctx, metrics.Rows(row.ID, rec, s.now())); err != nil {
		s.log.Error().Err(err).Str("inspection_id", row.ID.String()).Msg("failed to record inspection metrics")
	}
	return row.ID.String(), nil
}

// Render builds and stores the PDF; for stored inspections the location is linked to the row.
func (s *InspectionService) Render(ctx context.Context, rec inspection.Record) (*inspection.Report, error) {
	rep, err := s.reports.Render(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !rec.Demo {
		if err := s.inspections.SetReport(ctx, rec.SessionHandle, rep.Filename, rep.Location); err != nil {
			s.log.Error().Err(err).Str("session", rec.SessionHandle).Msg("failed to link report")
		}
	}
	return rep, nil
}

func (s *InspectionService) List(ctx context.Context, principal model.Principal, filter model.InspectionFilter) (*model.InspectionPage, error) {
	if !principal.IsAdmin() {
		filter.WorkerID = principal.WorkerID
	}
	items, total, err := s.inspections.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Inspection{}
	}
	return &model.InspectionPage{Items: items, Total: total}, nil
}

func (s *InspectionService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Inspection, error) {
	row, err := s.inspections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !principal.CanAccess(row.WorkerID) {
		return nil, ErrPermissionDenied
	}
	return row, nil
}

// Report returns the stored PDF of an inspection and its download filename.
func (s *InspectionService) Report(ctx context.Context, principal model.Principal, id uuid.UUID) (string, []byte, error) {
	row, err := s.Get(ctx, principal, id)
	if err != nil {
		return "", nil, err
	}
	if row.ReportLocation == nil || *row.ReportLocation == "" {
		return "", nil, ErrNotFound
	}
	data, err := s.reports.Fetch(ctx, *row.ReportLocation)
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			return "", nil, ErrNotFound
		}
		return "", nil, err
	}
	filename := report.Filename(row.TruckID, row.EndedAt)
	if row.ReportFilename != nil && *row.ReportFilename != "" {
		filename = *row.ReportFilename
	}
	return filename, data, nil
}
