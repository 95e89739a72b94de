package inspection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"fleetguard/internal/checklist"
)

// Analyzer returns one outcome per photograph, in order. It must not fail: errors become ErrorAnalysis outcomes.
type Analyzer interface {
	Analyze(ctx context.Context, photos []Photo, item checklist.Item) []Analysis
}

type Persister interface {
	Save(ctx context.Context, record Record) (string, error)
}

type Reporter interface {
	Render(ctx context.Context, record Record) (*Report, error)
}

type VehicleLookup interface {
	Lookup(ctx context.Context, vehicleID string) (*Vehicle, error)
}

type EventSink interface {
	Publish(event Event)
}

type Report struct {
	Filename string `json:"filename"`
	Location string `json:"location"`
	Size     int    `json:"size"`
}

type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventItemUpdated      EventType = "item.updated"
	EventItemPhoto        EventType = "item.photo"
	EventCursorMoved      EventType = "cursor.moved"
	EventSessionCompleted EventType = "session.completed"
	EventSessionCancelled EventType = "session.cancelled"
	EventPersistFailed    EventType = "session.persist_failed"
)

type Event struct {
	Type       EventType `json:"type"`
	Handle     string    `json:"handle"`
	OperatorID string    `json:"operator_id"`
	VehicleID  string    `json:"vehicle_id"`
	Cursor     int       `json:"cursor"`
	ItemID     string    `json:"item_id,omitempty"`
	At         time.Time `json:"at"`
	Data       any       `json:"data,omitempty"`
}

type Config struct {
	Rules          Rules
	Policy         Policy
	DemoOperatorID string
	Events         EventSink
	Now            func() time.Time
	NewHandle      func() string
}

// Step describes the result of a successful advance.
type Step struct {
	ItemID     string      `json:"item_id"`
	Analysis   Analysis    `json:"analysis"`
	Cursor     int         `json:"cursor"`
	Completed  bool        `json:"completed"`
	Completion *Completion `json:"completion,omitempty"`
}

type Completion struct {
	RecordID    string  `json:"record_id,omitempty"`
	Record      Record  `json:"record"`
	Report      *Report `json:"report,omitempty"`
	ReportError string  `json:"report_error,omitempty"`
}

// Manager drives sessions through the checklist and hands completed records to its collaborators.
type Manager struct {
	checklist *checklist.Checklist
	analyzer  Analyzer
	persister Persister
	reporter  Reporter
	vehicles  VehicleLookup
	cfg       Config
	log       zerolog.Logger
}

func NewManager(
	cl *checklist.Checklist,
	analyzer Analyzer,
	persister Persister,
	reporter Reporter,
	vehicles VehicleLookup,
	cfg Config,
	log zerolog.Logger,
) *Manager {
	if cfg.Rules == (Rules{}) {
		cfg.Rules = DefaultRules()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyFirstResult
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewHandle == nil {
		cfg.NewHandle = func() string { return ulid.Make().String() }
	}
	return &Manager{
		checklist: cl,
		analyzer:  analyzer,
		persister: persister,
		reporter:  reporter,
		vehicles:  vehicles,
		cfg:       cfg,
		log:       log.With().Str("component", "inspection").Logger(),
	}
}

func (m *Manager) Checklist() *checklist.Checklist {
	return m.checklist
}

func (m *Manager) Rules() Rules {
	return m.cfg.Rules
}

// Start validates the vehicle and opens a session at the first item.
func (m *Manager) Start(ctx context.Context, op Operator, vehicleID, locale string) (*Session, error) {
	id, err := NormalizeVehicleID(vehicleID)
	if err != nil {
		return nil, err
	}

	vehicle, err := m.vehicles.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("vehicle lookup: %w", err)
	}
	if vehicle == nil {
		return nil, ErrVehicleNotFound
	}
	if !strings.EqualFold(vehicle.Status, VehicleStatusActive) {
		return nil, fmt.Errorf("%w: truck %s is currently %s", ErrVehicleInactive, id, vehicle.Status)
	}

	s := newSession(m.cfg.NewHandle(), op, *vehicle, m.checklist.Items, m.cfg.Rules, m.cfg.Now())
	if locale = strings.ToLower(strings.TrimSpace(locale)); locale != "" {
		s.Locale = locale
	}
	s.Demo = m.cfg.DemoOperatorID != "" && op.ID == m.cfg.DemoOperatorID

	m.log.Info().
		Str("handle", s.Handle).
		Str("operator", op.ID).
		Str("vehicle", id).
		Bool("demo", s.Demo).
		Msg("inspection started")
	m.publish(s, EventSessionStarted, "", nil)
	return s, nil
}

func (m *Manager) SetStatus(s *Session, status Status) error {
	if err := s.SetStatus(status); err != nil {
		return err
	}
	m.publish(s, EventItemUpdated, s.Current().ID, map[string]any{"status": status})
	return nil
}

func (m *Manager) SetComment(s *Session, text string) error {
	if err := s.SetComment(text); err != nil {
		return err
	}
	m.publish(s, EventItemUpdated, s.Current().ID, map[string]any{"comment_length": len([]rune(strings.TrimSpace(text)))})
	return nil
}

func (m *Manager) AttachPhoto(s *Session, p Photo) (int, error) {
	count, err := s.AttachPhoto(p)
	if err != nil {
		return count, err
	}
	m.publish(s, EventItemPhoto, s.Current().ID, map[string]any{"photo_count": count})
	return count, nil
}

func (m *Manager) RemovePhoto(s *Session, index int) error {
	if err := s.RemovePhoto(index); err != nil {
		return err
	}
	r, _ := s.Result(s.Current().ID)
	m.publish(s, EventItemPhoto, s.Current().ID, map[string]any{"photo_count": len(r.Photos)})
	return nil
}

func (m *Manager) Retreat(s *Session) error {
	if err := s.Retreat(); err != nil {
		return err
	}
	m.publish(s, EventCursorMoved, s.Current().ID, nil)
	return nil
}

func (m *Manager) Cancel(s *Session) error {
	if s.State == StateCompleted {
		return ErrSessionCompleted
	}
	s.State = StateCancelled
	m.publish(s, EventSessionCancelled, "", nil)
	return nil
}

// Advance finalizes the current item and moves forward. Advancing past the last item completes the
// session: the record is persisted (skipped in demo mode) and then rendered. When persistence fails the
// session keeps its state, so calling Advance again retries the handoff without re-running analysis.
func (m *Manager) Advance(ctx context.Context, s *Session) (*Step, error) {
	if err := s.checkMutable(); err != nil {
		return nil, err
	}
	item := s.Current()
	if miss := s.Missing(); len(miss) > 0 {
		return nil, &IncompleteError{ItemID: item.ID, Missing: miss}
	}

	r := s.current()
	switch {
	case !item.NeedsPhotos():
		na := NotApplicableAnalysis()
		r.Analysis = &na
		r.PhotoAnalyses = nil
	case r.Analysis == nil:
		outcomes := m.analyze(ctx, r.Photos, item)
		selected := m.cfg.Policy.Select(outcomes)
		r.PhotoAnalyses = outcomes
		r.Analysis = &selected
	}
	r.Finalized = true

	step := &Step{ItemID: item.ID, Analysis: *r.Analysis}
	if s.Cursor < s.Len()-1 {
		s.Cursor++
		step.Cursor = s.Cursor
		m.publish(s, EventCursorMoved, s.Current().ID, nil)
		return step, nil
	}

	completion, err := m.complete(ctx, s)
	if err != nil {
		return nil, err
	}
	step.Cursor = s.Cursor
	step.Completed = true
	step.Completion = completion
	return step, nil
}

func (m *Manager) analyze(ctx context.Context, photos []Photo, item checklist.Item) []Analysis {
	started := m.cfg.Now()
	outcomes := m.analyzer.Analyze(ctx, photos, item)
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	m.log.Debug().
		Str("item", item.ID).
		Int("photos", len(photos)).
		Int("outcomes", len(outcomes)).
		Int("failed", failed).
		Dur("duration", m.cfg.Now().Sub(started)).
		Msg("item analyzed")
	return outcomes
}

func (m *Manager) complete(ctx context.Context, s *Session) (*Completion, error) {
	items := make([]FinalItem, 0, s.Len())
	for _, def := range s.Items {
		var r ItemResult
		if existing, ok := s.Results[def.ID]; ok && existing != nil {
			r = *existing
		}
		fi, err := finalize(def, r, s.Rules)
		if err != nil {
			return nil, err
		}
		items = append(items, fi)
	}

	record := buildRecord(s, items, m.cfg.Now())
	completion := &Completion{Record: record}

	if !s.Demo {
		id, err := m.persister.Save(ctx, record)
		if err != nil {
			m.log.Error().Err(err).Str("handle", s.Handle).Msg("inspection persistence failed")
			m.publish(s, EventPersistFailed, "", map[string]any{"error": err.Error()})
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		completion.RecordID = id
	}

	report, err := m.reporter.Render(ctx, record)
	if err != nil {
		m.log.Warn().Err(err).Str("handle", s.Handle).Msg("report rendering failed")
		completion.ReportError = err.Error()
	} else {
		completion.Report = report
	}

	s.State = StateCompleted
	m.log.Info().
		Str("handle", s.Handle).
		Str("record_id", completion.RecordID).
		Int("score", record.Score).
		Int("critical", record.CriticalCount).
		Int("warning", record.WarningCount).
		Int64("duration_seconds", record.DurationSeconds).
		Msg("inspection completed")
	m.publish(s, EventSessionCompleted, "", map[string]any{
		"record_id": completion.RecordID,
		"score":     record.Score,
	})
	return completion, nil
}

func (m *Manager) publish(s *Session, typ EventType, itemID string, data any) {
	if m.cfg.Events == nil {
		return
	}
	m.cfg.Events.Publish(Event{
		Type:       typ,
		Handle:     s.Handle,
		OperatorID: s.Operator.ID,
		VehicleID:  s.Vehicle.ID,
		Cursor:     s.Cursor,
		ItemID:     itemID,
		At:         m.cfg.Now(),
		Data:       data,
	})
}
