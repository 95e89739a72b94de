package inspection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fleetguard/internal/checklist"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  map[string]int
	result func(item checklist.Item, i int) Analysis
}

func (f *fakeAnalyzer) Analyze(_ context.Context, photos []Photo, item checklist.Item) []Analysis {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[item.ID]++
	f.mu.Unlock()

	out := make([]Analysis, len(photos))
	for i := range photos {
		if f.result != nil {
			out[i] = f.result(item, i)
			continue
		}
		out[i] = Analysis{Status: "Optimal condition", Issues: []string{"No problems"}, Detail: fmt.Sprintf("photo %d", i)}
	}
	return out
}

func (f *fakeAnalyzer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakePersister struct {
	err     error
	saved   []Record
	attempt int
}

func (f *fakePersister) Save(_ context.Context, rec Record) (string, error) {
	f.attempt++
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, rec)
	return fmt.Sprintf("rec-%d", len(f.saved)), nil
}

type fakeReporter struct {
	err      error
	rendered []Record
}

func (f *fakeReporter) Render(_ context.Context, rec Record) (*Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rendered = append(f.rendered, rec)
	return &Report{Filename: "FleetGuard_" + rec.Vehicle.ID + ".pdf", Location: "mem"}, nil
}

type fakeVehicles map[string]Vehicle

func (f fakeVehicles) Lookup(_ context.Context, id string) (*Vehicle, error) {
	v, ok := f[id]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	return &v, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	manager   *Manager
	analyzer  *fakeAnalyzer
	persister *fakePersister
	reporter  *fakeReporter
	sink      *recordingSink
	clock     *time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	h := &harness{
		analyzer:  &fakeAnalyzer{},
		persister: &fakePersister{},
		reporter:  &fakeReporter{},
		sink:      &recordingSink{},
		clock:     &now,
	}
	vehicles := fakeVehicles{
		"T001": {ID: "T001", Model: "Freightliner M2", Year: 2019, Status: "active"},
		"T002": {ID: "T002", Model: "Isuzu NPR", Year: 2017, Status: "maintenance"},
	}
	h.manager = NewManager(checklist.Default(), h.analyzer, h.persister, h.reporter, vehicles, Config{
		DemoOperatorID: "000",
		Events:         h.sink,
		Now:            func() time.Time { return *h.clock },
	}, zerolog.Nop())
	return h
}

func (h *harness) advanceClock(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

func (h *harness) start(t *testing.T, operatorID string) *Session {
	t.Helper()
	s, err := h.manager.Start(context.Background(), Operator{ID: operatorID, Name: "Ana"}, "t001", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

var validComment = strings.Repeat("checked ", 5)

func photo() Photo {
	return Photo{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}
}

// fill satisfies every requirement of the current item with the given status.
func fill(t *testing.T, m *Manager, s *Session, status Status) {
	t.Helper()
	if err := m.SetStatus(s, status); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := m.SetComment(s, validComment); err != nil {
		t.Fatalf("set comment: %v", err)
	}
	for i := 0; i < s.Current().RequiredPhotos; i++ {
		if _, err := m.AttachPhoto(s, photo()); err != nil {
			t.Fatalf("attach photo %d: %v", i, err)
		}
	}
}

func walk(t *testing.T, h *harness, s *Session, statusFor func(id string) Status) *Step {
	t.Helper()
	var last *Step
	for i := 0; i < s.Len(); i++ {
		fill(t, h.manager, s, statusFor(s.Current().ID))
		step, err := h.manager.Advance(context.Background(), s)
		if err != nil {
			t.Fatalf("advance at %d: %v", i, err)
		}
		last = step
	}
	return last
}

var errBoom = errors.New("boom")
