package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
	"fleetguard/internal/session"
)

type sessionFixture struct {
	svc         *SessionService
	inspections *InspectionService
	rows        *memInspections
	metrics     *memMetrics
	analyzer    *stubAnalyzer
	store       *session.MemoryStore
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		rows:     newMemInspections(),
		metrics:  &memMetrics{},
		analyzer: &stubAnalyzer{},
		store:    session.NewMemoryStore(0),
	}
	f.inspections = NewInspectionService(f.rows, f.metrics, newMemRenderer(), zerolog.Nop())
	vehicles := stubVehicles{
		"T001": {ID: "T001", Model: "Freightliner M2", Year: 2019, Status: "active"},
		"T002": {ID: "T002", Model: "Isuzu NPR", Year: 2017, Status: "active"},
	}
	manager := inspection.NewManager(checklist.Default(), f.analyzer, f.inspections, f.inspections, vehicles,
		inspection.Config{DemoOperatorID: "000"}, zerolog.Nop())
	f.svc = NewSessionService(manager, f.store, zerolog.Nop())
	return f
}

var (
	worker = model.Principal{WorkerID: "W001", Name: "Ana Ruiz", Role: model.WorkerRoleUser}
	other  = model.Principal{WorkerID: "W002", Name: "Luis Mora", Role: model.WorkerRoleUser}
	admin  = model.Principal{WorkerID: "A001", Name: "Admin", Role: model.WorkerRoleAdmin}
)

var comment = strings.Repeat("looks fine ", 4)

// complete fills the current item and advances, returning the step.
func (f *sessionFixture) complete(t *testing.T, p model.Principal, handle string, status string) *inspection.Step {
	t.Helper()
	ctx := context.Background()
	sess, err := f.svc.SetStatus(ctx, p, handle, status)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := f.svc.SetComment(ctx, p, handle, comment); err != nil {
		t.Fatalf("set comment: %v", err)
	}
	for i := 0; i < sess.Current().RequiredPhotos; i++ {
		if _, err := f.svc.AttachPhoto(ctx, p, handle, inspection.Photo{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}); err != nil {
			t.Fatalf("attach photo: %v", err)
		}
	}
	_, step, err := f.svc.Advance(ctx, p, handle)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return step
}

func TestSessionServiceFullInspection(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, created, err := f.svc.Start(ctx, worker, " t001 ", "es")
	if err != nil || !created {
		t.Fatalf("start: %v created=%v", err, created)
	}

	var last *inspection.Step
	for i := 0; i < sess.Len(); i++ {
		status := "ok"
		if i == 2 {
			status = "CRITICAL"
		}
		last = f.complete(t, worker, sess.Handle, status)
	}
	if !last.Completed || last.Completion == nil {
		t.Fatalf("last step not completed: %+v", last)
	}
	rec := last.Completion.Record
	if rec.Score != 80 || rec.CriticalCount != 1 {
		t.Fatalf("score %d critical %d", rec.Score, rec.CriticalCount)
	}
	if last.Completion.RecordID == "" || last.Completion.Report == nil {
		t.Fatalf("completion missing record or report: %+v", last.Completion)
	}

	if len(f.rows.rows) != 1 {
		t.Fatalf("stored %d inspections", len(f.rows.rows))
	}
	for _, row := range f.rows.rows {
		if row.ReportLocation == nil || row.Locale != "es" || row.DynamicStatus != inspection.StatusCritical {
			t.Fatalf("stored row: %+v", row)
		}
	}
	if len(f.metrics.rows) != 5 {
		t.Fatalf("recorded %d metric rows", len(f.metrics.rows))
	}

	if _, err := f.svc.Current(ctx, worker); !errors.Is(err, ErrNotFound) {
		t.Fatalf("completed session still current: %v", err)
	}
	if _, _, err := f.svc.Advance(ctx, worker, sess.Handle); !errors.Is(err, inspection.ErrSessionCompleted) {
		t.Fatalf("advance after completion: %v", err)
	}
}

func TestSessionServiceStartResumesOrConflicts(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first, _, err := f.svc.Start(ctx, worker, "T001", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, created, err := f.svc.Start(ctx, worker, "T001", "en")
	if err != nil || created || again.Handle != first.Handle {
		t.Fatalf("restart same truck: %v created=%v", err, created)
	}
	if _, _, err := f.svc.Start(ctx, worker, "T002", "en"); !errors.Is(err, ErrConflict) {
		t.Fatalf("start other truck: %v", err)
	}
	if _, _, err := f.svc.Start(ctx, worker, "T999", "en"); !errors.Is(err, ErrConflict) {
		t.Fatalf("unknown truck while busy: %v", err)
	}

	if err := f.svc.Cancel(ctx, worker, first.Handle); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, err := f.svc.Start(ctx, worker, "T999", "en"); !errors.Is(err, inspection.ErrVehicleNotFound) {
		t.Fatalf("unknown truck: %v", err)
	}
	if _, _, err := f.svc.Start(ctx, worker, "truck-1", "en"); !errors.Is(err, inspection.ErrInvalidVehicleID) {
		t.Fatalf("bad id: %v", err)
	}
}

func TestSessionServiceOwnership(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, _, err := f.svc.Start(ctx, worker, "T001", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, other, sess.Handle, "ok"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("other worker mutated session: %v", err)
	}
	if _, err := f.svc.Get(ctx, other, sess.Handle); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("other worker read session: %v", err)
	}
	if _, err := f.svc.Get(ctx, admin, sess.Handle); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := f.svc.SetComment(ctx, admin, sess.Handle, comment); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("admin mutated session: %v", err)
	}
	if _, err := f.svc.Get(ctx, worker, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session: %v", err)
	}
}

func TestSessionServiceRejectsIncompleteAdvance(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, _, _ := f.svc.Start(ctx, worker, "T001", "en")
	if _, err := f.svc.SetComment(ctx, worker, sess.Handle, "short"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	_, _, err := f.svc.Advance(ctx, worker, sess.Handle)
	var incomplete *inspection.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	codes := map[inspection.RequirementCode]bool{}
	for _, m := range incomplete.Missing {
		codes[m.Code] = true
	}
	if !codes[inspection.RequirementStatus] || !codes[inspection.RequirementCommentShort] || !codes[inspection.RequirementPhotos] {
		t.Fatalf("missing = %+v", incomplete.Missing)
	}
	if _, err := f.svc.SetStatus(ctx, worker, sess.Handle, "broken"); !errors.Is(err, inspection.ErrInvalidStatus) {
		t.Fatalf("bad status: %v", err)
	}
}

func TestSessionServiceRetriesPersistence(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, _, _ := f.svc.Start(ctx, worker, "T001", "en")
	for i := 0; i < sess.Len()-1; i++ {
		f.complete(t, worker, sess.Handle, "ok")
	}

	f.rows.failing = errors.New("connection refused")
	if _, err := f.svc.SetStatus(ctx, worker, sess.Handle, "warning"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := f.svc.SetComment(ctx, worker, sess.Handle, comment); err != nil {
		t.Fatalf("comment: %v", err)
	}
	last, _ := f.svc.Get(ctx, worker, sess.Handle)
	for i := 0; i < last.Current().RequiredPhotos; i++ {
		if _, err := f.svc.AttachPhoto(ctx, worker, sess.Handle, inspection.Photo{Data: []byte{1}, MIMEType: "image/jpeg"}); err != nil {
			t.Fatalf("photo: %v", err)
		}
	}
	if _, _, err := f.svc.Advance(ctx, worker, sess.Handle); !errors.Is(err, inspection.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	calls := f.analyzer.calls

	current, err := f.svc.Current(ctx, worker)
	if err != nil || current.Handle != sess.Handle {
		t.Fatalf("session lost after failure: %v", err)
	}

	f.rows.failing = nil
	_, step, err := f.svc.Advance(ctx, worker, sess.Handle)
	if err != nil || !step.Completed {
		t.Fatalf("retry: %v %+v", err, step)
	}
	if f.analyzer.calls != calls {
		t.Fatalf("analysis re-ran on retry: %d -> %d", calls, f.analyzer.calls)
	}
	if step.Completion.Record.WarningCount != 1 || step.Completion.Record.Score != 90 {
		t.Fatalf("record: %+v", step.Completion.Record)
	}
}

func TestSessionServiceDemoSkipsPersistence(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	demo := model.Principal{WorkerID: "000", Name: DemoWorkerName, Role: model.WorkerRoleUser, Demo: true}

	sess, _, err := f.svc.Start(ctx, demo, "T001", "en")
	if err != nil || !sess.Demo {
		t.Fatalf("demo start: %v demo=%v", err, sess != nil && sess.Demo)
	}
	var last *inspection.Step
	for i := 0; i < sess.Len(); i++ {
		last = f.complete(t, demo, sess.Handle, "ok")
	}
	if last.Completion.RecordID != "" || last.Completion.Report == nil || last.Completion.Record.Score != 100 {
		t.Fatalf("demo completion: %+v", last.Completion)
	}
	if len(f.rows.rows) != 0 || len(f.metrics.rows) != 0 {
		t.Fatal("demo inspection was persisted")
	}
}

// Run with -race: an admin watching a session must not share state with the operator editing it.
func TestSessionServiceConcurrentReadAndEdit(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, _, err := f.svc.Start(ctx, worker, "T001", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h := sess.Handle

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			got, err := f.svc.SetComment(ctx, worker, h, strings.Repeat("x", i%40))
			if err != nil {
				t.Errorf("set comment: %v", err)
				return
			}
			_ = model.NewSessionView(got)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			got, err := f.svc.Get(ctx, admin, h)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			_ = model.NewSessionView(got)
			if cur, err := f.svc.Current(ctx, worker); err == nil {
				_ = model.NewSessionView(cur)
			}
		}
	}()
	wg.Wait()

	got, err := f.svc.Get(ctx, worker, h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r, ok := got.Result("tires"); !ok || r.Comment != strings.Repeat("x", (rounds-1)%40) {
		t.Fatalf("final draft = %+v", r)
	}
}

func TestSessionServiceReturnsPrivateCopies(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, _, err := f.svc.Start(ctx, worker, "T001", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.SetComment(ctx, worker, sess.Handle, "first"); err != nil {
		t.Fatalf("set comment: %v", err)
	}

	read, err := f.svc.Get(ctx, admin, sess.Handle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	read.Results["tires"].Comment = "tampered"
	read.Cursor = 3

	again, err := f.svc.Get(ctx, worker, sess.Handle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r, _ := again.Result("tires"); r.Comment != "first" || again.Cursor != 0 {
		t.Fatalf("stored session changed through a returned copy: cursor=%d draft=%+v", again.Cursor, r)
	}
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	done := make(chan struct{})
	go func() {
		k.Lock("a")()
		close(done)
	}()
	unlock()
	<-done
	if len(k.locks) != 0 {
		t.Fatalf("locks not released: %d", len(k.locks))
	}
}
