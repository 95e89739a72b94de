package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
)

func newSession(handle, operator string) *inspection.Session {
	cl := checklist.Default()
	results := make(map[string]*inspection.ItemResult, cl.Len())
	for _, it := range cl.Items {
		results[it.ID] = &inspection.ItemResult{}
	}
	results["tires"].Photos = []inspection.Photo{{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}}
	return &inspection.Session{
		Handle:    handle,
		Operator:  inspection.Operator{ID: operator, Name: "Test"},
		Vehicle:   inspection.Vehicle{ID: "T001", Status: inspection.VehicleStatusActive},
		Locale:    "en",
		Items:     cl.Items,
		Rules:     inspection.DefaultRules(),
		State:     inspection.StateInProgress,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Results:   results,
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	s := newSession("h1", "W001")

	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "h1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Vehicle.ID != "T001" || len(got.Items) != 7 || string(got.Results["tires"].Photos[0].Data) != "jpeg-bytes" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.Items[0].Prompt == "" {
		t.Fatal("item prompt lost in storage")
	}

	active, err := store.ActiveFor(ctx, "W001")
	if err != nil || active.Handle != "h1" {
		t.Fatalf("active for W001: %v %v", active, err)
	}
	if _, err := store.ActiveFor(ctx, "W002"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("active for W002: %v", err)
	}

	s.State = inspection.StateCompleted
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save completed: %v", err)
	}
	if _, err := store.ActiveFor(ctx, "W001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("completed session still active: %v", err)
	}
	if _, err := store.Get(ctx, "h1"); err != nil {
		t.Fatalf("completed session should stay readable: %v", err)
	}

	if err := store.Delete(ctx, s); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "h1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
}

func TestMemoryStoreKeepsPrivateCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	s := newSession("h1", "W001")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	s.Results["tires"].Comment = "changed after save"
	s.Results["tires"].Photos = s.Results["tires"].Photos[:0]

	got, err := store.Get(ctx, "h1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Results["tires"].Comment != "" || len(got.Results["tires"].Photos) != 1 {
		t.Fatalf("store shares state with the saved session: %+v", got.Results["tires"])
	}

	got.Cursor = 4
	got.Results["mirrors"] = &inspection.ItemResult{Comment: "reader edit"}
	active, err := store.ActiveFor(ctx, "W001")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Cursor != 0 || active.Results["mirrors"].Comment != "" {
		t.Fatalf("store shares state with a returned session: cursor=%d", active.Cursor)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Save(ctx, newSession("old", "W001"))
	_ = store.Save(ctx, newSession("other", "W002"))

	now = now.Add(2 * time.Minute)
	_ = store.Save(ctx, newSession("fresh", "W003"))

	if n := store.Sweep(); n != 2 {
		t.Fatalf("swept %d sessions, want 2", n)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session: %v", err)
	}
	if _, err := store.ActiveFor(ctx, "W003"); err != nil {
		t.Fatalf("fresh session: %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	store, err := NewRedisStore(client, time.Minute)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= LoginMaxAttempts; i++ {
		ok, left, _ := limiter.CheckLoginAttempt(ctx, "10.0.0.1", "W001")
		if !ok || left != int64(LoginMaxAttempts-i) {
			t.Fatalf("attempt %d: ok=%v left=%d", i, ok, left)
		}
	}
	if ok, left, _ := limiter.CheckLoginAttempt(ctx, "10.0.0.1", "W001"); ok || left != 0 {
		t.Fatal("sixth attempt should be blocked")
	}
	if ok, _, _ := limiter.CheckLoginAttempt(ctx, "10.0.0.2", "W001"); !ok {
		t.Fatal("other client should not be blocked")
	}

	now = now.Add(LoginWindow + time.Second)
	if ok, _, _ := limiter.CheckLoginAttempt(ctx, "10.0.0.1", "W001"); !ok {
		t.Fatal("window should have reset")
	}
	_ = limiter.ResetLoginAttempts(ctx, "10.0.0.1", "W001")
	if ok, left, _ := limiter.CheckLoginAttempt(ctx, "10.0.0.1", "W001"); !ok || left != LoginMaxAttempts-1 {
		t.Fatal("reset did not clear attempts")
	}
}
