package analysis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
)

type stubVision struct {
	calls    atomic.Int32
	describe func(ctx context.Context, p inspection.Photo) (inspection.Analysis, error)
}

func (s *stubVision) Describe(ctx context.Context, p inspection.Photo, _ checklist.Item) (inspection.Analysis, error) {
	s.calls.Add(1)
	return s.describe(ctx, p)
}

var mirrors = checklist.Item{ID: "mirrors", RequiredPhotos: 2, Name: map[string]string{"en": "Mirrors"}}

func TestFanoutIsolatesSlowPhoto(t *testing.T) {
	vision := &stubVision{describe: func(ctx context.Context, p inspection.Photo) (inspection.Analysis, error) {
		if string(p.Data) == "slow" {
			// ignores ctx on purpose, like a client that hangs
			time.Sleep(500 * time.Millisecond)
		}
		return inspection.Analysis{Status: "Slight wear", Issues: []string{"No problems"}}, nil
	}}
	f := NewFanout(vision, 50*time.Millisecond, 0, zerolog.Nop())

	started := time.Now()
	out := f.Analyze(context.Background(), []inspection.Photo{{Data: []byte("slow")}, {Data: []byte("fast")}}, mirrors)
	if elapsed := time.Since(started); elapsed > 400*time.Millisecond {
		t.Fatalf("fan-out waited for the hung photo: %s", elapsed)
	}

	if len(out) != 2 {
		t.Fatalf("outcomes = %d", len(out))
	}
	if !out[0].Failed() || out[0].Issues[0] != "Analysis timed out" {
		t.Fatalf("slow photo = %+v", out[0])
	}
	if out[1].Status != "Slight wear" {
		t.Fatalf("fast photo = %+v", out[1])
	}
}

func TestFanoutQueuedPhotoKeepsItsOwnDeadline(t *testing.T) {
	vision := &stubVision{describe: func(ctx context.Context, p inspection.Photo) (inspection.Analysis, error) {
		if string(p.Data) == "slow" {
			time.Sleep(500 * time.Millisecond)
		}
		return inspection.Analysis{Status: "Slight wear", Issues: []string{"No problems"}}, nil
	}}
	f := NewFanout(vision, 50*time.Millisecond, 1, zerolog.Nop())

	started := time.Now()
	out := f.Analyze(context.Background(), []inspection.Photo{{Data: []byte("slow")}, {Data: []byte("queued")}}, mirrors)
	if elapsed := time.Since(started); elapsed > 400*time.Millisecond {
		t.Fatalf("queued photo waited behind the hung one: %s", elapsed)
	}
	if len(out) != 2 || !out[0].Failed() || out[0].Issues[0] != "Analysis timed out" {
		t.Fatalf("outcomes = %+v", out)
	}
}

func TestFanoutLimitStillAnalyzesWithinDeadline(t *testing.T) {
	vision := &stubVision{describe: func(context.Context, inspection.Photo) (inspection.Analysis, error) {
		time.Sleep(10 * time.Millisecond)
		return inspection.Analysis{Status: "Optimal condition", Issues: []string{"No problems"}}, nil
	}}
	f := NewFanout(vision, 2*time.Second, 1, zerolog.Nop())

	out := f.Analyze(context.Background(), []inspection.Photo{{Data: []byte("a")}, {Data: []byte("b")}}, mirrors)
	for i, a := range out {
		if a.Status != "Optimal condition" {
			t.Fatalf("photo %d = %+v", i, a)
		}
	}
}

func TestFanoutKeepsOrderAndErrors(t *testing.T) {
	vision := &stubVision{describe: func(_ context.Context, p inspection.Photo) (inspection.Analysis, error) {
		switch string(p.Data) {
		case "bad":
			return inspection.Analysis{}, errors.New("upstream 503")
		case "panic":
			panic("boom")
		}
		return inspection.Analysis{Status: "Optimal condition", Issues: []string{"No problems"}}, nil
	}}
	f := NewFanout(vision, time.Second, 1, zerolog.Nop())

	out := f.Analyze(context.Background(), []inspection.Photo{
		{Data: []byte("good")}, {Data: []byte("bad")}, {Data: []byte("panic")},
	}, mirrors)
	if out[0].Status != "Optimal condition" {
		t.Fatalf("first = %+v", out[0])
	}
	if !out[1].Failed() || !strings.Contains(out[1].Detail, "upstream 503") {
		t.Fatalf("second = %+v", out[1])
	}
	if !out[2].Failed() {
		t.Fatalf("third = %+v", out[2])
	}
	if vision.calls.Load() != 3 {
		t.Fatalf("calls = %d", vision.calls.Load())
	}
}

func TestDisabledVisionFailsEveryPhoto(t *testing.T) {
	f := NewFanout(Disabled{}, time.Second, 0, zerolog.Nop())
	out := f.Analyze(context.Background(), []inspection.Photo{{Data: []byte("x")}, {Data: []byte("y")}}, mirrors)
	for i, a := range out {
		if !a.Failed() || a.Issues[0] != "Analysis failed" {
			t.Fatalf("photo %d = %+v", i, a)
		}
	}
}

func TestParseResponse(t *testing.T) {
	raw := "```json\n{\"component\":\"tires\",\"status\":\"needs urgent repair\",\"issues\":[\"total pressure loss\"],\"detail\":\" rear left flat \"}\n```"
	a, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Status != "Needs urgent repair" || a.Issues[0] != "Total pressure loss" || a.Detail != "rear left flat" {
		t.Fatalf("analysis = %+v", a)
	}

	a, err = ParseResponse(`Here you go: {"status":"Optimal condition","issues":[],"detail":"clean"} thanks`)
	if err != nil {
		t.Fatalf("parse prose: %v", err)
	}
	if len(a.Issues) != 1 || a.Issues[0] != "No problems" {
		t.Fatalf("empty issues should default, got %v", a.Issues)
	}
}

func TestParseResponseRejectsOffVocabulary(t *testing.T) {
	cases := []string{
		`no json at all`,
		`{"status":"Pretty bad","issues":[],"detail":""}`,
		`{"status":"Slight wear","issues":["Rust"],"detail":""}`,
		`{"status": "Slight wear", "issues": [`,
	}
	for _, raw := range cases {
		if _, err := ParseResponse(raw); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%q: err = %v", raw, err)
		}
	}
}

func TestBuildPromptListsVocabulary(t *testing.T) {
	item := checklist.Default().Items[0]
	prompt := BuildPrompt(item)
	for _, want := range []string{item.Label("en"), "Flat tire", "Visible sharp object", item.ID} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
