package inspection

import (
	"strings"
	"time"

	"fleetguard/internal/checklist"
)

// FinalItem is a checklist item that passed the completeness check. Build it through finalize only.
type FinalItem struct {
	Item          checklist.Item `json:"item"`
	Status        Status         `json:"status"`
	Comment       string         `json:"comment"`
	PhotoCount    int            `json:"photo_count"`
	Photos        []Photo        `json:"-"`
	Analysis      Analysis       `json:"analysis"`
	PhotoAnalyses []Analysis     `json:"photo_analyses,omitempty"`
}

func finalize(item checklist.Item, r ItemResult, rules Rules) (FinalItem, error) {
	if miss := missing(item, r, rules); len(miss) > 0 {
		return FinalItem{}, &IncompleteError{ItemID: item.ID, Missing: miss}
	}
	analysis := NotApplicableAnalysis()
	if r.Analysis != nil {
		analysis = *r.Analysis
	}
	photos := make([]Photo, len(r.Photos))
	copy(photos, r.Photos)
	return FinalItem{
		Item:          item,
		Status:        r.Status,
		Comment:       strings.TrimSpace(r.Comment),
		PhotoCount:    len(r.Photos),
		Photos:        photos,
		Analysis:      analysis,
		PhotoAnalyses: r.PhotoAnalyses,
	}, nil
}

// Record is the immutable result of a completed session.
type Record struct {
	SessionHandle   string      `json:"session_handle"`
	Operator        Operator    `json:"operator"`
	Vehicle         Vehicle     `json:"vehicle"`
	Locale          string      `json:"locale"`
	Demo            bool        `json:"demo"`
	Items           []FinalItem `json:"items"`
	Score           int         `json:"score"`
	CriticalCount   int         `json:"critical_count"`
	WarningCount    int         `json:"warning_count"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         time.Time   `json:"ended_at"`
	DurationSeconds int64       `json:"duration_seconds"`
}

// OverallStatus is critical if any item is critical, else warning if any is, else ok.
func (r Record) OverallStatus() Status {
	return OverallStatus(r.CriticalCount, r.WarningCount)
}

func OverallStatus(critical, warning int) Status {
	switch {
	case critical > 0:
		return StatusCritical
	case warning > 0:
		return StatusWarning
	}
	return StatusOK
}

type Summary struct {
	Score         int `json:"score"`
	CriticalCount int `json:"critical_count"`
	WarningCount  int `json:"warning_count"`
}

// Summarize counts item statuses and derives the aggregate score. No items scores 100.
func Summarize(statuses map[string]Status) Summary {
	var sum Summary
	for _, st := range statuses {
		switch st {
		case StatusCritical:
			sum.CriticalCount++
		case StatusWarning:
			sum.WarningCount++
		}
	}
	sum.Score = Score(sum.CriticalCount, sum.WarningCount)
	return sum
}

// Score is 100 minus 20 per critical and 10 per warning, clamped to [0, 100].
func Score(critical, warning int) int {
	score := 100 - 20*critical - 10*warning
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func buildRecord(s *Session, items []FinalItem, endedAt time.Time) Record {
	statuses := make(map[string]Status, len(items))
	for _, it := range items {
		statuses[it.Item.ID] = it.Status
	}
	sum := Summarize(statuses)
	duration := int64(endedAt.Sub(s.StartedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}
	return Record{
		SessionHandle:   s.Handle,
		Operator:        s.Operator,
		Vehicle:         s.Vehicle,
		Locale:          s.Locale,
		Demo:            s.Demo,
		Items:           items,
		Score:           sum.Score,
		CriticalCount:   sum.CriticalCount,
		WarningCount:    sum.WarningCount,
		StartedAt:       s.StartedAt,
		EndedAt:         endedAt,
		DurationSeconds: duration,
	}
}
