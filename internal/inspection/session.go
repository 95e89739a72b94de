package inspection

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fleetguard/internal/checklist"
)

type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// Rules bound the comment length required to finalize an item.
type Rules struct {
	MinComment int `json:"min_comment"`
	MaxComment int `json:"max_comment"`
}

func DefaultRules() Rules {
	return Rules{MinComment: 30, MaxComment: 150}
}

// ItemResult is the operator's draft for one checklist item. Photo changes drop any cached analysis.
type ItemResult struct {
	Status        Status     `json:"status,omitempty"`
	Comment       string     `json:"comment"`
	Photos        []Photo    `json:"photos,omitempty"`
	Analysis      *Analysis  `json:"analysis,omitempty"`
	PhotoAnalyses []Analysis `json:"photo_analyses,omitempty"`
	Finalized     bool       `json:"finalized"`
}

func (r *ItemResult) resetAnalysis() {
	r.Analysis = nil
	r.PhotoAnalyses = nil
	r.Finalized = false
}

// Session tracks one operator walking the checklist for one vehicle.
// The checklist items are copied in at start so a stored session is self-contained.
type Session struct {
	Handle    string                 `json:"handle"`
	Operator  Operator               `json:"operator"`
	Vehicle   Vehicle                `json:"vehicle"`
	Locale    string                 `json:"locale"`
	Demo      bool                   `json:"demo"`
	Items     []checklist.Item       `json:"items"`
	Rules     Rules                  `json:"rules"`
	Cursor    int                    `json:"cursor"`
	State     State                  `json:"state"`
	StartedAt time.Time              `json:"started_at"`
	Results   map[string]*ItemResult `json:"results"`
}

func newSession(handle string, op Operator, vehicle Vehicle, items []checklist.Item, rules Rules, startedAt time.Time) *Session {
	copied := make([]checklist.Item, len(items))
	copy(copied, items)
	return &Session{
		Handle:    handle,
		Operator:  op,
		Vehicle:   vehicle,
		Locale:    checklist.LocaleEN,
		Items:     copied,
		Rules:     rules,
		Cursor:    0,
		State:     StateInProgress,
		StartedAt: startedAt,
		Results:   make(map[string]*ItemResult, len(items)),
	}
}

// Clone returns a copy that shares no mutable state with s. Photo bytes are shared since they are never written in place.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = append([]checklist.Item(nil), s.Items...)
	if s.Results != nil {
		c.Results = make(map[string]*ItemResult, len(s.Results))
		for id, r := range s.Results {
			if r == nil {
				continue
			}
			c.Results[id] = r.clone()
		}
	}
	return &c
}

func (r *ItemResult) clone() *ItemResult {
	c := *r
	c.Photos = append([]Photo(nil), r.Photos...)
	if r.Analysis != nil {
		a := r.Analysis.clone()
		c.Analysis = &a
	}
	if r.PhotoAnalyses != nil {
		c.PhotoAnalyses = make([]Analysis, len(r.PhotoAnalyses))
		for i, a := range r.PhotoAnalyses {
			c.PhotoAnalyses[i] = a.clone()
		}
	}
	return &c
}

func (s *Session) Len() int {
	return len(s.Items)
}

func (s *Session) Current() checklist.Item {
	return s.Items[s.Cursor]
}

// Result returns a copy of the draft for item id, if the operator touched it.
func (s *Session) Result(id string) (ItemResult, bool) {
	r, ok := s.Results[id]
	if !ok || r == nil {
		return ItemResult{}, false
	}
	return *r, true
}

func (s *Session) Progress() float64 {
	if s.Len() == 0 {
		return 0
	}
	if s.State == StateCompleted {
		return 1
	}
	return float64(s.Cursor+1) / float64(s.Len())
}

func (s *Session) current() *ItemResult {
	if s.Results == nil {
		s.Results = make(map[string]*ItemResult)
	}
	id := s.Current().ID
	r, ok := s.Results[id]
	if !ok || r == nil {
		r = &ItemResult{}
		s.Results[id] = r
	}
	return r
}

func (s *Session) checkMutable() error {
	switch s.State {
	case StateCompleted:
		return ErrSessionCompleted
	case StateCancelled:
		return ErrSessionCancelled
	}
	return nil
}

func (s *Session) SetStatus(status Status) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	r := s.current()
	r.Status = status
	r.Finalized = false
	return nil
}

// SetComment overwrites the comment. Length is only enforced when advancing.
func (s *Session) SetComment(text string) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	r := s.current()
	r.Comment = text
	r.Finalized = false
	return nil
}

// AttachPhoto appends p to the current item and returns the new photo count.
func (s *Session) AttachPhoto(p Photo) (int, error) {
	if err := s.checkMutable(); err != nil {
		return 0, err
	}
	item := s.Current()
	if !item.NeedsPhotos() {
		return 0, ErrPhotosNotRequired
	}
	if len(p.Data) == 0 {
		return 0, ErrEmptyPhoto
	}
	r := s.current()
	if len(r.Photos) >= item.RequiredPhotos {
		return len(r.Photos), fmt.Errorf("%w: %d of %d", ErrPhotoLimit, len(r.Photos), item.RequiredPhotos)
	}
	r.Photos = append(r.Photos, p)
	r.resetAnalysis()
	return len(r.Photos), nil
}

func (s *Session) RemovePhoto(index int) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	r := s.current()
	if index < 0 || index >= len(r.Photos) {
		return ErrPhotoIndex
	}
	r.Photos = append(r.Photos[:index], r.Photos[index+1:]...)
	r.resetAnalysis()
	return nil
}

// Retreat moves the cursor back one item. At the first item it changes nothing and reports ErrAtFirstItem.
func (s *Session) Retreat() error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if s.Cursor == 0 {
		return ErrAtFirstItem
	}
	s.Cursor--
	return nil
}

// Missing lists the unmet conditions of the current item without changing anything.
func (s *Session) Missing() []Requirement {
	if s.State != StateInProgress {
		return nil
	}
	var r ItemResult
	if existing, ok := s.Results[s.Current().ID]; ok && existing != nil {
		r = *existing
	}
	return missing(s.Current(), r, s.Rules)
}

func (s *Session) IsComplete() bool {
	return s.State == StateInProgress && len(s.Missing()) == 0
}

func missing(item checklist.Item, r ItemResult, rules Rules) []Requirement {
	var out []Requirement
	if !r.Status.Valid() {
		out = append(out, Requirement{
			Code:    RequirementStatus,
			Message: "Select a status (OK/Warning/Critical)",
		})
	}
	length := utf8.RuneCountInString(strings.TrimSpace(r.Comment))
	if length < rules.MinComment {
		out = append(out, Requirement{
			Code:      RequirementCommentShort,
			Message:   fmt.Sprintf("Add a comment (minimum %d characters)", rules.MinComment),
			Shortfall: rules.MinComment - length,
		})
	}
	if rules.MaxComment > 0 && length > rules.MaxComment {
		out = append(out, Requirement{
			Code:      RequirementCommentLong,
			Message:   fmt.Sprintf("Shorten the comment (maximum %d characters)", rules.MaxComment),
			Shortfall: length - rules.MaxComment,
		})
	}
	if short := item.RequiredPhotos - len(r.Photos); short > 0 {
		plural := ""
		if short > 1 {
			plural = "s"
		}
		out = append(out, Requirement{
			Code:      RequirementPhotos,
			Message:   fmt.Sprintf("Take %d more photo%s", short, plural),
			Shortfall: short,
		})
	}
	return out
}
