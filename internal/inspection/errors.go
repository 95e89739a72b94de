package inspection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIncomplete        = errors.New("item incomplete")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrPhotoLimit        = errors.New("photo limit reached")
	ErrPhotosNotRequired = errors.New("item does not take photos")
	ErrPhotoIndex        = errors.New("photo index out of range")
	ErrEmptyPhoto        = errors.New("empty photo")
	ErrAtFirstItem       = errors.New("already at first item")
	ErrSessionCompleted  = errors.New("session already completed")
	ErrSessionCancelled  = errors.New("session cancelled")
	ErrInvalidVehicleID  = errors.New("invalid vehicle id")
	ErrVehicleNotFound   = errors.New("vehicle not found")
	ErrVehicleInactive   = errors.New("vehicle not active")
	ErrPersistence       = errors.New("inspection could not be saved")
)

type RequirementCode string

const (
	RequirementStatus       RequirementCode = "status_missing"
	RequirementCommentShort RequirementCode = "comment_too_short"
	RequirementCommentLong  RequirementCode = "comment_too_long"
	RequirementPhotos       RequirementCode = "photos_missing"
)

// Requirement is one unmet completeness condition of an item.
type Requirement struct {
	Code      RequirementCode `json:"code"`
	Message   string          `json:"message"`
	Shortfall int             `json:"shortfall,omitempty"`
}

// IncompleteError lists why the current item cannot be finalized. It matches ErrIncomplete.
type IncompleteError struct {
	ItemID  string
	Missing []Requirement
}

func (e *IncompleteError) Error() string {
	codes := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		codes = append(codes, string(m.Code))
	}
	return fmt.Sprintf("item %s incomplete: %s", e.ItemID, strings.Join(codes, ", "))
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}
