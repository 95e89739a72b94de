package model

import (
	"time"

	"fleetguard/internal/inspection"
)

type WorkerBrief struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Role WorkerRole `json:"role"`
}

type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Worker      WorkerBrief `json:"worker"`
	Demo        bool        `json:"demo,omitempty"`
}

type CreateWorkerInput struct {
	ID       string
	Name     string
	Email    *string
	Password string
	Role     WorkerRole
}

type UpdateWorkerInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *WorkerRole
	Status   *WorkerStatus
}

type CreateVehicleInput struct {
	ID     string
	Model  string
	Year   int
	Status VehicleStatus
}

type UpdateVehicleInput struct {
	Model  *string
	Year   *int
	Status *VehicleStatus
}

type InspectionFilter struct {
	WorkerID string
	TruckID  string
	From     *time.Time
	To       *time.Time
	Search   string
	Limit    int
	Offset   int
}

type InspectionPage struct {
	Items []Inspection `json:"items"`
	Total int64        `json:"total"`
}

type MetricFilter struct {
	Type MetricType
	From *time.Time
	To   *time.Time
}

type PhotoView struct {
	Index      int        `json:"index"`
	MIMEType   string     `json:"mime_type"`
	Size       int        `json:"size"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
}

type ItemView struct {
	ID             string                   `json:"id"`
	Icon           string                   `json:"icon,omitempty"`
	Name           string                   `json:"name"`
	Description    string                   `json:"description,omitempty"`
	RequiredPhotos int                      `json:"required_photos"`
	Status         inspection.Status        `json:"status,omitempty"`
	Comment        string                   `json:"comment"`
	Photos         []PhotoView              `json:"photos"`
	Analysis       *inspection.Analysis     `json:"analysis,omitempty"`
	Finalized      bool                     `json:"finalized"`
	Missing        []inspection.Requirement `json:"missing,omitempty"`
}

type SessionView struct {
	Handle    string             `json:"handle"`
	State     inspection.State   `json:"state"`
	Vehicle   inspection.Vehicle `json:"vehicle"`
	Locale    string             `json:"locale"`
	Demo      bool               `json:"demo"`
	Cursor    int                `json:"cursor"`
	Total     int                `json:"total"`
	Progress  float64            `json:"progress"`
	StartedAt time.Time          `json:"started_at"`
	Rules     inspection.Rules   `json:"rules"`
	Current   ItemView           `json:"current"`
	Items     []ItemView         `json:"items"`
}

// NewSessionView renders a session for clients. Photo bytes are never echoed back.
func NewSessionView(s *inspection.Session) SessionView {
	view := SessionView{
		Handle:    s.Handle,
		State:     s.State,
		Vehicle:   s.Vehicle,
		Locale:    s.Locale,
		Demo:      s.Demo,
		Cursor:    s.Cursor,
		Total:     s.Len(),
		Progress:  s.Progress(),
		StartedAt: s.StartedAt,
		Rules:     s.Rules,
		Items:     make([]ItemView, 0, s.Len()),
	}
	for i, item := range s.Items {
		r, _ := s.Result(item.ID)
		iv := ItemView{
			ID:             item.ID,
			Icon:           item.Icon,
			Name:           item.Label(s.Locale),
			Description:    item.Describe(s.Locale),
			RequiredPhotos: item.RequiredPhotos,
			Status:         r.Status,
			Comment:        r.Comment,
			Photos:         make([]PhotoView, 0, len(r.Photos)),
			Analysis:       r.Analysis,
			Finalized:      r.Finalized,
		}
		for j, p := range r.Photos {
			iv.Photos = append(iv.Photos, PhotoView{
				Index:      j,
				MIMEType:   p.MIMEType,
				Size:       len(p.Data),
				CapturedAt: p.CapturedAt,
				Latitude:   p.Latitude,
				Longitude:  p.Longitude,
			})
		}
		if i == s.Cursor && s.State == inspection.StateInProgress {
			iv.Missing = s.Missing()
			view.Current = iv
		}
		view.Items = append(view.Items, iv)
	}
	if s.State != inspection.StateInProgress && s.Cursor < len(view.Items) {
		view.Current = view.Items[s.Cursor]
	}
	return view
}
