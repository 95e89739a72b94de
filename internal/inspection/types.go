package inspection

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusWarning, StatusCritical:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

const (
	AnalysisStatusError         = "Error"
	AnalysisStatusNotApplicable = "Not applicable"
)

// ConditionStatuses is the closed vocabulary an analyzer may report, ordered from best to worst.
var ConditionStatuses = []string{
	"Optimal condition",
	"Slight wear",
	"Moderate wear",
	"Needs minor repair",
	"Needs urgent repair",
	"Not functional",
	"Flat tire",
}

var ConditionIssues = []string{
	"No problems",
	"Minor cosmetic damage",
	"Structural damage",
	"Functional problem",
	"Loose connection",
	"Improper fit",
	"Dirt buildup",
	"Total pressure loss",
	"Visible sharp object",
}

// SeverityRank orders analysis statuses; -1 means the status carries no condition (error, placeholder or unknown).
func SeverityRank(status string) int {
	for i, s := range ConditionStatuses {
		if strings.EqualFold(s, status) {
			return i
		}
	}
	return -1
}

func KnownIssue(issue string) bool {
	for _, s := range ConditionIssues {
		if strings.EqualFold(s, issue) {
			return true
		}
	}
	return false
}

type Analysis struct {
	Status string   `json:"status"`
	Issues []string `json:"issues"`
	Detail string   `json:"detail"`
}

func (a Analysis) Failed() bool {
	return a.Status == AnalysisStatusError
}

func (a Analysis) clone() Analysis {
	if a.Issues != nil {
		a.Issues = append([]string(nil), a.Issues...)
	}
	return a
}

// ErrorAnalysis is the in-band outcome recorded for a photograph whose analysis failed.
func ErrorAnalysis(err error) Analysis {
	issue := "Analysis failed"
	if errors.Is(err, context.DeadlineExceeded) {
		issue = "Analysis timed out"
	}
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Analysis{
		Status: AnalysisStatusError,
		Issues: []string{issue},
		Detail: detail,
	}
}

func NotApplicableAnalysis() Analysis {
	return Analysis{
		Status: AnalysisStatusNotApplicable,
		Issues: []string{},
		Detail: "No photo evaluation required for this item",
	}
}

type Photo struct {
	Data       []byte     `json:"data"`
	MIMEType   string     `json:"mime_type"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
}

type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const VehicleStatusActive = "active"

type Vehicle struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Year   int    `json:"year"`
	Status string `json:"status"`
}

var vehicleIDPattern = regexp.MustCompile(`^T\d{3}$`)

// NormalizeVehicleID trims and upper-cases id and checks the T### format.
func NormalizeVehicleID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !vehicleIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: must be T followed by 3 digits (e.g. T001)", ErrInvalidVehicleID)
	}
	return id, nil
}
