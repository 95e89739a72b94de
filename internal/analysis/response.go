package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fleetguard/internal/inspection"
)

var ErrMalformedResponse = errors.New("malformed vision response")

type visionResponse struct {
	Component string   `json:"component"`
	Status    string   `json:"status"`
	Issues    []string `json:"issues"`
	Detail    string   `json:"detail"`
}

// ParseResponse reads the model's JSON answer, tolerating markdown fences and surrounding prose,
// and maps it onto the closed status and issue vocabularies.
func ParseResponse(raw string) (inspection.Analysis, error) {
	body, err := extractObject(stripFences(raw))
	if err != nil {
		return inspection.Analysis{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var resp visionResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return inspection.Analysis{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	status, ok := canonical(inspection.ConditionStatuses, resp.Status)
	if !ok {
		return inspection.Analysis{}, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, resp.Status)
	}

	issues := make([]string, 0, len(resp.Issues))
	for _, raw := range resp.Issues {
		issue, ok := canonical(inspection.ConditionIssues, raw)
		if !ok {
			return inspection.Analysis{}, fmt.Errorf("%w: unknown issue %q", ErrMalformedResponse, raw)
		}
		issues = append(issues, issue)
	}
	if len(issues) == 0 {
		issues = []string{inspection.ConditionIssues[0]}
	}

	return inspection.Analysis{
		Status: status,
		Issues: issues,
		Detail: strings.TrimSpace(resp.Detail),
	}, nil
}

func canonical(vocabulary []string, value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, v := range vocabulary {
		if strings.EqualFold(v, value) {
			return v, true
		}
	}
	return "", false
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

func extractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", errors.New("no JSON object found")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", errors.New("unterminated JSON object")
	}
	return text[start : end+1], nil
}
