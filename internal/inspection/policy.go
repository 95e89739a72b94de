package inspection

import (
	"errors"
	"fmt"
	"strings"
)

// Policy decides which per-photo outcome becomes the item's stored analysis.
type Policy string

const (
	PolicyFirstResult Policy = "first"
	PolicyWorstCase   Policy = "worst"
)

func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", PolicyFirstResult:
		return PolicyFirstResult, nil
	case PolicyWorstCase:
		return PolicyWorstCase, nil
	default:
		return "", fmt.Errorf("unknown analysis policy %q", raw)
	}
}

// Select picks one outcome. Failed outcomes are only chosen when every photograph failed.
func (p Policy) Select(outcomes []Analysis) Analysis {
	if len(outcomes) == 0 {
		return ErrorAnalysis(errors.New("analyzer returned no outcomes"))
	}
	if p == PolicyWorstCase {
		best := -1
		rank := -2
		for i, o := range outcomes {
			if o.Failed() {
				continue
			}
			if r := SeverityRank(o.Status); r > rank {
				best, rank = i, r
			}
		}
		if best >= 0 {
			return outcomes[best]
		}
		return outcomes[0]
	}
	for _, o := range outcomes {
		if !o.Failed() {
			return o
		}
	}
	return outcomes[0]
}
