package analysis

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
)

const systemInstruction = `You are an automotive inspector reviewing photographs of fleet vehicle components.
Report only what is physically visible in the photo. Never guess about parts that are out of frame.
Always answer with exactly one status and the applicable issues, chosen from the provided lists.`

// BuildPrompt assembles the per-item instruction sent alongside each photo.
func BuildPrompt(item checklist.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Component: %s\n", item.Label(checklist.LocaleEN))
	if d := item.Describe(checklist.LocaleEN); d != "" {
		fmt.Fprintf(&b, "Inspection guideline: %s\n", d)
	}
	if p := strings.TrimSpace(item.Prompt); p != "" {
		b.WriteString(p)
		b.WriteString("\n")
	}

	b.WriteString("\nAllowed statuses (best to worst):\n")
	for _, s := range inspection.ConditionStatuses {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\nAllowed issues:\n")
	for _, s := range inspection.ConditionIssues {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	fmt.Fprintf(&b, "\nRespond with JSON only: {\"component\": %q, \"status\": \"...\", \"issues\": [\"...\"], \"detail\": \"one or two sentences\"}\n",
		item.ID)
	b.WriteString(`Use "No problems" when nothing is wrong.`)
	return b.String()
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"component": {Type: genai.TypeString},
			"status":    {Type: genai.TypeString, Enum: inspection.ConditionStatuses},
			"issues": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString, Enum: inspection.ConditionIssues},
			},
			"detail": {Type: genai.TypeString},
		},
		Required: []string{"status", "issues", "detail"},
	}
}
