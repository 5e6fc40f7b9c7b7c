package refiner

import (
	"sort"
	"strings"
)

// TurnContext carries the accumulated state of the prior turn that the
// Author and Analyst stages fold into their prompts.
type TurnContext struct {
	PriorUserPrompt  string
	PriorSynthesis   string
	PriorDecisionMap string
	// PriorBatchResponses maps provider id to that provider's last response.
	PriorBatchResponses map[string]string
}

const authorInstructions = `You are a prompt author. Rewrite the user's draft fragment into a complete,
self-contained prompt that preserves their intent. Use the conversation
context, when given, to resolve references and fill gaps.

Reply with your reasoning first, then the rewritten prompt after a line
reading exactly:
FINAL OUTPUT:`

const analystInstructions = `You are a prompt analyst. Audit the rewritten prompt below: name anything the
rewrite de-emphasized or dropped from the draft, then propose up to three
alternative framings.

Reply in two sections:
AUDIT:
<what was de-emphasized>
VARIANTS:
1. <first alternative framing>`

const initializeInstructions = `You are a prompt author. Rewrite the user's draft fragment into a complete,
self-contained prompt. There is no prior conversation.

Reply in two sections:
REFINED_PROMPT:
<the rewritten prompt>
EXPLANATION:
<one short paragraph on what you changed>`

// contextSection renders only the non-empty parts of the prior turn.
func contextSection(tc *TurnContext) string {
	if tc == nil {
		return ""
	}
	var b strings.Builder
	add := func(label, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		b.WriteString(label)
		b.WriteString(":\n")
		b.WriteString(strings.TrimSpace(body))
		b.WriteString("\n\n")
	}
	add("PRIOR USER PROMPT", tc.PriorUserPrompt)
	add("PRIOR SYNTHESIS", tc.PriorSynthesis)
	add("PRIOR DECISION MAP", tc.PriorDecisionMap)
	if len(tc.PriorBatchResponses) > 0 {
		ids := make([]string, 0, len(tc.PriorBatchResponses))
		for id := range tc.PriorBatchResponses {
			if strings.TrimSpace(tc.PriorBatchResponses[id]) != "" {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			add("PRIOR RESPONSE ("+id+")", tc.PriorBatchResponses[id])
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "CONVERSATION CONTEXT:\n\n" + b.String()
}

func buildAuthorPrompt(fragment string, tc *TurnContext) string {
	var b strings.Builder
	b.WriteString(authorInstructions)
	b.WriteString("\n\n")
	if cs := contextSection(tc); cs != "" {
		b.WriteString(cs)
		b.WriteString("\n")
	}
	b.WriteString("DRAFT FRAGMENT:\n")
	b.WriteString(strings.TrimSpace(fragment))
	return b.String()
}

func buildAnalystPrompt(fragment, authored string, tc *TurnContext) string {
	var b strings.Builder
	b.WriteString(analystInstructions)
	b.WriteString("\n\n")
	if cs := contextSection(tc); cs != "" {
		b.WriteString(cs)
		b.WriteString("\n")
	}
	b.WriteString("ORIGINAL FRAGMENT:\n")
	b.WriteString(strings.TrimSpace(fragment))
	b.WriteString("\n\nREWRITTEN PROMPT:\n")
	b.WriteString(strings.TrimSpace(authored))
	return b.String()
}

func buildInitializePrompt(fragment string) string {
	return initializeInstructions + "\n\nDRAFT FRAGMENT:\n" + strings.TrimSpace(fragment)
}
