package refiner

import (
	"regexp"
	"strings"
)

// Model output formatting is not contractually guaranteed, so every parse
// here is best-effort with a defined fallback and never a hard failure.

// finalOutputRe matches the Author delimiter, tolerating leading markdown
// emphasis/heading characters ("**FINAL OUTPUT:**", "## Final Output:").
var finalOutputRe = regexp.MustCompile(`(?im)^[ \t]*[*_#>` + "`" + `]*[ \t]*FINAL[ \t]+OUTPUT[ \t]*:[*_` + "`" + `]*[ \t]*`)

// splitFinalOutput divides an Author response into explanation and authored
// text. When the delimiter is missing, or nothing follows it, the entire
// response becomes the authored text so the stage never returns nothing the
// model actually said.
func splitFinalOutput(raw string) (explanation, authored string) {
	loc := finalOutputRe.FindStringIndex(raw)
	if loc == nil {
		return "", strings.TrimSpace(raw)
	}
	explanation = strings.TrimSpace(raw[:loc[0]])
	authored = strings.TrimSpace(raw[loc[1]:])
	if authored == "" {
		return "", strings.TrimSpace(raw)
	}
	return explanation, authored
}

func sectionRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*[*_#>` + "`" + `]*[ \t]*` + name + `[ \t]*:[*_` + "`" + `]*[ \t]*`)
}

var (
	refinedPromptRe = sectionRe("REFINED_PROMPT")
	explanationRe   = sectionRe("EXPLANATION")
	auditRe         = sectionRe("AUDIT")
	variantsRe      = sectionRe("VARIANTS")
)

// splitSections extracts the text between two markers. The second marker may
// be nil (section runs to end of input). Returns ok=false when the first
// marker is absent.
func splitSections(raw string, first, next *regexp.Regexp) (string, bool) {
	loc := first.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	rest := raw[loc[1]:]
	if next != nil {
		if nloc := next.FindStringIndex(rest); nloc != nil {
			rest = rest[:nloc[0]]
		}
	}
	return strings.TrimSpace(rest), true
}

// parseInitialize handles the single-stage response shape. A missing
// REFINED_PROMPT marker means the whole text is the authored result.
func parseInitialize(raw string) (authored, explanation string) {
	body, ok := splitSections(raw, refinedPromptRe, explanationRe)
	if !ok {
		return strings.TrimSpace(raw), ""
	}
	authored = body
	if exp, ok := splitSections(raw, explanationRe, nil); ok {
		explanation = exp
	}
	return authored, explanation
}

// parseAnalyst extracts the audit text and up to the caller's cap of
// alternative framings from an Analyst response.
func parseAnalyst(raw string) (audit string, variants []string) {
	if a, ok := splitSections(raw, auditRe, variantsRe); ok {
		audit = a
	}
	section, ok := splitSections(raw, variantsRe, nil)
	if !ok {
		return audit, nil
	}
	return audit, parseVariants(section)
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]|-)\s+(.*)$`)

// parseVariants prefers a numbered/bulleted list, folding continuation lines
// into the preceding item. Without list markers it falls back to blank-line
// paragraphs, and a non-empty section that parses to nothing becomes a single
// variant.
func parseVariants(section string) []string {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil
	}

	var items []string
	current := ""
	sawMarker := false
	for _, line := range strings.Split(section, "\n") {
		if m := listMarkerRe.FindStringSubmatch(line); m != nil {
			sawMarker = true
			if strings.TrimSpace(current) != "" {
				items = append(items, strings.TrimSpace(current))
			}
			current = m[1]
			continue
		}
		if sawMarker {
			current += " " + strings.TrimSpace(line)
		}
	}
	if strings.TrimSpace(current) != "" {
		items = append(items, strings.TrimSpace(current))
	}
	if sawMarker {
		return items
	}

	var paras []string
	for _, p := range strings.Split(section, "\n\n") {
		if t := strings.TrimSpace(p); t != "" {
			paras = append(paras, t)
		}
	}
	if len(paras) > 0 {
		return paras
	}
	return []string{section}
}
