// Package render reconstructs the canonical evaluation report from validated
// rubric scores. The report never echoes the grading engine's own formatting;
// it is rebuilt deterministically so downstream consumers can rely on its shape.
package render

import (
	"fmt"
	"strings"

	"github.com/steelycan/autograde/internal/models"
)

// Section markers. JustificationMarker is the literal split point between the
// marks block and the prose block.
const (
	MarksMarker         = "## Marks:"
	JustificationMarker = "## Justification:"
)

// Report renders the two-section markdown evaluation for a score.
func Report(score models.RubricScore) string {
	score = score.Clamp()

	b := strings.Builder{}
	b.WriteString(MarksMarker)
	b.WriteString("\n")
	writeMark(&b, "Content Accuracy", score.ContentAccuracy, models.CapContentAccuracy)
	writeMark(&b, "Completeness", score.Completeness, models.CapCompleteness)
	writeMark(&b, "Language & Clarity", score.LanguageClarity, models.CapLanguageClarity)
	writeMark(&b, "Depth of Understanding", score.DepthUnderstanding, models.CapDepthUnderstanding)
	writeMark(&b, "Structure & Coherence", score.StructureCoherence, models.CapStructureCoherence)
	b.WriteString(fmt.Sprintf("- **Total: %s / %s**\n", formatScore(score.Total()), formatScore(models.RubricMaxTotal)))
	b.WriteString("\n")
	b.WriteString(JustificationMarker)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(score.Justification))
	b.WriteString("\n")

	return b.String()
}

// Split separates a rendered report into its marks and justification blocks.
// The second return value is false when the input was not produced by Report.
func Split(report string) (marks, justification string, ok bool) {
	idx := strings.Index(report, JustificationMarker)
	if idx < 0 || !strings.Contains(report, MarksMarker) {
		return "", "", false
	}

	marks = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(report[:idx]), MarksMarker))
	justification = strings.TrimSpace(report[idx+len(JustificationMarker):])
	return marks, justification, true
}

func writeMark(b *strings.Builder, name string, value, limit float64) {
	b.WriteString(fmt.Sprintf("- %s: %s / %s\n", name, formatScore(value), formatScore(limit)))
}

// formatScore trims trailing zeros so whole scores print as "3", not "3.00".
func formatScore(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
