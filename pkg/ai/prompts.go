package ai

import "strings"

const graderSystemPrompt = "You are an expert assignment grader. Evaluate the StudentAnswer against the IdealAnswer " +
	"using the rubric provided. Respond with a JSON object containing content_accuracy (0-3), completeness (0-2), " +
	"language_clarity (0-2), depth_understanding (0-2), structure_coherence (0-1), and justification " +
	"(a per-criterion explanation). Do not include a total; it is computed externally."

func styleGuidance(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "strict":
		return "Grading Style: Strict. Be conservative; award full credit only when a criterion is fully met."
	case "lenient":
		return "Grading Style: Lenient. Be generous; give the benefit of the doubt for minor issues."
	default:
		return "Grading Style: Balanced. Reward partial correctness proportionally."
	}
}

const rubricText = `### Rubric (Total: 10 Marks)

1. **Content Accuracy (0-3)** - Are the key facts and concepts correct?
2. **Completeness (0-2)** - Are all required parts of the answer included?
3. **Language & Clarity (0-2)** - Is the response grammatically correct, clear, and easy to understand?
4. **Depth of Understanding (0-2)** - Does the answer show critical thinking or insight?
5. **Structure & Coherence (0-1)** - Is the answer logically organized and well-structured?`

func buildGradingPrompt(input GradingInput) string {
	b := strings.Builder{}
	if instruction := strings.TrimSpace(input.AdaptiveInstruction); instruction != "" {
		b.WriteString("IMPORTANT ADAPTIVE INSTRUCTION: ")
		b.WriteString(instruction)
		b.WriteString("\n\n")
	}
	b.WriteString(styleGuidance(input.Style))
	b.WriteString("\n\n")
	b.WriteString(rubricText)
	b.WriteString("\n\n### Input\n\n**Question:**\n")
	b.WriteString(input.Question)
	b.WriteString("\n\n**IdealAnswer:**\n")
	b.WriteString(input.IdealAnswer)
	b.WriteString("\n\n**StudentAnswer:**\n")
	b.WriteString(input.StudentAnswer)
	b.WriteString("\n\nReturn JSON.")
	return b.String()
}

const visionInstruction = "Extract only content useful for grading this answer. Prefer bullet points. " +
	"Include any equations verbatim. Name diagrams and describe what they show. Do not grade or comment."

func buildVisionPrompt(contextText string) string {
	b := strings.Builder{}
	b.WriteString(visionInstruction)
	if contextText = strings.TrimSpace(contextText); contextText != "" {
		b.WriteString("\n\nThe question being answered:\n")
		b.WriteString(contextText)
	}
	return b.String()
}

const refinerSystemPrompt = "You improve an automated grader based on reviewer complaints. Given a grading and the " +
	"reviewer's detailed feedback, reply with a single generalizable instruction of 1-3 sentences that would make " +
	"future gradings better, phrased as a directive. If the complaint yields nothing generalizable, reply with " +
	"exactly " + NoImprovementSentinel + " and nothing else."

func buildRefinementPrompt(input RefinementInput) string {
	b := strings.Builder{}
	b.WriteString("**Question:**\n")
	b.WriteString(input.Question)
	b.WriteString("\n\n**IdealAnswer:**\n")
	b.WriteString(input.IdealAnswer)
	b.WriteString("\n\n**StudentAnswer:**\n")
	b.WriteString(input.StudentAnswer)
	b.WriteString("\n\n**Evaluation as shown to the reviewer:**\n")
	b.WriteString(input.RenderedEvaluation)
	b.WriteString("\n\n**Reviewer's complaint:**\n")
	b.WriteString(input.Detail)
	return b.String()
}
