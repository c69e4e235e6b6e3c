// Package prompt builds provider-ready prompt strings for each generation
// stage of the drafting workflow. All functions are pure: same inputs, same
// prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/inkwell-hq/inkwell/internal/domain"
)

// ContextPrompt asks the provider to rephrase the brief's purpose, suggest a
// subject line, and turn constraints into actionable rules, returned as JSON.
func ContextPrompt(brief domain.Brief) string {
	constraints := brief.Constraints
	if constraints == "" {
		constraints = "None"
	}

	return fmt.Sprintf(`You are an assistant that prepares email drafting requirements.

Here is the initial brief:
Recipients: %s
Purpose: %s
Tone: %s
Constraints: %s

Tasks:
1. Rephrase the purpose in 4-5 clear sentences.
2. Suggest a subject line that matches the purpose and tone.
3. List any constraints as actionable rules (max words, tone, etc.).
4. Output everything as a JSON object with keys: "purpose", "subject_suggestion", "constraints" (an array of strings).

Return ONLY the JSON object, no additional text or explanation.`,
		strings.Join(brief.Recipients, ", "),
		brief.Purpose,
		brief.Tone,
		constraints,
	)
}

// DraftPrompt asks the provider for the email body given the generated
// context and the chosen subject.
func DraftPrompt(brief domain.Brief, context, subject string) string {
	constraints := brief.Constraints
	if constraints == "" {
		constraints = "None"
	}

	return fmt.Sprintf(`Act as a professional email writer. Generate a polite and well-structured email draft.

Context: %s
Purpose: %s
Recipients: %s
Tone: %s
Subject: %s
Constraints: %s

Requirements:
- Keep it concise (150 words or fewer for the body).
- Maintain a %s tone.
- Include only one clear call-to-action.
- End with an appropriate signature placeholder.
- Return only the email body (no subject line).
- Do not include any formatting markers or extra text.`,
		context,
		brief.Purpose,
		strings.Join(brief.Recipients, ", "),
		brief.Tone,
		subject,
		constraints,
		brief.Tone,
	)
}

// RevisionPrompt asks the provider to rework the current draft body to
// address the user's feedback while preserving purpose and tone.
func RevisionPrompt(brief domain.Brief, originalDraft, feedback string) string {
	return fmt.Sprintf(`You are helping to improve an email draft based on user feedback.

Original Draft: %s
User Feedback: %s

Email Purpose: %s
Tone: %s
Recipients: %s

Create an improved version that addresses the feedback while maintaining the %s tone and the original purpose.
Return only the improved email body with no extra formatting or explanations.`,
		originalDraft,
		feedback,
		brief.Purpose,
		brief.Tone,
		strings.Join(brief.Recipients, ", "),
		brief.Tone,
	)
}
