package agent

import (
	"fmt"
	"strings"
)

// BuildPrompt layers the role, the subject, the tone and the reply schema.
func BuildPrompt(topic, tone string) string {
	var b strings.Builder

	// Layer 1: Role
	b.WriteString("You are a skilled poet. Write one original poem about the subject below.\n\n")

	// Layer 2: Subject
	b.WriteString(fmt.Sprintf("Subject: %s\n", strings.TrimSpace(topic)))

	// Layer 3: Tone
	if tone = strings.TrimSpace(tone); tone != "" {
		b.WriteString(fmt.Sprintf("Tone: %s\n", tone))
	}
	b.WriteString("\n")

	// Layer 4: Output schema
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n")
	b.WriteString(`
JSON schema:
{"result": {"poem": "string, lines separated by \n", "title": "string", "style": "string", "stanza_count": int, "line_count": int, "formatting_notes": "string"},
 "confidence": number between 0 and 1,
 "metadata": {"processing_time": "string", "model_used": "string", "creative_elements": ["string"]}}
`)

	return b.String()
}
