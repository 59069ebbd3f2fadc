package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

// RequirementsKey labels ledger rows for requirement extraction.
const RequirementsKey = "requirements.analyze"

// DefaultLanguage is the language of the source documents and of the
// extracted titles and descriptions.
const DefaultLanguage = "Greek"

// RequirementsPrompt asks for the "to-be" requirements in content as a JSON
// array of {title, description, functional}.
func RequirementsPrompt(content, language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return fmt.Sprintf(`You are an experienced business analyst.

Analyze the following document written in %[1]s, describing the current (as-is) and desired (to-be) business processes.

Extract ONLY the requirements related to the "to-be" state.

Return ONLY a JSON array, where each requirement has:
- title: short title (keep in %[1]s)
- description: short description (1-2 sentences, in %[1]s)
- functional: true if functional requirement, false if non-functional

### Example format:
[
    {
        "title": "Cardless withdrawal with QR",
        "description": "The customer can withdraw cash at the ATM using a QR code without a card.",
        "functional": true
    }
]

DO NOT include any explanation or commentary, only the JSON array.

%[2]s

Return only the JSON, nothing else.
`, language, CleanText(content))
}

var whitespace = regexp.MustCompile(`\s+`)

// CleanText drops NUL bytes and collapses whitespace runs to single spaces.
// Newlines are kept so diagrams stay line-oriented.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
