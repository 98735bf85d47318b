package interpret

import (
	"context"
	"fmt"
	"strings"

	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
)

const suggestSystemPrompt = `The user spoke an inventory command that could not be parsed.
Reply with a single short line telling them how to rephrase it.
The expected format is: "%s <tab> <item> <quantity> at <price> <status>".
Do not apologize and do not add anything beyond the one line.`

// StaticSuggestion is returned whenever the oracle cannot produce a
// corrective hint.
func StaticSuggestion(triggerPhrase string) string {
	return fmt.Sprintf("Bad format — use: %s <tab> <item> <quantity> at <price> <status>", triggerPhrase)
}

// SuggestCorrection asks the oracle for a one-line fix for a transcript that
// failed every parsing path. Transport or shape problems fall back to the
// static suggestion; this path never returns an error.
func (p *Parser) SuggestCorrection(ctx context.Context, transcript, triggerPhrase string) string {
	res, err := p.oracle.Complete(ctx, oracle.Request{
		System:      fmt.Sprintf(suggestSystemPrompt, triggerPhrase),
		Prompt:      transcript,
		Temperature: 0.4,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return StaticSuggestion(triggerPhrase)
	}

	line := firstLine(res.Text)
	if line == "" {
		return StaticSuggestion(triggerPhrase)
	}
	return line
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
