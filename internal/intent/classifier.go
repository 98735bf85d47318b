// Package intent decides whether a free-form command reads from or writes to
// the tabular backend.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
)

// Intent is the two-valued classification result.
type Intent string

const (
	IntentRead  Intent = "READ"
	IntentWrite Intent = "WRITE"
)

// AmbiguousError reports a classifier reply outside the READ/WRITE
// vocabulary. It carries the literal text so the caller can decide whether to
// report or retry.
type AmbiguousError struct {
	Reply string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous intent: oracle replied %q, expected READ or WRITE", e.Reply)
}

const classifySystemPrompt = `Classify the user's command against a spreadsheet.
The available sheets are: %s.
Reply with exactly one word: WRITE if the command adds or changes data, READ if it asks a question about existing data.`

// Classifier maps free-form commands onto the READ/WRITE enum with a single
// constrained completion query. No retries.
type Classifier struct {
	oracle oracle.Client
}

func New(client oracle.Client) *Classifier {
	return &Classifier{oracle: client}
}

// Classify returns the intent for a command given the live universe of valid
// sheet names.
func (c *Classifier) Classify(ctx context.Context, command string, sheets []string) (Intent, error) {
	res, err := c.oracle.Complete(ctx, oracle.Request{
		System:      fmt.Sprintf(classifySystemPrompt, strings.Join(sheets, ", ")),
		Prompt:      command,
		Temperature: 0,
		MaxTokens:   4,
	})
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}

	reply := strings.ToUpper(strings.Trim(strings.TrimSpace(res.Text), ".!\"'"))
	switch reply {
	case string(IntentRead):
		return IntentRead, nil
	case string(IntentWrite):
		return IntentWrite, nil
	default:
		return "", &AmbiguousError{Reply: res.Text}
	}
}
