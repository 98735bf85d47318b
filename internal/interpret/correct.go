package interpret

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
)

const correctSystemPrompt = `You standardize an already-valid inventory record.
Normalize the item name (singular, lower-case), normalize the status to common
vocabulary (pending, paid, shipped, stocked, out of stock), and flag a price
that looks implausible for the item as a warning without changing it.
Reply with exactly one JSON object:
{"corrected": bool, "data": {"tab": string, "item": string, "qty": number, "price": number, "status": string}, "warnings": [string]}
Set "corrected" to false when nothing needed changing.`

// Correct runs the validate-and-correct pass over an already-valid command.
// It returns the corrected command plus any warnings. On any failure, or when
// the oracle reports nothing to correct, the input comes back unchanged: this
// path never degrades its input.
func (p *Parser) Correct(ctx context.Context, cmd grammar.Command) (grammar.Command, []string) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return cmd, nil
	}

	res, err := p.oracle.Complete(ctx, oracle.Request{
		System:      correctSystemPrompt,
		Prompt:      string(payload),
		Temperature: 0,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return cmd, nil
	}

	raw, ok := extractJSONObject(res.Text)
	if !ok {
		return cmd, nil
	}

	var reply struct {
		Corrected bool            `json:"corrected"`
		Data      json.RawMessage `json:"data"`
		Warnings  []string        `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return cmd, nil
	}
	if !reply.Corrected {
		return cmd, trimWarnings(reply.Warnings)
	}

	corrected, err := decodeCommand(string(reply.Data))
	if err != nil {
		// A correction that fails strict validation must not replace a
		// record that already passed it.
		return cmd, nil
	}
	return corrected, trimWarnings(reply.Warnings)
}

func trimWarnings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.TrimSpace(w)
		if w != "" {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
