// Package interpret adapts the completion oracle into structured command
// parsing. Every oracle reply goes through a strict decode-and-validate step
// immediately after the call; nothing downstream ever inspects loose JSON.
package interpret

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
)

// ParseFailure signals that the oracle returned an unusable structure. The
// caller is expected to fall back to the lexical parser; the adapter itself
// never retries.
type ParseFailure struct {
	Reason string
	Err    error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai parse failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ai parse failure: %s", e.Reason)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

const parseSystemPrompt = `You convert a spoken inventory command into JSON.
Reply with exactly one JSON object and nothing else.
On success reply: {"tab": string, "item": string, "qty": number, "price": number, "status": string}
If the command cannot be understood reply: {"error": true, "reason": string}
Quantities spoken as words ("two", "twenty") must become numbers. Lower-case all strings.`

// Parser drives structured extraction through the oracle.
type Parser struct {
	oracle    oracle.Client
	maxTokens int
}

func NewParser(client oracle.Client, maxTokens int) *Parser {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &Parser{oracle: client, maxTokens: maxTokens}
}

// ParseTranscript sends one completion request and strictly decodes the reply
// into a command. Any decode or shape problem is a *ParseFailure.
func (p *Parser) ParseTranscript(ctx context.Context, transcript string) (grammar.Command, error) {
	res, err := p.oracle.Complete(ctx, oracle.Request{
		System:      parseSystemPrompt,
		Prompt:      transcript,
		Temperature: 0,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return grammar.Command{}, &ParseFailure{Reason: "oracle call failed", Err: err}
	}
	return decodeCommand(res.Text)
}

func decodeCommand(reply string) (grammar.Command, error) {
	raw, ok := extractJSONObject(reply)
	if !ok {
		return grammar.Command{}, &ParseFailure{Reason: "reply is not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return grammar.Command{}, &ParseFailure{Reason: "reply is not valid JSON", Err: err}
	}

	if rawErr, ok := fields["error"]; ok && !isJSONFalse(rawErr) {
		reason := "command not understood"
		if rawReason, ok := fields["reason"]; ok {
			var s string
			if json.Unmarshal(rawReason, &s) == nil && strings.TrimSpace(s) != "" {
				reason = s
			}
		}
		return grammar.Command{}, &ParseFailure{Reason: reason}
	}

	var cmd grammar.Command
	var err error
	if cmd.Tab, err = stringField(fields, "tab"); err != nil {
		return grammar.Command{}, err
	}
	if cmd.Item, err = stringField(fields, "item"); err != nil {
		return grammar.Command{}, err
	}
	if cmd.Status, err = stringField(fields, "status"); err != nil {
		return grammar.Command{}, err
	}
	if cmd.Qty, err = numberField(fields, "qty"); err != nil {
		return grammar.Command{}, err
	}
	if cmd.Price, err = numberField(fields, "price"); err != nil {
		return grammar.Command{}, err
	}

	cmd.Tab = strings.ToLower(strings.TrimSpace(cmd.Tab))
	cmd.Item = strings.ToLower(strings.TrimSpace(cmd.Item))
	cmd.Status = strings.ToLower(strings.TrimSpace(cmd.Status))

	if cmd.Tab == "" || cmd.Item == "" || cmd.Status == "" {
		return grammar.Command{}, &ParseFailure{Reason: "tab, item and status must be non-empty"}
	}
	if cmd.Qty <= 0 || cmd.Price <= 0 {
		return grammar.Command{}, &ParseFailure{Reason: "qty and price must be greater than zero"}
	}

	return cmd, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", &ParseFailure{Reason: fmt.Sprintf("missing field %q", key)}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &ParseFailure{Reason: fmt.Sprintf("field %q is not a string", key)}
	}
	return s, nil
}

func numberField(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, &ParseFailure{Reason: fmt.Sprintf("missing field %q", key)}
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &ParseFailure{Reason: fmt.Sprintf("field %q is not a number", key)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseFailure{Reason: fmt.Sprintf("field %q is not finite", key)}
	}
	return v, nil
}

func isJSONFalse(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return !b
	}
	return false
}

// extractJSONObject pulls the first top-level JSON object out of a reply,
// tolerating markdown code fences around it but nothing else.
func extractJSONObject(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
