// Package grammar implements the deterministic fallback parser for the fixed
// voice template:
//
//	<secret phrase> <tab> <item> <qty> at <price> <status>
//
// It is purely functional over its input: no external calls, no state, safe
// for concurrent use.
package grammar

import (
	"math"
	"strconv"
	"strings"
)

// minTokensAfterTrigger is the smallest token count that can still name every
// field of the template.
const minTokensAfterTrigger = 5

// Parser matches transcripts against the fixed template behind a configured
// trigger phrase.
type Parser struct {
	trigger []string
}

// NewParser builds a parser for the given secret phrase. The phrase is
// matched case-insensitively, token by token.
func NewParser(secretPhrase string) *Parser {
	return &Parser{
		trigger: strings.Fields(strings.ToLower(strings.TrimSpace(secretPhrase))),
	}
}

// TriggerPhrase returns the normalized trigger phrase.
func (p *Parser) TriggerPhrase() string {
	return strings.Join(p.trigger, " ")
}

// Parse recognizes the fixed template and returns the structured command.
// Every failure is a *FormatError; Parse never panics on malformed input.
func (p *Parser) Parse(transcript string) (Command, error) {
	normalized := NormalizeTranscript(transcript)
	if normalized == "" {
		return Command{}, newFormatError("empty transcript")
	}

	tokens := strings.Fields(normalized)
	for i := range tokens {
		tokens[i] = trimToken(tokens[i])
	}

	if len(tokens) < len(p.trigger) {
		return Command{}, newFormatError("transcript does not start with the trigger phrase")
	}
	for i, want := range p.trigger {
		if tokens[i] != want {
			return Command{}, newFormatError("transcript does not start with the trigger phrase")
		}
	}

	rest := tokens[len(p.trigger):]
	if len(rest) < minTokensAfterTrigger {
		return Command{}, newFormatError("too few words after trigger phrase: got %d, need at least %d", len(rest), minTokensAfterTrigger)
	}

	cmd := Command{
		Tab:  rest[0],
		Item: rest[1],
	}

	qty, err := parseQuantity(rest[2])
	if err != nil {
		return Command{}, err
	}
	cmd.Qty = qty

	// "at" separates quantity from price; without it the remaining tokens
	// cannot be trusted to line up, so this is an invalid-values failure.
	if rest[3] != "at" {
		return Command{}, newFormatError("invalid values: expected %q between quantity and price, got %q", "at", rest[3])
	}

	price, err := parsePrice(rest[4])
	if err != nil {
		return Command{}, err
	}
	cmd.Price = price

	cmd.Status = strings.Join(rest[5:], " ")

	if cmd.Tab == "" || cmd.Item == "" || cmd.Status == "" {
		return Command{}, newFormatError("invalid values: tab, item and status must be non-empty")
	}

	return cmd, nil
}

func parseQuantity(tok string) (float64, error) {
	if v, ok := NumberWord(tok); ok {
		if v <= 0 {
			return 0, newFormatError("invalid values: quantity %q must be greater than zero", tok)
		}
		return v, nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, newFormatError("invalid values: quantity %q is not a number", tok)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, newFormatError("invalid values: quantity %q must be a finite number greater than zero", tok)
	}
	return v, nil
}

func parsePrice(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, newFormatError("invalid values: price %q is not a number", tok)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, newFormatError("invalid values: price %q must be a finite number greater than zero", tok)
	}
	return v, nil
}
