package interpret

import (
	"context"
	"errors"
	"testing"

	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
)

type scriptedOracle struct {
	replies []string
	err     error
	calls   int
	lastReq oracle.Request
}

func (s *scriptedOracle) Name() string { return "scripted" }

func (s *scriptedOracle) Complete(_ context.Context, req oracle.Request) (oracle.Response, error) {
	s.lastReq = req
	s.calls++
	if s.err != nil {
		return oracle.Response{}, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return oracle.Response{Text: s.replies[idx]}, nil
}

func TestParseTranscriptSuccessShape(t *testing.T) {
	o := &scriptedOracle{replies: []string{
		`{"tab": "Groceries", "item": "Apples", "qty": 2.5, "price": 1200, "status": "Pending"}`,
	}}
	p := NewParser(o, 256)

	cmd, err := p.ParseTranscript(context.Background(), "add two and a half apples")
	if err != nil {
		t.Fatalf("ParseTranscript() error = %v", err)
	}
	want := grammar.Command{Tab: "groceries", Item: "apples", Qty: 2.5, Price: 1200, Status: "pending"}
	if cmd != want {
		t.Fatalf("command = %+v, want %+v", cmd, want)
	}
	if o.lastReq.Temperature != 0 {
		t.Fatalf("Temperature = %v, want 0 for structured extraction", o.lastReq.Temperature)
	}
}

func TestParseTranscriptAcceptsFencedJSON(t *testing.T) {
	o := &scriptedOracle{replies: []string{
		"```json\n{\"tab\":\"pantry\",\"item\":\"rice\",\"qty\":1,\"price\":3,\"status\":\"stocked\"}\n```",
	}}
	p := NewParser(o, 256)

	cmd, err := p.ParseTranscript(context.Background(), "one rice at three")
	if err != nil {
		t.Fatalf("ParseTranscript() error = %v", err)
	}
	if cmd.Tab != "pantry" || cmd.Qty != 1 {
		t.Fatalf("command = %+v", cmd)
	}
}

func TestParseTranscriptFailureShape(t *testing.T) {
	o := &scriptedOracle{replies: []string{`{"error": true, "reason": "no quantity mentioned"}`}}
	p := NewParser(o, 256)

	_, err := p.ParseTranscript(context.Background(), "mumble")
	var pf *ParseFailure
	if !errors.As(err, &pf) {
		t.Fatalf("error = %v, want *ParseFailure", err)
	}
	if pf.Reason != "no quantity mentioned" {
		t.Fatalf("Reason = %q", pf.Reason)
	}
}

func TestParseTranscriptRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"not json":        `the tab is groceries`,
		"missing field":   `{"tab":"a","item":"b","qty":1,"price":2}`,
		"mistyped string": `{"tab":1,"item":"b","qty":1,"price":2,"status":"s"}`,
		"mistyped number": `{"tab":"a","item":"b","qty":"one","price":2,"status":"s"}`,
		"empty strings":   `{"tab":"","item":"b","qty":1,"price":2,"status":"s"}`,
		"zero qty":        `{"tab":"a","item":"b","qty":0,"price":2,"status":"s"}`,
		"negative price":  `{"tab":"a","item":"b","qty":1,"price":-2,"status":"s"}`,
	}
	for name, reply := range cases {
		o := &scriptedOracle{replies: []string{reply}}
		p := NewParser(o, 256)
		_, err := p.ParseTranscript(context.Background(), "x")
		var pf *ParseFailure
		if !errors.As(err, &pf) {
			t.Fatalf("%s: error = %v, want *ParseFailure", name, err)
		}
	}
}

func TestParseTranscriptWrapsOracleErrors(t *testing.T) {
	transportErr := errors.New("connection refused")
	o := &scriptedOracle{err: transportErr}
	p := NewParser(o, 256)

	_, err := p.ParseTranscript(context.Background(), "x")
	var pf *ParseFailure
	if !errors.As(err, &pf) {
		t.Fatalf("error = %v, want *ParseFailure", err)
	}
	if !errors.Is(err, transportErr) {
		t.Fatalf("transport error not wrapped: %v", err)
	}
	if o.calls != 1 {
		t.Fatalf("oracle called %d times, want exactly 1 (no retries)", o.calls)
	}
}

func TestSuggestCorrectionUsesOracleLine(t *testing.T) {
	o := &scriptedOracle{replies: []string{"Try: hey ara groceries apples 2 at 5 pending\nextra noise"}}
	p := NewParser(o, 256)

	got := p.SuggestCorrection(context.Background(), "garbled", "hey ara")
	if got != "Try: hey ara groceries apples 2 at 5 pending" {
		t.Fatalf("suggestion = %q", got)
	}
}

func TestSuggestCorrectionStaticFallback(t *testing.T) {
	o := &scriptedOracle{err: errors.New("down")}
	p := NewParser(o, 256)

	got := p.SuggestCorrection(context.Background(), "garbled", "hey ara")
	if got != StaticSuggestion("hey ara") {
		t.Fatalf("suggestion = %q, want static fallback", got)
	}
}

func TestCorrectAppliesCorrection(t *testing.T) {
	o := &scriptedOracle{replies: []string{
		`{"corrected": true, "data": {"tab":"groceries","item":"apple","qty":2,"price":5,"status":"pending"}, "warnings": ["item name singularized"]}`,
	}}
	p := NewParser(o, 256)

	in := grammar.Command{Tab: "groceries", Item: "apples", Qty: 2, Price: 5, Status: "pening"}
	out, warnings := p.Correct(context.Background(), in)
	if out.Item != "apple" {
		t.Fatalf("Item = %q, want corrected value", out.Item)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestCorrectNeverDegradesInput(t *testing.T) {
	in := grammar.Command{Tab: "groceries", Item: "apples", Qty: 2, Price: 5, Status: "pending"}

	cases := []*scriptedOracle{
		{err: errors.New("down")},
		{replies: []string{`not json at all`}},
		{replies: []string{`{"corrected": false, "data": null, "warnings": []}`}},
		{replies: []string{`{"corrected": true, "data": {"tab":"","item":"","qty":-1,"price":0,"status":""}}`}},
	}
	for i, o := range cases {
		p := NewParser(o, 256)
		out, _ := p.Correct(context.Background(), in)
		if out != in {
			t.Fatalf("case %d: Correct() changed input to %+v", i, out)
		}
	}
}
