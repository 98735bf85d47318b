package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valleyboyzz0024-del/ara-voice/internal/archive"
	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
	"github.com/valleyboyzz0024-del/ara-voice/internal/intent"
	"github.com/valleyboyzz0024-del/ara-voice/internal/interpret"
	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
	"github.com/valleyboyzz0024-del/ara-voice/internal/session"
	"github.com/valleyboyzz0024-del/ara-voice/internal/sheets"
	"github.com/valleyboyzz0024-del/ara-voice/internal/validate"
)

type scriptedOracle struct {
	replies  []string
	err      error
	requests []oracle.Request
}

func (c *scriptedOracle) Name() string { return "scripted" }

func (c *scriptedOracle) Complete(_ context.Context, req oracle.Request) (oracle.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return oracle.Response{}, c.err
	}
	if len(c.replies) == 0 {
		return oracle.Response{Text: ""}, nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return oracle.Response{Text: reply}, nil
}

type failingGateway struct {
	listErr   error
	appendErr error
}

func (g *failingGateway) ListCollections(context.Context) ([]string, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return []string{"groceries"}, nil
}

func (g *failingGateway) ReadCollection(context.Context, string) ([]sheets.Row, error) {
	return nil, nil
}

func (g *failingGateway) AppendRow(context.Context, string, []string) error {
	return g.appendErr
}

func newTestOrchestrator(t *testing.T, client oracle.Client, gateway sheets.Gateway, aiEnabled bool) (*Orchestrator, *session.Store, *archive.InMemoryStore) {
	t.Helper()
	sessions := session.NewStore(time.Minute, 50, "groceries")
	store := archive.NewInMemoryStore()
	o := New(Config{
		Sessions:    sessions,
		Grammar:     grammar.NewParser("hey ara"),
		AI:          interpret.NewParser(client, 256),
		Classifier:  intent.New(client),
		Validator:   validate.New(validate.Rules{PriceMin: 0.01, PriceMax: 1_000_000}, nil),
		Gateway:     gateway,
		Oracle:      client,
		Archive:     store,
		AIEnabled:   aiEnabled,
		CallTimeout: time.Second,
		DefaultTab:  "groceries",
	})
	return o, sessions, store
}

func TestHandleStructuredLexicalSuccess(t *testing.T) {
	gateway := sheets.NewMockGateway()
	o, sessions, store := newTestOrchestrator(t, &scriptedOracle{}, gateway, false)

	res, err := o.HandleStructured(context.Background(), "s1", "hey ara groceries apples 2.5 at 1200 pending")
	if err != nil {
		t.Fatalf("HandleStructured() error = %v", err)
	}
	if res.Type != "action" {
		t.Fatalf("Type = %q, want action", res.Type)
	}
	if res.Tab != "groceries" || res.Item != "apples" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Reply, "groceries") {
		t.Fatalf("Reply = %q, want collection named", res.Reply)
	}
	if gateway.RowCount("groceries") != 1 {
		t.Fatalf("RowCount = %d, want 1", gateway.RowCount("groceries"))
	}

	sess := sessions.GetOrCreate("s1")
	if len(sess.History) != 1 || !sess.History[0].Success {
		t.Fatalf("unexpected history: %+v", sess.History)
	}
	if sess.Context.PreferredTab != "groceries" {
		t.Fatalf("PreferredTab = %q, want groceries", sess.Context.PreferredTab)
	}

	records, err := store.RecentBySession(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("RecentBySession() error = %v", err)
	}
	if len(records) != 1 || !records[0].Success {
		t.Fatalf("unexpected archive records: %+v", records)
	}
}

func TestHandleStructuredAIParseFirst(t *testing.T) {
	client := &scriptedOracle{replies: []string{
		`{"tab": "groceries", "item": "milk", "qty": 2, "price": 3.5, "status": "pending"}`,
	}}
	gateway := sheets.NewMockGateway()
	o, _, _ := newTestOrchestrator(t, client, gateway, true)

	res, err := o.HandleStructured(context.Background(), "s1", "hey ara groceries milk two at 3.50 pending")
	if err != nil {
		t.Fatalf("HandleStructured() error = %v", err)
	}
	if res.Item != "milk" {
		t.Fatalf("Item = %q, want milk", res.Item)
	}
	if len(client.requests) != 1 {
		t.Fatalf("oracle calls = %d, want 1", len(client.requests))
	}
}

func TestHandleStructuredFallsBackToLexical(t *testing.T) {
	client := &scriptedOracle{replies: []string{"this is not json"}}
	gateway := sheets.NewMockGateway()
	o, _, _ := newTestOrchestrator(t, client, gateway, true)

	res, err := o.HandleStructured(context.Background(), "s1", "hey ara groceries apples 2 at 10 pending")
	if err != nil {
		t.Fatalf("HandleStructured() error = %v", err)
	}
	if res.Item != "apples" {
		t.Fatalf("Item = %q, want apples", res.Item)
	}
}

func TestHandleStructuredTotalParseFailureReturnsSuggestion(t *testing.T) {
	gateway := sheets.NewMockGateway()
	o, sessions, _ := newTestOrchestrator(t, &scriptedOracle{}, gateway, false)

	_, err := o.HandleStructured(context.Background(), "s1", "complete nonsense")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if cerr.Kind != KindFormat {
		t.Fatalf("Kind = %q, want %q", cerr.Kind, KindFormat)
	}
	if !strings.Contains(cerr.Message, "hey ara") {
		t.Fatalf("Message = %q, want trigger phrase in suggestion", cerr.Message)
	}

	sess := sessions.GetOrCreate("s1")
	if len(sess.History) != 1 || sess.History[0].Success {
		t.Fatalf("unexpected history: %+v", sess.History)
	}
}

func TestHandleStructuredValidationFailure(t *testing.T) {
	gateway := sheets.NewMockGateway()
	o, _, _ := newTestOrchestrator(t, &scriptedOracle{}, gateway, false)

	_, err := o.HandleStructured(context.Background(), "s1", "hey ara groceries gold one at 9999999 pending")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if cerr.Kind != KindValidation {
		t.Fatalf("Kind = %q, want %q", cerr.Kind, KindValidation)
	}
	if len(cerr.Details) == 0 || !strings.Contains(cerr.Details[0], "range") {
		t.Fatalf("Details = %v, want out-of-range reason", cerr.Details)
	}
	if gateway.RowCount("groceries") != 0 {
		t.Fatalf("RowCount = %d, want 0 after rejection", gateway.RowCount("groceries"))
	}
}

func TestHandleFreeformWrite(t *testing.T) {
	client := &scriptedOracle{replies: []string{
		"WRITE",
		`{"collection": "groceries", "values": ["oranges", "3"]}`,
	}}
	gateway := sheets.NewMockGateway()
	o, sessions, _ := newTestOrchestrator(t, client, gateway, true)

	res, err := o.HandleFreeform(context.Background(), "s1", "Add 3 kilos of oranges to groceries")
	if err != nil {
		t.Fatalf("HandleFreeform() error = %v", err)
	}
	if res.Type != "action" {
		t.Fatalf("Type = %q, want action", res.Type)
	}
	if !strings.Contains(res.Reply, "groceries") {
		t.Fatalf("Reply = %q, want collection named", res.Reply)
	}
	if gateway.RowCount("groceries") != 1 {
		t.Fatalf("RowCount = %d, want 1", gateway.RowCount("groceries"))
	}

	sess := sessions.GetOrCreate("s1")
	if sess.Context.PreferredTab != "groceries" {
		t.Fatalf("PreferredTab = %q, want groceries", sess.Context.PreferredTab)
	}
}

func TestHandleFreeformRead(t *testing.T) {
	client := &scriptedOracle{replies: []string{
		"READ",
		"groceries",
		"You have oranges and milk on the list.",
	}}
	gateway := sheets.NewMockGateway()
	if err := gateway.AppendRow(context.Background(), "groceries", []string{"oranges", "3"}); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	o, _, _ := newTestOrchestrator(t, client, gateway, true)

	res, err := o.HandleFreeform(context.Background(), "s1", "what is on my grocery list")
	if err != nil {
		t.Fatalf("HandleFreeform() error = %v", err)
	}
	if res.Type != "answer" {
		t.Fatalf("Type = %q, want answer", res.Type)
	}
	if res.Reply != "You have oranges and milk on the list." {
		t.Fatalf("Reply = %q", res.Reply)
	}
	if len(client.requests) != 3 {
		t.Fatalf("oracle calls = %d, want 3", len(client.requests))
	}
	// The answer call carries the fetched rows.
	if !strings.Contains(client.requests[2].Prompt, "oranges") {
		t.Fatalf("answer prompt missing rows: %q", client.requests[2].Prompt)
	}
}

func TestFreeformPromptFallsBackToDefaultTab(t *testing.T) {
	client := &scriptedOracle{replies: []string{
		"WRITE",
		`{"collection": "groceries", "values": ["oranges", "3"]}`,
	}}
	sessions := session.NewStore(time.Minute, 50, "")
	o := New(Config{
		Sessions:    sessions,
		Grammar:     grammar.NewParser("hey ara"),
		AI:          interpret.NewParser(client, 256),
		Classifier:  intent.New(client),
		Validator:   validate.New(validate.Rules{PriceMin: 0.01, PriceMax: 1_000_000}, nil),
		Gateway:     sheets.NewMockGateway(),
		Oracle:      client,
		AIEnabled:   true,
		CallTimeout: time.Second,
		DefaultTab:  "groceries",
	})

	if _, err := o.HandleFreeform(context.Background(), "fresh", "add oranges"); err != nil {
		t.Fatalf("HandleFreeform() error = %v", err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("oracle calls = %d, want 2", len(client.requests))
	}
	if !strings.Contains(client.requests[1].System, "preferred collection is groceries") {
		t.Fatalf("extraction prompt missing default collection hint: %q", client.requests[1].System)
	}
}

func TestHandleFreeformAmbiguousIntent(t *testing.T) {
	client := &scriptedOracle{replies: []string{"MAYBE"}}
	o, sessions, _ := newTestOrchestrator(t, client, sheets.NewMockGateway(), true)

	_, err := o.HandleFreeform(context.Background(), "s1", "do something with the sheet")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if cerr.Kind != KindAmbiguous {
		t.Fatalf("Kind = %q, want %q", cerr.Kind, KindAmbiguous)
	}
	if !strings.Contains(cerr.Message, "MAYBE") {
		t.Fatalf("Message = %q, want literal classifier reply", cerr.Message)
	}

	sess := sessions.GetOrCreate("s1")
	if len(sess.History) != 1 || sess.History[0].Success {
		t.Fatalf("unexpected history: %+v", sess.History)
	}
}

func TestHandleFreeformWriteOutsideUniverse(t *testing.T) {
	client := &scriptedOracle{replies: []string{
		"WRITE",
		`{"collection": "vacations", "values": ["hawaii"]}`,
	}}
	o, _, _ := newTestOrchestrator(t, client, sheets.NewMockGateway(), true)

	_, err := o.HandleFreeform(context.Background(), "s1", "add hawaii to vacations")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if cerr.Kind != KindAIParse {
		t.Fatalf("Kind = %q, want %q", cerr.Kind, KindAIParse)
	}
}

func TestHandleStructuredGatewayFailureSurfaced(t *testing.T) {
	gateway := &failingGateway{appendErr: errors.New("backend exploded")}
	o, sessions, _ := newTestOrchestrator(t, &scriptedOracle{}, gateway, false)

	_, err := o.HandleStructured(context.Background(), "s1", "hey ara groceries apples 2 at 10 pending")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if cerr.Kind != KindGateway {
		t.Fatalf("Kind = %q, want %q", cerr.Kind, KindGateway)
	}
	if !strings.Contains(cerr.Message, "backend exploded") {
		t.Fatalf("Message = %q, want embedded backend error", cerr.Message)
	}

	sess := sessions.GetOrCreate("s1")
	if len(sess.History) != 1 || sess.History[0].Success {
		t.Fatalf("unexpected history: %+v", sess.History)
	}
}

func TestHandleFreeformListCollectionsFailure(t *testing.T) {
	gateway := &failingGateway{listErr: &sheets.StatusError{Code: 503, Body: "down"}}
	o, _, _ := newTestOrchestrator(t, &scriptedOracle{}, gateway, true)

	_, err := o.HandleFreeform(context.Background(), "s1", "what is on my list")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if cerr.Kind != KindGateway {
		t.Fatalf("Kind = %q, want %q", cerr.Kind, KindGateway)
	}
	if !cerr.Retryable {
		t.Fatalf("Retryable = false, want true for 503")
	}
}
