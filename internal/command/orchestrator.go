package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valleyboyzz0024-del/ara-voice/internal/archive"
	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
	"github.com/valleyboyzz0024-del/ara-voice/internal/intent"
	"github.com/valleyboyzz0024-del/ara-voice/internal/interpret"
	"github.com/valleyboyzz0024-del/ara-voice/internal/observability"
	"github.com/valleyboyzz0024-del/ara-voice/internal/oracle"
	"github.com/valleyboyzz0024-del/ara-voice/internal/policy"
	"github.com/valleyboyzz0024-del/ara-voice/internal/reliability"
	"github.com/valleyboyzz0024-del/ara-voice/internal/session"
	"github.com/valleyboyzz0024-del/ara-voice/internal/sheets"
	"github.com/valleyboyzz0024-del/ara-voice/internal/validate"
)

// Command handling modes, also used as metric labels.
const (
	ModeStructured = "structured"
	ModeFreeform   = "freeform"
)

// Result is the success payload of a handled command.
type Result struct {
	Type     string   `json:"type"`
	Reply    string   `json:"reply"`
	Tab      string   `json:"tab,omitempty"`
	Item     string   `json:"item,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Sessions    *session.Store
	Grammar     *grammar.Parser
	AI          *interpret.Parser
	Classifier  *intent.Classifier
	Validator   *validate.Validator
	Gateway     sheets.Gateway
	Oracle      oracle.Client
	Archive     archive.Store
	Metrics     *observability.Metrics
	Logger      *log.Logger
	AIEnabled   bool
	CallTimeout time.Duration
	DefaultTab  string
}

// Orchestrator runs the command pipeline: parse, classify, validate,
// dispatch, record. Fallbacks are explicit and ordered; no step retries.
type Orchestrator struct {
	sessions    *session.Store
	grammar     *grammar.Parser
	ai          *interpret.Parser
	classifier  *intent.Classifier
	validator   *validate.Validator
	gateway     sheets.Gateway
	oracle      oracle.Client
	archive     archive.Store
	metrics     *observability.Metrics
	log         *log.Logger
	aiEnabled   bool
	callTimeout time.Duration
	defaultTab  string
}

func New(cfg Config) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Orchestrator{
		sessions:    cfg.Sessions,
		grammar:     cfg.Grammar,
		ai:          cfg.AI,
		classifier:  cfg.Classifier,
		validator:   cfg.Validator,
		gateway:     cfg.Gateway,
		oracle:      cfg.Oracle,
		archive:     cfg.Archive,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		aiEnabled:   cfg.AIEnabled,
		callTimeout: cfg.CallTimeout,
		defaultTab:  cfg.DefaultTab,
	}
}

// HandleStructured interprets a fixed-grammar transcript. The parse chain is
// AI parser first (when enabled), then the lexical parser; if both fail the
// returned error carries a corrective suggestion instead of a bare code.
func (o *Orchestrator) HandleStructured(ctx context.Context, sessionID, transcript string) (Result, error) {
	start := time.Now()
	transcript = grammar.NormalizeTranscript(transcript)
	o.sessions.GetOrCreate(sessionID)

	cmd, err := o.parseStructured(ctx, transcript)
	if err != nil {
		suggestion := o.suggest(ctx, transcript)
		o.recordFailure(ctx, sessionID, transcript, suggestion, session.InteractionUnknown)
		o.countCommand(ModeStructured, "parse_error")
		return Result{}, newFormatError(suggestion)
	}

	validateStart := time.Now()
	validated, warnings, err := o.validator.Validate(ctx, cmd)
	o.observeStage(observability.StageValidate, time.Since(validateStart))
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			o.recordFailure(ctx, sessionID, transcript, verr.Error(), session.InteractionUnknown)
			o.countCommand(ModeStructured, "validation_error")
			return Result{}, newValidationError(verr.Reasons)
		}
		o.recordFailure(ctx, sessionID, transcript, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeStructured, "validation_error")
		return Result{}, newValidationError([]string{err.Error()})
	}

	dispatchStart := time.Now()
	values := []string{validated.Item, formatNumber(validated.Qty), formatNumber(validated.Price), validated.Status}
	if err := o.appendRow(ctx, validated.Tab, values); err != nil {
		o.observeStage(observability.StageDispatch, time.Since(dispatchStart))
		o.recordFailure(ctx, sessionID, transcript, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeStructured, "gateway_error")
		return Result{}, err
	}
	o.observeStage(observability.StageDispatch, time.Since(dispatchStart))

	reply := fmt.Sprintf("Added %s %s at %s to %s, status %s.",
		formatNumber(validated.Qty), validated.Item, formatNumber(validated.Price), validated.Tab, validated.Status)
	o.recordSuccess(ctx, sessionID, transcript, reply, session.InteractionAction, validated.Tab, validated.Item)
	o.countCommand(ModeStructured, "success")
	o.observeLatency(start)

	return Result{
		Type:     "action",
		Reply:    reply,
		Tab:      validated.Tab,
		Item:     validated.Item,
		Warnings: warnings,
	}, nil
}

func (o *Orchestrator) parseStructured(ctx context.Context, transcript string) (grammar.Command, error) {
	parseStart := time.Now()
	defer func() {
		o.observeStage(observability.StageParse, time.Since(parseStart))
	}()

	if o.aiEnabled && o.ai != nil {
		callCtx, cancel := o.boundCtx(ctx)
		cmd, err := o.ai.ParseTranscript(callCtx, transcript)
		cancel()
		if err == nil {
			return cmd, nil
		}
		o.log.Printf("ai parse fell back to lexical parser: %v", err)
		if o.metrics != nil {
			o.metrics.ParseFallbacks.Inc()
		}
	}
	return o.grammar.Parse(transcript)
}

func (o *Orchestrator) suggest(ctx context.Context, transcript string) string {
	if o.aiEnabled && o.ai != nil {
		callCtx, cancel := o.boundCtx(ctx)
		defer cancel()
		return o.ai.SuggestCorrection(callCtx, transcript, o.grammar.TriggerPhrase())
	}
	return interpret.StaticSuggestion(o.grammar.TriggerPhrase())
}

// HandleFreeform interprets a natural-language command: classify READ or
// WRITE against the live collection universe, then either answer from rows
// or extract and append one.
func (o *Orchestrator) HandleFreeform(ctx context.Context, sessionID, text string) (Result, error) {
	start := time.Now()
	text = grammar.NormalizeTranscript(text)
	o.sessions.GetOrCreate(sessionID)

	universe, err := o.listCollections(ctx)
	if err != nil {
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, err
	}

	classifyStart := time.Now()
	callCtx, cancel := o.boundCtx(ctx)
	decision, err := o.classifier.Classify(callCtx, text, universe)
	cancel()
	o.observeStage(observability.StageClassify, time.Since(classifyStart))
	if err != nil {
		var amb *intent.AmbiguousError
		if errors.As(err, &amb) {
			o.countIntent("ambiguous")
			o.recordFailure(ctx, sessionID, text, amb.Error(), session.InteractionUnknown)
			o.countCommand(ModeFreeform, "ambiguous_intent")
			return Result{}, newAmbiguousError(amb.Reply)
		}
		o.countOracleError()
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, newGatewayError("classify intent", err, false)
	}
	o.countIntent(strings.ToLower(string(decision)))

	summary := o.sessions.ConversationContext(sessionID)

	var res Result
	switch decision {
	case intent.IntentWrite:
		res, err = o.dispatchWrite(ctx, sessionID, text, universe, summary)
	case intent.IntentRead:
		res, err = o.dispatchRead(ctx, sessionID, text, universe, summary)
	}
	if err != nil {
		return Result{}, err
	}

	o.countCommand(ModeFreeform, "success")
	o.observeLatency(start)
	return res, nil
}

type writeExtraction struct {
	Collection string   `json:"collection"`
	Values     []string `json:"values"`
}

const writeSystemPrompt = `You extract a spreadsheet write from a spoken command.
Valid collections: %s.
%sRespond with exactly one JSON object and nothing else:
{"collection": "<one of the valid collections>", "values": ["cell", "cell", ...]}
Values are the row cells in order. No prose, no markdown.`

func (o *Orchestrator) dispatchWrite(ctx context.Context, sessionID, text string, universe []string, summary session.Summary) (Result, error) {
	dispatchStart := time.Now()
	defer func() {
		o.observeStage(observability.StageDispatch, time.Since(dispatchStart))
	}()

	callCtx, cancel := o.boundCtx(ctx)
	resp, err := o.oracle.Complete(callCtx, oracle.Request{
		System:      fmt.Sprintf(writeSystemPrompt, strings.Join(universe, ", "), o.summaryHint(summary)),
		Prompt:      text,
		Temperature: 0.1,
		MaxTokens:   256,
	})
	cancel()
	if err != nil {
		o.countOracleError()
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, newGatewayError("extract row", err, false)
	}

	var extraction writeExtraction
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &extraction); err != nil {
		o.recordFailure(ctx, sessionID, text, "could not derive a row from the command", session.InteractionUnknown)
		o.countCommand(ModeFreeform, "ai_parse_error")
		return Result{}, newAIParseError("could not derive a row from the command", err)
	}
	collection, ok := matchCollection(extraction.Collection, universe)
	if !ok || len(extraction.Values) == 0 {
		o.recordFailure(ctx, sessionID, text, "could not derive a row from the command", session.InteractionUnknown)
		o.countCommand(ModeFreeform, "ai_parse_error")
		return Result{}, newAIParseError("could not derive a row from the command", nil)
	}

	if err := o.appendRow(ctx, collection, extraction.Values); err != nil {
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, err
	}

	item := extraction.Values[0]
	reply := fmt.Sprintf("Added a row to %s.", collection)
	o.recordSuccess(ctx, sessionID, text, reply, session.InteractionAction, collection, item)
	return Result{Type: "action", Reply: reply, Tab: collection, Item: item}, nil
}

const pickSystemPrompt = `Valid collections: %s.
%sReply with the single collection name most relevant to the user's question. One word, nothing else.`

const answerSystemPrompt = `Answer the user's question using only the rows provided.
Reply in one or two short sentences of plain language.`

func (o *Orchestrator) dispatchRead(ctx context.Context, sessionID, text string, universe []string, summary session.Summary) (Result, error) {
	dispatchStart := time.Now()
	defer func() {
		o.observeStage(observability.StageDispatch, time.Since(dispatchStart))
	}()

	callCtx, cancel := o.boundCtx(ctx)
	picked, err := o.oracle.Complete(callCtx, oracle.Request{
		System:      fmt.Sprintf(pickSystemPrompt, strings.Join(universe, ", "), o.summaryHint(summary)),
		Prompt:      text,
		Temperature: 0,
		MaxTokens:   8,
	})
	cancel()
	if err != nil {
		o.countOracleError()
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, newGatewayError("pick collection", err, false)
	}
	collection, ok := matchCollection(strings.TrimSpace(picked.Text), universe)
	if !ok {
		o.recordFailure(ctx, sessionID, text, "could not pick a collection for the question", session.InteractionUnknown)
		o.countCommand(ModeFreeform, "ai_parse_error")
		return Result{}, newAIParseError("could not pick a collection for the question", nil)
	}

	rows, err := o.readCollection(ctx, collection)
	if err != nil {
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, err
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		rowsJSON = []byte("[]")
	}
	callCtx, cancel = o.boundCtx(ctx)
	answer, err := o.oracle.Complete(callCtx, oracle.Request{
		System:      answerSystemPrompt,
		Prompt:      fmt.Sprintf("Question: %s\nRows from %s:\n%s", text, collection, rowsJSON),
		Temperature: 0.6,
		MaxTokens:   512,
	})
	cancel()
	if err != nil {
		o.countOracleError()
		o.recordFailure(ctx, sessionID, text, err.Error(), session.InteractionUnknown)
		o.countCommand(ModeFreeform, "gateway_error")
		return Result{}, newGatewayError("answer question", err, false)
	}

	reply := strings.TrimSpace(answer.Text)
	o.recordSuccess(ctx, sessionID, text, reply, session.InteractionAnswer, "", "")
	return Result{Type: "answer", Reply: reply, Tab: collection}, nil
}

// Collections lists the backend collection names for clients.
func (o *Orchestrator) Collections(ctx context.Context) ([]string, error) {
	return o.listCollections(ctx)
}

func (o *Orchestrator) listCollections(ctx context.Context) ([]string, error) {
	callCtx, cancel := o.boundCtx(ctx)
	defer cancel()
	names, err := o.gateway.ListCollections(callCtx)
	if err != nil {
		o.countGatewayError("list_collections")
		return nil, newGatewayError("list collections", err, retryableGateway(err))
	}
	return names, nil
}

func (o *Orchestrator) readCollection(ctx context.Context, name string) ([]sheets.Row, error) {
	callCtx, cancel := o.boundCtx(ctx)
	defer cancel()
	rows, err := o.gateway.ReadCollection(callCtx, name)
	if err != nil {
		o.countGatewayError("read_collection")
		return nil, newGatewayError(fmt.Sprintf("read collection %s", name), err, retryableGateway(err))
	}
	return rows, nil
}

func (o *Orchestrator) appendRow(ctx context.Context, name string, values []string) error {
	callCtx, cancel := o.boundCtx(ctx)
	defer cancel()
	if err := o.gateway.AppendRow(callCtx, name, values); err != nil {
		o.countGatewayError("append_row")
		return newGatewayError(fmt.Sprintf("append to %s", name), err, retryableGateway(err))
	}
	return nil
}

func (o *Orchestrator) recordSuccess(ctx context.Context, sessionID, command, response string, kind session.InteractionType, tab, item string) {
	in := session.Interaction{
		Timestamp: time.Now().UTC(),
		Command:   command,
		Response:  response,
		Type:      kind,
		Success:   true,
		Tab:       tab,
		Item:      item,
	}
	o.sessions.RecordInteraction(sessionID, in)
	o.archiveInteraction(ctx, sessionID, in)
}

func (o *Orchestrator) recordFailure(ctx context.Context, sessionID, command, response string, kind session.InteractionType) {
	in := session.Interaction{
		Timestamp: time.Now().UTC(),
		Command:   command,
		Response:  response,
		Type:      kind,
		Success:   false,
	}
	o.sessions.RecordInteraction(sessionID, in)
	o.archiveInteraction(ctx, sessionID, in)
}

// archiveInteraction is best-effort: a failed archive write never fails the
// command, it only logs.
func (o *Orchestrator) archiveInteraction(ctx context.Context, sessionID string, in session.Interaction) {
	if o.archive == nil {
		return
	}
	command, changed := policy.RedactSensitive(in.Command)
	response, respChanged := policy.RedactSensitive(in.Response)
	record := archive.Record{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Command:     command,
		Response:    response,
		Kind:        string(in.Type),
		Success:     in.Success,
		PIIRedacted: changed || respChanged,
		CreatedAt:   in.Timestamp,
	}
	callCtx, cancel := o.boundCtx(ctx)
	defer cancel()
	if err := o.archive.Save(callCtx, record); err != nil {
		o.log.Printf("archive save failed for session %s: %v", sessionID, err)
	}
}

func (o *Orchestrator) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.callTimeout)
}

func (o *Orchestrator) countCommand(mode, outcome string) {
	if o.metrics != nil {
		o.metrics.Commands.WithLabelValues(mode, outcome).Inc()
	}
}

func (o *Orchestrator) countIntent(result string) {
	if o.metrics != nil {
		o.metrics.IntentDecisions.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) countOracleError() {
	if o.metrics != nil {
		o.metrics.OracleErrors.WithLabelValues(o.oracle.Name()).Inc()
	}
}

func (o *Orchestrator) countGatewayError(op string) {
	if o.metrics != nil {
		o.metrics.GatewayErrors.WithLabelValues(op).Inc()
	}
}

func (o *Orchestrator) observeStage(stage string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveStage(stage, d)
	}
}

func (o *Orchestrator) observeLatency(start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveCommandLatency(time.Since(start))
		o.metrics.ObserveStage(observability.StageTotal, time.Since(start))
	}
}

func retryableGateway(err error) bool {
	var status *sheets.StatusError
	if errors.As(err, &status) {
		return reliability.IsRetryableHTTPStatus(status.Code)
	}
	return false
}

func matchCollection(name string, universe []string) (string, bool) {
	name = strings.TrimSpace(strings.Trim(strings.TrimSpace(name), `"'.`))
	for _, candidate := range universe {
		if strings.EqualFold(candidate, name) {
			return candidate, true
		}
	}
	return "", false
}

func (o *Orchestrator) summaryHint(sum session.Summary) string {
	var b strings.Builder
	preferred := sum.PreferredTab
	if preferred == "" {
		preferred = o.defaultTab
	}
	if preferred != "" {
		fmt.Fprintf(&b, "The user's preferred collection is %s.\n", preferred)
	}
	if len(sum.LastActions) > 0 {
		last := sum.LastActions[len(sum.LastActions)-1]
		fmt.Fprintf(&b, "Their last action touched %s.\n", last.Tab)
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stripFences(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		reply = strings.TrimSuffix(strings.TrimSpace(reply), "```")
	}
	return strings.TrimSpace(reply)
}
