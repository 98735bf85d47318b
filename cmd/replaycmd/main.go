package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valleyboyzz0024-del/ara-voice/internal/protocol"
)

// replaycmd drives the websocket command channel with synthetic transcripts
// and reports per-turn latency plus the server's rolling stage window.

type options struct {
	baseURL        string
	sessionID      string
	mode           string
	pin            string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

var defaultUtterances = []string{
	"what is on my grocery list",
	"add two bottles of milk to groceries",
	"how much rent is pending",
	"add oranges to groceries",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "replaycmd: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "replaycmd: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "service base URL")
	flag.StringVar(&cfg.sessionID, "session-id", "replay", "session id used for the synthetic turns")
	flag.StringVar(&cfg.mode, "mode", protocol.ModeFreeform, "command mode: structured or freeform")
	flag.StringVar(&cfg.pin, "pin", "", "spoken PIN prepended to the first transcript")
	flag.IntVar(&cfg.turns, "turns", 10, "number of transcripts to replay")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 20000, "timeout waiting for a command_result per turn")
	flag.StringVar(&textsRaw, "texts", "", "transcripts separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.mode != protocol.ModeStructured && cfg.mode != protocol.ModeFreeform {
		return options{}, fmt.Errorf("mode must be structured or freeform")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty transcripts")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	wsURL, err := wsURLForSession(cfg.baseURL, cfg.sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		if i == 0 && strings.TrimSpace(cfg.pin) != "" {
			text = "pin is " + strings.TrimSpace(cfg.pin) + " " + text
		}

		start := time.Now()
		err := conn.WriteJSON(protocol.ClientTranscript{
			Type:      protocol.TypeClientTranscript,
			SessionID: cfg.sessionID,
			Text:      text,
			Mode:      cfg.mode,
			TSMs:      start.UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("turn %d send: %w", i+1, err)
		}

		reply, err := awaitResult(conn, cfg.turnTimeout)
		if err != nil {
			return fmt.Errorf("turn %d await result: %w", i+1, err)
		}
		if cfg.verbose {
			fmt.Printf("replaycmd: turn %d/%d %.0fms text=%q reply=%q\n",
				i+1, cfg.turns, float64(time.Since(start).Milliseconds()), text, reply)
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	return printStageWindow(ctx, cfg.baseURL)
}

func awaitResult(conn *websocket.Conn, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", err
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeCommandResult:
			var res protocol.CommandResult
			if err := json.Unmarshal(data, &res); err != nil {
				return "", err
			}
			return res.Reply, nil
		case protocol.TypeErrorEvent:
			var ev protocol.ErrorEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return "", err
			}
			return "", fmt.Errorf("%s: %s", ev.Code, ev.Detail)
		}
	}
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/command/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func printStageWindow(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return err
	}
	res, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Printf("replaycmd: stage window %s\n", strings.TrimSpace(string(body)))
	return nil
}
