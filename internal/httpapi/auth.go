package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/valleyboyzz0024-del/ara-voice/internal/command"
)

// pinPrefix is the literal spoken-PIN escape hatch. It is only recognized at
// the very start of the command text.
const pinPrefix = "pin is "

// authorize checks the two accepted authentication methods and returns the
// command text with any spoken PIN stripped. With no secrets configured the
// boundary is open.
func (s *Server) authorize(r *http.Request, sessionID, commandText string) (string, error) {
	if s.cfg.BearerToken == "" && s.cfg.VoicePIN == "" {
		return commandText, nil
	}

	if s.bearerMatches(r) {
		s.sessions.SetAuth(sessionID, map[string]string{"method": "bearer"}, "")
		return commandText, nil
	}

	if stripped, ok := s.spokenPINMatches(commandText); ok {
		s.sessions.SetAuth(sessionID, map[string]string{"method": "pin"}, "")
		return stripped, nil
	}

	if s.sessions.IsAuthenticated(sessionID) {
		return commandText, nil
	}

	return "", command.NewAuthError()
}

func (s *Server) bearerMatches(r *http.Request) bool {
	if s.cfg.BearerToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.cfg.BearerToken)) == 1
}

// spokenPINMatches recognizes "pin is <PIN>" at the start of the command and
// returns the remainder of the text on a match.
func (s *Server) spokenPINMatches(commandText string) (string, bool) {
	if s.cfg.VoicePIN == "" {
		return "", false
	}
	lower := strings.ToLower(strings.TrimSpace(commandText))
	rest, ok := strings.CutPrefix(lower, pinPrefix)
	if !ok {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(fields[0]), []byte(s.cfg.VoicePIN)) != 1 {
		return "", false
	}
	return strings.Join(fields[1:], " "), true
}

func (s *Server) keyMatches(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	if s.cfg.BearerToken != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.BearerToken)) == 1 {
		return true
	}
	return s.cfg.VoicePIN != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.VoicePIN)) == 1
}
