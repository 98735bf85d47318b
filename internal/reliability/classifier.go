package reliability

// IsRetryableHTTPStatus classifies backend HTTP status codes. The core never
// retries on its own; the flag is surfaced to callers so clients can decide
// whether re-speaking the command is worth it.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
