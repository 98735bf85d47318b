package grammar

import "fmt"

// Command is a fully parsed structured inventory update.
// String fields are lower-cased; Qty and Price are finite and > 0.
type Command struct {
	Tab    string  `json:"tab"`
	Item   string  `json:"item"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
	Status string  `json:"status"`
}

// FormatError reports a transcript that does not match the fixed grammar.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %s", e.Reason)
}

func newFormatError(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}
