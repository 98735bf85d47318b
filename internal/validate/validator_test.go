package validate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
)

func testRules() Rules {
	return Rules{PriceMin: 0.01, PriceMax: 1_000_000}
}

func TestValidateAcceptsGoodRecord(t *testing.T) {
	v := New(testRules(), nil)
	cmd, warnings, err := v.Validate(context.Background(), grammar.Command{
		Tab: "Groceries", Item: " Apples ", Qty: 2.5, Price: 1200, Status: "Pending",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if warnings != nil {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if cmd.Tab != "groceries" || cmd.Item != "apples" || cmd.Status != "pending" {
		t.Fatalf("record not normalized: %+v", cmd)
	}
}

func TestValidateReportsAllViolationsTogether(t *testing.T) {
	v := New(testRules(), nil)
	_, _, err := v.Validate(context.Background(), grammar.Command{
		Tab: "", Item: "", Qty: -1, Price: 0, Status: "",
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if len(ve.Reasons) < 4 {
		t.Fatalf("Reasons = %v, want at least 4 distinct violations", ve.Reasons)
	}
}

func TestValidatePriceOutOfRangeIsDistinct(t *testing.T) {
	v := New(Rules{PriceMin: 1, PriceMax: 100}, nil)
	_, _, err := v.Validate(context.Background(), grammar.Command{
		Tab: "groceries", Item: "apples", Qty: 1, Price: 5000, Status: "pending",
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if len(ve.Reasons) != 1 || !strings.Contains(ve.Reasons[0], "out of plausible range") {
		t.Fatalf("Reasons = %v, want a single out-of-range reason", ve.Reasons)
	}
}

func TestValidateStatusAllowList(t *testing.T) {
	v := New(Rules{PriceMin: 0.01, PriceMax: 1000, AllowedStatuses: []string{"pending", "paid"}}, nil)

	if _, _, err := v.Validate(context.Background(), grammar.Command{
		Tab: "g", Item: "i", Qty: 1, Price: 5, Status: "PAID",
	}); err != nil {
		t.Fatalf("allow-listed status rejected: %v", err)
	}

	_, _, err := v.Validate(context.Background(), grammar.Command{
		Tab: "g", Item: "i", Qty: 1, Price: 5, Status: "vanished",
	})
	if err == nil {
		t.Fatalf("status outside allow-list should fail")
	}
}

func TestValidateEmptyAllowListAcceptsAnyStatus(t *testing.T) {
	v := New(testRules(), nil)
	if _, _, err := v.Validate(context.Background(), grammar.Command{
		Tab: "g", Item: "i", Qty: 1, Price: 5, Status: "whatever works",
	}); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

type staticCorrector struct {
	out      grammar.Command
	warnings []string
}

func (c *staticCorrector) Correct(_ context.Context, _ grammar.Command) (grammar.Command, []string) {
	return c.out, c.warnings
}

func TestValidateRunsCorrectorAfterRules(t *testing.T) {
	corrected := grammar.Command{Tab: "groceries", Item: "apple", Qty: 2, Price: 5, Status: "pending"}
	v := New(testRules(), &staticCorrector{out: corrected, warnings: []string{"singularized"}})

	got, warnings, err := v.Validate(context.Background(), grammar.Command{
		Tab: "groceries", Item: "apples", Qty: 2, Price: 5, Status: "pending",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != corrected {
		t.Fatalf("corrected record not returned: %+v", got)
	}
	if len(warnings) != 1 || warnings[0] != "singularized" {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestValidateDiscardsRuleViolatingCorrection(t *testing.T) {
	v := New(Rules{PriceMin: 0.01, PriceMax: 100, AllowedStatuses: []string{"pending"}},
		&staticCorrector{
			out:      grammar.Command{Tab: "groceries", Item: "apples", Qty: 2, Price: 5000, Status: "bogus"},
			warnings: []string{"standardized"},
		})

	input := grammar.Command{Tab: "groceries", Item: "apples", Qty: 2, Price: 5, Status: "pending"}
	got, warnings, err := v.Validate(context.Background(), input)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != input {
		t.Fatalf("record = %+v, want pre-correction %+v", got, input)
	}
	if warnings != nil {
		t.Fatalf("warnings = %v, want none with the correction discarded", warnings)
	}
}

func TestValidateSkipsCorrectorOnInvalidRecord(t *testing.T) {
	v := New(testRules(), &staticCorrector{out: grammar.Command{Tab: "x"}})
	_, _, err := v.Validate(context.Background(), grammar.Command{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
}
