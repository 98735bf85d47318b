// Package validate checks parsed commands against schema and range rules.
// All violated rules are reported together so a caller can show every defect
// in one response.
package validate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/valleyboyzz0024-del/ara-voice/internal/grammar"
)

// ValidationError aggregates every violated rule, in rule order.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Reasons, "; "))
}

// Corrector is the optional AI standardization pass. Implementations must
// return the input unchanged on any internal failure.
type Corrector interface {
	Correct(ctx context.Context, cmd grammar.Command) (grammar.Command, []string)
}

// Rules carries the configured validation policy.
type Rules struct {
	PriceMin float64
	PriceMax float64
	// AllowedStatuses empty means any non-empty status passes.
	AllowedStatuses []string
}

type Validator struct {
	rules     Rules
	corrector Corrector
}

// New builds a validator. corrector may be nil to skip the correction pass.
func New(rules Rules, corrector Corrector) *Validator {
	return &Validator{rules: rules, corrector: corrector}
}

// Validate checks the candidate record and returns the normalized command
// plus any correction warnings. On failure the error is a *ValidationError
// listing every violation.
func (v *Validator) Validate(ctx context.Context, cmd grammar.Command) (grammar.Command, []string, error) {
	cmd = normalize(cmd)

	if reasons := v.violations(cmd); len(reasons) > 0 {
		return grammar.Command{}, nil, &ValidationError{Reasons: reasons}
	}

	if v.corrector == nil {
		return cmd, nil, nil
	}

	// Correction failures are non-fatal: Correct returns its input unchanged
	// when anything goes wrong.
	corrected, warnings := v.corrector.Correct(ctx, cmd)
	corrected = normalize(corrected)

	// A corrected record must itself satisfy the rules; one that does not is
	// discarded in favor of the already-valid input.
	if len(v.violations(corrected)) > 0 {
		return cmd, nil, nil
	}
	return corrected, warnings, nil
}

func normalize(cmd grammar.Command) grammar.Command {
	cmd.Tab = strings.ToLower(strings.TrimSpace(cmd.Tab))
	cmd.Item = strings.ToLower(strings.TrimSpace(cmd.Item))
	cmd.Status = strings.ToLower(strings.TrimSpace(cmd.Status))
	return cmd
}

func (v *Validator) violations(cmd grammar.Command) []string {
	var reasons []string
	if cmd.Tab == "" {
		reasons = append(reasons, "tab is required")
	}
	if cmd.Item == "" {
		reasons = append(reasons, "item is required")
	}
	if math.IsNaN(cmd.Qty) || math.IsInf(cmd.Qty, 0) || cmd.Qty <= 0 {
		reasons = append(reasons, fmt.Sprintf("qty %v must be a finite number greater than zero", cmd.Qty))
	}
	if math.IsNaN(cmd.Price) || math.IsInf(cmd.Price, 0) || cmd.Price <= 0 {
		reasons = append(reasons, fmt.Sprintf("price %v must be a finite number greater than zero", cmd.Price))
	} else if cmd.Price < v.rules.PriceMin || cmd.Price > v.rules.PriceMax {
		// Out-of-range is a hard rejection, never a silent clamp.
		reasons = append(reasons, fmt.Sprintf("price %v out of plausible range [%v, %v]", cmd.Price, v.rules.PriceMin, v.rules.PriceMax))
	}
	if cmd.Status == "" {
		reasons = append(reasons, "status is required")
	} else if len(v.rules.AllowedStatuses) > 0 && !containsFold(v.rules.AllowedStatuses, cmd.Status) {
		reasons = append(reasons, fmt.Sprintf("status %q is not one of %s", cmd.Status, strings.Join(v.rules.AllowedStatuses, ", ")))
	}
	return reasons
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
