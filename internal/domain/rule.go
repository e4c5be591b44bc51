package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownRule    = errors.New("unknown rule kind")
	ErrMalformedValue = errors.New("malformed threshold")
)

type RuleKind string

const (
	RulePriceAbove RuleKind = "price_above"
	RulePriceBelow RuleKind = "price_below"
)

func ParseRuleKind(input string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "price_above", "above", ">":
		return RulePriceAbove, nil
	case "price_below", "below", "<":
		return RulePriceBelow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRule, input)
	}
}

func (k RuleKind) Symbol() string {
	switch k {
	case RulePriceAbove:
		return ">"
	case RulePriceBelow:
		return "<"
	default:
		return "?"
	}
}

// EvaluateRule reports whether price satisfies the rule. Unknown kinds never match.
func EvaluateRule(kind RuleKind, threshold, price decimal.Decimal) (bool, error) {
	switch kind {
	case RulePriceAbove:
		return price.GreaterThan(threshold), nil
	case RulePriceBelow:
		return price.LessThan(threshold), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownRule, string(kind))
	}
}

// ParseThreshold parses a stored threshold. Thresholds must be positive.
func ParseThreshold(value string) (decimal.Decimal, error) {
	threshold, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedValue, value)
	}
	if !threshold.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrMalformedValue, value)
	}
	return threshold, nil
}

// Matches evaluates the alert's stored condition against price.
func (a Alert) Matches(price decimal.Decimal) (bool, error) {
	threshold, err := ParseThreshold(a.Value)
	if err != nil {
		return false, err
	}
	return EvaluateRule(a.Rule, threshold, price)
}
