package voucher

import "fmt"

// Strategy identifies how a voucher's face value is backed. It is part of the
// signed payload, so it can never change after issuance.
type Strategy string

const (
	// StrategyFixed vouchers are backed one-to-one and cannot be split.
	StrategyFixed Strategy = "FIXED"
	// StrategyMinimal vouchers are splittable at a coarse granularity.
	StrategyMinimal Strategy = "MINIMAL"
	// StrategyProportional vouchers are splittable at a fine granularity that
	// scales with the face value.
	StrategyProportional Strategy = "PROPORTIONAL"
)

// Splittable reports whether a voucher with this strategy may be split into
// smaller denominations.
func (s Strategy) Splittable() bool {
	return s == StrategyMinimal || s == StrategyProportional
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyFixed, StrategyMinimal, StrategyProportional:
		return true
	}
	return false
}

// ParseStrategy converts a wire tag back into a Strategy.
func ParseStrategy(tag string) (Strategy, error) {
	s := Strategy(tag)
	if !s.Valid() {
		return "", fmt.Errorf("unknown backing strategy %q", tag)
	}
	return s, nil
}
