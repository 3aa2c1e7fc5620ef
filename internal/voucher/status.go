package voucher

import "fmt"

// Status is the lifecycle state of an issued voucher. It is deliberately not a
// field of Secret: the secret is immutable once signed, while the status keeps
// changing and lives in the replicated ledger records instead.
type Status string

const (
	StatusIssued   Status = "ISSUED"
	StatusRedeemed Status = "REDEEMED"
	StatusRevoked  Status = "REVOKED"
	StatusExpired  Status = "EXPIRED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIssued, StatusRedeemed, StatusRevoked, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusRedeemed || s == StatusRevoked || s == StatusExpired
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Re-asserting the current state is allowed so that repeated updates are
// idempotent.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == StatusIssued
}

// ParseStatus converts a wire tag back into a Status.
func ParseStatus(tag string) (Status, error) {
	s := Status(tag)
	if !s.Valid() {
		return "", fmt.Errorf("unknown voucher status %q", tag)
	}
	return s, nil
}
