package service

import (
	"strings"

	"github.com/pkg/errors"

	"voucher-node/internal/ledger"
)

// ErrNotFound mirrors the ledger's not-found result at the service boundary.
var ErrNotFound = ledger.ErrNotFound

// ErrInvalidTransition is returned when the status state machine forbids the
// requested move.
var ErrInvalidTransition = errors.New("status transition not allowed")

// ValidationError rejects malformed input before any cryptographic or network
// work, carrying every reason found.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}
