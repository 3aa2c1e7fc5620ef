// Package validate runs composable rule checks against signed vouchers. Every
// check runs on every call — nothing short-circuits — so one pass surfaces all
// violations at once for user-facing diagnostics.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"voucher-node/internal/sign"
	"voucher-node/internal/voucher"
)

// Result is the verdict of a validation pass.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func resultOf(merr *multierror.Error) Result {
	if merr.ErrorOrNil() == nil {
		return Result{Valid: true}
	}
	reasons := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		reasons = append(reasons, err.Error())
	}
	return Result{Valid: false, Errors: reasons}
}

// Validate checks a signed voucher's signature, expiry, and structural
// completeness, and reports every violation found.
func Validate(env *voucher.Envelope) Result {
	return validateAt(env, time.Now())
}

func validateAt(env *voucher.Envelope, now time.Time) Result {
	var merr *multierror.Error
	if env == nil || env.Secret == nil {
		merr = multierror.Append(merr, fmt.Errorf("no voucher supplied"))
		return resultOf(merr)
	}
	s := env.Secret
	if strings.TrimSpace(s.ID) == "" {
		merr = multierror.Append(merr, fmt.Errorf("voucher identity is blank"))
	}
	if strings.TrimSpace(s.Issuer) == "" {
		merr = multierror.Append(merr, fmt.Errorf("issuer identity is blank"))
	}
	if strings.TrimSpace(s.Unit) == "" {
		merr = multierror.Append(merr, fmt.Errorf("currency unit is blank"))
	}
	if s.FaceValue == 0 {
		merr = multierror.Append(merr, fmt.Errorf("face value is not positive"))
	}
	if len(env.PublicKey) == 0 {
		merr = multierror.Append(merr, fmt.Errorf("issuer public key is empty"))
	}
	if !sign.Verify(s, env.Signature, env.PublicKey) {
		merr = multierror.Append(merr, fmt.Errorf("signature does not verify"))
	}
	if s.ExpiredAt(now) {
		merr = multierror.Append(merr, fmt.Errorf("voucher expired at %s", time.Unix(s.Expiry, 0).UTC().Format(time.RFC3339)))
	}
	return resultOf(merr)
}

// ValidateWithIssuer runs the full check and additionally requires that the
// voucher was issued by expectedIssuer. This is the single place issuer
// identity is compared for redemption authorization.
func ValidateWithIssuer(env *voucher.Envelope, expectedIssuer string) Result {
	return validateWithIssuerAt(env, expectedIssuer, time.Now())
}

func validateWithIssuerAt(env *voucher.Envelope, expectedIssuer string, now time.Time) Result {
	res := validateAt(env, now)
	if env == nil || env.Secret == nil {
		return res
	}
	if env.Secret.Issuer != expectedIssuer {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(
			"voucher issued by %q, redeemable only with %q", env.Secret.Issuer, expectedIssuer))
	}
	return res
}

// CheckSignature verifies only the signature, for cheap periodic re-checks.
func CheckSignature(env *voucher.Envelope) bool {
	if env == nil || env.Secret == nil {
		return false
	}
	return sign.Verify(env.Secret, env.Signature, env.PublicKey)
}

// CheckExpiry reports whether the voucher is still live, for cheap periodic
// re-checks that skip full validation.
func CheckExpiry(env *voucher.Envelope) bool {
	if env == nil || env.Secret == nil {
		return false
	}
	return !env.Secret.ExpiredAt(time.Now())
}
