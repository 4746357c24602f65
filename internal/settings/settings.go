// Package settings provides the platform configuration consulted by every
// verification and pool operation: consensus threshold, verifier capacity,
// pause switch, allowed value types, platform fee and claim window.
package settings

import (
	"context"
	"slices"
	"time"

	dErrors "sahara/pkg/domain-errors"
)

const (
	// MaxVerifiersCap is the hard ceiling on approvals per beneficiary.
	MaxVerifiersCap = 5
	// MaxAllowedTokens bounds the allowed value-type list.
	MaxAllowedTokens = 10
	// MaxFeeBPS is 100%.
	MaxFeeBPS = 10000
)

// Settings is a snapshot of platform configuration.
type Settings struct {
	VerificationThreshold uint8         `json:"verification_threshold"`
	MaxVerifiers          uint8         `json:"max_verifiers"`
	Paused                bool          `json:"paused"`
	AllowedTokens         []string      `json:"allowed_tokens"`
	PlatformFeeBPS        uint16        `json:"platform_fee_bps"`
	ClaimWindow           time.Duration `json:"claim_window"`
}

// Provider returns the current settings.
type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

// Validate checks the invariants: 1 <= threshold <= max_verifiers <= 5, bounded token list.
func (s Settings) Validate() error {
	if s.MaxVerifiers == 0 || s.MaxVerifiers > MaxVerifiersCap {
		return dErrors.New(dErrors.CodeValidation, "max_verifiers must be between 1 and 5")
	}
	if s.VerificationThreshold == 0 || s.VerificationThreshold > s.MaxVerifiers {
		return dErrors.New(dErrors.CodeValidation, "verification_threshold must be between 1 and max_verifiers")
	}
	if len(s.AllowedTokens) > MaxAllowedTokens {
		return dErrors.New(dErrors.CodeVectorTooLong, "too many allowed tokens")
	}
	if s.PlatformFeeBPS > MaxFeeBPS {
		return dErrors.New(dErrors.CodeValidation, "platform_fee_bps must be at most 10000")
	}
	if s.ClaimWindow <= 0 {
		return dErrors.New(dErrors.CodeValidation, "claim_window must be positive")
	}
	return nil
}

// IsTokenAllowed reports whether a value type may back a pool.
func (s Settings) IsTokenAllowed(token string) bool {
	return slices.Contains(s.AllowedTokens, token)
}

// AllowToken appends a token, checking capacity before the append.
func (s *Settings) AllowToken(token string) error {
	if s.IsTokenAllowed(token) {
		return nil
	}
	if len(s.AllowedTokens) >= MaxAllowedTokens {
		return dErrors.New(dErrors.CodeVectorTooLong, "allowed token list is full")
	}
	s.AllowedTokens = append(s.AllowedTokens, token)
	return nil
}

// Defaults returns the settings used when nothing has been stored.
func Defaults() Settings {
	return Settings{
		VerificationThreshold: 3,
		MaxVerifiers:          MaxVerifiersCap,
		AllowedTokens:         []string{"USDC"},
		ClaimWindow:           90 * 24 * time.Hour,
	}
}

func (s Settings) clone() Settings {
	s.AllowedTokens = slices.Clone(s.AllowedTokens)
	return s
}
