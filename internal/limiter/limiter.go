// Package limiter throttles password logins per (subject, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login is currently allowed and, if not, the retry-after.
	Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure count after a successful login.
	Success(ctx context.Context, subject string, ipHash []byte) error
	// Failure records a failed attempt and reports whether it triggered a lockout.
	Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
}

// Policy sets the lockout thresholds.
type Policy struct {
	Window   time.Duration // failures older than this no longer count
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy locks a subject out for 15 minutes after 5 failures within 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// Subject prefixes keep beneficiary and caseworker counters apart.
const (
	BeneficiaryPrefix = ""
	CaseworkerPrefix  = "cw:"
)

// Subject builds the limiter key for a login email.
func Subject(prefix, email string) string {
	return prefix + strings.ToLower(strings.TrimSpace(email))
}

// HashIP returns a stable hash of a client address so raw addresses are never stored.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
