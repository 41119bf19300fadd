package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caregrid/caregrid/internal/ports"
)

// Operation identifies a rate-limited sensitive operation.
type Operation string

const (
	// OpLogin throttles credential checks, keyed by email.
	OpLogin Operation = "login"
	// OpOAuthCallback throttles SSO callbacks, keyed by client IP.
	OpOAuthCallback Operation = "oauth"
	// OpPasswordReset throttles reset requests, keyed by email.
	OpPasswordReset Operation = "password-reset"
)

// AdmissionOptions groups dependencies for AdmissionController.
type AdmissionOptions struct {
	Store    ports.AdmissionStore
	Policies map[Operation]ports.AdmissionPolicy
	// Enabled is the explicit operational switch. When false, every request
	// is allowed and the store is never consulted. This is configuration,
	// not a fallback: store failures still propagate when enabled.
	Enabled bool
	Logger  *slog.Logger
}

// AdmissionController applies per-operation token-bucket policies against the
// shared store so every gateway replica observes the same quota.
type AdmissionController struct {
	store    ports.AdmissionStore
	policies map[Operation]ports.AdmissionPolicy
	enabled  bool
	logger   *slog.Logger
}

// NewAdmissionController constructs an AdmissionController.
func NewAdmissionController(opts AdmissionOptions) *AdmissionController {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdmissionController{
		store:    opts.Store,
		policies: opts.Policies,
		enabled:  opts.Enabled,
		logger:   logger.With("component", "admission"),
	}
}

// Admit checks whether one unit of the operation's quota is available for the
// identity. Identities are lower-cased so "Doc@X" and "doc@x" share a bucket.
func (c *AdmissionController) Admit(
	ctx context.Context,
	op Operation,
	identity string,
) (ports.AdmissionDecision, error) {
	if !c.enabled {
		return ports.AdmissionDecision{Allowed: true}, nil
	}
	if identity == "" {
		return ports.AdmissionDecision{}, fmt.Errorf("admission identity for %q is empty", op)
	}

	policy, ok := c.policies[op]
	if !ok {
		return ports.AdmissionDecision{}, fmt.Errorf("no admission policy for operation %q", op)
	}

	key := string(op) + ":" + strings.ToLower(identity)
	decision, err := c.store.TryConsume(ctx, key, policy)
	if err != nil {
		return ports.AdmissionDecision{}, fmt.Errorf("admission check %q: %w", key, err)
	}

	if !decision.Allowed {
		c.logger.WarnContext(ctx, "request throttled",
			"operation", string(op),
			"wait_seconds", decision.WaitSeconds,
		)
	}
	return decision, nil
}
