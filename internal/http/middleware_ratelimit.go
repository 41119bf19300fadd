package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/caregrid/caregrid/internal/ports"
	"github.com/caregrid/caregrid/internal/service"
)

// errServiceUnavailable is the public message when the admission store cannot
// be reached. The check fails closed.
var errServiceUnavailable = errors.New("service temporarily unavailable")

// Admitter checks one unit of quota for an operation. Satisfied by
// service.AdmissionController.
type Admitter interface {
	Admit(ctx context.Context, op service.Operation, identity string) (ports.AdmissionDecision, error)
}

// WriteThrottled writes the 429 contract: Retry-After headers plus a JSON
// body telling the client exactly how long to back off.
func WriteThrottled(w http.ResponseWriter, decision ports.AdmissionDecision) {
	wait := decision.WaitSeconds
	if wait < 1 {
		wait = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(wait))
	w.Header().Set("X-Rate-Limit-Retry-After-Seconds", strconv.Itoa(wait))
	WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":      "rate_limited",
		"message":    "too many requests, retry later",
		"retryAfter": wait,
		"level":      "gateway",
	})
}

// admit runs the admission check and writes the outcome on rejection or
// failure. Returns true when the request may proceed. A store failure is a
// 503, never a silent pass.
func admit(w http.ResponseWriter, r *http.Request, ctrl Admitter, op service.Operation, identity string) bool {
	if ctrl == nil {
		return true
	}
	decision, err := ctrl.Admit(r.Context(), op, identity)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "admission_unavailable",
			Err:     errServiceUnavailable,
		})
		return false
	}
	if !decision.Allowed {
		WriteThrottled(w, decision)
		return false
	}
	return true
}

// RateLimitByIP returns a middleware that admits by client IP, for endpoints
// with no caller-supplied identity such as the SSO callback.
func RateLimitByIP(ctrl Admitter, op service.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !admit(w, r, ctrl, op, realIP(r)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// realIP extracts the client IP from RemoteAddr.
// Proxy headers (X-Forwarded-For, X-Real-Ip) are NOT trusted because
// they can be spoofed by attackers to bypass rate limiting.
func realIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
