package runtime

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// errCircuitOpen stands in for the original task error while a breaker
// is cooling down; it only ever travels into failure-path resolution.
var errCircuitOpen = errors.New("circuit breaker open")

// retryPolicy is a task node's declared failure behavior.
type retryPolicy struct {
	maxRetries int
	delay      time.Duration
	handling   string // "retry" (default) or "fail"
}

// retryPolicyFor reads the retry attributes of a task node. Nodes without
// attributes get a zero-retry policy, so a single failed attempt goes
// straight to failure-path resolution.
func retryPolicyFor(node domain.Node) retryPolicy {
	p := retryPolicy{handling: "retry"}
	if v := node.StringAttr("errorHandling"); v != "" {
		p.handling = v
	}
	p.maxRetries = intAttr(node, "maxRetries", 0)
	if ms := intAttr(node, "retryDelay", 0); ms > 0 {
		p.delay = time.Duration(ms) * time.Millisecond
	}
	return p
}

// retriesLeft reports whether the given 1-based attempt may be retried.
func (p retryPolicy) retriesLeft(attempt int) bool {
	if p.handling == "fail" {
		return false
	}
	return attempt <= p.maxRetries
}

// backoff waits before the next attempt: the declared delay doubled for
// every retry already spent, honoring context cancellation.
func (e *Engine) backoff(ctx context.Context, p retryPolicy, attempt int) error {
	if p.delay <= 0 {
		return nil
	}
	d := p.delay << (attempt - 1)
	e.logger.Debug("backing off before retry", "attempt", attempt, "delay", d)
	return e.sleep(ctx, d)
}

// breaker tracks consecutive failures of one task node.
type breaker struct {
	consecutive int
	openUntil   time.Time
}

// breakerEnabled reports whether a node opted into circuit breaking.
func breakerEnabled(node domain.Node) bool {
	v, ok := node.Attr("circuitBreaker")
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// breakerOpen reports whether the node's breaker is currently tripped.
// An expired cooldown half-opens the breaker: the next attempt runs.
func (e *Engine) breakerOpen(node domain.Node) bool {
	if !breakerEnabled(node) {
		return false
	}
	b, ok := e.breakers[node.ID]
	if !ok || b.openUntil.IsZero() {
		return false
	}
	if e.now().Before(b.openUntil) {
		return true
	}
	b.openUntil = time.Time{}
	b.consecutive = 0
	return false
}

// breakerFailure records a failed attempt and trips the breaker once the
// threshold is reached. Node attributes override the machine defaults.
func (e *Engine) breakerFailure(node domain.Node) {
	if !breakerEnabled(node) {
		return
	}
	b, ok := e.breakers[node.ID]
	if !ok {
		b = &breaker{}
		e.breakers[node.ID] = b
	}
	b.consecutive++
	threshold := intAttr(node, "breakerThreshold", e.cbThreshold)
	if threshold <= 0 || b.consecutive < threshold {
		return
	}
	timeout := e.cbTimeout
	if ms := intAttr(node, "breakerTimeout", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	b.openUntil = e.now().Add(timeout)
	e.logger.Warn("circuit breaker opened",
		"node", node.ID, "failures", b.consecutive, "until", b.openUntil)
}

// breakerSuccess resets the node's failure streak.
func (e *Engine) breakerSuccess(node domain.Node) {
	if b, ok := e.breakers[node.ID]; ok {
		b.consecutive = 0
		b.openUntil = time.Time{}
	}
}

// intAttr reads a numeric attribute, tolerating the int/float64/string
// representations produced by the various graph loaders.
func intAttr(node domain.Node, name string, fallback int) int {
	v, ok := node.Attr(name)
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}
