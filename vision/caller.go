package vision

import (
	"context"
	"time"

	"transaction-audit-engine/metrics"
	"transaction-audit-engine/models"
	"transaction-audit-engine/parser"

	"github.com/apex/log"
)

// CallState tracks a provider call through its retry lifecycle.
type CallState int

const (
	CallPending CallState = iota
	CallRetrying
	CallDegraded
	CallSucceeded
)

func (s CallState) String() string {
	switch s {
	case CallRetrying:
		return "retrying"
	case CallDegraded:
		return "degraded"
	case CallSucceeded:
		return "succeeded"
	default:
		return "pending"
	}
}

// Caller wraps a provider client with per-call timeouts, bounded retries with
// exponential backoff, and a terminal degrade path. Provider failures never
// escape as errors: an exhausted visibility check reads as unknown and an
// exhausted classification reads as a degraded unknown result, so the
// decision engine always has something conservative to work with.
type Caller struct {
	client      Client
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
}

// NewCaller creates a retrying caller around a provider client.
func NewCaller(client Client, timeout time.Duration, maxRetries int, backoffBase time.Duration) *Caller {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Caller{
		client:      client,
		timeout:     timeout,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

// SourceName exposes the wrapped provider's label.
func (c *Caller) SourceName() string {
	return c.client.SourceName()
}

// invoke drives the Pending -> Retrying -> Degraded | Succeeded state machine
// around one provider operation.
func (c *Caller) invoke(ctx context.Context, op string, call func(context.Context) (string, error)) (string, CallState) {
	state := CallPending
	backoff := c.backoffBase

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		start := time.Now()
		raw, err := call(callCtx)
		cancel()

		if err == nil {
			metrics.ProviderCallsTotal.WithLabelValues(c.client.SourceName(), op, "ok").Inc()
			metrics.ProviderCallDurationSeconds.WithLabelValues(op, "ok").Observe(time.Since(start).Seconds())
			return raw, CallSucceeded
		}

		metrics.ProviderCallsTotal.WithLabelValues(c.client.SourceName(), op, "error").Inc()
		metrics.ProviderCallDurationSeconds.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
		log.WithError(err).WithFields(log.Fields{
			"provider": c.client.SourceName(),
			"op":       op,
			"attempt":  attempt + 1,
			"state":    state.String(),
		}).Warn("vision provider call failed")

		if attempt == c.maxRetries || ctx.Err() != nil {
			break
		}

		state = CallRetrying
		metrics.ProviderRetriesTotal.WithLabelValues(op).Inc()
		select {
		case <-ctx.Done():
			metrics.ProviderDegradedTotal.WithLabelValues(op).Inc()
			return "", CallDegraded
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	metrics.ProviderDegradedTotal.WithLabelValues(op).Inc()
	return "", CallDegraded
}

// Visibility runs the visibility gate for one image. It never returns an
// error: provider failures and unparseable responses degrade to unknown,
// which the decision engine must not treat as clear.
func (c *Caller) Visibility(ctx context.Context, imageRef string) *models.VisibilityResult {
	raw, state := c.invoke(ctx, "visibility", func(callCtx context.Context) (string, error) {
		resp, err := c.client.CheckVisibility(callCtx, imageRef)
		if err != nil {
			return "", err
		}
		// A response that doesn't parse counts as a transient failure.
		if _, perr := parser.ParseVisibility(resp); perr != nil {
			return "", perr
		}
		return resp, nil
	})

	if state != CallSucceeded {
		return &models.VisibilityResult{
			Status: models.VisibilityUnknown,
			Reason: "provider unavailable after retries",
		}
	}

	result, err := parser.ParseVisibility(raw)
	if err != nil {
		// Unreachable in practice: the invoke closure already validated it.
		return &models.VisibilityResult{Status: models.VisibilityUnknown, Reason: "unparseable provider response", Raw: raw}
	}
	return result
}

// Classify runs the content classifier for one clear image. Provider failures
// return a degraded unknown result so the entry is never auto-approved.
func (c *Caller) Classify(ctx context.Context, imageRef string, claimed models.Category) *models.ClassifyResult {
	raw, state := c.invoke(ctx, "classify", func(callCtx context.Context) (string, error) {
		resp, err := c.client.ClassifyContents(callCtx, imageRef, claimed)
		if err != nil {
			return "", err
		}
		if _, perr := parser.ParseClassify(resp); perr != nil {
			return "", perr
		}
		return resp, nil
	})

	if state != CallSucceeded {
		return &models.ClassifyResult{
			MainContent:      models.CategoryUnknown,
			ContaminationPct: 0,
			Degraded:         true,
		}
	}

	result, err := parser.ParseClassify(raw)
	if err != nil {
		return &models.ClassifyResult{MainContent: models.CategoryUnknown, Degraded: true, Raw: raw}
	}
	return result
}
