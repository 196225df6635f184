package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ngsanogo/keneyapp/internal/domain/subscription"
	"github.com/ngsanogo/keneyapp/internal/platform/fhir"
)

// Webhook headers carried on every delivery.
const (
	HeaderSignature      = "X-Webhook-Signature"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderSubscription   = "X-Webhook-Subscription"
)

// webhookPayload is the outbound body: the full changed resource plus the
// mutation-kind tag.
type webhookPayload struct {
	Mutation string            `json:"mutation"`
	Resource fhir.WireResource `json:"resource"`
}

// handshakePayload is the probe body sent before a subscription activates.
type handshakePayload struct {
	Type string `json:"type"`
}

// Worker executes delivery jobs: it serializes the resource, signs the
// payload with the channel secret, posts it, and applies the retry policy.
// Exported fields may be tuned before the queue starts; defaults are a 10s
// call timeout, 3 attempts, 30s backoff base, and a 30m cap.
type Worker struct {
	registry *subscription.Service
	attempts AttemptStore
	client   *http.Client
	logger   zerolog.Logger

	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// NewWorker creates a delivery worker.
func NewWorker(registry *subscription.Service, attempts AttemptStore, logger zerolog.Logger, callTimeout time.Duration) *Worker {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Worker{
		registry:    registry,
		attempts:    attempts,
		client:      &http.Client{Timeout: callTimeout},
		logger:      logger,
		MaxAttempts: 3,
		BackoffBase: 30 * time.Second,
		BackoffCap:  30 * time.Minute,
	}
}

// Run drives every attempt for one job to a terminal result. Attempts are
// strictly sequential: the next one starts only after the previous result
// is recorded.
func (w *Worker) Run(ctx context.Context, job Job) {
	body, err := json.Marshal(webhookPayload{
		Mutation: string(job.Mutation),
		Resource: fhir.ToWire(job.Resource),
	})
	if err != nil {
		w.record(ctx, job.Attempt, ResultAbandoned, fmt.Sprintf("marshal payload: %v", err))
		return
	}
	idempotencyKey := IdempotencyKey(job.Sub.ID, job.Attempt.ResourceRef, job.Attempt.ResourceVersion)

	attempt := job.Attempt
	for {
		// A deactivation must be observed before any new attempt starts.
		if !w.subscriptionActive(ctx, job) {
			w.record(ctx, attempt, ResultAbandoned, "subscription deactivated")
			return
		}

		postErr := w.post(ctx, job.Sub.Channel, body, idempotencyKey, job.Sub.ID.String())

		// An in-flight call may finish after a deactivation; its result
		// is discarded rather than recorded as delivered or failed.
		if !w.subscriptionActive(ctx, job) {
			w.record(ctx, attempt, ResultAbandoned, "subscription deactivated mid-flight")
			return
		}

		if postErr == nil {
			now := time.Now().UTC()
			attempt.Result = ResultDelivered
			attempt.DeliveredAt = &now
			attempt.LastError = nil
			if err := w.attempts.Update(ctx, attempt); err != nil {
				w.logger.Error().Err(err).Str("attempt", attempt.ID.String()).Msg("failed to mark attempt delivered")
			}
			w.logger.Info().
				Str("subscription", job.Sub.ID.String()).
				Str("resource", attempt.ResourceRef).
				Int("attempt", attempt.AttemptNumber).
				Msg("webhook delivered")
			return
		}

		if attempt.AttemptNumber >= w.MaxAttempts {
			w.record(ctx, attempt, ResultAbandoned, postErr.Error())
			errText := fmt.Sprintf("delivery abandoned after %d attempts: %v", attempt.AttemptNumber, postErr)
			if err := w.registry.MarkError(ctx, job.Sub.ID, errText); err != nil {
				w.logger.Error().Err(err).Str("subscription", job.Sub.ID.String()).Msg("failed to mark subscription error")
			}
			w.logger.Warn().
				Str("subscription", job.Sub.ID.String()).
				Str("resource", attempt.ResourceRef).
				Msg("delivery abandoned, subscription set to error")
			return
		}

		w.record(ctx, attempt, ResultFailed, postErr.Error())

		delay := w.backoff(attempt.AttemptNumber)
		next := &Attempt{
			SubscriptionID:  attempt.SubscriptionID,
			TenantID:        attempt.TenantID,
			ResourceRef:     attempt.ResourceRef,
			ResourceVersion: attempt.ResourceVersion,
			Mutation:        attempt.Mutation,
			AttemptNumber:   attempt.AttemptNumber + 1,
			ScheduledAt:     time.Now().UTC().Add(delay),
			Result:          ResultPending,
			CreatedAt:       time.Now().UTC(),
		}
		if err := w.attempts.Create(ctx, next); err != nil {
			w.logger.Error().Err(err).Str("subscription", job.Sub.ID.String()).Msg("failed to schedule retry attempt")
			return
		}
		attempt = next

		select {
		case <-ctx.Done():
			w.record(ctx, attempt, ResultAbandoned, "delivery worker stopped")
			return
		case <-time.After(delay):
		}
	}
}

func (w *Worker) subscriptionActive(ctx context.Context, job Job) bool {
	status, err := w.registry.StatusOf(ctx, job.Sub.TenantID, job.Sub.ID)
	if err != nil {
		w.logger.Error().Err(err).Str("subscription", job.Sub.ID.String()).Msg("failed to read subscription status")
		return false
	}
	return status == subscription.StatusActive
}

func (w *Worker) record(ctx context.Context, a *Attempt, result Result, errText string) {
	a.Result = result
	a.LastError = &errText
	if err := w.attempts.Update(ctx, a); err != nil {
		w.logger.Error().Err(err).Str("attempt", a.ID.String()).Msg("failed to record attempt result")
	}
}

func (w *Worker) post(ctx context.Context, ch subscription.Channel, body []byte, idempotencyKey, subscriptionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/fhir+json")
	req.Header.Set(HeaderSignature, "sha256="+SignPayload(body, ch.Secret))
	req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	req.Header.Set(HeaderSubscription, subscriptionID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	return nil
}

// backoff returns the delay before the next attempt: exponential from the
// base, capped, with up to 50% random jitter added.
func (w *Worker) backoff(attemptNumber int) time.Duration {
	d := w.BackoffBase << (attemptNumber - 1)
	if d > w.BackoffCap || d <= 0 {
		d = w.BackoffCap
	}
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

// Handshake implements subscription.Handshaker: it posts a signed probe to
// the channel endpoint and succeeds on any 2xx response.
func (w *Worker) Handshake(ctx context.Context, ch subscription.Channel) error {
	body, _ := json.Marshal(handshakePayload{Type: "handshake"})
	if err := w.post(ctx, ch, body, "", ""); err != nil {
		return &subscriptionProbeError{err: err}
	}
	return nil
}

// subscriptionProbeError keeps handshake failures distinguishable in logs
// without leaking transport detail to API clients.
type subscriptionProbeError struct{ err error }

func (e *subscriptionProbeError) Error() string { return e.err.Error() }
func (e *subscriptionProbeError) Unwrap() error { return e.err }
