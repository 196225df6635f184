package subscription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// Handshaker probes a channel endpoint before a subscription is activated.
// The delivery layer provides the implementation.
type Handshaker interface {
	Handshake(ctx context.Context, ch Channel) error
}

// HandshakerFunc adapts a function to the Handshaker interface.
type HandshakerFunc func(ctx context.Context, ch Channel) error

func (f HandshakerFunc) Handshake(ctx context.Context, ch Channel) error { return f(ctx, ch) }

// Service provides business logic for subscription management and
// criteria matching.
type Service struct {
	repo       Repository
	handshaker Handshaker
	logger     zerolog.Logger

	// production enforces HTTPS-only channel endpoints.
	production       bool
	handshakeTimeout time.Duration

	// parsed caches validated criteria per subscription id so matching
	// stays O(1) per subscription with no late validation failures.
	parsed sync.Map // uuid.UUID -> Criteria
}

// NewService creates a subscription service.
func NewService(repo Repository, handshaker Handshaker, logger zerolog.Logger, production bool, handshakeTimeout time.Duration) *Service {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	return &Service{
		repo:             repo,
		handshaker:       handshaker,
		logger:           logger,
		production:       production,
		handshakeTimeout: handshakeTimeout,
	}
}

// resolveHost is a variable to allow test injection.
var resolveHost = net.LookupHost

func (s *Service) validateEndpointURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return core.NewValidationError("channel.endpoint", "invalid URL: %v", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return core.NewValidationError("channel.endpoint", "scheme must be http or https, got %q", u.Scheme)
	}
	if s.production && scheme != "https" {
		return core.NewValidationError("channel.endpoint", "must use HTTPS in production")
	}

	hostname := u.Hostname()
	lower := strings.ToLower(hostname)
	if lower == "localhost" || lower == "0.0.0.0" || lower == "[::]" || lower == "::" {
		return core.NewValidationError("channel.endpoint", "hostname %q is not allowed", hostname)
	}

	ips, err := resolveHost(hostname)
	if err != nil {
		return core.NewValidationError("channel.endpoint", "cannot resolve hostname %q", hostname)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return core.NewValidationError("channel.endpoint", "resolves to private/reserved IP %s", ipStr)
		}
		// Block the cloud metadata endpoint explicitly.
		if ip.Equal(net.ParseIP("169.254.169.254")) {
			return core.NewValidationError("channel.endpoint", "resolves to cloud metadata IP %s", ipStr)
		}
	}
	return nil
}

// generateSecret produces a cryptographically random 32-byte hex string.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create validates the topic and channel, persists the subscription as
// requested, then runs the handshake probe within a bounded timeout. On
// success the subscription becomes active; on failure it is left in error
// and never active.
func (s *Service) Create(ctx context.Context, sub *Subscription) error {
	criteria, err := ParseCriteria(sub.Topic.Criteria)
	if err != nil {
		return err
	}
	sub.Topic.Kind = criteria.Kind

	if sub.Channel.Endpoint == "" {
		return core.NewValidationError("channel.endpoint", "is required")
	}
	if err := s.validateEndpointURL(sub.Channel.Endpoint); err != nil {
		return err
	}
	if sub.Channel.Secret == "" {
		secret, err := generateSecret()
		if err != nil {
			return fmt.Errorf("generate channel secret: %w", err)
		}
		sub.Channel.Secret = secret
	}

	dup, err := s.repo.ExistsDuplicate(ctx, sub.TenantID, sub.Topic.Criteria, sub.Channel.Endpoint)
	if err != nil {
		return err
	}
	if dup {
		return &core.ConflictError{Msg: "a subscription with the same criteria and endpoint already exists"}
	}

	sub.Status = StatusRequested
	if err := s.repo.Create(ctx, sub); err != nil {
		return err
	}
	s.parsed.Store(sub.ID, criteria)

	return s.probe(ctx, sub)
}

// probe runs the handshake and records the resulting status transition.
func (s *Service) probe(ctx context.Context, sub *Subscription) error {
	hsCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	if err := s.handshaker.Handshake(hsCtx, sub.Channel); err != nil {
		errText := fmt.Sprintf("handshake failed: %v", err)
		sub.Status = StatusError
		sub.ErrorText = &errText
		if uerr := s.repo.UpdateStatus(ctx, sub.ID, StatusError, &errText); uerr != nil {
			return uerr
		}
		s.logger.Warn().
			Str("subscription", sub.ID.String()).
			Str("endpoint", sub.Channel.Endpoint).
			Err(err).
			Msg("subscription handshake failed")
		return nil
	}

	sub.Status = StatusActive
	sub.ErrorText = nil
	if err := s.repo.UpdateStatus(ctx, sub.ID, StatusActive, nil); err != nil {
		return err
	}
	s.logger.Info().
		Str("subscription", sub.ID.String()).
		Str("criteria", sub.Topic.Criteria).
		Msg("subscription activated")
	return nil
}

// Match returns every active subscription of the resource's tenant whose
// topic kind equals the resource's kind and whose criteria evaluate true
// against the canonical fields.
func (s *Service) Match(ctx context.Context, r core.Resource, _ core.MutationKind) ([]*Subscription, error) {
	subs, err := s.repo.ListActiveByTopic(ctx, r.ResourceMeta().TenantID, r.Kind())
	if err != nil {
		return nil, err
	}
	var matched []*Subscription
	for _, sub := range subs {
		if s.criteriaFor(sub).Matches(r) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

// criteriaFor returns the cached parsed criteria, parsing once on a cache
// miss (e.g. rows loaded from the database after a restart). Stored
// criteria were validated at create time, so a parse failure here is a
// programming error.
func (s *Service) criteriaFor(sub *Subscription) Criteria {
	if v, ok := s.parsed.Load(sub.ID); ok {
		return v.(Criteria)
	}
	criteria, err := ParseCriteria(sub.Topic.Criteria)
	if err != nil {
		panic(fmt.Sprintf("subscription: stored criteria %q failed to parse: %v", sub.Topic.Criteria, err))
	}
	s.parsed.Store(sub.ID, criteria)
	return criteria
}

// Get returns a tenant's subscription by id.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Subscription, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns one page of a tenant's subscriptions plus the total count.
func (s *Service) List(ctx context.Context, tenantID string, limit, offset int) ([]*Subscription, int, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}

// Deactivate turns a subscription off. The delivery worker observes the
// transition before starting any new attempt.
func (s *Service) Deactivate(ctx context.Context, tenantID string, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, StatusOff, nil)
}

// Reactivate re-runs the handshake probe for a subscription in error or
// off state. Active again only if the probe succeeds.
func (s *Service) Reactivate(ctx context.Context, tenantID string, id uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusActive {
		return sub, nil
	}
	if err := s.probe(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkError records a terminal delivery failure on the subscription.
// Called by the delivery worker after an attempt is abandoned.
func (s *Service) MarkError(ctx context.Context, id uuid.UUID, errText string) error {
	return s.repo.UpdateStatus(ctx, id, StatusError, &errText)
}

// StatusOf reports the current status of a subscription by id, looked up
// without tenant scoping for the delivery worker's pre-attempt check.
func (s *Service) StatusOf(ctx context.Context, tenantID string, id uuid.UUID) (Status, error) {
	sub, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	return sub.Status, nil
}

// Delete removes a tenant's subscription entirely.
func (s *Service) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.parsed.Delete(id)
	return nil
}
