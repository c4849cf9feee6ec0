package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stockalert-pro/stockalert-slack-app/internal/cache"
	ingestmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/ports"
	ledgerstore "github.com/stockalert-pro/stockalert-slack-app/internal/ledger/store"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	rlservice "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/service"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/store/window"
	"github.com/stockalert-pro/stockalert-slack-app/internal/signature"
	tenantmodels "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
	tenantservice "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/service"
	channelstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/channel"
	installationstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/installation"
	dErrors "github.com/stockalert-pro/stockalert-slack-app/pkg/domainerrors"
)

const (
	testTeamID = "T0001"
	testSecret = "whsec_test"
)

// =============================================================================
// Ingestion Pipeline Test Suite
// =============================================================================
// Justification: The pipeline's stage ordering is the product's core
// guarantee: floods never reach the verifier, unauthenticated events are
// never recorded, and ledger-before-delivery is what makes upstream retries
// safe. These scenarios run the full pipeline over real in-memory components
// with only rendering and delivery faked.

type capturingDeliverer struct {
	calls    int
	err      error
	channels []string
}

func (d *capturingDeliverer) PostMessage(_ context.Context, _, channelID string, _ ports.Message) error {
	d.calls++
	d.channels = append(d.channels, channelID)
	return d.err
}

type staticRenderer struct{}

func (staticRenderer) Render(event *ingestmodels.Event) ports.Message {
	return ports.Message{Text: fmt.Sprintf("%s alert for %s", event.Type, event.Data.Symbol)}
}

type PipelineSuite struct {
	suite.Suite
	svc       *Service
	ledger    *ledgerstore.InMemoryStore
	tenants   *tenantservice.Service
	deliverer *capturingDeliverer
	ctx       context.Context
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limiter, err := rlservice.New(window.NewMemory(), map[rlmodels.Scope]rlservice.ScopeConfig{
		rlmodels.ScopeWebhook: {Limit: 3, Window: time.Minute},
	}, rlservice.WithLogger(logger))
	s.Require().NoError(err)

	installations := installationstore.NewMemory()
	channels := channelstore.NewMemory()
	s.tenants, err = tenantservice.New(installations, channels,
		cache.NewLayered(cache.NewMemory(), nil),
		tenantservice.WithLogger(logger))
	s.Require().NoError(err)

	s.ledger = ledgerstore.NewMemory()
	s.deliverer = &capturingDeliverer{}

	s.svc, err = New(limiter, s.tenants, s.ledger, staticRenderer{}, s.deliverer,
		WithLogger(logger))
	s.Require().NoError(err)
}

// installTenant creates a connected workspace, optionally with a default channel.
func (s *PipelineSuite) installTenant(withChannel bool) {
	inst, err := tenantmodels.NewInstallation(testTeamID, "Acme", "xoxb-token", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(inst.Connect("sk_live_1", testSecret, "wh_1", time.Now()))
	s.Require().NoError(s.tenants.SaveInstallation(s.ctx, inst))
	if withChannel {
		s.Require().NoError(s.tenants.SetDefaultChannel(s.ctx, testTeamID, "C0001", "#alerts"))
	}
}

func eventBody(alertID string) []byte {
	return fmt.Appendf(nil, `{"event":"alert.triggered","timestamp":"2026-08-30T14:05:00Z",`+
		`"data":{"alert_id":%q,"symbol":"AAPL","condition":"price_above",`+
		`"threshold":230.5,"current_value":231.02,"triggered_at":"2026-08-30T14:04:58Z"}}`, alertID)
}

func signedHeader(body []byte) string {
	return signature.Sign(body, testSecret)
}

func (s *PipelineSuite) TestFreshEventDelivered() {
	s.installTenant(true)
	body := eventBody("al_1")

	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))

	s.Equal(StatusDelivered, outcome.Status)
	s.False(outcome.Duplicate)
	s.NoError(outcome.Err)
	s.Equal(1, s.deliverer.calls)
	s.Equal([]string{"C0001"}, s.deliverer.channels)

	record, err := s.ledger.FindByID(s.ctx, "alert.triggered:al_1:2026-08-30T14:04:58Z")
	s.Require().NoError(err)
	s.NotNil(record.ProcessedAt, "delivered event must be stamped processed")
}

func (s *PipelineSuite) TestDuplicateShortCircuits() {
	s.installTenant(true)
	body := eventBody("al_1")
	header := signedHeader(body)

	first := s.svc.HandleWebhook(s.ctx, testTeamID, body, header)
	s.Require().Equal(StatusDelivered, first.Status)

	second := s.svc.HandleWebhook(s.ctx, testTeamID, body, header)
	s.Equal(StatusDuplicate, second.Status)
	s.True(second.Duplicate)
	s.NoError(second.Err)
	s.Equal(1, s.deliverer.calls, "duplicate must not deliver again")
}

func (s *PipelineSuite) TestNoDefaultChannel() {
	s.installTenant(false)
	body := eventBody("al_1")

	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))

	s.Equal(StatusFailed, outcome.Status)
	s.True(dErrors.HasCode(outcome.Err, dErrors.CodeDeliveryFailed))
	s.Zero(s.deliverer.calls)

	record, err := s.ledger.FindByID(s.ctx, "alert.triggered:al_1:2026-08-30T14:04:58Z")
	s.Require().NoError(err)
	s.Nil(record.ProcessedAt, "failed delivery leaves the event recorded but unprocessed")
}

func (s *PipelineSuite) TestWrongSecretRejected() {
	s.installTenant(true)
	body := eventBody("al_1")
	forged := signature.Sign(body, "whsec_other")

	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, forged)

	s.Equal(StatusUnauthenticated, outcome.Status)
	s.True(dErrors.HasCode(outcome.Err, dErrors.CodeUnauthenticated))
	s.Zero(s.deliverer.calls)

	_, err := s.ledger.FindByID(s.ctx, "alert.triggered:al_1:2026-08-30T14:04:58Z")
	s.Error(err, "unauthenticated events must never reach the ledger")
}

func (s *PipelineSuite) TestRateLimitBeforeEverything() {
	s.installTenant(true)
	for i := 0; i < 3; i++ {
		body := eventBody(fmt.Sprintf("al_%d", i))
		outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))
		s.Require().Equal(StatusDelivered, outcome.Status)
	}

	body := eventBody("al_over")
	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))

	s.Equal(StatusRateLimited, outcome.Status)
	s.Require().NotNil(outcome.RateLimit)
	s.Positive(outcome.RateLimit.RetryAfter)

	_, err := s.ledger.FindByID(s.ctx, "alert.triggered:al_over:2026-08-30T14:04:58Z")
	s.Error(err, "rate limited events touch no further state")
}

func (s *PipelineSuite) TestUnknownTenant() {
	body := eventBody("al_1")

	outcome := s.svc.HandleWebhook(s.ctx, "T_MISSING", body, signedHeader(body))

	s.Equal(StatusUnknownTenant, outcome.Status)
	s.True(dErrors.HasCode(outcome.Err, dErrors.CodeNotFound))
	s.Zero(s.deliverer.calls)
}

func (s *PipelineSuite) TestDisconnectedTenantNotConfigured() {
	s.installTenant(true)
	s.Require().NoError(s.tenants.Disconnect(s.ctx, testTeamID))

	body := eventBody("al_1")
	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))

	s.Equal(StatusNotConfigured, outcome.Status)
	s.True(dErrors.HasCode(outcome.Err, dErrors.CodeNotConfigured))
}

func (s *PipelineSuite) TestMalformedPayload() {
	s.installTenant(true)
	body := []byte(`{"event":"alert.triggered"}`)

	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))

	s.Equal(StatusInvalid, outcome.Status)
	s.True(dErrors.HasCode(outcome.Err, dErrors.CodeInvalidInput))
}

func (s *PipelineSuite) TestDeliveryFailure() {
	s.installTenant(true)
	s.deliverer.err = errors.New("slack: channel_not_found")
	body := eventBody("al_1")

	outcome := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))

	s.Equal(StatusFailed, outcome.Status)
	s.True(dErrors.HasCode(outcome.Err, dErrors.CodeDeliveryFailed))

	record, err := s.ledger.FindByID(s.ctx, "alert.triggered:al_1:2026-08-30T14:04:58Z")
	s.Require().NoError(err)
	s.Nil(record.ProcessedAt)

	// The upstream retries the whole request; the ledger makes it a no-op.
	s.deliverer.err = nil
	retry := s.svc.HandleWebhook(s.ctx, testTeamID, body, signedHeader(body))
	s.Equal(StatusDuplicate, retry.Status)
	s.Equal(1, s.deliverer.calls, "retry after failure must not re-deliver")
}
