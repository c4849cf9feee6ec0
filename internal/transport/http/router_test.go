package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stockalert-pro/stockalert-slack-app/internal/cache"
	ingestmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/ports"
	ingestservice "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/service"
	ledgerstore "github.com/stockalert-pro/stockalert-slack-app/internal/ledger/store"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/health"
	rlmiddleware "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/middleware"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	rlservice "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/service"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/store/window"
	"github.com/stockalert-pro/stockalert-slack-app/internal/signature"
	tenantmodels "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
	tenantservice "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/service"
	channelstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/channel"
	installationstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/installation"
)

const (
	testTeamID        = "T0001"
	testWebhookSecret = "whsec_test"
	testSigningSecret = "slack_signing_test"
)

// =============================================================================
// HTTP Transport Test Suite
// =============================================================================
// Justification: The transport is the contract with both upstreams. These
// tests verify status code mapping for every webhook terminal state and the
// slash command surface, end to end over in-memory components.

type fakeDeliverer struct {
	calls int
	err   error
}

func (d *fakeDeliverer) PostMessage(context.Context, string, string, ports.Message) error {
	d.calls++
	return d.err
}

type fakeRenderer struct{}

func (fakeRenderer) Render(*ingestmodels.Event) ports.Message {
	return ports.Message{Text: "alert"}
}

type fakeExchanger struct {
	result *ports.OAuthResult
	err    error
}

func (e *fakeExchanger) Exchange(context.Context, string) (*ports.OAuthResult, error) {
	return e.result, e.err
}

type TransportSuite struct {
	suite.Suite
	server    *httptest.Server
	tenants   *tenantservice.Service
	deliverer *fakeDeliverer
	exchanger *fakeExchanger
	ctx       context.Context
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limiter, err := rlservice.New(window.NewMemory(), map[rlmodels.Scope]rlservice.ScopeConfig{
		rlmodels.ScopeCommand: {Limit: 10, Window: time.Minute},
		rlmodels.ScopeOAuth:   {Limit: 5, Window: 10 * time.Minute},
		rlmodels.ScopeWebhook: {Limit: 10, Window: time.Minute},
	}, rlservice.WithLogger(logger))
	s.Require().NoError(err)

	s.tenants, err = tenantservice.New(
		installationstore.NewMemory(),
		channelstore.NewMemory(),
		cache.NewLayered(cache.NewMemory(), nil),
		tenantservice.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.deliverer = &fakeDeliverer{}
	pipeline, err := ingestservice.New(limiter, s.tenants, ledgerstore.NewMemory(),
		fakeRenderer{}, s.deliverer, ingestservice.WithLogger(logger))
	s.Require().NoError(err)

	s.exchanger = &fakeExchanger{result: &ports.OAuthResult{
		TeamID: "T0099", TeamName: "New Team", BotToken: "xoxb-new",
	}}

	handler := NewHandler(pipeline, s.tenants, limiter, s.exchanger, testSigningSecret, logger)
	router := NewRouter(handler, health.New("test"), rlmiddleware.New(limiter, logger), logger, RouterConfig{})
	s.server = httptest.NewServer(router)
}

func (s *TransportSuite) TearDownTest() {
	s.server.Close()
}

func (s *TransportSuite) installTenant(withChannel bool) {
	inst, err := tenantmodels.NewInstallation(testTeamID, "Acme", "xoxb-token", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(inst.Connect("sk_live_1", testWebhookSecret, "wh_1", time.Now()))
	s.Require().NoError(s.tenants.SaveInstallation(s.ctx, inst))
	if withChannel {
		s.Require().NoError(s.tenants.SetDefaultChannel(s.ctx, testTeamID, "C0001", "#alerts"))
	}
}

func webhookBody(alertID string) []byte {
	return fmt.Appendf(nil, `{"event":"alert.triggered","timestamp":"2026-08-30T14:05:00Z",`+
		`"data":{"alert_id":%q,"symbol":"AAPL","condition":"price_above",`+
		`"current_value":231.02,"triggered_at":"2026-08-30T14:04:58Z"}}`, alertID)
}

func (s *TransportSuite) postWebhook(teamID string, body []byte, sig string) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodPost,
		s.server.URL+"/webhooks/stockalert/"+teamID, strings.NewReader(string(body)))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(signatureHeader, sig)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, string(respBody)
}

func (s *TransportSuite) TestWebhookEndpoint() {
	s.Run("delivered", func() {
		s.installTenant(true)
		body := webhookBody("al_1")
		resp, respBody := s.postWebhook(testTeamID, body, signature.Sign(body, testWebhookSecret))
		s.Equal(http.StatusOK, resp.StatusCode)
		s.JSONEq(`{"success":true}`, respBody)
	})

	s.Run("duplicate", func() {
		body := webhookBody("al_1")
		resp, respBody := s.postWebhook(testTeamID, body, signature.Sign(body, testWebhookSecret))
		s.Equal(http.StatusOK, resp.StatusCode)
		s.JSONEq(`{"success":true,"duplicate":true}`, respBody)
		s.Equal(1, s.deliverer.calls)
	})

	s.Run("prefixed signature form accepted", func() {
		body := webhookBody("al_2")
		resp, _ := s.postWebhook(testTeamID, body, "sha256="+signature.Sign(body, testWebhookSecret))
		s.Equal(http.StatusOK, resp.StatusCode)
	})

	s.Run("bad signature is 401", func() {
		body := webhookBody("al_3")
		resp, _ := s.postWebhook(testTeamID, body, signature.Sign(body, "wrong_secret"))
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("missing signature is 401", func() {
		body := webhookBody("al_3")
		resp, _ := s.postWebhook(testTeamID, body, "")
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("unknown tenant is 404", func() {
		body := webhookBody("al_4")
		resp, _ := s.postWebhook("T_MISSING", body, signature.Sign(body, testWebhookSecret))
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("invalid schema is 400", func() {
		body := []byte(`{"event":"alert.triggered"}`)
		resp, _ := s.postWebhook(testTeamID, body, signature.Sign(body, testWebhookSecret))
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("disconnected tenant is 503", func() {
		s.Require().NoError(s.tenants.Disconnect(s.ctx, testTeamID))
		body := webhookBody("al_5")
		resp, _ := s.postWebhook(testTeamID, body, signature.Sign(body, testWebhookSecret))
		s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func (s *TransportSuite) TestWebhookNoDefaultChannel() {
	s.installTenant(false)

	body := webhookBody("al_nodest")
	resp, respBody := s.postWebhook(testTeamID, body, signature.Sign(body, testWebhookSecret))

	// Discovered after the ledger insert, so this is a delivery failure,
	// not the 503 reserved for a tenant without a webhook secret.
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Contains(respBody, "delivery_failed")
	s.Equal(0, s.deliverer.calls)
}

func (s *TransportSuite) TestWebhookRateLimit() {
	s.installTenant(true)
	var last *http.Response
	for i := 0; i < 11; i++ {
		body := webhookBody(fmt.Sprintf("al_%d", i))
		last, _ = s.postWebhook(testTeamID, body, signature.Sign(body, testWebhookSecret))
	}
	s.Equal(http.StatusTooManyRequests, last.StatusCode)
	s.NotEmpty(last.Header.Get("Retry-After"))
	s.Equal("10", last.Header.Get("X-RateLimit-Limit"))
}

func (s *TransportSuite) postCommand(text string, sign bool) (*http.Response, string) {
	values := url.Values{}
	values.Set("team_id", testTeamID)
	values.Set("user_id", "U0001")
	values.Set("channel_id", "C0002")
	values.Set("channel_name", "trading")
	values.Set("command", "/stockalert")
	values.Set("text", text)
	body := values.Encode()

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/slack/commands", strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set(slackTimestampHeader, ts)
		req.Header.Set(slackSignatureHeader, signature.SignCommand(testSigningSecret, ts, []byte(body)))
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, string(respBody)
}

func (s *TransportSuite) TestCommandEndpoint() {
	s.Run("unsigned command is 401", func() {
		resp, _ := s.postCommand("status", false)
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("status without install", func() {
		resp, body := s.postCommand("status", true)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(body, "not installed")
	})

	s.Run("channel subcommand sets the default", func() {
		s.installTenant(false)
		resp, body := s.postCommand("channel", true)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(body, "C0002")

		binding, err := s.tenants.ResolveDefaultChannel(s.ctx, testTeamID)
		s.Require().NoError(err)
		s.Equal("C0002", binding.ChannelID)
	})

	s.Run("status reports connection and channel", func() {
		resp, body := s.postCommand("status", true)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(body, "connected")
		s.Contains(body, "C0002")
	})

	s.Run("disconnect clears the integration", func() {
		resp, body := s.postCommand("disconnect", true)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(body, "disconnected")

		inst, err := s.tenants.ResolveInstallation(s.ctx, testTeamID)
		s.Require().NoError(err)
		s.False(inst.Connected())
	})

	s.Run("unknown subcommand gets usage", func() {
		resp, body := s.postCommand("bogus", true)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(body, "Usage")
	})
}

func (s *TransportSuite) TestCommandRateLimit() {
	s.installTenant(true)
	var last *http.Response
	for i := 0; i < 11; i++ {
		last, _ = s.postCommand("status", true)
	}
	s.Equal(http.StatusTooManyRequests, last.StatusCode)
	s.NotEmpty(last.Header.Get("Retry-After"))
	s.Equal("10", last.Header.Get("X-RateLimit-Limit"))
}

func (s *TransportSuite) TestOAuthCallback() {
	s.Run("exchanges code and installs the workspace", func() {
		resp, err := s.server.Client().Get(s.server.URL + "/slack/oauth/callback?code=auth_code")
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)

		inst, err := s.tenants.ResolveInstallation(s.ctx, "T0099")
		s.Require().NoError(err)
		s.Equal("xoxb-new", inst.BotToken)
	})

	s.Run("reinstall keeps integration credentials", func() {
		inst, err := s.tenants.ResolveInstallation(s.ctx, "T0099")
		s.Require().NoError(err)
		s.Require().NoError(inst.Connect("sk_live_2", "whsec_2", "wh_2", time.Now()))
		s.Require().NoError(s.tenants.SaveInstallation(s.ctx, inst))

		s.exchanger.result = &ports.OAuthResult{TeamID: "T0099", TeamName: "New Team", BotToken: "xoxb-rotated"}
		resp, err := s.server.Client().Get(s.server.URL + "/slack/oauth/callback?code=auth_code_2")
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)

		inst, err = s.tenants.ResolveInstallation(s.ctx, "T0099")
		s.Require().NoError(err)
		s.Equal("xoxb-rotated", inst.BotToken)
		s.True(inst.Connected(), "reinstall must not sever the integration")
	})

	s.Run("missing code is 400", func() {
		resp, err := s.server.Client().Get(s.server.URL + "/slack/oauth/callback")
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("denied authorization is 400", func() {
		resp, err := s.server.Client().Get(s.server.URL + "/slack/oauth/callback?error=access_denied")
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *TransportSuite) TestHealthEndpoints() {
	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		resp, err := s.server.Client().Get(s.server.URL + path)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode, path)
	}
}
