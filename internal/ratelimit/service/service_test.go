package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/store/window"
)

type erroringStore struct{}

func (erroringStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("redis: connection refused")
}

func testScopes() map[models.Scope]ScopeConfig {
	return map[models.Scope]ScopeConfig{
		models.ScopeCommand: {Limit: 30, Window: time.Minute},
		models.ScopeWebhook: {Limit: 3, Window: time.Minute},
	}
}

func TestService_New(t *testing.T) {
	t.Run("requires a store", func(t *testing.T) {
		_, err := New(nil, testScopes())
		assert.Error(t, err)
	})

	t.Run("requires scopes", func(t *testing.T) {
		_, err := New(window.NewMemory(), nil)
		assert.Error(t, err)
	})
}

func TestService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("admits within limit and rejects beyond it", func(t *testing.T) {
		svc, err := New(window.NewMemory(), testScopes())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			res := svc.Check(ctx, models.ScopeWebhook, "T0001")
			assert.True(t, res.Allowed, "request %d", i+1)
		}
		res := svc.Check(ctx, models.ScopeWebhook, "T0001")
		assert.False(t, res.Allowed)
		assert.Positive(t, res.RetryAfter)
	})

	t.Run("scopes are independent counters", func(t *testing.T) {
		svc, err := New(window.NewMemory(), testScopes())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			svc.Check(ctx, models.ScopeWebhook, "T0001")
		}
		res := svc.Check(ctx, models.ScopeCommand, "T0001")
		assert.True(t, res.Allowed, "webhook exhaustion must not affect command scope")
	})

	t.Run("unconfigured scope denies by default", func(t *testing.T) {
		svc, err := New(window.NewMemory(), testScopes())
		require.NoError(t, err)

		res := svc.Check(ctx, models.ScopeOAuth, "203.0.113.7")
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Limit)
	})

	t.Run("store failure fails open with full limit reported", func(t *testing.T) {
		svc, err := New(erroringStore{}, testScopes())
		require.NoError(t, err)

		res := svc.Check(ctx, models.ScopeWebhook, "T0001")
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 3, res.Remaining)
	})
}
