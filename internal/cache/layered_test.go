package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// failingTier simulates an unreachable shared tier.
type failingTier struct {
	calls atomic.Int64
}

func (f *failingTier) Get(context.Context, string) ([]byte, bool, error) {
	f.calls.Add(1)
	return nil, false, errors.New("connection refused")
}

func (f *failingTier) Set(context.Context, string, []byte, time.Duration) error {
	f.calls.Add(1)
	return errors.New("connection refused")
}

func (f *failingTier) Delete(context.Context, string) error {
	f.calls.Add(1)
	return errors.New("connection refused")
}

// LayeredSuite covers the read-through composition and its degradation policy.
//
// Justification: the two-tier fallback is an availability mechanism; a far
// tier outage must never surface as a request failure, and explicit
// invalidation must defeat any prior TTL.
type LayeredSuite struct {
	suite.Suite
	ctx context.Context
}

func TestLayeredSuite(t *testing.T) {
	suite.Run(t, new(LayeredSuite))
}

func (s *LayeredSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *LayeredSuite) TestReadThrough() {
	s.Run("near tier hit skips far tier and loader", func() {
		near, far := NewMemory(), NewMemory()
		l := NewLayered(near, far)
		l.Set(s.ctx, Key("installations", "T1"), []byte("v1"), time.Minute)

		value, err := l.GetOrLoad(s.ctx, Key("installations", "T1"), time.Minute, func(context.Context) ([]byte, error) {
			s.Fail("loader must not run on a near hit")
			return nil, nil
		})
		s.Require().NoError(err)
		s.Equal([]byte("v1"), value)
	})

	s.Run("far tier hit repopulates near tier", func() {
		near, far := NewMemory(), NewMemory()
		l := NewLayered(near, far)
		s.Require().NoError(far.Set(s.ctx, "installations:T1", []byte("v1"), time.Minute))

		value, ok := l.Get(s.ctx, "installations:T1", time.Minute)
		s.True(ok)
		s.Equal([]byte("v1"), value)

		nearValue, ok, _ := near.Get(s.ctx, "installations:T1")
		s.True(ok, "far hit should populate the near tier")
		s.Equal([]byte("v1"), nearValue)
	})

	s.Run("full miss invokes loader and populates both tiers", func() {
		near, far := NewMemory(), NewMemory()
		l := NewLayered(near, far)

		value, err := l.GetOrLoad(s.ctx, "installations:T2", time.Minute, func(context.Context) ([]byte, error) {
			return []byte("loaded"), nil
		})
		s.Require().NoError(err)
		s.Equal([]byte("loaded"), value)

		_, ok, _ := near.Get(s.ctx, "installations:T2")
		s.True(ok)
		_, ok, _ = far.Get(s.ctx, "installations:T2")
		s.True(ok)
	})

	s.Run("loader error propagates and nothing is cached", func() {
		l := NewLayered(NewMemory(), NewMemory())

		_, err := l.GetOrLoad(s.ctx, "installations:T3", time.Minute, func(context.Context) ([]byte, error) {
			return nil, errors.New("store down")
		})
		s.Error(err)

		_, ok := l.Get(s.ctx, "installations:T3", time.Minute)
		s.False(ok)
	})
}

func (s *LayeredSuite) TestDegradation() {
	s.Run("far tier errors are swallowed, not propagated", func() {
		l := NewLayered(NewMemory(), &failingTier{})

		value, err := l.GetOrLoad(s.ctx, "installations:T1", time.Minute, func(context.Context) ([]byte, error) {
			return []byte("from-store"), nil
		})
		s.Require().NoError(err)
		s.Equal([]byte("from-store"), value)

		// Near tier still works.
		cached, ok := l.Get(s.ctx, "installations:T1", time.Minute)
		s.True(ok)
		s.Equal([]byte("from-store"), cached)
	})

	s.Run("nil far tier degrades to in-process only", func() {
		l := NewLayered(NewMemory(), nil)
		l.Set(s.ctx, "k", []byte("v"), time.Minute)

		value, ok := l.Get(s.ctx, "k", time.Minute)
		s.True(ok)
		s.Equal([]byte("v"), value)
		l.Delete(s.ctx, "k")
	})
}

func (s *LayeredSuite) TestInvalidation() {
	s.Run("delete removes from both tiers regardless of TTL", func() {
		near, far := NewMemory(), NewMemory()
		l := NewLayered(near, far)
		l.Set(s.ctx, "channels:T1:default", []byte("C123"), time.Hour)

		l.Delete(s.ctx, "channels:T1:default")

		_, ok := l.Get(s.ctx, "channels:T1:default", time.Hour)
		s.False(ok, "get after invalidation must miss")
		_, ok, _ = far.Get(s.ctx, "channels:T1:default")
		s.False(ok)
	})

	s.Run("namespaces are isolated", func() {
		l := NewLayered(NewMemory(), NewMemory())
		l.Set(s.ctx, Key("installations", "T1"), []byte("a"), time.Minute)
		l.Set(s.ctx, Key("channels", "T1"), []byte("b"), time.Minute)

		l.Delete(s.ctx, Key("installations", "T1"))

		_, ok := l.Get(s.ctx, Key("channels", "T1"), time.Minute)
		s.True(ok, "deleting one namespace must not touch another")
	})
}

func (s *LayeredSuite) TestSingleflight() {
	s.Run("concurrent loads for one key collapse to a single loader call", func() {
		l := NewLayered(NewMemory(), NewMemory())
		var loads atomic.Int64
		release := make(chan struct{})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				value, err := l.GetOrLoad(s.ctx, "installations:T9", time.Minute, func(context.Context) ([]byte, error) {
					loads.Add(1)
					<-release
					return []byte("once"), nil
				})
				s.NoError(err)
				s.Equal([]byte("once"), value)
			}()
		}

		// Give the goroutines time to pile onto the flight group.
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		s.Equal(int64(1), loads.Load())
	})
}

func TestKey(t *testing.T) {
	t.Run("joins namespace and segments", func(t *testing.T) {
		if got := Key("installations", "T0001"); got != "installations:T0001" {
			t.Fatalf("unexpected key %q", got)
		}
	})

	t.Run("escapes delimiters so segments cannot collide", func(t *testing.T) {
		a := Key("channels", "T1:x", "y")
		b := Key("channels", "T1", "x:y")
		if a == b {
			t.Fatalf("distinct segments produced colliding key %q", a)
		}
	})
}
