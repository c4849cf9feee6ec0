package models

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// KeySuite covers rate limit key construction.
//
// Justification: key collision attacks could let an attacker drain or
// inspect another identifier's bucket by crafting identifiers containing
// delimiter characters.
type KeySuite struct {
	suite.Suite
}

func TestKeySuite(t *testing.T) {
	suite.Run(t, new(KeySuite))
}

func (s *KeySuite) TestKeyFormat() {
	s.Run("plain identifier", func() {
		key := NewKey(ScopeWebhook, "T0001")
		s.Equal("ratelimit:webhook:T0001", key.String())
	})

	s.Run("colon in identifier is escaped", func() {
		key := NewKey(ScopeWebhook, "team:admin")
		s.NotContains(key.String(), "team:admin")
		s.Contains(key.String(), "team_cadmin")
	})

	s.Run("escape character itself is escaped", func() {
		a := NewKey(ScopeWebhook, "a_c")
		b := NewKey(ScopeWebhook, "a:")
		s.NotEqual(a.String(), b.String())
	})
}

func (s *KeySuite) TestCompositeIdentifier() {
	s.Run("parts joined with delimiter", func() {
		s.Equal("T1:U1", CompositeIdentifier("T1", "U1"))
	})

	s.Run("no crossover between part boundaries", func() {
		s.NotEqual(CompositeIdentifier("T1:x", "y"), CompositeIdentifier("T1", "x:y"))
	})
}

func (s *KeySuite) TestScopeValidity() {
	s.True(ScopeCommand.IsValid())
	s.True(ScopeOAuth.IsValid())
	s.True(ScopeWebhook.IsValid())
	s.False(Scope("admin").IsValid())
}
