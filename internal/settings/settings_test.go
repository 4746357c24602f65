package settings

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "sahara/pkg/domain-errors"
)

type SettingsSuite struct {
	suite.Suite
}

func TestSettingsSuite(t *testing.T) {
	suite.Run(t, new(SettingsSuite))
}

func (s *SettingsSuite) TestValidate() {
	s.Run("defaults are valid", func() {
		s.NoError(Defaults().Validate())
	})

	s.Run("threshold above max verifiers", func() {
		st := Defaults()
		st.VerificationThreshold = 4
		st.MaxVerifiers = 3
		s.True(dErrors.HasCode(st.Validate(), dErrors.CodeValidation))
	})

	s.Run("max verifiers above hard cap", func() {
		st := Defaults()
		st.MaxVerifiers = 6
		s.Error(st.Validate())
	})

	s.Run("zero threshold", func() {
		st := Defaults()
		st.VerificationThreshold = 0
		s.Error(st.Validate())
	})
}

func (s *SettingsSuite) TestAllowToken() {
	st := Defaults()
	st.AllowedTokens = nil
	for i := 0; i < MaxAllowedTokens; i++ {
		s.Require().NoError(st.AllowToken(fmt.Sprintf("T%d", i)))
	}
	s.NoError(st.AllowToken("T0"), "re-adding an allowed token is a no-op")

	err := st.AllowToken("overflow")
	s.True(dErrors.HasCode(err, dErrors.CodeVectorTooLong))
	s.Len(st.AllowedTokens, MaxAllowedTokens)
}

func (s *SettingsSuite) TestInMemory() {
	ctx := context.Background()
	m := NewInMemory(Defaults())

	cur, err := m.Current(ctx)
	s.Require().NoError(err)
	s.False(cur.Paused)

	// Mutating a snapshot does not leak into the provider
	cur.AllowedTokens[0] = "MUTATED"
	again, _ := m.Current(ctx)
	s.Equal("USDC", again.AllowedTokens[0])

	s.Require().NoError(m.SetPaused(ctx, true))
	cur, _ = m.Current(ctx)
	s.True(cur.Paused)

	bad := Defaults()
	bad.MaxVerifiers = 0
	s.Error(m.Save(ctx, bad))
}
