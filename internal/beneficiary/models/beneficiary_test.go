package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
)

// Justification: the verification state machine and the bounded approval set are
// pure logic; store and service tests rely on these rules being exact.
type BeneficiaryModelSuite struct {
	suite.Suite
	now time.Time
}

func TestBeneficiaryModelSuite(t *testing.T) {
	suite.Run(t, new(BeneficiaryModelSuite))
}

func (s *BeneficiaryModelSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
}

func validProfile() Profile {
	return Profile{
		Name:           "Ayse Demir",
		PhoneNumber:    "+905551112233",
		Location:       Location{Country: "TR", Region: "Hatay", City: "Antakya", Latitude: 36.2, Longitude: 36.16},
		FamilySize:     4,
		DamageSeverity: 8,
	}
}

func (s *BeneficiaryModelSuite) newBeneficiary(capacity uint8) *Beneficiary {
	b, err := NewBeneficiary(
		id.BeneficiaryID(uuid.New()), id.ActorID(uuid.New()), "TR-2026-01",
		validProfile(), capacity, id.ActorID(uuid.New()), s.now,
	)
	s.Require().NoError(err)
	return b
}

func actor() id.ActorID { return id.ActorID(uuid.New()) }

func (s *BeneficiaryModelSuite) TestThresholdExactness() {
	b := s.newBeneficiary(5)
	for i := 0; i < 2; i++ {
		a := actor()
		s.Require().NoError(b.CanApprove(a, 5))
		promoted, err := b.ApplyApproval(a, 3, s.now)
		s.Require().NoError(err)
		s.False(promoted)
		s.Equal(StatusPending, b.Status)
	}

	third := actor()
	s.Require().NoError(b.CanApprove(third, 5))
	promoted, err := b.ApplyApproval(third, 3, s.now)
	s.Require().NoError(err)
	s.True(promoted)
	s.Equal(StatusVerified, b.Status)
	s.Require().NotNil(b.VerifiedAt)

	err = b.CanApprove(actor(), 5)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
}

func (s *BeneficiaryModelSuite) TestApprovalGuards() {
	s.Run("duplicate approver", func() {
		b := s.newBeneficiary(5)
		a := actor()
		_, err := b.ApplyApproval(a, 3, s.now)
		s.Require().NoError(err)
		s.True(dErrors.HasCode(b.CanApprove(a, 5), dErrors.CodeDuplicateApproval))
	})

	s.Run("platform limit below set capacity", func() {
		b := s.newBeneficiary(5)
		_, _ = b.ApplyApproval(actor(), 5, s.now)
		_, _ = b.ApplyApproval(actor(), 5, s.now)
		s.True(dErrors.HasCode(b.CanApprove(actor(), 2), dErrors.CodeMaxVerifiersReached))
	})

	s.Run("set capacity is never exceeded", func() {
		b := s.newBeneficiary(2)
		_, _ = b.ApplyApproval(actor(), 5, s.now)
		_, _ = b.ApplyApproval(actor(), 5, s.now)
		s.True(dErrors.HasCode(b.CanApprove(actor(), 5), dErrors.CodeMaxVerifiersReached))
		_, err := b.ApplyApproval(actor(), 5, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeMaxVerifiersReached))
		s.Equal(2, b.Approvals.Len())
	})

	s.Run("flagged and rejected", func() {
		b := s.newBeneficiary(5)
		b.ApplyFlag(actor(), "duplicate identity suspected", s.now)
		s.True(dErrors.HasCode(b.CanApprove(actor(), 5), dErrors.CodeBeneficiaryFlagged))
		b.ApplyReview(false, "confirmed duplicate", s.now)
		s.True(dErrors.HasCode(b.CanApprove(actor(), 5), dErrors.CodeCannotVerifyRejected))
	})
}

func (s *BeneficiaryModelSuite) TestFlagAndReview() {
	s.Run("flag requires reason within bounds", func() {
		b := s.newBeneficiary(5)
		s.True(dErrors.HasCode(b.CanFlag(""), dErrors.CodeFlagReasonRequired))
		s.True(dErrors.HasCode(b.CanFlag(strings.Repeat("x", 501)), dErrors.CodeStringTooLong))
		s.NoError(b.CanFlag(strings.Repeat("x", 500)))
	})

	s.Run("review only from flagged", func() {
		b := s.newBeneficiary(5)
		s.True(dErrors.HasCode(b.CanReview(""), dErrors.CodeInvalidStatusTransition))
	})

	s.Run("approve clears flag and approvals", func() {
		b := s.newBeneficiary(5)
		_, _ = b.ApplyApproval(actor(), 3, s.now)
		b.ApplyFlag(actor(), "address mismatch", s.now)
		s.Require().NoError(b.CanReview("verified on site"))
		b.ApplyReview(true, "verified on site", s.now)

		s.Equal(StatusPending, b.Status)
		s.Empty(b.FlaggedReason)
		s.Nil(b.FlaggedBy)
		s.Equal(0, b.Approvals.Len())
		s.Equal(uint8(5), b.Approvals.Capacity())
	})

	s.Run("verified cannot be flagged", func() {
		b := s.newBeneficiary(1)
		_, _ = b.ApplyApproval(actor(), 1, s.now)
		s.True(dErrors.HasCode(b.CanFlag("late report"), dErrors.CodeAlreadyVerified))
	})
}

func (s *BeneficiaryModelSuite) TestProfileValidation() {
	cases := []struct {
		name   string
		mutate func(*Profile)
		code   dErrors.Code
	}{
		{"family size zero", func(p *Profile) { p.FamilySize = 0 }, dErrors.CodeInvalidFamilySize},
		{"family size 51", func(p *Profile) { p.FamilySize = 51 }, dErrors.CodeInvalidFamilySize},
		{"damage 11", func(p *Profile) { p.DamageSeverity = 11 }, dErrors.CodeInvalidDamageSeverity},
		{"latitude", func(p *Profile) { p.Location.Latitude = 90.5 }, dErrors.CodeInvalidLocation},
		{"longitude", func(p *Profile) { p.Location.Longitude = -181 }, dErrors.CodeInvalidLocation},
		{"long name", func(p *Profile) { p.Name = strings.Repeat("n", 101) }, dErrors.CodeStringTooLong},
		{"country", func(p *Profile) { p.Location.Country = "TUR" }, dErrors.CodeStringTooLong},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			p := validProfile()
			tc.mutate(&p)
			s.True(dErrors.HasCode(p.Validate(), tc.code), "got %v", p.Validate())
		})
	}
}

func (s *BeneficiaryModelSuite) TestUpdateProfileGuard() {
	b := s.newBeneficiary(5)
	s.NoError(b.CanUpdateProfile())
	b.ApplyFlag(actor(), "check", s.now)
	s.True(dErrors.HasCode(b.CanUpdateProfile(), dErrors.CodeBeneficiaryFlagged))
}

func TestApprovalSet_JSONRoundTripRechecksInvariants(t *testing.T) {
	set, err := NewApprovalSet(2)
	require.NoError(t, err)
	a := actor()
	require.NoError(t, set.Add(a))

	b, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded ApprovalSet
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, []id.ActorID{a}, decoded.Approvers())

	dup := []byte(`{"capacity":2,"approvers":["` + a.String() + `","` + a.String() + `"]}`)
	assert.Error(t, json.Unmarshal(dup, &decoded))

	_, err = NewApprovalSet(6)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusVerified))
	assert.True(t, StatusPending.CanTransitionTo(StatusFlagged))
	assert.True(t, StatusFlagged.CanTransitionTo(StatusPending))
	assert.True(t, StatusFlagged.CanTransitionTo(StatusRejected))
	assert.False(t, StatusVerified.CanTransitionTo(StatusFlagged))
	assert.False(t, StatusRejected.CanTransitionTo(StatusPending))
	assert.False(t, StatusFlagged.CanTransitionTo(StatusVerified))
}
