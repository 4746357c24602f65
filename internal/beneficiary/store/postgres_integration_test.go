//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sahara/internal/beneficiary/models"
	"sahara/internal/beneficiary/store"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "distributions", "pool_registrations", "beneficiaries")
	s.Require().NoError(err)
}

func newTestBeneficiary(authority id.ActorID) *models.Beneficiary {
	now := time.Now().UTC().Truncate(time.Microsecond)
	b, err := models.NewBeneficiary(
		id.BeneficiaryID(uuid.New()), authority, "TR-2026-01",
		models.Profile{
			Name:           "Integration",
			Location:       models.Location{Country: "TR", Latitude: 36.2, Longitude: 36.1},
			FamilySize:     4,
			DamageSeverity: 7,
		},
		5, id.ActorID(uuid.New()), now,
	)
	if err != nil {
		panic(err)
	}
	return b
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	b := newTestBeneficiary(id.ActorID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, b))

	found, err := s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(b.Profile, found.Profile)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(uint8(5), found.Approvals.Capacity())

	s.ErrorIs(s.store.Create(ctx, newTestBeneficiary(b.Authority)), sentinel.ErrAlreadyUsed)
}

// TestConcurrentApprovalsPromoteOnce verifies the row lock serializes approvals so
// exactly one caller performs the Pending to Verified transition.
func (s *PostgresStoreSuite) TestConcurrentApprovalsPromoteOnce() {
	ctx := context.Background()
	b := newTestBeneficiary(id.ActorID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, b))

	const approvers = 5
	var (
		wg        sync.WaitGroup
		promoted  atomic.Int32
		succeeded atomic.Int32
	)
	for range approvers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			approver := id.ActorID(uuid.New())
			var didPromote bool
			_, err := s.store.Execute(ctx, b.ID,
				func(x *models.Beneficiary) error { return x.CanApprove(approver, 5) },
				func(x *models.Beneficiary) error {
					var err error
					didPromote, err = x.ApplyApproval(approver, 3, time.Now())
					return err
				},
			)
			if err == nil {
				succeeded.Add(1)
				if didPromote {
					promoted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(3), succeeded.Load())
	s.Equal(int32(1), promoted.Load())

	found, err := s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, found.Status)
	s.Equal(3, found.Approvals.Len())
}

func (s *PostgresStoreSuite) TestAddReceivedConcurrent() {
	ctx := context.Background()
	b := newTestBeneficiary(id.ActorID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, b))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.AddReceived(ctx, b.ID, 5)
		}()
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(uint64(100), found.TotalReceived)
}
