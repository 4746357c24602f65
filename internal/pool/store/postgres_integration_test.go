//go:build integration

package store_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	beneficiarymodels "sahara/internal/beneficiary/models"
	beneficiarystore "sahara/internal/beneficiary/store"
	"sahara/internal/pool/models"
	"sahara/internal/pool/store"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/testutil/containers"
)

type PostgresPoolSuite struct {
	suite.Suite
	postgres      *containers.PostgresContainer
	pools         *store.PostgresStore
	registrations *store.PostgresRegistrations
	beneficiaries *beneficiarystore.PostgresStore
}

func TestPostgresPoolSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPoolSuite))
}

func (s *PostgresPoolSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.pools = store.NewPostgres(s.postgres.DB)
	s.registrations = store.NewPostgresRegistrations(s.postgres.DB)
	s.beneficiaries = beneficiarystore.NewPostgres(s.postgres.DB)
}

func (s *PostgresPoolSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "distributions", "pool_registrations", "fund_pools", "beneficiaries")
	s.Require().NoError(err)
}

func (s *PostgresPoolSuite) newPool() *models.Pool {
	family := uint8(2)
	target := uint64(math.MaxUint64)
	p, err := models.NewPool(models.NewPoolParams{
		ID:               id.PoolID(uuid.New()),
		DisasterID:       "TR-2026-01",
		Name:             "Integration fund",
		Authority:        id.ActorID(uuid.New()),
		TokenMint:        "USDC",
		CustodialAccount: "pool:integration",
		Policy:           models.PolicyWeightedFamily,
		ImmediatePercent: 70,
		LockedPercent:    30,
		TimeLock:         48 * time.Hour,
		MinFamilySize:    &family,
		TargetAmount:     &target,
	}, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return p
}

func (s *PostgresPoolSuite) newBeneficiary() id.BeneficiaryID {
	b, err := beneficiarymodels.NewBeneficiary(
		id.BeneficiaryID(uuid.New()), id.ActorID(uuid.New()), "TR-2026-01",
		beneficiarymodels.Profile{Name: "Integration", FamilySize: 4, DamageSeverity: 6},
		5, id.ActorID(uuid.New()), time.Now().UTC(),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.beneficiaries.Create(context.Background(), b))
	return b.ID
}

func (s *PostgresPoolSuite) TestRoundTrip() {
	ctx := context.Background()
	p := s.newPool()
	s.Require().NoError(s.pools.Create(ctx, p))
	s.ErrorIs(s.pools.Create(ctx, p), sentinel.ErrAlreadyUsed)

	found, err := s.pools.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.TimeLock, found.TimeLock)
	s.Equal(uint8(2), *found.MinFamilySize)
	s.Nil(found.MinDamageSeverity)
	s.Equal(uint64(math.MaxUint64), *found.TargetAmount)
	s.Equal(models.PhaseOpen, found.Phase)

	list, err := s.pools.ListByDisaster(ctx, "TR-2026-01")
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *PostgresPoolSuite) TestExecuteSerializesDeposits() {
	ctx := context.Background()
	p := s.newPool()
	s.Require().NoError(s.pools.Create(ctx, p))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.pools.Execute(ctx, p.ID,
				func(x *models.Pool) error { return x.CanDeposit() },
				func(x *models.Pool) error { return x.ApplyDeposit(100, 1, time.Now()) },
			)
		}()
	}
	wg.Wait()

	found, err := s.pools.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(uint64(1000), found.TotalDeposited)
	s.Equal(uint64(10), found.FeesCollected)
	s.Equal(uint32(10), found.DonorCount)
}

func (s *PostgresPoolSuite) TestRegistrations() {
	ctx := context.Background()
	p := s.newPool()
	s.Require().NoError(s.pools.Create(ctx, p))
	ben := s.newBeneficiary()

	reg := &models.Registration{
		PoolID: p.ID, BeneficiaryID: ben, Weight: 4, FamilySize: 4, DamageSeverity: 6,
		RegisteredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.registrations.Create(ctx, reg))
	s.ErrorIs(s.registrations.Create(ctx, reg), sentinel.ErrAlreadyUsed)

	list, err := s.registrations.ListByPool(ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(uint64(4), list[0].Weight)

	s.Require().NoError(s.registrations.MarkDistributed(ctx, p.ID, ben))
	s.ErrorIs(s.registrations.MarkDistributed(ctx, p.ID, ben), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.registrations.MarkDistributed(ctx, p.ID, id.BeneficiaryID(uuid.New())), sentinel.ErrNotFound)
}
