package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sahara/internal/pool/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
)

type InMemoryPoolSuite struct {
	suite.Suite
	pools *InMemory
	regs  *InMemoryRegistrations
	ctx   context.Context
	now   time.Time
}

func TestInMemoryPoolSuite(t *testing.T) {
	suite.Run(t, new(InMemoryPoolSuite))
}

func (s *InMemoryPoolSuite) SetupTest() {
	s.pools = NewInMemory()
	s.regs = NewInMemoryRegistrations()
	s.ctx = context.Background()
	s.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryPoolSuite) newPool(disaster id.DisasterID) *models.Pool {
	p, err := models.NewPool(models.NewPoolParams{
		ID:               id.PoolID(uuid.New()),
		DisasterID:       disaster,
		Name:             "Shelter fund",
		Authority:        id.ActorID(uuid.New()),
		TokenMint:        "USDC",
		CustodialAccount: "pool:test",
		Policy:           models.PolicyEqual,
		ImmediatePercent: 100,
	}, s.now)
	s.Require().NoError(err)
	return p
}

func (s *InMemoryPoolSuite) TestCreateAndFind() {
	p := s.newPool("TR-1")
	s.Require().NoError(s.pools.Create(s.ctx, p))
	s.ErrorIs(s.pools.Create(s.ctx, p), sentinel.ErrAlreadyUsed)

	found, err := s.pools.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	found.Name = "changed"
	again, _ := s.pools.FindByID(s.ctx, p.ID)
	s.Equal("Shelter fund", again.Name)

	_, err = s.pools.FindByID(s.ctx, id.PoolID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryPoolSuite) TestListByDisaster() {
	first := s.newPool("TR-1")
	second := s.newPool("TR-1")
	second.CreatedAt = s.now.Add(time.Minute)
	s.Require().NoError(s.pools.Create(s.ctx, second))
	s.Require().NoError(s.pools.Create(s.ctx, first))
	s.Require().NoError(s.pools.Create(s.ctx, s.newPool("NP-2")))

	list, err := s.pools.ListByDisaster(s.ctx, "TR-1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(second.ID, list[1].ID)
}

func (s *InMemoryPoolSuite) TestExecute() {
	p := s.newPool("TR-1")
	s.Require().NoError(s.pools.Create(s.ctx, p))

	s.Run("validation error leaves pool untouched", func() {
		_, err := s.pools.Execute(s.ctx, p.ID,
			func(*models.Pool) error { return dErrors.New(dErrors.CodePoolClosed, "closed") },
			func(x *models.Pool) error { x.TotalDeposited = 99; return nil },
		)
		s.True(dErrors.HasCode(err, dErrors.CodePoolClosed))
		found, _ := s.pools.FindByID(s.ctx, p.ID)
		s.Zero(found.TotalDeposited)
	})

	s.Run("mutation error leaves pool untouched", func() {
		_, err := s.pools.Execute(s.ctx, p.ID,
			func(*models.Pool) error { return nil },
			func(x *models.Pool) error {
				x.TotalDeposited = 99
				return errors.New("boom")
			},
		)
		s.Error(err)
		found, _ := s.pools.FindByID(s.ctx, p.ID)
		s.Zero(found.TotalDeposited)
	})

	s.Run("success persists", func() {
		updated, err := s.pools.Execute(s.ctx, p.ID,
			func(x *models.Pool) error { return x.CanDeposit() },
			func(x *models.Pool) error { return x.ApplyDeposit(500, 5, s.now) },
		)
		s.Require().NoError(err)
		s.Equal(uint64(500), updated.TotalDeposited)
		found, _ := s.pools.FindByID(s.ctx, p.ID)
		s.Equal(uint64(5), found.FeesCollected)
	})
}

func (s *InMemoryPoolSuite) TestRollbackRestoresPoolAndRegistrations() {
	p := s.newPool("TR-1")
	s.Require().NoError(s.pools.Create(s.ctx, p))
	beneficiary := id.BeneficiaryID(uuid.New())

	runner := tx.NewSharded(0)
	err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		if err := s.regs.Create(txCtx, &models.Registration{PoolID: p.ID, BeneficiaryID: beneficiary, Weight: 1, RegisteredAt: s.now}); err != nil {
			return err
		}
		if _, err := s.pools.Execute(txCtx, p.ID,
			func(x *models.Pool) error { return x.CanRegister() },
			func(x *models.Pool) error { return x.ApplyRegistration(1, s.now) },
		); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	found, _ := s.pools.FindByID(s.ctx, p.ID)
	s.Zero(found.RegisteredCount)
	_, err = s.regs.Find(s.ctx, p.ID, beneficiary)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryPoolSuite) TestRegistrations() {
	poolID := id.PoolID(uuid.New())
	a, b := id.BeneficiaryID(uuid.New()), id.BeneficiaryID(uuid.New())
	s.Require().NoError(s.regs.Create(s.ctx, &models.Registration{PoolID: poolID, BeneficiaryID: b, Weight: 3, RegisteredAt: s.now.Add(time.Second)}))
	s.Require().NoError(s.regs.Create(s.ctx, &models.Registration{PoolID: poolID, BeneficiaryID: a, Weight: 2, RegisteredAt: s.now}))
	s.Require().NoError(s.regs.Create(s.ctx, &models.Registration{PoolID: id.PoolID(uuid.New()), BeneficiaryID: a, Weight: 1, RegisteredAt: s.now}))

	s.ErrorIs(s.regs.Create(s.ctx, &models.Registration{PoolID: poolID, BeneficiaryID: a}), sentinel.ErrAlreadyUsed)

	list, err := s.regs.ListByPool(s.ctx, poolID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(a, list[0].BeneficiaryID)
	s.Equal(b, list[1].BeneficiaryID)

	s.Require().NoError(s.regs.MarkDistributed(s.ctx, poolID, a))
	s.ErrorIs(s.regs.MarkDistributed(s.ctx, poolID, a), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.regs.MarkDistributed(s.ctx, poolID, id.BeneficiaryID(uuid.New())), sentinel.ErrNotFound)

	found, err := s.regs.Find(s.ctx, poolID, a)
	s.Require().NoError(err)
	s.True(found.Distributed)
}

func (s *InMemoryPoolSuite) TestMarkDistributedRollsBack() {
	poolID := id.PoolID(uuid.New())
	ben := id.BeneficiaryID(uuid.New())
	s.Require().NoError(s.regs.Create(s.ctx, &models.Registration{PoolID: poolID, BeneficiaryID: ben, Weight: 1, RegisteredAt: s.now}))

	err := tx.NewSharded(0).RunInTx(s.ctx, func(txCtx context.Context) error {
		if err := s.regs.MarkDistributed(txCtx, poolID, ben); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	found, _ := s.regs.Find(s.ctx, poolID, ben)
	s.False(found.Distributed)
}
