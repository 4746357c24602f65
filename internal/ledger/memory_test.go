package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

type InMemorySuite struct {
	suite.Suite
	ledger *InMemory
	ctx    context.Context
	now    time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ledger = NewInMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	_, err := s.ledger.Credit(s.ctx, CreditRequest{Account: "pool:a", Amount: 1000, Reference: "deposit:1"})
	s.Require().NoError(err)
}

func (s *InMemorySuite) TestTransfer() {
	s.Run("moves value between accounts", func() {
		receipt, err := s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 400, Reference: "claim:1"})
		s.Require().NoError(err)
		s.Equal(uint64(400), receipt.Amount)
		s.Equal(s.now, receipt.CreatedAt)

		from, _ := s.ledger.Balance(s.ctx, "pool:a")
		to, _ := s.ledger.Balance(s.ctx, "acct:b")
		s.Equal(uint64(600), from)
		s.Equal(uint64(400), to)
	})

	s.Run("replayed reference does not move value twice", func() {
		_, err := s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 400, Reference: "claim:1"})
		s.Require().NoError(err)
		from, _ := s.ledger.Balance(s.ctx, "pool:a")
		s.Equal(uint64(600), from)
	})

	s.Run("reference reused with different amount conflicts", func() {
		_, err := s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 1, Reference: "claim:1"})
		s.ErrorIs(err, ErrReferenceConflict)
	})

	s.Run("insufficient balance", func() {
		_, err := s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 601, Reference: "claim:2"})
		s.ErrorIs(err, ErrInsufficientFunds)
	})

	s.Run("invalid request", func() {
		_, err := s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "pool:a", Amount: 1, Reference: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		_, err = s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 0, Reference: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *InMemorySuite) TestCreditReplay() {
	_, err := s.ledger.Credit(s.ctx, CreditRequest{Account: "pool:a", Amount: 1000, Reference: "deposit:1"})
	s.Require().NoError(err)
	balance, _ := s.ledger.Balance(s.ctx, "pool:a")
	s.Equal(uint64(1000), balance)

	_, err = s.ledger.Credit(s.ctx, CreditRequest{Account: "pool:b", Amount: 1000, Reference: "deposit:1"})
	s.ErrorIs(err, ErrReferenceConflict)
}

func (s *InMemorySuite) TestRollbackUndoesMovement() {
	runner := tx.NewSharded(time.Second)
	boom := errors.New("boom")

	err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		if _, err := s.ledger.Transfer(txCtx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 250, Reference: "claim:9"}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	from, _ := s.ledger.Balance(s.ctx, "pool:a")
	to, _ := s.ledger.Balance(s.ctx, "acct:b")
	s.Equal(uint64(1000), from)
	s.Equal(uint64(0), to)

	// reference is free again after rollback
	_, err = s.ledger.Transfer(s.ctx, TransferRequest{From: "pool:a", To: "acct:b", Amount: 100, Reference: "claim:9"})
	s.NoError(err)
}
