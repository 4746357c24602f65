//go:build integration

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sahara/internal/aggregate"
	"sahara/internal/beneficiary/store"
	"sahara/internal/directory"
	"sahara/internal/settings"
	id "sahara/pkg/domain"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/tx"
	"sahara/pkg/testutil"
	"sahara/pkg/testutil/containers"
)

// refusingPublisher fails every event with the given action.
type refusingPublisher struct {
	action audit.AuditEvent
}

func (p refusingPublisher) Emit(_ context.Context, event audit.ComplianceEvent) error {
	if event.Action == p.action {
		return errors.New("outbox unavailable")
	}
	return nil
}

// Justification: the directory lives in memory while beneficiaries live in
// Postgres; agent counters must roll back with the SQL transaction.
type PostgresServiceSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	directory *directory.InMemory
	service   *Service
	agent     id.ActorID
	approver  id.ActorID
	ctx       context.Context
}

func TestPostgresServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresServiceSuite))
}

func (s *PostgresServiceSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresServiceSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"distributions", "pool_registrations", "beneficiaries", "aggregate_stats"))

	s.agent = id.ActorID(uuid.New())
	s.approver = id.ActorID(uuid.New())
	s.directory = directory.NewInMemory()
	s.directory.AddFieldAgent(s.agent, disaster)
	s.directory.AddFieldAgent(s.approver, disaster)
	s.ctx = testutil.ActorContext(s.agent, time.Date(2026, 2, 6, 5, 0, 0, 0, time.UTC))

	svc, err := New(store.NewPostgres(s.postgres.DB), s.directory,
		settings.NewInMemory(settings.Defaults()), aggregate.NewPostgres(s.postgres.DB),
		WithAuditPublisher(refusingPublisher{action: audit.EventApprovalSubmitted}),
		WithTx(tx.NewSQL(s.postgres.DB, 0)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *PostgresServiceSuite) TestFailedApprovalLeavesAgentCountersAlone() {
	b, err := s.service.Register(s.ctx, RegisterCommand{
		Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: profile(),
	}, s.agent)
	s.Require().NoError(err)

	_, err = s.service.SubmitApproval(s.ctx, b.ID, s.approver)
	s.Require().Error(err)

	approver, err := s.directory.Agent(context.Background(), s.approver)
	s.Require().NoError(err)
	s.Zero(approver.VerificationsCount)
	s.Nil(approver.LastActivityAt)

	registrar, err := s.directory.Agent(context.Background(), s.agent)
	s.Require().NoError(err)
	s.Equal(uint32(1), registrar.RegistrationsCount)

	got, err := s.service.Get(context.Background(), b.ID)
	s.Require().NoError(err)
	s.Equal(0, got.Approvals.Len())
}
