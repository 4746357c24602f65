package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Directory,AuditPublisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sahara/internal/aggregate"
	"sahara/internal/beneficiary/models"
	"sahara/internal/beneficiary/service/mocks"
	"sahara/internal/beneficiary/store"
	"sahara/internal/directory"
	"sahara/internal/settings"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/audit/publishers/compliance"
	"sahara/pkg/platform/audit/store/memory"
	"sahara/pkg/testutil"
)

const disaster id.DisasterID = "TR-2026-01"

// Justification: the consensus rules only hold when store, directory, aggregates
// and the audit outbox commit or roll back together, so the suite wires the real
// in-memory collaborators and only mocks what it needs to make fail.
type ServiceSuite struct {
	suite.Suite
	now        time.Time
	store      *store.InMemory
	directory  *directory.InMemory
	settings   *settings.InMemory
	aggregates *aggregate.InMemory
	auditStore *memory.InMemoryStore
	service    *Service
	agents     []id.ActorID
	admin      id.ActorID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 2, 6, 4, 17, 0, 0, time.UTC)
	s.store = store.NewInMemory()
	s.directory = directory.NewInMemory()
	s.settings = settings.NewInMemory(settings.Defaults())
	s.aggregates = aggregate.NewInMemory()
	s.auditStore = memory.NewInMemoryStore()

	s.agents = make([]id.ActorID, 6)
	for i := range s.agents {
		s.agents[i] = id.ActorID(uuid.New())
		s.directory.AddFieldAgent(s.agents[i], disaster)
	}
	s.admin = id.ActorID(uuid.New())
	s.directory.AddAdmin(s.admin)

	svc, err := New(s.store, s.directory, s.settings, s.aggregates,
		WithAuditPublisher(compliance.New(s.auditStore)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) ctx() context.Context {
	return testutil.ActorContext(s.agents[0], s.now)
}

func profile() models.Profile {
	return models.Profile{
		Name:           "Mehmet Yilmaz",
		PhoneNumber:    "+905550001122",
		Location:       models.Location{Country: "TR", Region: "Hatay", City: "Antakya", Latitude: 36.2, Longitude: 36.16},
		FamilySize:     5,
		DamageSeverity: 9,
	}
}

func (s *ServiceSuite) register() *models.Beneficiary {
	b, err := s.service.Register(s.ctx(), RegisterCommand{
		Authority:  id.ActorID(uuid.New()),
		DisasterID: disaster,
		Profile:    profile(),
	}, s.agents[0])
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) actions(subject string) []string {
	events, err := s.auditStore.ListBySubject(context.Background(), subject)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestRegister() {
	s.Run("creates a pending record and counts it", func() {
		b := s.register()
		s.Equal(models.StatusPending, b.Status)
		s.Equal(uint8(settings.MaxVerifiersCap), b.Approvals.Capacity())

		stats, err := s.aggregates.Disaster(context.Background(), disaster)
		s.Require().NoError(err)
		s.Equal(uint64(1), stats.Beneficiaries)

		agent, err := s.directory.Agent(context.Background(), s.agents[0])
		s.Require().NoError(err)
		s.Equal(uint32(1), agent.RegistrationsCount)
		s.Equal([]string{string(audit.EventBeneficiaryRegistered)}, s.actions(subject(b.ID)))
	})

	s.Run("same authority twice in one disaster conflicts", func() {
		authority := id.ActorID(uuid.New())
		cmd := RegisterCommand{Authority: authority, DisasterID: disaster, Profile: profile()}
		_, err := s.service.Register(s.ctx(), cmd, s.agents[0])
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx(), cmd, s.agents[1])
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non agent is rejected", func() {
		_, err := s.service.Register(s.ctx(), RegisterCommand{
			Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: profile(),
		}, id.ActorID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedFieldAgent))
	})

	s.Run("agent scoped to another disaster is rejected", func() {
		_, err := s.service.Register(s.ctx(), RegisterCommand{
			Authority: id.ActorID(uuid.New()), DisasterID: "GR-2026-02", Profile: profile(),
		}, s.agents[0])
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedFieldAgent))
	})

	s.Run("invalid profile is a validation error", func() {
		p := profile()
		p.FamilySize = 0
		_, err := s.service.Register(s.ctx(), RegisterCommand{
			Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: p,
		}, s.agents[0])
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidFamilySize))
	})
}

func (s *ServiceSuite) TestPausedPlatformBlocksMutations() {
	b := s.register()
	s.Require().NoError(s.settings.SetPaused(context.Background(), true))

	_, err := s.service.Register(s.ctx(), RegisterCommand{
		Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: profile(),
	}, s.agents[0])
	s.True(dErrors.HasCode(err, dErrors.CodePlatformPaused))

	_, err = s.service.SubmitApproval(s.ctx(), b.ID, s.agents[1])
	s.True(dErrors.HasCode(err, dErrors.CodePlatformPaused))

	_, err = s.service.Flag(s.ctx(), b.ID, s.agents[1], "duplicate documents")
	s.True(dErrors.HasCode(err, dErrors.CodePlatformPaused))

	got, err := s.service.Get(s.ctx(), b.ID)
	s.Require().NoError(err)
	s.Equal(0, got.Approvals.Len())
}

func (s *ServiceSuite) TestSubmitApprovalThreshold() {
	b := s.register()

	for i := 1; i <= 2; i++ {
		res, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[i])
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Equal(models.StatusPending, res.Beneficiary.Status)
	}

	res, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[3])
	s.Require().NoError(err)
	s.True(res.Verified)
	s.Equal(models.StatusVerified, res.Beneficiary.Status)
	s.Require().NotNil(res.Beneficiary.VerifiedAt)
	s.Equal(s.now, *res.Beneficiary.VerifiedAt)

	stats, err := s.aggregates.Disaster(context.Background(), disaster)
	s.Require().NoError(err)
	s.Equal(uint64(1), stats.VerifiedBeneficiaries)

	s.Run("approvals after verification are refused", func() {
		_, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[4])
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
	})

	s.Equal([]string{
		string(audit.EventBeneficiaryRegistered),
		string(audit.EventApprovalSubmitted),
		string(audit.EventApprovalSubmitted),
		string(audit.EventApprovalSubmitted),
		string(audit.EventBeneficiaryVerified),
	}, s.actions(subject(b.ID)))
}

func (s *ServiceSuite) TestSubmitApprovalRejections() {
	b := s.register()

	s.Run("duplicate approver", func() {
		_, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[1])
		s.Require().NoError(err)
		_, err = s.service.SubmitApproval(s.ctx(), b.ID, s.agents[1])
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateApproval))
	})

	s.Run("unknown beneficiary", func() {
		_, err := s.service.SubmitApproval(s.ctx(), id.BeneficiaryID(uuid.New()), s.agents[1])
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non agent", func() {
		_, err := s.service.SubmitApproval(s.ctx(), b.ID, id.ActorID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedFieldAgent))
	})

	s.Run("flagged record", func() {
		_, err := s.service.Flag(s.ctx(), b.ID, s.agents[2], "inconsistent address")
		s.Require().NoError(err)
		_, err = s.service.SubmitApproval(s.ctx(), b.ID, s.agents[3])
		s.True(dErrors.HasCode(err, dErrors.CodeBeneficiaryFlagged))
	})
}

func (s *ServiceSuite) TestMaxVerifiersReached() {
	current := settings.Defaults()
	current.VerificationThreshold = 5
	current.MaxVerifiers = 2
	s.Require().NoError(s.settings.Save(context.Background(), current))

	b := s.register()
	s.Equal(uint8(2), b.Approvals.Capacity())

	for i := 1; i <= 2; i++ {
		_, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[i])
		s.Require().NoError(err)
	}
	_, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[3])
	s.True(dErrors.HasCode(err, dErrors.CodeMaxVerifiersReached))
}

func (s *ServiceSuite) TestConcurrentApprovalsPromoteOnce() {
	b := s.register()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		promoted int
	)
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(agent id.ActorID) {
			defer wg.Done()
			res, err := s.service.SubmitApproval(s.ctx(), b.ID, agent)
			if err != nil {
				return
			}
			if res.Verified {
				mu.Lock()
				promoted++
				mu.Unlock()
			}
		}(s.agents[i])
	}
	wg.Wait()

	s.Equal(1, promoted)
	stats, err := s.aggregates.Disaster(context.Background(), disaster)
	s.Require().NoError(err)
	s.Equal(uint64(1), stats.VerifiedBeneficiaries)
}

func (s *ServiceSuite) TestFlagAndReview() {
	s.Run("flag requires a reason", func() {
		b := s.register()
		_, err := s.service.Flag(s.ctx(), b.ID, s.agents[1], "")
		s.True(dErrors.HasCode(err, dErrors.CodeFlagReasonRequired))
	})

	s.Run("reinstate clears approvals", func() {
		b := s.register()
		_, err := s.service.SubmitApproval(s.ctx(), b.ID, s.agents[1])
		s.Require().NoError(err)
		flagged, err := s.service.Flag(s.ctx(), b.ID, s.agents[2], "duplicate documents")
		s.Require().NoError(err)
		s.Equal(models.StatusFlagged, flagged.Status)
		s.Equal(s.agents[2], *flagged.FlaggedBy)

		reviewed, err := s.service.Review(s.ctx(), b.ID, s.admin, true, "documents checked")
		s.Require().NoError(err)
		s.Equal(models.StatusPending, reviewed.Status)
		s.Equal(0, reviewed.Approvals.Len())
		s.Equal("documents checked", reviewed.AdminNotes)

		agent, err := s.directory.Agent(context.Background(), s.agents[2])
		s.Require().NoError(err)
		s.Equal(uint32(1), agent.FlagsCount)
	})

	s.Run("reject is terminal", func() {
		b := s.register()
		_, err := s.service.Flag(s.ctx(), b.ID, s.agents[1], "fabricated damage")
		s.Require().NoError(err)
		reviewed, err := s.service.Review(s.ctx(), b.ID, s.admin, false, "confirmed fraud")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, reviewed.Status)

		_, err = s.service.SubmitApproval(s.ctx(), b.ID, s.agents[2])
		s.True(dErrors.HasCode(err, dErrors.CodeCannotVerifyRejected))
		_, err = s.service.Flag(s.ctx(), b.ID, s.agents[2], "again")
		s.Error(err)
	})

	s.Run("review needs an admin", func() {
		b := s.register()
		_, err := s.service.Flag(s.ctx(), b.ID, s.agents[1], "duplicate documents")
		s.Require().NoError(err)
		_, err = s.service.Review(s.ctx(), b.ID, s.agents[1], true, "ok")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedAdmin))
	})

	s.Run("review of an unflagged record", func() {
		b := s.register()
		_, err := s.service.Review(s.ctx(), b.ID, s.admin, true, "ok")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStatusTransition))
	})
}

func (s *ServiceSuite) TestUpdateProfile() {
	b := s.register()
	name := "Mehmet Y."

	s.Run("registering agent may update", func() {
		updated, err := s.service.UpdateProfile(s.ctx(), b.ID, s.agents[0], models.ProfilePatch{Name: &name})
		s.Require().NoError(err)
		s.Equal(name, updated.Name)
		s.Equal(uint8(5), updated.FamilySize)
	})

	s.Run("other agents may not", func() {
		_, err := s.service.UpdateProfile(s.ctx(), b.ID, s.agents[1], models.ProfilePatch{Name: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedFieldAgent))
	})

	s.Run("empty patch", func() {
		_, err := s.service.UpdateProfile(s.ctx(), b.ID, s.agents[0], models.ProfilePatch{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid patch leaves the record unchanged", func() {
		severity := uint8(11)
		_, err := s.service.UpdateProfile(s.ctx(), b.ID, s.agents[0], models.ProfilePatch{DamageSeverity: &severity})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDamageSeverity))
		got, err := s.service.Get(s.ctx(), b.ID)
		s.Require().NoError(err)
		s.Equal(uint8(9), got.DamageSeverity)
	})

	s.Run("flagged record is frozen", func() {
		_, err := s.service.Flag(s.ctx(), b.ID, s.agents[1], "wrong phone")
		s.Require().NoError(err)
		_, err = s.service.UpdateProfile(s.ctx(), b.ID, s.agents[0], models.ProfilePatch{Name: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeBeneficiaryFlagged))
	})
}

func (s *ServiceSuite) TestListByDisaster() {
	first := s.register()
	s.register()
	_, err := s.service.Flag(s.ctx(), first.ID, s.agents[1], "duplicate documents")
	s.Require().NoError(err)

	all, err := s.service.ListByDisaster(s.ctx(), disaster, "", 0)
	s.Require().NoError(err)
	s.Len(all, 2)

	flagged, err := s.service.ListByDisaster(s.ctx(), disaster, models.StatusFlagged, 0)
	s.Require().NoError(err)
	s.Require().Len(flagged, 1)
	s.Equal(first.ID, flagged[0].ID)

	_, err = s.service.ListByDisaster(s.ctx(), disaster, "archived", 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// Justification: fail-closed audit and directory failures must undo every write
// made earlier in the same transaction.
type ServiceRollbackSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	directory  *mocks.MockDirectory
	publisher  *mocks.MockAuditPublisher
	store      *store.InMemory
	aggregates *aggregate.InMemory
	service    *Service
	agent      id.ActorID
	ctx        context.Context
}

func TestServiceRollbackSuite(t *testing.T) {
	suite.Run(t, new(ServiceRollbackSuite))
}

func (s *ServiceRollbackSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.directory = mocks.NewMockDirectory(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.store = store.NewInMemory()
	s.aggregates = aggregate.NewInMemory()
	s.agent = id.ActorID(uuid.New())
	s.ctx = testutil.ActorContext(s.agent, time.Date(2026, 2, 6, 5, 0, 0, 0, time.UTC))

	svc, err := New(s.store, s.directory, settings.NewInMemory(settings.Defaults()), s.aggregates,
		WithAuditPublisher(s.publisher),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceRollbackSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceRollbackSuite) TestAuditFailureRollsBackRegistration() {
	authority := id.ActorID(uuid.New())
	s.directory.EXPECT().IsActiveFieldAgent(gomock.Any(), s.agent, disaster).Return(true, nil)
	s.directory.EXPECT().RecordRegistration(gomock.Any(), s.agent).Return(nil)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))

	_, err := s.service.Register(s.ctx, RegisterCommand{Authority: authority, DisasterID: disaster, Profile: profile()}, s.agent)
	s.Require().Error(err)

	list, err := s.store.ListByDisaster(context.Background(), disaster, store.Filter{})
	s.Require().NoError(err)
	s.Empty(list)
	stats, err := s.aggregates.Disaster(context.Background(), disaster)
	s.Require().NoError(err)
	s.Zero(stats.Beneficiaries)
}

func (s *ServiceRollbackSuite) TestAuditFailureRollsBackApproval() {
	s.directory.EXPECT().IsActiveFieldAgent(gomock.Any(), gomock.Any(), disaster).Return(true, nil).AnyTimes()
	s.directory.EXPECT().RecordRegistration(gomock.Any(), s.agent).Return(nil)
	s.directory.EXPECT().RecordVerification(gomock.Any(), gomock.Any()).Return(nil)
	gomock.InOrder(
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil),
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable")),
	)

	b, err := s.service.Register(s.ctx, RegisterCommand{
		Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: profile(),
	}, s.agent)
	s.Require().NoError(err)

	_, err = s.service.SubmitApproval(s.ctx, b.ID, id.ActorID(uuid.New()))
	s.Require().Error(err)

	got, err := s.store.FindByID(context.Background(), b.ID)
	s.Require().NoError(err)
	s.Equal(0, got.Approvals.Len())
}

func (s *ServiceRollbackSuite) TestDirectoryFailureSurfacesAsInternal() {
	s.directory.EXPECT().IsActiveFieldAgent(gomock.Any(), s.agent, disaster).Return(false, errors.New("directory down"))

	_, err := s.service.Register(s.ctx, RegisterCommand{
		Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: profile(),
	}, s.agent)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceRollbackSuite) TestCounterOverflowIsKept() {
	s.directory.EXPECT().IsActiveFieldAgent(gomock.Any(), s.agent, disaster).Return(true, nil)
	s.directory.EXPECT().RecordRegistration(gomock.Any(), s.agent).
		Return(dErrors.New(dErrors.CodeArithmeticOverflow, "registrations counter overflow"))

	_, err := s.service.Register(s.ctx, RegisterCommand{
		Authority: id.ActorID(uuid.New()), DisasterID: disaster, Profile: profile(),
	}, s.agent)
	s.True(dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
}
