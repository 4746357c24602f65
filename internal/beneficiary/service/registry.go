package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sahara/internal/aggregate"
	"sahara/internal/beneficiary/models"
	"sahara/internal/beneficiary/store"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

// RegisterCommand is the intake for one beneficiary.
type RegisterCommand struct {
	Authority  id.ActorID
	DisasterID id.DisasterID
	Profile    models.Profile
}

// Register records a new Pending beneficiary on behalf of a field agent.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand, agent id.ActorID) (_ *models.Beneficiary, err error) {
	ctx, span := tracing.Start(ctx, "beneficiary", "Register", attribute.String("disaster_id", string(cmd.DisasterID)))
	defer func() { tracing.End(span, err) }()

	current, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireFieldAgent(ctx, agent, cmd.DisasterID); err != nil {
		return nil, err
	}

	b, err := models.NewBeneficiary(
		id.BeneficiaryID(uuid.New()),
		cmd.Authority,
		cmd.DisasterID,
		cmd.Profile,
		current.MaxVerifiers,
		agent,
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	err = s.runLocked(ctx, b.ID, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, b); err != nil {
			return wrapStoreErr(err, "register beneficiary")
		}
		if err := wrapDirectoryErr(s.directory.RecordRegistration(txCtx, agent)); err != nil {
			return err
		}
		if err := s.aggregates.Apply(txCtx, b.DisasterID, aggregate.Delta{Beneficiaries: 1}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aggregates")
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(b.ID),
			Action:     audit.EventBeneficiaryRegistered,
			ActorID:    agent.String(),
			DisasterID: string(b.DisasterID),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	return b, nil
}

// UpdateProfile corrects intake data. Only the registering agent may update,
// and not while the record is flagged or after rejection.
func (s *Service) UpdateProfile(ctx context.Context, beneficiaryID id.BeneficiaryID, agent id.ActorID, patch models.ProfilePatch) (_ *models.Beneficiary, err error) {
	ctx, span := tracing.Start(ctx, "beneficiary", "UpdateProfile", attribute.String("beneficiary_id", beneficiaryID.String()))
	defer func() { tracing.End(span, err) }()

	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if _, err := s.activeSettings(ctx); err != nil {
		return nil, err
	}

	var updated *models.Beneficiary
	err = s.runLocked(ctx, beneficiaryID, func(txCtx context.Context) error {
		existing, err := s.store.FindByID(txCtx, beneficiaryID)
		if err != nil {
			return wrapStoreErr(err, "load beneficiary")
		}
		if err := s.requireFieldAgent(txCtx, agent, existing.DisasterID); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		var merged models.Profile
		updated, err = s.store.Execute(txCtx, beneficiaryID,
			func(b *models.Beneficiary) error {
				if b.RegisteredBy != agent {
					return dErrors.New(dErrors.CodeUnauthorizedFieldAgent, "only the registering agent may update this beneficiary")
				}
				if err := b.CanUpdateProfile(); err != nil {
					return err
				}
				merged = patch.ApplyTo(b.Profile)
				return merged.Validate()
			},
			func(b *models.Beneficiary) error {
				b.ApplyProfile(merged, now)
				return nil
			},
		)
		if err != nil {
			return wrapStoreErr(err, "update beneficiary")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "beneficiary profile updated",
		"request_id", requestcontext.RequestID(ctx),
		"beneficiary_id", beneficiaryID,
		"agent_id", agent,
	)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	b, err := s.store.FindByID(ctx, beneficiaryID)
	if err != nil {
		return nil, wrapStoreErr(err, "load beneficiary")
	}
	return b, nil
}

func (s *Service) ListByDisaster(ctx context.Context, disaster id.DisasterID, status models.Status, limit int) ([]*models.Beneficiary, error) {
	if status != "" && !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status filter")
	}
	list, err := s.store.ListByDisaster(ctx, disaster, store.Filter{Status: status, Limit: limit})
	if err != nil {
		return nil, wrapStoreErr(err, "list beneficiaries")
	}
	return list, nil
}
