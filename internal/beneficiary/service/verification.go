package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sahara/internal/aggregate"
	"sahara/internal/beneficiary/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

// ApprovalResult reports the record after an approval and whether that approval
// was the one that reached the threshold.
type ApprovalResult struct {
	Beneficiary *models.Beneficiary
	Verified    bool
}

// SubmitApproval records one field agent's approval. The status check, duplicate
// check, capacity check and append happen under one record lock, so among
// concurrent approvers exactly one performs the Pending to Verified transition.
func (s *Service) SubmitApproval(ctx context.Context, beneficiaryID id.BeneficiaryID, approver id.ActorID) (_ *ApprovalResult, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "beneficiary", "SubmitApproval", attribute.String("beneficiary_id", beneficiaryID.String()))
	defer func() {
		tracing.End(span, err)
		if s.metrics != nil {
			s.metrics.ObserveSubmitApproval(start)
			if err != nil {
				s.metrics.IncrementApprovalRejected(string(dErrors.CodeOf(err)))
			}
		}
	}()

	current, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}

	result := &ApprovalResult{}
	err = s.runLocked(ctx, beneficiaryID, func(txCtx context.Context) error {
		existing, err := s.store.FindByID(txCtx, beneficiaryID)
		if err != nil {
			return wrapStoreErr(err, "load beneficiary")
		}
		if err := s.requireFieldAgent(txCtx, approver, existing.DisasterID); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		updated, err := s.store.Execute(txCtx, beneficiaryID,
			func(b *models.Beneficiary) error {
				return b.CanApprove(approver, current.MaxVerifiers)
			},
			func(b *models.Beneficiary) error {
				promoted, err := b.ApplyApproval(approver, current.VerificationThreshold, now)
				result.Verified = promoted
				return err
			},
		)
		if err != nil {
			return wrapStoreErr(err, "submit approval")
		}
		result.Beneficiary = updated

		if err := wrapDirectoryErr(s.directory.RecordVerification(txCtx, approver)); err != nil {
			return err
		}
		if err := s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(beneficiaryID),
			Action:     audit.EventApprovalSubmitted,
			ActorID:    approver.String(),
			DisasterID: string(updated.DisasterID),
		}); err != nil {
			return err
		}
		if !result.Verified {
			return nil
		}

		if err := s.aggregates.Apply(txCtx, updated.DisasterID, aggregate.Delta{VerifiedBeneficiaries: 1}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aggregates")
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(beneficiaryID),
			Action:     audit.EventBeneficiaryVerified,
			ActorID:    approver.String(),
			DisasterID: string(updated.DisasterID),
			Decision:   string(models.StatusVerified),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementApprovalSubmitted()
		if result.Verified {
			s.metrics.IncrementVerified()
		}
	}
	return result, nil
}

// Flag moves a Pending beneficiary to Flagged for admin review.
func (s *Service) Flag(ctx context.Context, beneficiaryID id.BeneficiaryID, flagger id.ActorID, reason string) (_ *models.Beneficiary, err error) {
	ctx, span := tracing.Start(ctx, "beneficiary", "Flag", attribute.String("beneficiary_id", beneficiaryID.String()))
	defer func() { tracing.End(span, err) }()

	if _, err := s.activeSettings(ctx); err != nil {
		return nil, err
	}

	var flagged *models.Beneficiary
	err = s.runLocked(ctx, beneficiaryID, func(txCtx context.Context) error {
		existing, err := s.store.FindByID(txCtx, beneficiaryID)
		if err != nil {
			return wrapStoreErr(err, "load beneficiary")
		}
		if err := s.requireFieldAgent(txCtx, flagger, existing.DisasterID); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		flagged, err = s.store.Execute(txCtx, beneficiaryID,
			func(b *models.Beneficiary) error { return b.CanFlag(reason) },
			func(b *models.Beneficiary) error {
				b.ApplyFlag(flagger, reason, now)
				return nil
			},
		)
		if err != nil {
			return wrapStoreErr(err, "flag beneficiary")
		}
		if err := wrapDirectoryErr(s.directory.RecordFlag(txCtx, flagger)); err != nil {
			return err
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(beneficiaryID),
			Action:     audit.EventBeneficiaryFlagged,
			ActorID:    flagger.String(),
			DisasterID: string(flagged.DisasterID),
			Reason:     reason,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementFlagged()
	}
	return flagged, nil
}

// Review resolves a flag. approve returns the beneficiary to Pending with its
// approvals cleared; reject is terminal.
func (s *Service) Review(ctx context.Context, beneficiaryID id.BeneficiaryID, admin id.ActorID, approve bool, notes string) (_ *models.Beneficiary, err error) {
	ctx, span := tracing.Start(ctx, "beneficiary", "Review",
		attribute.String("beneficiary_id", beneficiaryID.String()),
		attribute.Bool("approve", approve),
	)
	defer func() { tracing.End(span, err) }()

	isAdmin, err := s.directory.IsAdmin(ctx, admin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check admin")
	}
	if !isAdmin {
		return nil, dErrors.New(dErrors.CodeUnauthorizedAdmin, "caller is not a platform admin")
	}

	action, outcome := audit.EventBeneficiaryRejected, string(models.StatusRejected)
	if approve {
		action, outcome = audit.EventBeneficiaryReinstated, "reinstated"
	}

	var reviewed *models.Beneficiary
	err = s.runLocked(ctx, beneficiaryID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		var err error
		reviewed, err = s.store.Execute(txCtx, beneficiaryID,
			func(b *models.Beneficiary) error { return b.CanReview(notes) },
			func(b *models.Beneficiary) error {
				b.ApplyReview(approve, notes, now)
				return nil
			},
		)
		if err != nil {
			return wrapStoreErr(err, "review beneficiary")
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(beneficiaryID),
			Action:     action,
			ActorID:    admin.String(),
			DisasterID: string(reviewed.DisasterID),
			Decision:   outcome,
			Reason:     notes,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementReview(outcome)
	}
	return reviewed, nil
}

// wrapDirectoryErr keeps coded errors (counter overflow) and hides the rest.
func wrapDirectoryErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record agent activity")
}
