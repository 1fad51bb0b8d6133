package hospital

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/account"
	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/metrics"
	"github.com/carelink/carelink/internal/platform/policy"
)

// TxRunner executes fn atomically; the production runner wraps fn in a
// pgx transaction carried on the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Notifier sends best-effort notifications.
type Notifier interface {
	Notify(recipient, templateID string, data map[string]string)
}

type Service struct {
	repo     Repository
	accounts account.Repository
	runTx    TxRunner
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, accounts account.Repository, runTx TxRunner, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, runTx: runTx, notifier: notifier, logger: logger}
}

// Status implements the hospital directory consumed by the account and
// referral services.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (string, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return string(h.Status), nil
}

// RegisterInput is the hospital signup payload. Status is honored only
// for super-admin callers.
type RegisterInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Capacity  int    `json:"capacity,omitempty"`
	Status    Status `json:"status,omitempty"`
}

// Register creates a hospital. Public registration always starts
// pending; a super admin may create a hospital in any status directly.
func (s *Service) Register(ctx context.Context, actor *policy.Actor, in RegisterInput) (*Hospital, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return nil, apperror.InvalidArgument("name is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, apperror.InvalidArgument("a valid email is required")
	}

	h := &Hospital{
		Name:      in.Name,
		Email:     in.Email,
		Status:    StatusPending,
		Address:   in.Address,
		Phone:     in.Phone,
		Specialty: in.Specialty,
		Capacity:  in.Capacity,
	}
	if actor != nil && actor.Role == policy.RoleSuperAdmin && in.Status != "" {
		if !ValidStatus(in.Status) {
			return nil, apperror.InvalidArgument("invalid status: " + string(in.Status))
		}
		h.Status = in.Status
	}

	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Approve marks a pending hospital approved. When a pending
// hospital-admin account with the same email exists, it is approved in
// the same transaction with the same approver and timestamp, so the
// admin can sign in the moment the hospital goes live.
func (s *Service) Approve(ctx context.Context, actor policy.Actor, id uuid.UUID, message string) (*Hospital, error) {
	if actor.Role != policy.RoleSuperAdmin {
		metrics.RecordAuthorizationDecision("hospital", "approve", false)
		return nil, apperror.AccessDenied("only a super admin approves hospitals")
	}
	metrics.RecordAuthorizationDecision("hospital", "approve", true)

	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Status != StatusPending {
		return nil, apperror.PreconditionFailed("hospital is not pending approval")
	}

	now := time.Now().UTC()
	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, Decision{
			Status: StatusApproved, DecidedBy: actor.ID, DecidedAt: now,
		}); err != nil {
			return err
		}
		admin, err := s.accounts.GetPendingAdminByEmail(ctx, h.Email)
		if apperror.Is(err, apperror.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.accounts.UpdateApproval(ctx, admin.ID, account.Decision{
			Status: policy.ApprovalApproved, DecidedBy: actor.ID, DecidedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	h.Status = StatusApproved
	h.ApprovedBy = &actor.ID
	h.ApprovedAt = &now

	metrics.RecordApprovalDecision("hospital", "approved")
	s.notifier.Notify(h.Email, "hospital-approved", map[string]string{
		"name":     h.Name,
		"hospital": h.Name,
		"message":  message,
	})
	return h, nil
}

// Reject marks a pending hospital rejected with a mandatory reason.
func (s *Service) Reject(ctx context.Context, actor policy.Actor, id uuid.UUID, reason string) (*Hospital, error) {
	if actor.Role != policy.RoleSuperAdmin {
		metrics.RecordAuthorizationDecision("hospital", "reject", false)
		return nil, apperror.AccessDenied("only a super admin rejects hospitals")
	}
	metrics.RecordAuthorizationDecision("hospital", "reject", true)

	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < 10 || n > 500 {
		return nil, apperror.InvalidArgument("rejection reason must be between 10 and 500 characters")
	}

	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Status != StatusPending {
		return nil, apperror.PreconditionFailed("hospital is not pending approval")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, Decision{
		Status: StatusRejected, DecidedBy: actor.ID, DecidedAt: now, Reason: &reason,
	}); err != nil {
		return nil, err
	}
	h.Status = StatusRejected
	h.RejectionReason = &reason

	metrics.RecordApprovalDecision("hospital", "rejected")
	s.notifier.Notify(h.Email, "hospital-rejected", map[string]string{
		"name":     h.Name,
		"hospital": h.Name,
		"reason":   reason,
	})
	return h, nil
}

// Suspend takes an approved hospital out of service. Suspension is
// reversible and immediately gates that hospital's practice doctors.
func (s *Service) Suspend(ctx context.Context, actor policy.Actor, id uuid.UUID) (*Hospital, error) {
	return s.toggle(ctx, actor, id, StatusApproved, StatusSuspended)
}

// Reinstate returns a suspended hospital to approved.
func (s *Service) Reinstate(ctx context.Context, actor policy.Actor, id uuid.UUID) (*Hospital, error) {
	return s.toggle(ctx, actor, id, StatusSuspended, StatusApproved)
}

func (s *Service) toggle(ctx context.Context, actor policy.Actor, id uuid.UUID, from, to Status) (*Hospital, error) {
	if actor.Role != policy.RoleSuperAdmin {
		return nil, apperror.AccessDenied("only a super admin changes hospital status")
	}
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Status != from {
		return nil, apperror.PreconditionFailed("hospital is not " + string(from))
	}
	if err := s.repo.UpdateStatus(ctx, id, Decision{
		Status: to, DecidedBy: actor.ID, DecidedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	h.Status = to
	return h, nil
}

// Delete removes a hospital. When admin accounts still reference it the
// caller must confirm the cascade, which removes those accounts in the
// same transaction.
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID, cascade bool) error {
	if actor.Role != policy.RoleSuperAdmin {
		return apperror.AccessDenied("only a super admin deletes hospitals")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	admins, _, err := s.accounts.List(ctx, policy.Scope{Unrestricted: true}, account.ListFilter{
		Role: policy.RoleHospital, HospitalID: &id,
	}, 100, 0)
	if err != nil {
		return err
	}
	if len(admins) > 0 && !cascade {
		return apperror.PreconditionFailed("hospital has admin accounts; pass cascade=true to delete them too")
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		for _, admin := range admins {
			if err := s.accounts.Delete(ctx, admin.ID); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, id)
	})
}

// Get returns a hospital by id. Hospital records form a public
// directory: any authenticated actor may look one up to direct a
// referral at it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns hospitals matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}
