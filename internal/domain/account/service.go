package account

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/carelink/internal/domain/clinic"
	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/metrics"
	"github.com/carelink/carelink/internal/platform/policy"
)

// HospitalDirectory is the slice of the hospital module the account
// service needs: existence and approval status of a hospital. Defined
// here so the account package does not depend on the hospital package.
type HospitalDirectory interface {
	Status(ctx context.Context, id uuid.UUID) (string, error)
}

// Notifier sends best-effort notifications; implemented by the
// notification service.
type Notifier interface {
	Notify(recipient, templateID string, data map[string]string)
}

type Service struct {
	repo      Repository
	clinics   clinic.Repository
	hospitals HospitalDirectory
	notifier  Notifier
	logger    zerolog.Logger
}

func NewService(repo Repository, clinics clinic.Repository, hospitals HospitalDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, clinics: clinics, hospitals: hospitals, notifier: notifier, logger: logger}
}

// RegisterInput is the signup payload. ClinicName and its siblings are
// only read for doctors registering an independent practice.
type RegisterInput struct {
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Password     string              `json:"password"`
	Role         policy.Role         `json:"role"`
	HospitalID   *uuid.UUID          `json:"hospital_id,omitempty"`
	PracticeType policy.PracticeType `json:"practice_type,omitempty"`
	Specialty    string              `json:"specialty,omitempty"`
	Phone        string              `json:"phone,omitempty"`

	ClinicName      string `json:"clinic_name,omitempty"`
	ClinicSpecialty string `json:"clinic_specialty,omitempty"`
	ClinicAddress   string `json:"clinic_address,omitempty"`
}

// Register creates an account. Patients and super admins are usable
// immediately; hospital admins and doctors start pending. A doctor
// registering an independent practice also gets a clinic: the account
// is created first and deleted again if the clinic cannot be, so a
// failed signup leaves no orphan account behind.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Name == "" {
		return nil, apperror.InvalidArgument("name is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, apperror.InvalidArgument("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, apperror.InvalidArgument("password must be at least 8 characters")
	}
	if !policy.ValidRole(in.Role) {
		return nil, apperror.InvalidArgument("invalid role: " + string(in.Role))
	}

	a := &Account{
		Name:           in.Name,
		Email:          in.Email,
		Role:           in.Role,
		ApprovalStatus: policy.ApprovalPending,
		IsActive:       true,
		Specialty:      in.Specialty,
		Phone:          in.Phone,
	}

	switch in.Role {
	case policy.RolePatient, policy.RoleSuperAdmin:
		a.ApprovalStatus = policy.ApprovalApproved
	case policy.RoleHospital:
		a.HospitalID = in.HospitalID
	case policy.RoleDoctor:
		switch in.PracticeType {
		case policy.PracticeHospital:
			if in.HospitalID == nil {
				return nil, apperror.InvalidArgument("hospital_id is required for hospital-practice doctors")
			}
			if _, err := s.hospitals.Status(ctx, *in.HospitalID); err != nil {
				return nil, apperror.Wrap(err, "resolve hospital")
			}
			a.HospitalID = in.HospitalID
			a.PracticeType = policy.PracticeHospital
		case policy.PracticeOwnClinic:
			if strings.TrimSpace(in.ClinicName) == "" {
				return nil, apperror.InvalidArgument("clinic_name is required for independent-practice doctors")
			}
			a.PracticeType = policy.PracticeOwnClinic
		default:
			return nil, apperror.InvalidArgument("practice_type must be \"hospital\" or \"own_clinic\"")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.DependencyUnavailable("hash password", err)
	}
	a.PasswordHash = string(hash)

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if a.PracticeType == policy.PracticeOwnClinic {
		cl := &clinic.Clinic{
			OwnerID:   a.ID,
			Name:      strings.TrimSpace(in.ClinicName),
			Specialty: in.ClinicSpecialty,
			Address:   in.ClinicAddress,
		}
		if err := s.clinics.Create(ctx, cl); err != nil {
			// Compensate: the half-onboarded doctor must not remain.
			if delErr := s.repo.Delete(ctx, a.ID); delErr != nil {
				s.logger.Error().Err(delErr).Str("account_id", a.ID.String()).
					Msg("failed to delete account after clinic creation failure")
			}
			return nil, apperror.Wrap(err, "create clinic")
		}
		a.ClinicID = &cl.ID
		if err := s.repo.SetClinic(ctx, a.ID, cl.ID); err != nil {
			return nil, apperror.Wrap(err, "link clinic to account")
		}
	}

	return a, nil
}

// Approve marks a pending account approved. Authority follows the
// approval chain: the doctor's hospital admin for hospital-practice
// doctors, a super admin for everyone else.
func (s *Service) Approve(ctx context.Context, actor policy.Actor, id uuid.UUID, message string) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanApproveAccount(actor, a.Ref()) {
		metrics.RecordAuthorizationDecision("account", "approve", false)
		return nil, apperror.AccessDenied("not authorized to approve this account")
	}
	metrics.RecordAuthorizationDecision("account", "approve", true)
	if a.ApprovalStatus != policy.ApprovalPending {
		return nil, apperror.PreconditionFailed("account is not pending approval")
	}

	now := time.Now().UTC()
	d := Decision{Status: policy.ApprovalApproved, DecidedBy: actor.ID, DecidedAt: now}
	if err := s.repo.UpdateApproval(ctx, id, d); err != nil {
		return nil, err
	}
	a.ApprovalStatus = policy.ApprovalApproved
	a.ApprovedBy = &actor.ID
	a.ApprovedAt = &now

	metrics.RecordApprovalDecision("account", "approved")
	s.notifier.Notify(a.Email, "account-approved", map[string]string{
		"name":    a.Name,
		"message": message,
	})
	return a, nil
}

// Reject marks a pending account rejected with a mandatory reason.
func (s *Service) Reject(ctx context.Context, actor policy.Actor, id uuid.UUID, reason string) (*Account, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < 10 || n > 500 {
		return nil, apperror.InvalidArgument("rejection reason must be between 10 and 500 characters")
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanApproveAccount(actor, a.Ref()) {
		metrics.RecordAuthorizationDecision("account", "reject", false)
		return nil, apperror.AccessDenied("not authorized to reject this account")
	}
	metrics.RecordAuthorizationDecision("account", "reject", true)
	if a.ApprovalStatus != policy.ApprovalPending {
		return nil, apperror.PreconditionFailed("account is not pending approval")
	}

	now := time.Now().UTC()
	d := Decision{Status: policy.ApprovalRejected, DecidedBy: actor.ID, DecidedAt: now, Reason: &reason}
	if err := s.repo.UpdateApproval(ctx, id, d); err != nil {
		return nil, err
	}
	a.ApprovalStatus = policy.ApprovalRejected
	a.RejectionReason = &reason

	metrics.RecordApprovalDecision("account", "rejected")
	s.notifier.Notify(a.Email, "account-rejected", map[string]string{
		"name":   a.Name,
		"reason": reason,
	})
	return a, nil
}

// SetActive activates or deactivates an account. Unlike approval this
// is repeatable and carries no terminal state.
func (s *Service) SetActive(ctx context.Context, actor policy.Actor, id uuid.UUID, active bool) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanManageAccount(actor, a.Ref()) {
		metrics.RecordAuthorizationDecision("account", "set_active", false)
		return apperror.AccessDenied("not authorized to manage this account")
	}
	metrics.RecordAuthorizationDecision("account", "set_active", true)
	return s.repo.SetActive(ctx, id, active)
}

// Get returns an account the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewAccount(actor, a.Ref()) {
		metrics.RecordAuthorizationDecision("account", "view", false)
		return nil, apperror.AccessDenied("not authorized to view this account")
	}
	return a, nil
}

// List returns accounts visible to the actor, narrowed by the filter.
func (s *Service) List(ctx context.Context, actor policy.Actor, filter ListFilter, limit, offset int) ([]*Account, int, error) {
	return s.repo.List(ctx, policy.AccountScope(actor), filter, limit, offset)
}
