package referral

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/account"
	"github.com/carelink/carelink/internal/domain/hospital"
	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/metrics"
	"github.com/carelink/carelink/internal/platform/policy"
)

// referralTTL is how long a referral stays actionable before the
// expiry timestamp; advisory, nothing enforces it server-side.
const referralTTL = 30 * 24 * time.Hour

// AccountDirectory is the slice of the account module the referral
// service needs.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	FirstApprovedDoctor(ctx context.Context, hospitalID uuid.UUID) (*account.Account, error)
}

// HospitalDirectory resolves receiving hospitals.
type HospitalDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
}

// Notifier sends best-effort notifications.
type Notifier interface {
	Notify(recipient, templateID string, data map[string]string)
}

type Service struct {
	repo      Repository
	accounts  AccountDirectory
	hospitals HospitalDirectory
	notifier  Notifier
	logger    zerolog.Logger
}

func NewService(repo Repository, accounts AccountDirectory, hospitals HospitalDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, hospitals: hospitals, notifier: notifier, logger: logger}
}

// CreateInput is the referral creation payload. ReferringDoctorID is
// only honored for hospital-admin and super-admin callers; doctors
// always refer as themselves.
type CreateInput struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	ReferringDoctorID   *uuid.UUID `json:"referring_doctor_id,omitempty"`
	ReceivingHospitalID uuid.UUID  `json:"receiving_hospital_id"`
	ReceivingDoctorID   *uuid.UUID `json:"receiving_doctor_id,omitempty"`
	Reason              string     `json:"reason"`
	Diagnosis           string     `json:"diagnosis,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	Priority            Priority   `json:"priority,omitempty"`
}

// Create routes a new referral. The referring side is derived from the
// actor: a doctor refers as themselves, a hospital admin refers on
// behalf of a named doctor or, absent one, the longest-standing
// approved doctor at the hospital. Whoever ends up on the referring
// side must currently be able to refer (approved, active, and at an
// approved hospital when hospital-affiliated). The receiving doctor is
// deliberately not validated against the receiving hospital here; that
// check runs on update (see Update).
func (s *Service) Create(ctx context.Context, actor policy.Actor, in CreateInput) (*Referral, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, apperror.InvalidArgument("reason is required")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !ValidPriority(in.Priority) {
		return nil, apperror.InvalidArgument("invalid priority: " + string(in.Priority))
	}

	patient, err := s.accounts.GetByID(ctx, in.PatientID)
	if err != nil || patient.Role != policy.RolePatient {
		return nil, apperror.InvalidArgument("patient_id does not resolve to a patient account")
	}

	receiving, err := s.hospitals.Get(ctx, in.ReceivingHospitalID)
	if err != nil {
		return nil, apperror.InvalidArgument("receiving_hospital_id does not resolve to a hospital")
	}

	ref := &Referral{
		PatientID:           in.PatientID,
		ReceivingHospitalID: receiving.ID,
		ReceivingDoctorID:   in.ReceivingDoctorID,
		Reason:              in.Reason,
		Diagnosis:           in.Diagnosis,
		Notes:               in.Notes,
		Priority:            in.Priority,
		Status:              StatusPending,
		Timeline:            []TimelineEntry{},
		Messages:            []Message{},
		ExpiresAt:           time.Now().UTC().Add(referralTTL),
	}

	var referrer *account.Account
	switch actor.Role {
	case policy.RoleDoctor:
		if in.ReferringDoctorID != nil && *in.ReferringDoctorID != actor.ID {
			return nil, apperror.AccessDenied("doctors refer as themselves")
		}
		referrer, err = s.accounts.GetByID(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
	case policy.RoleHospital:
		if actor.HospitalID == nil {
			return nil, apperror.AccessDenied("hospital admin has no hospital")
		}
		referrer, err = s.resolveReferringDoctor(ctx, *actor.HospitalID, in.ReferringDoctorID)
		if err != nil {
			return nil, err
		}
	case policy.RoleSuperAdmin:
		if in.ReferringDoctorID == nil {
			return nil, apperror.InvalidArgument("referring_doctor_id is required")
		}
		referrer, err = s.accounts.GetByID(ctx, *in.ReferringDoctorID)
		if err != nil || referrer.Role != policy.RoleDoctor {
			return nil, apperror.InvalidArgument("referring_doctor_id does not resolve to a doctor")
		}
	default:
		return nil, apperror.AccessDenied("patients may not create referrals")
	}

	if err := s.requireUsableReferrer(ctx, referrer); err != nil {
		return nil, err
	}
	ref.ReferringDoctorID = referrer.ID
	ref.ReferringHospitalID = referrer.HospitalID
	ref.ReferringClinicID = referrer.ClinicID

	// One retry on a number collision; the odds of two in a row are
	// not worth coding for.
	ref.Number = NewNumber()
	err = s.repo.Create(ctx, ref)
	if apperror.Is(err, apperror.KindConflict) {
		ref.Number = NewNumber()
		err = s.repo.Create(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordReferralCreated(string(ref.Priority))
	s.notifier.Notify(patient.Email, "referral-created", map[string]string{
		"number":   ref.Number,
		"patient":  patient.Name,
		"hospital": receiving.Name,
	})
	return ref, nil
}

func (s *Service) resolveReferringDoctor(ctx context.Context, hospitalID uuid.UUID, explicit *uuid.UUID) (*account.Account, error) {
	if explicit != nil {
		doctor, err := s.accounts.GetByID(ctx, *explicit)
		if err != nil || doctor.Role != policy.RoleDoctor ||
			doctor.HospitalID == nil || *doctor.HospitalID != hospitalID {
			return nil, apperror.InvalidArgument("referring doctor must belong to your hospital")
		}
		return doctor, nil
	}
	doctor, err := s.accounts.FirstApprovedDoctor(ctx, hospitalID)
	if apperror.Is(err, apperror.KindNotFound) {
		return nil, apperror.PreconditionFailed("no approved doctor available at the referring hospital")
	}
	if err != nil {
		return nil, err
	}
	return doctor, nil
}

// requireUsableReferrer rejects a referring doctor who cannot currently
// refer: not approved, deactivated, or practicing at a hospital that is
// not itself approved.
func (s *Service) requireUsableReferrer(ctx context.Context, doctor *account.Account) error {
	hospitalStatus := ""
	if doctor.PracticeType == policy.PracticeHospital && doctor.HospitalID != nil {
		h, err := s.hospitals.Get(ctx, *doctor.HospitalID)
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return err
		}
		if err == nil {
			hospitalStatus = string(h.Status)
		}
	}
	if !policy.DoctorUsable(doctor.ApprovalStatus, doctor.IsActive, doctor.PracticeType, hospitalStatus) {
		return apperror.PreconditionFailed("referring doctor is not currently able to refer")
	}
	return nil
}

// UpdateInput carries the editable non-status fields; nil means leave
// unchanged.
type UpdateInput struct {
	Reason              *string    `json:"reason,omitempty"`
	Diagnosis           *string    `json:"diagnosis,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	Priority            *Priority  `json:"priority,omitempty"`
	ReceivingHospitalID *uuid.UUID `json:"receiving_hospital_id,omitempty"`
	ReceivingDoctorID   *uuid.UUID `json:"receiving_doctor_id,omitempty"`
}

func (in UpdateInput) routes() bool {
	return in.ReceivingHospitalID != nil || in.ReceivingDoctorID != nil
}

// Update edits non-status fields. Doctors are restricted to the
// clinical narrative; re-routing needs hospital-admin or super-admin
// authority. Changing the receiving hospital drops a receiving doctor
// who no longer belongs there, and naming a receiving doctor requires
// membership in the receiving hospital.
func (s *Service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, in UpdateInput) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "update", false)
		return nil, apperror.AccessDenied("not authorized to view this referral")
	}
	if !policy.CanUpdateReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "update", false)
		return nil, apperror.AccessDenied("not authorized to update this referral")
	}
	if in.routes() && !policy.CanRouteReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "route", false)
		return nil, apperror.AccessDenied("not authorized to re-route this referral")
	}
	metrics.RecordAuthorizationDecision("referral", "update", true)

	if in.Reason != nil {
		if strings.TrimSpace(*in.Reason) == "" {
			return nil, apperror.InvalidArgument("reason cannot be empty")
		}
		ref.Reason = strings.TrimSpace(*in.Reason)
	}
	if in.Diagnosis != nil {
		ref.Diagnosis = *in.Diagnosis
	}
	if in.Notes != nil {
		ref.Notes = *in.Notes
	}
	if in.Priority != nil {
		if !ValidPriority(*in.Priority) {
			return nil, apperror.InvalidArgument("invalid priority: " + string(*in.Priority))
		}
		ref.Priority = *in.Priority
	}

	if in.ReceivingHospitalID != nil && *in.ReceivingHospitalID != ref.ReceivingHospitalID {
		if _, err := s.hospitals.Get(ctx, *in.ReceivingHospitalID); err != nil {
			return nil, apperror.InvalidArgument("receiving_hospital_id does not resolve to a hospital")
		}
		ref.ReceivingHospitalID = *in.ReceivingHospitalID
		// A receiving doctor from the old hospital is stale now.
		if ref.ReceivingDoctorID != nil && in.ReceivingDoctorID == nil {
			doctor, err := s.accounts.GetByID(ctx, *ref.ReceivingDoctorID)
			if err != nil || doctor.HospitalID == nil || *doctor.HospitalID != ref.ReceivingHospitalID {
				ref.ReceivingDoctorID = nil
			}
		}
	}

	if in.ReceivingDoctorID != nil {
		doctor, err := s.accounts.GetByID(ctx, *in.ReceivingDoctorID)
		if err != nil || doctor.Role != policy.RoleDoctor ||
			doctor.HospitalID == nil || *doctor.HospitalID != ref.ReceivingHospitalID {
			return nil, apperror.InvalidArgument("receiving doctor must belong to receiving hospital")
		}
		ref.ReceivingDoctorID = in.ReceivingDoctorID
	}

	if err := s.repo.Update(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// SetStatus transitions the referral and appends exactly one timeline
// entry atomically. Any valid status may follow any other; the
// lifecycle graph is advisory, not enforced.
func (s *Service) SetStatus(ctx context.Context, actor policy.Actor, id uuid.UUID, status Status, notes string) (*Referral, error) {
	if !ValidStatus(status) {
		return nil, apperror.InvalidArgument("invalid status: " + string(status))
	}

	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "transition", false)
		return nil, apperror.AccessDenied("not authorized to view this referral")
	}
	if !policy.CanTransitionReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "transition", false)
		return nil, apperror.AccessDenied("only the receiving hospital changes referral status")
	}
	metrics.RecordAuthorizationDecision("referral", "transition", true)

	entry := TimelineEntry{
		Status:      status,
		PerformedBy: actor.ID,
		Notes:       notes,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.repo.SetStatus(ctx, id, status, entry); err != nil {
		return nil, err
	}
	metrics.RecordReferralStatusChange(string(ref.Status), string(status))

	if patient, err := s.accounts.GetByID(ctx, ref.PatientID); err == nil {
		s.notifier.Notify(patient.Email, "referral-status-changed", map[string]string{
			"number": ref.Number,
			"status": string(status),
			"notes":  notes,
		})
	} else {
		s.logger.Warn().Err(err).Str("referral", ref.Number).Msg("skipping status notification")
	}

	ref.Status = status
	ref.Timeline = append(ref.Timeline, entry)
	return ref, nil
}

// AddMessage appends to the referral's message thread. Patients are
// read-only on referrals and may not post.
func (s *Service) AddMessage(ctx context.Context, actor policy.Actor, id uuid.UUID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.InvalidArgument("message body is required")
	}
	if len(body) > 2000 {
		return nil, apperror.InvalidArgument("message body exceeds 2000 characters")
	}

	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewReferral(actor, ref.Ref()) {
		return nil, apperror.AccessDenied("not authorized to view this referral")
	}
	if !policy.CanUpdateReferral(actor, ref.Ref()) {
		return nil, apperror.AccessDenied("not authorized to post on this referral")
	}

	m := Message{
		ID:       uuid.New(),
		SenderID: actor.ID,
		Body:     body,
		SentAt:   time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, id, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the message thread of a visible referral.
func (s *Service) ListMessages(ctx context.Context, actor policy.Actor, id uuid.UUID) ([]Message, error) {
	ref, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return ref.Messages, nil
}

// Get returns a referral the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "view", false)
		return nil, apperror.AccessDenied("not authorized to view this referral")
	}
	return ref, nil
}

// GetByNumber resolves a referral by its human-facing REF- number,
// subject to the same visibility rules as Get.
func (s *Service) GetByNumber(ctx context.Context, actor policy.Actor, number string) (*Referral, error) {
	ref, err := s.repo.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	if !policy.CanViewReferral(actor, ref.Ref()) {
		metrics.RecordAuthorizationDecision("referral", "view", false)
		return nil, apperror.AccessDenied("not authorized to view this referral")
	}
	return ref, nil
}

// List returns referrals visible to the actor, narrowed by the filter.
// The visibility scope and filters are AND'ed; the actor cannot widen
// their view through filters.
func (s *Service) List(ctx context.Context, actor policy.Actor, filter ListFilter, limit, offset int) ([]*Referral, int, error) {
	return s.repo.List(ctx, policy.ReferralScope(actor), filter, limit, offset)
}
