// Package policy decides what an authenticated actor may see and do.
// Every rule lives here as a pure function of (actor, target) so the
// handlers and repositories stay free of inline role checks. List
// endpoints additionally receive a Scope, the filter that narrows a
// query to the actor's visible subset.
package policy

import "github.com/google/uuid"

// Role is the fixed role assigned to an account at creation.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleHospital   Role = "hospital"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
)

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSuperAdmin, RoleHospital, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// ApprovalStatus gates whether an account or hospital may use the system.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// PracticeType distinguishes hospital-affiliated doctors from
// independent-practice doctors.
type PracticeType string

const (
	PracticeHospital  PracticeType = "hospital"
	PracticeOwnClinic PracticeType = "own_clinic"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID         uuid.UUID
	Role       Role
	HospitalID *uuid.UUID
	ClinicID   *uuid.UUID
	Active     bool
}

func (a Actor) sameHospital(id *uuid.UUID) bool {
	return a.HospitalID != nil && id != nil && *a.HospitalID == *id
}

// AccountRef is the slice of an account the policy needs to decide on it.
type AccountRef struct {
	ID             uuid.UUID
	Role           Role
	HospitalID     *uuid.UUID
	ApprovalStatus ApprovalStatus
	PracticeType   PracticeType
}

// ReferralRef is the slice of a referral the policy needs to decide on it.
type ReferralRef struct {
	PatientID           uuid.UUID
	ReferringDoctorID   uuid.UUID
	ReceivingDoctorID   *uuid.UUID
	ReferringHospitalID *uuid.UUID
	ReceivingHospitalID uuid.UUID
}

// CanViewAccount reports whether the actor may read the target account.
// Hospital admins see their own doctors plus approved doctors elsewhere
// (referral-partner visibility); everyone sees themselves.
func CanViewAccount(actor Actor, target AccountRef) bool {
	if actor.Role == RoleSuperAdmin {
		return true
	}
	if actor.ID == target.ID {
		return true
	}
	if actor.Role == RoleHospital && target.Role == RoleDoctor {
		if actor.sameHospital(target.HospitalID) {
			return true
		}
		return target.ApprovalStatus == ApprovalApproved
	}
	return false
}

// CanManageAccount reports whether the actor may mutate the target
// account (approve, reject, activate, deactivate). View rights do not
// imply manage rights: a hospital admin manages only its own doctors.
func CanManageAccount(actor Actor, target AccountRef) bool {
	if actor.Role == RoleSuperAdmin {
		return true
	}
	if actor.Role == RoleHospital && target.Role == RoleDoctor {
		return actor.sameHospital(target.HospitalID)
	}
	return false
}

// CanApproveAccount reports whether the actor holds approval authority
// over the target: the admin of a hospital-practice doctor's hospital,
// or a super admin for clinic doctors and hospital-admin accounts.
func CanApproveAccount(actor Actor, target AccountRef) bool {
	if actor.Role == RoleSuperAdmin {
		return true
	}
	if target.Role == RoleDoctor && target.PracticeType == PracticeHospital {
		return actor.Role == RoleHospital && actor.sameHospital(target.HospitalID)
	}
	return false
}

// CanViewReferral reports whether the actor may read the referral.
func CanViewReferral(actor Actor, r ReferralRef) bool {
	switch actor.Role {
	case RoleSuperAdmin:
		return true
	case RoleHospital:
		return actor.sameHospital(r.ReferringHospitalID) || actor.sameHospital(&r.ReceivingHospitalID)
	case RoleDoctor:
		if r.ReferringDoctorID == actor.ID {
			return true
		}
		return r.ReceivingDoctorID != nil && *r.ReceivingDoctorID == actor.ID
	case RolePatient:
		return r.PatientID == actor.ID
	}
	return false
}

// CanUpdateReferral reports whether the actor may change non-status
// fields. Patients are read-only; doctors edit clinical fields on their
// own referrals (the field restriction is enforced by the service);
// hospital admins edit referrals their hospital participates in.
func CanUpdateReferral(actor Actor, r ReferralRef) bool {
	if actor.Role == RolePatient {
		return false
	}
	return CanViewReferral(actor, r)
}

// CanTransitionReferral reports whether the actor may change the
// referral's status. Only the receiving hospital's admin, or a super
// admin, transitions a referral.
func CanTransitionReferral(actor Actor, r ReferralRef) bool {
	if actor.Role == RoleSuperAdmin {
		return true
	}
	return actor.Role == RoleHospital && actor.sameHospital(&r.ReceivingHospitalID)
}

// CanRouteReferral reports whether the actor may set or change the
// doctor/hospital bindings of a referral. Doctors may not re-route a
// referral once created.
func CanRouteReferral(actor Actor, r ReferralRef) bool {
	if actor.Role == RoleDoctor || actor.Role == RolePatient {
		return false
	}
	return CanUpdateReferral(actor, r)
}

// DoctorUsable reports whether a doctor account may act in the system:
// the account itself must be approved and active, and a
// hospital-practice doctor is additionally gated on their hospital
// still being approved. Checked per request, not at approval time.
func DoctorUsable(approval ApprovalStatus, active bool, practice PracticeType, hospitalStatus string) bool {
	if approval != ApprovalApproved || !active {
		return false
	}
	if practice == PracticeHospital {
		return hospitalStatus == "approved"
	}
	return true
}
