// Package referral implements the referral lifecycle: routing a
// patient from one provider to another, the append-only status
// timeline, and the message thread between the two sides.
package referral

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/policy"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TimelineEntry records one status transition. The timeline is
// append-only; entries are never edited or removed.
type TimelineEntry struct {
	Status      Status    `json:"status"`
	PerformedBy uuid.UUID `json:"performed_by"`
	Notes       string    `json:"notes,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Message is one entry in the referral's message thread.
type Message struct {
	ID       uuid.UUID `json:"id"`
	SenderID uuid.UUID `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

type Referral struct {
	ID                  uuid.UUID       `json:"id"`
	Number              string          `json:"number"`
	PatientID           uuid.UUID       `json:"patient_id"`
	ReferringDoctorID   uuid.UUID       `json:"referring_doctor_id"`
	ReferringHospitalID *uuid.UUID      `json:"referring_hospital_id,omitempty"`
	ReferringClinicID   *uuid.UUID      `json:"referring_clinic_id,omitempty"`
	ReceivingDoctorID   *uuid.UUID      `json:"receiving_doctor_id,omitempty"`
	ReceivingHospitalID uuid.UUID       `json:"receiving_hospital_id"`
	Reason              string          `json:"reason"`
	Diagnosis           string          `json:"diagnosis,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	Priority            Priority        `json:"priority"`
	Status              Status          `json:"status"`
	Timeline            []TimelineEntry `json:"timeline"`
	Messages            []Message       `json:"messages"`
	ExpiresAt           time.Time       `json:"expires_at"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Ref projects the referral into the slice the policy package decides on.
func (r *Referral) Ref() policy.ReferralRef {
	return policy.ReferralRef{
		PatientID:           r.PatientID,
		ReferringDoctorID:   r.ReferringDoctorID,
		ReceivingDoctorID:   r.ReceivingDoctorID,
		ReferringHospitalID: r.ReferringHospitalID,
		ReceivingHospitalID: r.ReceivingHospitalID,
	}
}

// NewNumber derives a referral number from a fresh UUID: REF- plus the
// first twelve hex digits. Uniqueness is enforced by the storage index;
// callers retry once on collision.
func NewNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REF-" + strings.ToUpper(hex[:12])
}
