// Package clinic holds the independent practice owned by a doctor.
// Clinics are created only as part of doctor onboarding with an
// own-clinic practice type; there is no standalone clinic signup.
package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is a doctor-owned independent practice. OwnerID is 1:1 with
// the owning doctor account.
type Clinic struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
