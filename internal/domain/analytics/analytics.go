// Package analytics serves the role-scoped dashboard counters. All
// aggregation happens in the datastore; this package holds no state of
// its own.
package analytics

import (
	"context"

	"github.com/carelink/carelink/internal/platform/policy"
)

// Repository runs the count queries underneath the dashboard.
type Repository interface {
	// ReferralCountsByStatus counts referrals visible under the scope,
	// grouped by status.
	ReferralCountsByStatus(ctx context.Context, scope policy.Scope) (map[string]int, error)
	// AccountCountsByApproval counts accounts grouped by approval
	// status; super-admin only data.
	AccountCountsByApproval(ctx context.Context) (map[string]int, error)
	// HospitalCountsByStatus counts hospitals grouped by status;
	// super-admin only data.
	HospitalCountsByStatus(ctx context.Context) (map[string]int, error)
}

// Dashboard is the role-scoped counter set. Accounts and Hospitals are
// nil for everyone but super admins.
type Dashboard struct {
	Referrals map[string]int `json:"referrals"`
	Accounts  map[string]int `json:"accounts,omitempty"`
	Hospitals map[string]int `json:"hospitals,omitempty"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Dashboard returns the counters the actor may see. Referral counts
// are filtered through the same visibility scope as referral listings,
// so the dashboard never counts records the actor could not list.
func (s *Service) Dashboard(ctx context.Context, actor policy.Actor) (*Dashboard, error) {
	referrals, err := s.repo.ReferralCountsByStatus(ctx, policy.ReferralScope(actor))
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Referrals: referrals}

	if actor.Role == policy.RoleSuperAdmin {
		if d.Accounts, err = s.repo.AccountCountsByApproval(ctx); err != nil {
			return nil, err
		}
		if d.Hospitals, err = s.repo.HospitalCountsByStatus(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}
