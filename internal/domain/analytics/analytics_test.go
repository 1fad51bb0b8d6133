package analytics

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/policy"
)

type mockRepo struct {
	lastScope     policy.Scope
	accountCalls  int
	hospitalCalls int
}

func (m *mockRepo) ReferralCountsByStatus(_ context.Context, scope policy.Scope) (map[string]int, error) {
	m.lastScope = scope
	return map[string]int{"pending": 2, "accepted": 1}, nil
}

func (m *mockRepo) AccountCountsByApproval(_ context.Context) (map[string]int, error) {
	m.accountCalls++
	return map[string]int{"pending": 3}, nil
}

func (m *mockRepo) HospitalCountsByStatus(_ context.Context) (map[string]int, error) {
	m.hospitalCalls++
	return map[string]int{"approved": 4}, nil
}

func TestDashboardScopesReferralCounts(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	actor := policy.Actor{ID: uuid.New(), Role: policy.RoleDoctor, Active: true}
	d, err := svc.Dashboard(context.Background(), actor)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if repo.lastScope.Unrestricted {
		t.Error("doctor dashboard queried with an unrestricted scope")
	}
	if len(repo.lastScope.Any) != 2 {
		t.Errorf("doctor scope has %d conditions, want 2", len(repo.lastScope.Any))
	}
	if d.Referrals["pending"] != 2 {
		t.Errorf("referral counts = %v", d.Referrals)
	}
	if d.Accounts != nil || d.Hospitals != nil {
		t.Error("non-super dashboard includes global counters")
	}
	if repo.accountCalls != 0 || repo.hospitalCalls != 0 {
		t.Error("global count queries ran for a non-super actor")
	}
}

func TestDashboardSuperAdminGetsGlobalCounts(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	actor := policy.Actor{ID: uuid.New(), Role: policy.RoleSuperAdmin, Active: true}
	d, err := svc.Dashboard(context.Background(), actor)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if !repo.lastScope.Unrestricted {
		t.Error("super admin scope should be unrestricted")
	}
	if d.Accounts["pending"] != 3 || d.Hospitals["approved"] != 4 {
		t.Errorf("global counters = %v / %v", d.Accounts, d.Hospitals)
	}
}
