package hospital

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/account"
	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/policy"
)

type mockRepo struct {
	hospitals map[uuid.UUID]*Hospital
}

func newMockRepo() *mockRepo {
	return &mockRepo{hospitals: make(map[uuid.UUID]*Hospital)}
}

func (m *mockRepo) Create(_ context.Context, h *Hospital) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	for _, existing := range m.hospitals {
		if existing.Email == h.Email {
			return apperror.Conflict("a hospital with this email already exists")
		}
	}
	cp := *h
	m.hospitals[h.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Hospital, error) {
	h, ok := m.hospitals[id]
	if !ok {
		return nil, apperror.NotFound("hospital")
	}
	cp := *h
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, d Decision) error {
	h, ok := m.hospitals[id]
	if !ok {
		return apperror.NotFound("hospital")
	}
	h.Status = d.Status
	h.ApprovedBy = &d.DecidedBy
	h.ApprovedAt = &d.DecidedAt
	h.RejectionReason = d.Reason
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.hospitals, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Hospital, int, error) {
	var out []*Hospital
	for _, h := range m.hospitals {
		if filter.Status != "" && h.Status != filter.Status {
			continue
		}
		cp := *h
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockAccountRepo struct {
	accounts map[uuid.UUID]*account.Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[uuid.UUID]*account.Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, a *account.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account")
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepo) GetPendingAdminByEmail(_ context.Context, email string) (*account.Account, error) {
	for _, a := range m.accounts {
		if a.Email == email && a.Role == policy.RoleHospital && a.ApprovalStatus == policy.ApprovalPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("account")
}

func (m *mockAccountRepo) UpdateApproval(_ context.Context, id uuid.UUID, d account.Decision) error {
	a, ok := m.accounts[id]
	if !ok {
		return apperror.NotFound("account")
	}
	a.ApprovalStatus = d.Status
	a.ApprovedBy = &d.DecidedBy
	a.ApprovedAt = &d.DecidedAt
	a.RejectionReason = d.Reason
	return nil
}

func (m *mockAccountRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return nil
}

func (m *mockAccountRepo) SetClinic(_ context.Context, id, clinicID uuid.UUID) error {
	return nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.accounts, id)
	return nil
}

func (m *mockAccountRepo) List(_ context.Context, _ policy.Scope, filter account.ListFilter, _, _ int) ([]*account.Account, int, error) {
	var out []*account.Account
	for _, a := range m.accounts {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		if filter.HospitalID != nil && (a.HospitalID == nil || *a.HospitalID != *filter.HospitalID) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockAccountRepo) FirstApprovedDoctor(_ context.Context, _ uuid.UUID) (*account.Account, error) {
	return nil, apperror.NotFound("doctor")
}

type mockNotifier struct {
	sent []string
}

func (m *mockNotifier) Notify(recipient, templateID string, _ map[string]string) {
	m.sent = append(m.sent, templateID+":"+recipient)
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockRepo, *mockAccountRepo, *mockNotifier) {
	repo := newMockRepo()
	accounts := newMockAccountRepo()
	notifier := &mockNotifier{}
	svc := NewService(repo, accounts, passthroughTx, notifier, zerolog.Nop())
	return svc, repo, accounts, notifier
}

func superActor() policy.Actor {
	return policy.Actor{ID: uuid.New(), Role: policy.RoleSuperAdmin, Active: true}
}

func seedHospital(t *testing.T, repo *mockRepo, status Status) *Hospital {
	t.Helper()
	h := &Hospital{Name: "St. Vincent", Email: uuid.NewString() + "@hospital.test", Status: status}
	if err := repo.Create(context.Background(), h); err != nil {
		t.Fatalf("seed hospital: %v", err)
	}
	return h
}

func TestRegisterPublicIsPending(t *testing.T) {
	svc, _, _, _ := newTestService()

	h, err := svc.Register(context.Background(), nil, RegisterInput{
		Name: "General", Email: "General@Hospital.test", Status: StatusApproved,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.Status != StatusPending {
		t.Errorf("public registration status = %s, want pending", h.Status)
	}
	if h.Email != "general@hospital.test" {
		t.Errorf("email not normalized: %q", h.Email)
	}
}

func TestRegisterSuperAdminSetsStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	actor := superActor()

	h, err := svc.Register(context.Background(), &actor, RegisterInput{
		Name: "General", Email: "g@hospital.test", Status: StatusApproved,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.Status != StatusApproved {
		t.Errorf("status = %s, want approved", h.Status)
	}
}

func TestApproveCascadesToPendingAdmin(t *testing.T) {
	svc, repo, accounts, notifier := newTestService()
	h := seedHospital(t, repo, StatusPending)

	admin := &account.Account{
		Name: "Admin", Email: h.Email, Role: policy.RoleHospital,
		ApprovalStatus: policy.ApprovalPending, IsActive: true, HospitalID: &h.ID,
	}
	if err := accounts.Create(context.Background(), admin); err != nil {
		t.Fatal(err)
	}

	actor := superActor()
	approved, err := svc.Approve(context.Background(), actor, h.ID, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Errorf("hospital status = %s", approved.Status)
	}

	acc, _ := accounts.GetByID(context.Background(), admin.ID)
	if acc.ApprovalStatus != policy.ApprovalApproved {
		t.Errorf("admin account status = %s, want approved", acc.ApprovalStatus)
	}
	if acc.ApprovedBy == nil || *acc.ApprovedBy != actor.ID {
		t.Error("cascade did not record the same approver")
	}
	if acc.ApprovedAt == nil || approved.ApprovedAt == nil || !acc.ApprovedAt.Equal(*approved.ApprovedAt) {
		t.Error("cascade did not record the same timestamp")
	}
	if len(notifier.sent) != 1 {
		t.Errorf("notifications = %v, want one hospital-approved", notifier.sent)
	}
}

func TestApproveWithoutMatchingAdmin(t *testing.T) {
	svc, repo, accounts, _ := newTestService()
	h := seedHospital(t, repo, StatusPending)

	if _, err := svc.Approve(context.Background(), superActor(), h.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(accounts.accounts) != 0 {
		t.Error("approval created an account out of nowhere")
	}
}

func TestApproveIsTerminal(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := seedHospital(t, repo, StatusApproved)

	_, err := svc.Approve(context.Background(), superActor(), h.ID, "")
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Errorf("err = %v, want PreconditionFailed", err)
	}
}

func TestApproveDeniedForNonSuper(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := seedHospital(t, repo, StatusPending)

	hid := uuid.New()
	_, err := svc.Approve(context.Background(), policy.Actor{
		ID: uuid.New(), Role: policy.RoleHospital, HospitalID: &hid, Active: true,
	}, h.ID, "")
	if !apperror.Is(err, apperror.KindAccessDenied) {
		t.Errorf("err = %v, want AccessDenied", err)
	}
}

func TestRejectReasonBounds(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := seedHospital(t, repo, StatusPending)

	_, err := svc.Reject(context.Background(), superActor(), h.ID, "nope")
	if !apperror.Is(err, apperror.KindInvalidArgument) {
		t.Errorf("short reason: err = %v, want InvalidArgument", err)
	}
	stored, _ := repo.GetByID(context.Background(), h.ID)
	if stored.Status != StatusPending {
		t.Error("state changed despite invalid reason")
	}

	rejected, err := svc.Reject(context.Background(), superActor(), h.ID, "incomplete accreditation paperwork")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Errorf("status = %s", rejected.Status)
	}
}

func TestSuspendAndReinstate(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := seedHospital(t, repo, StatusApproved)

	suspended, err := svc.Suspend(context.Background(), superActor(), h.ID)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if suspended.Status != StatusSuspended {
		t.Errorf("status = %s, want suspended", suspended.Status)
	}

	if _, err := svc.Suspend(context.Background(), superActor(), h.ID); !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Errorf("double suspend: err = %v, want PreconditionFailed", err)
	}

	back, err := svc.Reinstate(context.Background(), superActor(), h.ID)
	if err != nil {
		t.Fatalf("Reinstate: %v", err)
	}
	if back.Status != StatusApproved {
		t.Errorf("status = %s, want approved", back.Status)
	}
}

func TestDeleteRequiresCascadeConfirmation(t *testing.T) {
	svc, repo, accounts, _ := newTestService()
	h := seedHospital(t, repo, StatusApproved)

	admin := &account.Account{
		Name: "Admin", Email: h.Email, Role: policy.RoleHospital,
		ApprovalStatus: policy.ApprovalApproved, IsActive: true, HospitalID: &h.ID,
	}
	if err := accounts.Create(context.Background(), admin); err != nil {
		t.Fatal(err)
	}

	err := svc.Delete(context.Background(), superActor(), h.ID, false)
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Fatalf("err = %v, want PreconditionFailed", err)
	}
	if _, err := repo.GetByID(context.Background(), h.ID); err != nil {
		t.Error("hospital deleted despite missing confirmation")
	}

	if err := svc.Delete(context.Background(), superActor(), h.ID, true); err != nil {
		t.Fatalf("Delete with cascade: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), h.ID); !apperror.Is(err, apperror.KindNotFound) {
		t.Error("hospital still present")
	}
	if _, err := accounts.GetByID(context.Background(), admin.ID); !apperror.Is(err, apperror.KindNotFound) {
		t.Error("admin account still present after cascade")
	}
}

func TestStatusDirectory(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := seedHospital(t, repo, StatusApproved)

	st, err := svc.Status(context.Background(), h.ID)
	if err != nil || st != "approved" {
		t.Errorf("Status = %q, %v; want approved", st, err)
	}
	if _, err := svc.Status(context.Background(), uuid.New()); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("missing hospital: err = %v, want NotFound", err)
	}
}
