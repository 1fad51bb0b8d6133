package referral

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/account"
	"github.com/carelink/carelink/internal/domain/hospital"
	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/policy"
)

type mockRepo struct {
	mu        sync.Mutex
	referrals map[uuid.UUID]*Referral
	conflicts int
}

func newMockRepo() *mockRepo {
	return &mockRepo{referrals: make(map[uuid.UUID]*Referral)}
}

func (m *mockRepo) Create(_ context.Context, r *Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return apperror.Conflict("referral number already exists")
	}
	for _, existing := range m.referrals {
		if existing.Number == r.Number {
			return apperror.Conflict("referral number already exists")
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now().UTC()
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok {
		return nil, apperror.NotFound("referral")
	}
	cp := *r
	cp.Timeline = append([]TimelineEntry(nil), r.Timeline...)
	cp.Messages = append([]Message(nil), r.Messages...)
	return &cp, nil
}

func (m *mockRepo) GetByNumber(_ context.Context, number string) (*Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.referrals {
		if r.Number == number {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("referral")
}

func (m *mockRepo) Update(_ context.Context, r *Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.referrals[r.ID]
	if !ok {
		return apperror.NotFound("referral")
	}
	stored.ReceivingDoctorID = r.ReceivingDoctorID
	stored.ReceivingHospitalID = r.ReceivingHospitalID
	stored.Reason = r.Reason
	stored.Diagnosis = r.Diagnosis
	stored.Notes = r.Notes
	stored.Priority = r.Priority
	return nil
}

func (m *mockRepo) SetStatus(_ context.Context, id uuid.UUID, status Status, entry TimelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok {
		return apperror.NotFound("referral")
	}
	r.Status = status
	r.Timeline = append(r.Timeline, entry)
	return nil
}

func (m *mockRepo) AddMessage(_ context.Context, id uuid.UUID, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok {
		return apperror.NotFound("referral")
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

func (m *mockRepo) List(_ context.Context, scope policy.Scope, filter ListFilter, _, _ int) ([]*Referral, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Referral
	for _, r := range m.referrals {
		if !scope.Matches(map[string]any{
			"patient_id":            r.PatientID,
			"referring_doctor_id":   r.ReferringDoctorID,
			"receiving_doctor_id":   r.ReceivingDoctorID,
			"referring_hospital_id": r.ReferringHospitalID,
			"receiving_hospital_id": r.ReceivingHospitalID,
		}) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockAccounts struct {
	accounts map[uuid.UUID]*account.Account
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{accounts: make(map[uuid.UUID]*account.Account)}
}

func (m *mockAccounts) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account")
	}
	return a, nil
}

func (m *mockAccounts) FirstApprovedDoctor(_ context.Context, hospitalID uuid.UUID) (*account.Account, error) {
	var best *account.Account
	for _, a := range m.accounts {
		if a.Role != policy.RoleDoctor || !a.IsActive || a.ApprovalStatus != policy.ApprovalApproved {
			continue
		}
		if a.HospitalID == nil || *a.HospitalID != hospitalID {
			continue
		}
		if best == nil || a.CreatedAt.Before(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return nil, apperror.NotFound("doctor")
	}
	return best, nil
}

func (m *mockAccounts) addPatient() *account.Account {
	a := &account.Account{
		ID: uuid.New(), Name: "Pat", Email: uuid.NewString() + "@x.com",
		Role: policy.RolePatient, ApprovalStatus: policy.ApprovalApproved, IsActive: true,
	}
	m.accounts[a.ID] = a
	return a
}

func (m *mockAccounts) addDoctor(hospitalID uuid.UUID, createdAt time.Time) *account.Account {
	a := &account.Account{
		ID: uuid.New(), Name: "Dr", Email: uuid.NewString() + "@x.com",
		Role: policy.RoleDoctor, ApprovalStatus: policy.ApprovalApproved, IsActive: true,
		HospitalID: &hospitalID, PracticeType: policy.PracticeHospital, CreatedAt: createdAt,
	}
	m.accounts[a.ID] = a
	return a
}

func (m *mockAccounts) addClinicDoctor(clinicID uuid.UUID) *account.Account {
	a := &account.Account{
		ID: uuid.New(), Name: "Dr", Email: uuid.NewString() + "@x.com",
		Role: policy.RoleDoctor, ApprovalStatus: policy.ApprovalApproved, IsActive: true,
		ClinicID: &clinicID, PracticeType: policy.PracticeOwnClinic, CreatedAt: time.Now(),
	}
	m.accounts[a.ID] = a
	return a
}

type mockHospitals struct {
	hospitals map[uuid.UUID]*hospital.Hospital
}

func newMockHospitals() *mockHospitals {
	return &mockHospitals{hospitals: make(map[uuid.UUID]*hospital.Hospital)}
}

func (m *mockHospitals) Get(_ context.Context, id uuid.UUID) (*hospital.Hospital, error) {
	h, ok := m.hospitals[id]
	if !ok {
		return nil, apperror.NotFound("hospital")
	}
	return h, nil
}

func (m *mockHospitals) add() *hospital.Hospital {
	return m.addWithStatus(hospital.StatusApproved)
}

func (m *mockHospitals) addWithStatus(status hospital.Status) *hospital.Hospital {
	h := &hospital.Hospital{ID: uuid.New(), Name: "General", Status: status}
	m.hospitals[h.ID] = h
	return h
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (m *mockNotifier) Notify(recipient, templateID string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, templateID)
}

func newTestService() (*Service, *mockRepo, *mockAccounts, *mockHospitals, *mockNotifier) {
	repo := newMockRepo()
	accounts := newMockAccounts()
	hospitals := newMockHospitals()
	notifier := &mockNotifier{}
	svc := NewService(repo, accounts, hospitals, notifier, zerolog.Nop())
	return svc, repo, accounts, hospitals, notifier
}

func doctorActor(a *account.Account) policy.Actor {
	return policy.Actor{ID: a.ID, Role: policy.RoleDoctor, HospitalID: a.HospitalID, Active: true}
}

func hospitalActor(hospitalID uuid.UUID) policy.Actor {
	return policy.Actor{ID: uuid.New(), Role: policy.RoleHospital, HospitalID: &hospitalID, Active: true}
}

func TestCreateAsDoctor(t *testing.T) {
	svc, _, accounts, hospitals, notifier := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	referringHospital := hospitals.add().ID
	doc := accounts.addDoctor(referringHospital, time.Now())

	ref, err := svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID:           patient.ID,
		ReceivingHospitalID: receiving.ID,
		Reason:              "persistent chest pain",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.ReferringDoctorID != doc.ID {
		t.Error("referring doctor not taken from actor")
	}
	if ref.ReferringHospitalID == nil || *ref.ReferringHospitalID != referringHospital {
		t.Error("referring hospital not taken from actor affiliation")
	}
	if ref.Priority != PriorityMedium {
		t.Errorf("priority = %s, want medium default", ref.Priority)
	}
	if ref.Status != StatusPending {
		t.Errorf("status = %s, want pending", ref.Status)
	}
	if len(ref.Timeline) != 0 {
		t.Errorf("creation appended %d timeline entries, want 0", len(ref.Timeline))
	}
	if !strings.HasPrefix(ref.Number, "REF-") || len(ref.Number) != 16 {
		t.Errorf("number = %q", ref.Number)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "referral-created" {
		t.Errorf("notifications = %v", notifier.sent)
	}
}

func TestCreateValidatesPatientAndHospital(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	receiving := hospitals.add()
	doc := accounts.addDoctor(uuid.New(), time.Now())

	_, err := svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID: uuid.New(), ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindInvalidArgument) {
		t.Errorf("unknown patient: err = %v, want InvalidArgument", err)
	}

	patient := accounts.addPatient()
	_, err = svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: uuid.New(), Reason: "r",
	})
	if !apperror.Is(err, apperror.KindInvalidArgument) {
		t.Errorf("unknown hospital: err = %v, want InvalidArgument", err)
	}
}

func TestCreateAsHospitalAdminSelectsDefaultDoctor(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	hid := hospitals.add().ID
	admin := hospitalActor(hid)

	_, err := svc.Create(context.Background(), admin, CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Fatalf("no doctor: err = %v, want PreconditionFailed", err)
	}

	older := accounts.addDoctor(hid, time.Now().Add(-time.Hour))
	accounts.addDoctor(hid, time.Now())

	ref, err := svc.Create(context.Background(), admin, CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.ReferringDoctorID != older.ID {
		t.Error("did not select the earliest-created approved doctor")
	}
}

func TestCreateExplicitDoctorMustBelongToHospital(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	hid := uuid.New()
	foreign := accounts.addDoctor(uuid.New(), time.Now())

	_, err := svc.Create(context.Background(), hospitalActor(hid), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID,
		ReferringDoctorID: &foreign.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
}

func TestCreateRetriesNumberCollision(t *testing.T) {
	svc, repo, accounts, hospitals, _ := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	doc := accounts.addDoctor(hospitals.add().ID, time.Now())
	repo.conflicts = 1

	ref, err := svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if err != nil {
		t.Fatalf("Create after one collision: %v", err)
	}
	if ref.Number == "" {
		t.Error("no number assigned")
	}
}

func TestCreateBlockedWhenReferringHospitalSuspended(t *testing.T) {
	svc, _, accounts, hospitals, notifier := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	suspended := hospitals.addWithStatus(hospital.StatusSuspended)
	doc := accounts.addDoctor(suspended.ID, time.Now())

	_, err := svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Errorf("doctor at suspended hospital: err = %v, want PreconditionFailed", err)
	}

	// The admin of the suspended hospital is blocked the same way when
	// the default doctor resolves to one of its own.
	_, err = svc.Create(context.Background(), hospitalActor(suspended.ID), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Errorf("admin of suspended hospital: err = %v, want PreconditionFailed", err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications = %v, want none", notifier.sent)
	}
}

func TestCreateBlockedForInactiveOrUnapprovedDoctor(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()

	inactive := accounts.addDoctor(hospitals.add().ID, time.Now())
	inactive.IsActive = false
	_, err := svc.Create(context.Background(), doctorActor(inactive), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Errorf("inactive doctor: err = %v, want PreconditionFailed", err)
	}

	pending := accounts.addDoctor(hospitals.add().ID, time.Now())
	pending.ApprovalStatus = policy.ApprovalPending
	_, err = svc.Create(context.Background(), doctorActor(pending), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if !apperror.Is(err, apperror.KindPreconditionFailed) {
		t.Errorf("pending doctor: err = %v, want PreconditionFailed", err)
	}
}

func TestCreateAsClinicDoctorRecordsClinic(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	clinicID := uuid.New()
	doc := accounts.addClinicDoctor(clinicID)

	ref, err := svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "r",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.ReferringHospitalID != nil {
		t.Error("clinic doctor referral carries a referring hospital")
	}
	if ref.ReferringClinicID == nil || *ref.ReferringClinicID != clinicID {
		t.Error("referring clinic not recorded")
	}
}

func seedReferral(t *testing.T, svc *Service, accounts *mockAccounts, hospitals *mockHospitals) (*Referral, *account.Account, *hospital.Hospital) {
	t.Helper()
	patient := accounts.addPatient()
	receiving := hospitals.add()
	doc := accounts.addDoctor(hospitals.add().ID, time.Now())
	ref, err := svc.Create(context.Background(), doctorActor(doc), CreateInput{
		PatientID: patient.ID, ReceivingHospitalID: receiving.ID, Reason: "evaluation",
	})
	if err != nil {
		t.Fatalf("seed referral: %v", err)
	}
	return ref, patient, receiving
}

func TestUpdateReceivingDoctorMembership(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, _, receiving := seedReferral(t, svc, accounts, hospitals)
	admin := hospitalActor(receiving.ID)

	outsider := accounts.addDoctor(uuid.New(), time.Now())
	_, err := svc.Update(context.Background(), admin, ref.ID, UpdateInput{
		ReceivingDoctorID: &outsider.ID,
	})
	if !apperror.Is(err, apperror.KindInvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
	if err.Error() != "receiving doctor must belong to receiving hospital" {
		t.Errorf("message = %q", err.Error())
	}

	member := accounts.addDoctor(receiving.ID, time.Now())
	updated, err := svc.Update(context.Background(), admin, ref.ID, UpdateInput{
		ReceivingDoctorID: &member.ID,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ReceivingDoctorID == nil || *updated.ReceivingDoctorID != member.ID {
		t.Error("receiving doctor not set")
	}
}

func TestUpdateHospitalChangeClearsStaleDoctor(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, _, receiving := seedReferral(t, svc, accounts, hospitals)
	admin := hospitalActor(receiving.ID)

	member := accounts.addDoctor(receiving.ID, time.Now())
	if _, err := svc.Update(context.Background(), admin, ref.ID, UpdateInput{ReceivingDoctorID: &member.ID}); err != nil {
		t.Fatalf("set doctor: %v", err)
	}

	other := hospitals.add()
	updated, err := svc.Update(context.Background(), admin, ref.ID, UpdateInput{
		ReceivingHospitalID: &other.ID,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ReceivingDoctorID != nil {
		t.Error("stale receiving doctor not cleared after hospital change")
	}
}

func TestDoctorCannotReroute(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, _, _ := seedReferral(t, svc, accounts, hospitals)

	doc := policy.Actor{ID: ref.ReferringDoctorID, Role: policy.RoleDoctor, Active: true}
	other := hospitals.add()
	_, err := svc.Update(context.Background(), doc, ref.ID, UpdateInput{
		ReceivingHospitalID: &other.ID,
	})
	if !apperror.Is(err, apperror.KindAccessDenied) {
		t.Errorf("err = %v, want AccessDenied", err)
	}

	// Clinical edits stay open to the referring doctor.
	diag := "suspected arrhythmia"
	updated, err := svc.Update(context.Background(), doc, ref.ID, UpdateInput{Diagnosis: &diag})
	if err != nil {
		t.Fatalf("clinical update: %v", err)
	}
	if updated.Diagnosis != diag {
		t.Error("diagnosis not updated")
	}
}

func TestSetStatusAuthorityAndTimeline(t *testing.T) {
	svc, repo, accounts, hospitals, notifier := newTestService()
	ref, _, receiving := seedReferral(t, svc, accounts, hospitals)

	if _, err := svc.SetStatus(context.Background(), hospitalActor(receiving.ID), ref.ID, "expedited", ""); !apperror.Is(err, apperror.KindInvalidArgument) {
		t.Errorf("bad enum: err = %v, want InvalidArgument", err)
	}

	// The referring side does not transition; only the receiving
	// hospital does.
	referring := policy.Actor{ID: ref.ReferringDoctorID, Role: policy.RoleDoctor, Active: true}
	if _, err := svc.SetStatus(context.Background(), referring, ref.ID, StatusAccepted, ""); !apperror.Is(err, apperror.KindAccessDenied) {
		t.Errorf("referring doctor transition: err = %v, want AccessDenied", err)
	}

	updated, err := svc.SetStatus(context.Background(), hospitalActor(receiving.ID), ref.ID, StatusAccepted, "slot on tuesday")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Errorf("status = %s", updated.Status)
	}
	stored, _ := repo.GetByID(context.Background(), ref.ID)
	if len(stored.Timeline) != 1 {
		t.Fatalf("timeline has %d entries, want 1", len(stored.Timeline))
	}
	if stored.Timeline[0].Notes != "slot on tuesday" {
		t.Error("notes not recorded on timeline entry")
	}

	found := false
	for _, tmpl := range notifier.sent {
		if tmpl == "referral-status-changed" {
			found = true
		}
	}
	if !found {
		t.Errorf("notifications = %v, want referral-status-changed", notifier.sent)
	}
}

func TestConcurrentSetStatusKeepsBothEntries(t *testing.T) {
	svc, repo, accounts, hospitals, _ := newTestService()
	ref, _, receiving := seedReferral(t, svc, accounts, hospitals)

	actor1 := hospitalActor(receiving.ID)
	actor2 := policy.Actor{ID: uuid.New(), Role: policy.RoleSuperAdmin, Active: true}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := svc.SetStatus(context.Background(), actor1, ref.ID, StatusAccepted, ""); err != nil {
			t.Errorf("SetStatus accepted: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := svc.SetStatus(context.Background(), actor2, ref.ID, StatusRejected, ""); err != nil {
			t.Errorf("SetStatus rejected: %v", err)
		}
	}()
	wg.Wait()

	stored, _ := repo.GetByID(context.Background(), ref.ID)
	if len(stored.Timeline) != 2 {
		t.Errorf("timeline has %d entries, want 2", len(stored.Timeline))
	}
	if stored.Status != StatusAccepted && stored.Status != StatusRejected {
		t.Errorf("final status = %s, want one of the submitted values", stored.Status)
	}
}

func TestDoctorCannotReadForeignReferral(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, _, _ := seedReferral(t, svc, accounts, hospitals)

	stranger := policy.Actor{ID: uuid.New(), Role: policy.RoleDoctor, Active: true}
	_, err := svc.Get(context.Background(), stranger, ref.ID)
	if !apperror.Is(err, apperror.KindAccessDenied) {
		t.Errorf("err = %v, want AccessDenied", err)
	}

	_, err = svc.Get(context.Background(), stranger, uuid.New())
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("missing id: err = %v, want NotFound", err)
	}
}

func TestGetByNumber(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, patient, _ := seedReferral(t, svc, accounts, hospitals)

	actor := policy.Actor{ID: patient.ID, Role: policy.RolePatient, Active: true}
	got, err := svc.GetByNumber(context.Background(), actor, "  "+strings.ToLower(ref.Number)+" ")
	if err != nil {
		t.Fatalf("GetByNumber: %v", err)
	}
	if got.ID != ref.ID {
		t.Errorf("resolved %s, want %s", got.ID, ref.ID)
	}

	stranger := policy.Actor{ID: uuid.New(), Role: policy.RoleDoctor, Active: true}
	if _, err := svc.GetByNumber(context.Background(), stranger, ref.Number); !apperror.Is(err, apperror.KindAccessDenied) {
		t.Errorf("stranger lookup: err = %v, want AccessDenied", err)
	}
	if _, err := svc.GetByNumber(context.Background(), actor, "REF-FFFFFFFFFFFF"); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("missing number: err = %v, want NotFound", err)
	}
}

func TestPatientListOnlySeesOwnReferrals(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, patient, _ := seedReferral(t, svc, accounts, hospitals)
	seedReferral(t, svc, accounts, hospitals)

	actor := policy.Actor{ID: patient.ID, Role: policy.RolePatient, Active: true}
	refs, _, err := svc.List(context.Background(), actor, ListFilter{}, 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != ref.ID {
		t.Errorf("patient sees %d referrals, want exactly their own", len(refs))
	}
}

func TestMessagesPatientReadOnly(t *testing.T) {
	svc, _, accounts, hospitals, _ := newTestService()
	ref, patient, receiving := seedReferral(t, svc, accounts, hospitals)

	patientActor := policy.Actor{ID: patient.ID, Role: policy.RolePatient, Active: true}
	if _, err := svc.AddMessage(context.Background(), patientActor, ref.ID, "hello?"); !apperror.Is(err, apperror.KindAccessDenied) {
		t.Errorf("patient post: err = %v, want AccessDenied", err)
	}

	admin := hospitalActor(receiving.ID)
	if _, err := svc.AddMessage(context.Background(), admin, ref.ID, "records received"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	msgs, err := svc.ListMessages(context.Background(), patientActor, ref.ID)
	if err != nil {
		t.Fatalf("ListMessages as patient: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "records received" {
		t.Errorf("messages = %v", msgs)
	}
}
