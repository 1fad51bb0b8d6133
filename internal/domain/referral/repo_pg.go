package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/policy"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const referralCols = `id, number, patient_id, referring_doctor_id, referring_hospital_id,
	referring_clinic_id, receiving_doctor_id, receiving_hospital_id,
	reason, diagnosis, notes, priority, status, timeline, messages,
	expires_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	timeline, err := json.Marshal(ref.Timeline)
	if err != nil {
		return err
	}
	messages, err := json.Marshal(ref.Messages)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO referral (
			id, number, patient_id, referring_doctor_id, referring_hospital_id,
			referring_clinic_id, receiving_doctor_id, receiving_hospital_id,
			reason, diagnosis, notes, priority, status, timeline, messages, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		ref.ID, ref.Number, ref.PatientID, ref.ReferringDoctorID, ref.ReferringHospitalID,
		ref.ReferringClinicID, ref.ReceivingDoctorID, ref.ReceivingHospitalID,
		ref.Reason, ref.Diagnosis, ref.Notes, ref.Priority, ref.Status, timeline, messages, ref.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("referral number already exists")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return scanReferral(r.conn(ctx).QueryRow(ctx, `SELECT `+referralCols+` FROM referral WHERE id = $1`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Referral, error) {
	return scanReferral(r.conn(ctx).QueryRow(ctx, `SELECT `+referralCols+` FROM referral WHERE number = $1`, number))
}

func (r *repoPG) Update(ctx context.Context, ref *Referral) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referral SET
			receiving_doctor_id=$2, receiving_hospital_id=$3,
			reason=$4, diagnosis=$5, notes=$6, priority=$7, updated_at=NOW()
		WHERE id = $1`,
		ref.ID, ref.ReceivingDoctorID, ref.ReceivingHospitalID,
		ref.Reason, ref.Diagnosis, ref.Notes, ref.Priority,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("referral")
	}
	return nil
}

// SetStatus writes the status and appends the timeline entry in a
// single UPDATE. Concurrent callers serialize on the row, so both
// appends land and the final status is the last writer's.
func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status, entry TimelineEntry) error {
	appended, err := json.Marshal([]TimelineEntry{entry})
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referral SET status=$2, timeline = timeline || $3::jsonb, updated_at=NOW()
		WHERE id = $1`,
		id, status, appended,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("referral")
	}
	return nil
}

func (r *repoPG) AddMessage(ctx context.Context, id uuid.UUID, m Message) error {
	appended, err := json.Marshal([]Message{m})
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referral SET messages = messages || $2::jsonb, updated_at=NOW()
		WHERE id = $1`,
		id, appended,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("referral")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope policy.Scope, filter ListFilter, limit, offset int) ([]*Referral, int, error) {
	wb := db.NewWhereBuilder().Scope(scope)
	if filter.Status != "" {
		wb.Eq("status", filter.Status)
	}
	if filter.Priority != "" {
		wb.Eq("priority", filter.Priority)
	}
	wb.Search(filter.Search, "number", "reason", "diagnosis")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM referral`+wb.SQL(), wb.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := wb.Next()
	args := append(wb.Args(), limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+referralCols+` FROM referral%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			wb.SQL(), n, n+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var refs []*Referral
	for rows.Next() {
		ref, err := scanReferralRow(rows)
		if err != nil {
			return nil, 0, err
		}
		refs = append(refs, ref)
	}
	return refs, total, nil
}

func scanReferral(row pgx.Row) (*Referral, error) {
	ref, err := scanReferralRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("referral")
	}
	return ref, err
}

func scanReferralRow(row pgx.Row) (*Referral, error) {
	var ref Referral
	var timeline, messages []byte
	err := row.Scan(
		&ref.ID, &ref.Number, &ref.PatientID, &ref.ReferringDoctorID, &ref.ReferringHospitalID,
		&ref.ReferringClinicID, &ref.ReceivingDoctorID, &ref.ReceivingHospitalID,
		&ref.Reason, &ref.Diagnosis, &ref.Notes, &ref.Priority, &ref.Status, &timeline, &messages,
		&ref.ExpiresAt, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(timeline, &ref.Timeline); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &ref.Messages); err != nil {
		return nil, err
	}
	return &ref, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
