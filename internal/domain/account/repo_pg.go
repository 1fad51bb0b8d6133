package account

import (
	"context"
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

const accountCols = `id, name, email, password_hash, role, approval_status, is_active,
	hospital_id, clinic_id, practice_type, specialty, phone,
	rejection_reason, approved_by, approved_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO account (
			id, name, email, password_hash, role, approval_status, is_active,
			hospital_id, clinic_id, practice_type, specialty, phone
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role, a.ApprovalStatus, a.IsActive,
		a.HospitalID, a.ClinicID, a.PracticeType, a.Specialty, a.Phone,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("an account with this email already exists")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *repoPG) GetPendingAdminByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account
		 WHERE email = $1 AND role = $2 AND approval_status = $3`,
		email, policy.RoleHospital, policy.ApprovalPending))
}

func (r *repoPG) UpdateApproval(ctx context.Context, id uuid.UUID, d Decision) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE account SET
			approval_status=$2, approved_by=$3, approved_at=$4, rejection_reason=$5, updated_at=NOW()
		WHERE id = $1`,
		id, d.Status, d.DecidedBy, d.DecidedAt, d.Reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("account")
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET is_active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("account")
	}
	return nil
}

func (r *repoPG) SetClinic(ctx context.Context, id, clinicID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET clinic_id=$2, updated_at=NOW() WHERE id = $1`, id, clinicID)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM account WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, scope policy.Scope, filter ListFilter, limit, offset int) ([]*Account, int, error) {
	wb := db.NewWhereBuilder().Scope(scope)
	if filter.Role != "" {
		wb.Eq("role", filter.Role)
	}
	if filter.ApprovalStatus != "" {
		wb.Eq("approval_status", filter.ApprovalStatus)
	}
	if filter.HospitalID != nil {
		wb.Eq("hospital_id", *filter.HospitalID)
	}
	wb.Search(filter.Search, "name", "email")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM account`+wb.SQL(), wb.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := wb.Next()
	args := append(wb.Args(), limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+accountCols+` FROM account%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			wb.SQL(), n, n+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAccounts(rows, total)
}

func (r *repoPG) FirstApprovedDoctor(ctx context.Context, hospitalID uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `
		SELECT `+accountCols+` FROM account
		WHERE hospital_id = $1 AND role = $2 AND approval_status = $3 AND is_active
		ORDER BY created_at ASC
		LIMIT 1`,
		hospitalID, policy.RoleDoctor, policy.ApprovalApproved))
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.ApprovalStatus, &a.IsActive,
		&a.HospitalID, &a.ClinicID, &a.PracticeType, &a.Specialty, &a.Phone,
		&a.RejectionReason, &a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("account")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAccounts(rows pgx.Rows, total int) ([]*Account, int, error) {
	var accounts []*Account
	for rows.Next() {
		var a Account
		err := rows.Scan(
			&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.ApprovalStatus, &a.IsActive,
			&a.HospitalID, &a.ClinicID, &a.PracticeType, &a.Specialty, &a.Phone,
			&a.RejectionReason, &a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
