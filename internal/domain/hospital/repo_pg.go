package hospital

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

const hospitalCols = `id, name, email, status, address, phone, specialty, capacity,
	rejection_reason, approved_by, approved_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospital (id, name, email, status, address, phone, specialty, capacity)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.Name, h.Email, h.Status, h.Address, h.Phone, h.Specialty, h.Capacity,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("a hospital with this email already exists")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return scanHospital(r.conn(ctx).QueryRow(ctx, `SELECT `+hospitalCols+` FROM hospital WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, d Decision) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospital SET
			status=$2, approved_by=$3, approved_at=$4, rejection_reason=$5, updated_at=NOW()
		WHERE id = $1`,
		id, d.Status, d.DecidedBy, d.DecidedAt, d.Reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("hospital")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM hospital WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Hospital, int, error) {
	wb := db.NewWhereBuilder()
	if filter.Status != "" {
		wb.Eq("status", filter.Status)
	}
	wb.Search(filter.Search, "name", "email")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM hospital`+wb.SQL(), wb.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := wb.Next()
	args := append(wb.Args(), limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+hospitalCols+` FROM hospital%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			wb.SQL(), n, n+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var hospitals []*Hospital
	for rows.Next() {
		var h Hospital
		if err := rows.Scan(
			&h.ID, &h.Name, &h.Email, &h.Status, &h.Address, &h.Phone, &h.Specialty, &h.Capacity,
			&h.RejectionReason, &h.ApprovedBy, &h.ApprovedAt, &h.CreatedAt, &h.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		hospitals = append(hospitals, &h)
	}
	return hospitals, total, nil
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(
		&h.ID, &h.Name, &h.Email, &h.Status, &h.Address, &h.Phone, &h.Specialty, &h.Capacity,
		&h.RejectionReason, &h.ApprovedBy, &h.ApprovedAt, &h.CreatedAt, &h.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("hospital")
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
