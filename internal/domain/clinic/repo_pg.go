package clinic

import (
	"context"
	"errors"

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

const clinicCols = `id, owner_id, name, specialty, address, phone, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic (id, owner_id, name, specialty, address, phone)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.OwnerID, c.Name, c.Specialty, c.Address, c.Phone,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("a clinic already exists for this owner")
	}
	return err
}

func (r *repoPG) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinic WHERE owner_id = $1`, ownerID))
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Specialty, &c.Address, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("clinic")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
