package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/policy"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) ReferralCountsByStatus(ctx context.Context, scope policy.Scope) (map[string]int, error) {
	wb := db.NewWhereBuilder().Scope(scope)
	return r.groupCount(ctx, `SELECT status, COUNT(*) FROM referral`+wb.SQL()+` GROUP BY status`, wb.Args()...)
}

func (r *repoPG) AccountCountsByApproval(ctx context.Context) (map[string]int, error) {
	return r.groupCount(ctx, `SELECT approval_status, COUNT(*) FROM account GROUP BY approval_status`)
}

func (r *repoPG) HospitalCountsByStatus(ctx context.Context) (map[string]int, error) {
	return r.groupCount(ctx, `SELECT status, COUNT(*) FROM hospital GROUP BY status`)
}

func (r *repoPG) groupCount(ctx context.Context, sql string, args ...interface{}) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
