package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/erp-pos/internal/domain/activity"
)

const insertActivitySQL = `INSERT INTO activity_log (action, entity_type, entity_id, details, created_at)
	VALUES ($1, $2, $3, $4, $5)`

var _ activity.Logger = (*ActivityRepository)(nil)

// ActivityRepository writes the audit trail to the activity_log table.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns an ActivityRepository that uses the given pool.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Log implements activity.Logger.
func (r *ActivityRepository) Log(ctx context.Context, e activity.Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, insertActivitySQL, e.Action, e.EntityType, e.EntityID, details, e.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "log %s %s", e.Action, e.EntityType)
	}
	return nil
}
