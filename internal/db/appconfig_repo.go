package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"meterjob/internal/types"
)

// AppConfigRepository reads the name/value application_configuration table.
type AppConfigRepository struct {
	db DBTX
}

func NewAppConfigRepository(db DBTX) *AppConfigRepository {
	return &AppConfigRepository{db: db}
}

// GetAll returns every setting keyed by name.
func (r *AppConfigRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name, COALESCE(value, '') FROM application_configuration`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query application configuration", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan application configuration", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating application configuration", err)
	}
	return out, nil
}

// GetValue returns a single setting.
func (r *AppConfigRepository) GetValue(ctx context.Context, name string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(value, '') FROM application_configuration WHERE name = $1`,
		name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundConfig, "application setting not found", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to read application setting", err)
	}
	return value, nil
}
