package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// GetProfile retrieves the account profile, creating the singleton row on
// first access.
func GetProfile(ctx context.Context, db ExecQuerier) (*Profile, error) {
	query := `SELECT id, display_name, total_tokens, updated_at FROM profile WHERE id = 1`
	var p Profile
	err := sqlscan.Get(ctx, db, &p, query)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p = Profile{ID: 1, UpdatedAt: time.Now()}
	insert := `INSERT INTO profile (id, display_name, total_tokens, updated_at) VALUES (1, '', 0, ?)`
	if _, err := db.ExecContext(ctx, insert, p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddProfileTokens adds the given amount to the account's running token
// total, additively in SQL.
func AddProfileTokens(ctx context.Context, db Execer, amount int) error {
	query := `UPDATE profile SET total_tokens = total_tokens + ?, updated_at = ? WHERE id = 1`
	_, err := db.ExecContext(ctx, query, amount, time.Now())
	return err
}
