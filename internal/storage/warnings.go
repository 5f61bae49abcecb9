package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Warning struct {
	GuildID    string
	UserID     string
	CountTotal int
	LastReason string
	UpdatedAt  time.Time
}

func (s *Store) GetWarning(ctx context.Context, guildID, userID string) (Warning, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, count_total, last_reason, updated_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	var warning Warning
	var updated int64
	err := row.Scan(&warning.GuildID, &warning.UserID, &warning.CountTotal, &warning.LastReason, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Warning{GuildID: guildID, UserID: userID}, nil
		}
		return Warning{}, err
	}
	warning.UpdatedAt = time.Unix(updated, 0)
	return warning, nil
}

func (s *Store) IncrementWarning(ctx context.Context, guildID, userID, reason string) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	row := tx.QueryRowContext(ctx, `
		SELECT count_total FROM warnings WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	scanErr := row.Scan(&count)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}

	count++
	_, err = tx.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, count_total, last_reason, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count_total = excluded.count_total,
			last_reason = excluded.last_reason,
			updated_at = excluded.updated_at
	`, guildID, userID, count, reason, now.Unix())
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ClearWarnings(ctx context.Context, guildID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
