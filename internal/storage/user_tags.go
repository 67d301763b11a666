package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

// confirmedConfidence is recorded for tags a user chose explicitly.
const confirmedConfidence = 1.0

const userTagColumns = `user_id, payee_normalized, tag, count, last_confidence, updated_at`

// GetUserTag returns the most confirmed record for an exact normalized payee,
// preferring the most recently updated on ties.
func (s *SQLiteStorage) GetUserTag(ctx context.Context, userID, normalizedPayee string) (*model.UserTagMemory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(normalizedPayee, "normalizedPayee"); err != nil {
		return nil, err
	}
	return s.getUserTagTx(ctx, s.db, userID, normalizedPayee)
}

func (s *SQLiteStorage) getUserTagTx(ctx context.Context, q queryable, userID, normalizedPayee string) (*model.UserTagMemory, error) {
	var rec model.UserTagMemory
	err := q.QueryRowContext(ctx, `
		SELECT `+userTagColumns+`
		FROM user_tag_memory
		WHERE user_id = ? AND payee_normalized = ?
		ORDER BY count DESC, updated_at DESC, id DESC
		LIMIT 1
	`, userID, normalizedPayee).Scan(
		&rec.UserID,
		&rec.PayeeNormalized,
		&rec.Tag,
		&rec.Count,
		&rec.LastConfidence,
		&rec.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user tag for %q: %w", normalizedPayee, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user tag: %w", err)
	}
	return &rec, nil
}

// GetUserPredictions returns every record for a user in insertion order.
func (s *SQLiteStorage) GetUserPredictions(ctx context.Context, userID string) ([]model.UserTagMemory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userTagColumns+`
		FROM user_tag_memory
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.UserTagMemory
	for rows.Next() {
		var rec model.UserTagMemory
		if err := rows.Scan(
			&rec.UserID,
			&rec.PayeeNormalized,
			&rec.Tag,
			&rec.Count,
			&rec.LastConfidence,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user tag: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SaveUserTag records a confirmation: it normalizes rawPayee and adds weight
// to the count of the (user, payee, tag) record, creating it if needed.
func (s *SQLiteStorage) SaveUserTag(ctx context.Context, userID, rawPayee, tag string, weight int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(tag, "tag"); err != nil {
		return err
	}
	if err := validateWeight(weight); err != nil {
		return err
	}

	payee := normalize.Payee(rawPayee)
	if err := validateString(payee, "payee"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveUserTagTx(ctx, tx, userID, payee, tag, weight); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveUserTagTx(ctx context.Context, q queryable, userID, payee, tag string, weight int) error {
	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_tag_memory (user_id, payee_normalized, tag, count, last_confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, payee_normalized, tag) DO UPDATE SET
			count = count + excluded.count,
			last_confidence = excluded.last_confidence,
			updated_at = excluded.updated_at
	`, userID, payee, tag, weight, confirmedConfidence, now, now)
	if err != nil {
		return fmt.Errorf("failed to save user tag: %w", err)
	}
	return nil
}

// DeleteUserTag removes every record for a user's normalized payee and
// reports how many were removed.
func (s *SQLiteStorage) DeleteUserTag(ctx context.Context, userID, normalizedPayee string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(normalizedPayee, "normalizedPayee"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_tag_memory
		WHERE user_id = ? AND payee_normalized = ?
	`, userID, normalizedPayee)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tag: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}
