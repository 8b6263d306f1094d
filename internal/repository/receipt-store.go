package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"receiptgen/internal/domain"
)

// Store owns the two persistent tables of the receipt generator: user emails
// and in-progress receipt records. Both are loaded into memory at startup and
// flushed to the database synchronously after every mutation, so a crash
// between steps loses at most the in-flight step. Access grants are kept as a
// third table with row-level operations.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu      sync.RWMutex
	emails  map[int64]string
	records map[int64]domain.ReceiptRecord
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger,
		emails:  make(map[int64]string),
		records: make(map[int64]domain.ReceiptRecord),
	}
}

// Load reads both tables into memory. Missing rows mean empty tables; a row
// that cannot be deserialized means the storage is corrupt, which is fatal at
// startup (no automatic repair).
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emails := make(map[int64]string)
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, email FROM user_emails`)
	if err != nil {
		return fmt.Errorf("failed to load user emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var email string
		if err := rows.Scan(&userID, &email); err != nil {
			return fmt.Errorf("%w: user_emails row: %v", domain.ErrStorageCorrupt, err)
		}
		emails[userID] = email
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load user emails: %w", err)
	}

	records := make(map[int64]domain.ReceiptRecord)
	recRows, err := s.db.QueryContext(ctx, `SELECT user_id, fields FROM receipt_records`)
	if err != nil {
		return fmt.Errorf("failed to load receipt records: %w", err)
	}
	defer recRows.Close()

	for recRows.Next() {
		var userID int64
		var raw string
		if err := recRows.Scan(&userID, &raw); err != nil {
			return fmt.Errorf("%w: receipt_records row: %v", domain.ErrStorageCorrupt, err)
		}
		record := domain.ReceiptRecord{}
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return fmt.Errorf("%w: receipt record for user %d: %v", domain.ErrStorageCorrupt, userID, err)
		}
		records[userID] = record
	}
	if err := recRows.Err(); err != nil {
		return fmt.Errorf("failed to load receipt records: %w", err)
	}

	s.emails = emails
	s.records = records

	s.logger.Info("Store loaded",
		zap.Int("emails", len(emails)),
		zap.Int("records", len(records)))
	return nil
}

// flushLocked overwrites both tables inside one transaction. The transaction
// plays the role of write-to-temp-then-rename: a reader never observes a
// partially written table.
func (s *Store) flushLocked(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin store flush: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_emails`); err != nil {
		return fmt.Errorf("failed to clear user_emails: %w", err)
	}
	for userID, email := range s.emails {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_emails (user_id, email) VALUES (?, ?)`,
			userID, email,
		); err != nil {
			return fmt.Errorf("failed to write user email: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_records`); err != nil {
		return fmt.Errorf("failed to clear receipt_records: %w", err)
	}
	now := time.Now()
	for userID, record := range s.records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to serialize receipt record: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO receipt_records (user_id, fields, updated_at) VALUES (?, ?, ?)`,
			userID, string(raw), now,
		); err != nil {
			return fmt.Errorf("failed to write receipt record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit store flush: %w", err)
	}
	return nil
}

// Email returns the registered email for a user
func (s *Store) Email(userID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.emails[userID]
	return email, ok
}

// SetEmail registers an email for a user. A user's email is immutable: a
// second registration is rejected and the stored address is left unchanged.
func (s *Store) SetEmail(ctx context.Context, userID int64, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[userID]; ok {
		return domain.ErrEmailAlreadyRegistered
	}

	s.emails[userID] = email
	if err := s.flushLocked(ctx); err != nil {
		delete(s.emails, userID)
		return err
	}

	s.logger.Info("Email registered", zap.Int64("user_id", userID))
	return nil
}

// ResetRecord discards any previous record for the user and persists an
// empty one. Every new receipt session starts here.
func (s *Store) ResetRecord(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.records[userID]
	s.records[userID] = domain.ReceiptRecord{}
	if err := s.flushLocked(ctx); err != nil {
		if had {
			s.records[userID] = prev
		} else {
			delete(s.records, userID)
		}
		return err
	}
	return nil
}

// MergeRecordFields merges fields into the user's record as one batch and
// persists the result.
func (s *Store) MergeRecordFields(ctx context.Context, userID int64, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		record = domain.ReceiptRecord{}
	}
	updated := record.Copy()
	for k, v := range fields {
		updated[k] = v
	}

	s.records[userID] = updated
	if err := s.flushLocked(ctx); err != nil {
		s.records[userID] = record
		return err
	}
	return nil
}

// Record returns a copy of the user's receipt record
func (s *Store) Record(userID int64) (domain.ReceiptRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userID]
	if !ok {
		return nil, false
	}
	return record.Copy(), true
}

// GrantAccess adds or refreshes the capability marker for a user. A nil
// expiresAt means the grant never expires.
func (s *Store) GrantAccess(ctx context.Context, userID, grantedBy int64, expiresAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_grants (user_id, granted_by, expires_at, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			granted_by = excluded.granted_by,
			expires_at = excluded.expires_at,
			created_at = CURRENT_TIMESTAMP
	`, userID, grantedBy, expiresAt)
	if err != nil {
		s.logger.Error("Failed to save access grant", zap.Error(err), zap.Int64("user_id", userID))
		return fmt.Errorf("failed to save access grant: %w", err)
	}
	return nil
}

// HasAccess reports whether the user holds the capability marker
func (s *Store) HasAccess(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM access_grants WHERE user_id = ?)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check access grant: %w", err)
	}
	return exists, nil
}

// RevokeExpired removes grants whose expiry has passed and returns the
// affected user IDs. Only called when expiry enforcement is enabled.
func (s *Store) RevokeExpired(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM access_grants WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired grants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired grant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expired grants: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM access_grants WHERE expires_at IS NOT NULL AND expires_at <= ?`, now); err != nil {
		return nil, fmt.Errorf("failed to delete expired grants: %w", err)
	}

	s.logger.Info("Expired access grants revoked", zap.Int("count", len(ids)))
	return ids, nil
}

// Counts returns table sizes for the admin panel
func (s *Store) Counts(ctx context.Context) (emails, records, grants int, err error) {
	s.mu.RLock()
	emails = len(s.emails)
	records = len(s.records)
	s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_grants`).Scan(&grants)
	if err != nil {
		err = fmt.Errorf("failed to count access grants: %w", err)
	}
	return emails, records, grants, err
}
