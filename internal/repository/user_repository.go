package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/authorization-service/shared/models"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrUserNotFound is returned when no user has the requested name.
	ErrUserNotFound = errors.New("user not found")
	// ErrVersionConflict is returned by Save when the stored record has moved
	// past the version the caller read.
	ErrVersionConflict = errors.New("user record version conflict")
	// ErrDuplicateUser is returned when inserting a second user with a taken
	// id or name.
	ErrDuplicateUser = errors.New("user already exists")
)

const selectUserColumns = `SELECT id, name, accounts, grants, version, created_at, updated_at FROM users`

// UserWriteRepository handles all state-mutating operations for user records.
// It is also the consistent read path for the command side: reads here always
// hit SQL so the returned version is current.
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

// FindByName returns the stored record for name, or ErrUserNotFound.
func (r *UserWriteRepository) FindByName(ctx context.Context, name string) (*models.UserRecord, error) {
	return findByName(ctx, r.db, name)
}

// Save stores the whole record. A record with Version 0 is inserted; any
// other record overwrites the stored one only if the stored version still
// equals user.Version. The returned copy carries the new version.
func (r *UserWriteRepository) Save(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	saved := user.Clone()
	now := time.Now().UTC()
	saved.UpdatedAt = now

	accounts, grants, err := encodeCollections(saved)
	if err != nil {
		return nil, err
	}

	if saved.Version == 0 {
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = now
		}
		saved.Version = 1
		query := `
			INSERT INTO users (id, name, accounts, grants, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := r.db.ExecContext(ctx, query,
			saved.ID, saved.Name, accounts, grants, saved.Version, saved.CreatedAt, saved.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, saved.Name)
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return saved, nil
	}

	expected := saved.Version
	saved.Version = expected + 1
	query := `
		UPDATE users
		SET name = $1, accounts = $2, grants = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		saved.Name, accounts, grants, saved.Version, saved.UpdatedAt, saved.ID, expected,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, saved.Name)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrVersionConflict
	}
	return saved, nil
}

// Count returns the number of stored users.
func (r *UserWriteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func findByName(ctx context.Context, db *sql.DB, name string) (*models.UserRecord, error) {
	var (
		user             models.UserRecord
		accounts, grants []byte
	)
	err := db.QueryRowContext(ctx, selectUserColumns+` WHERE name = $1`, name).Scan(
		&user.ID, &user.Name, &accounts, &grants, &user.Version, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := json.Unmarshal(accounts, &user.Accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts of user %s: %w", user.Name, err)
	}
	if err := json.Unmarshal(grants, &user.Grants); err != nil {
		return nil, fmt.Errorf("failed to decode grants of user %s: %w", user.Name, err)
	}
	return &user, nil
}

// encodeCollections renders the JSON columns as strings; lib/pq would send a
// []byte as bytea, which jsonb rejects.
func encodeCollections(user *models.UserRecord) (accounts, grants string, err error) {
	accountList := user.Accounts
	if accountList == nil {
		accountList = []models.Account{}
	}
	a, err := json.Marshal(accountList)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode accounts: %w", err)
	}
	grantSet := user.Grants
	if grantSet == nil {
		grantSet = models.Grants{}
	}
	g, err := json.Marshal(grantSet)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode grants: %w", err)
	}
	return string(a), string(g), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
