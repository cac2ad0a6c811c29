// Package seed loads user records and their own accounts from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eaglebank/authorization-service/internal/repository"
	"github.com/eaglebank/authorization-service/shared/models"
	"github.com/eaglebank/authorization-service/shared/utils"
	"gopkg.in/yaml.v3"
)

// File is the on-disk seed format.
type File struct {
	Users []User `yaml:"users"`
}

type User struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	Accounts []models.Account `yaml:"accounts"`
}

// Store is the persistence the seeder writes through.
type Store interface {
	FindByName(ctx context.Context, name string) (*models.UserRecord, error)
	Save(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error)
}

// ViewRefresher replaces cached copies of seeded users.
type ViewRefresher interface {
	InvalidateUserView(ctx context.Context, name string)
	CacheUserView(ctx context.Context, user *models.UserRecord)
}

// LoadFile reads and validates a seed file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates seed YAML.
func Decode(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate enforces unique user names, unique account numbers per user and
// non-negative balances. Missing holder names default to the user's name.
func (f *File) Validate() error {
	names := map[string]bool{}
	for i := range f.Users {
		u := &f.Users[i]
		if u.Name == "" {
			return fmt.Errorf("user #%d: name is required", i+1)
		}
		if names[u.Name] {
			return fmt.Errorf("user %s: listed twice", u.Name)
		}
		names[u.Name] = true
		if u.ID != "" && !utils.ValidateUserID(u.ID) {
			return fmt.Errorf("user %s: malformed id %q", u.Name, u.ID)
		}

		numbers := map[string]bool{}
		for j := range u.Accounts {
			a := &u.Accounts[j]
			if a.AccountNumber == "" {
				return fmt.Errorf("user %s: account #%d has no account number", u.Name, j+1)
			}
			if numbers[a.AccountNumber] {
				return fmt.Errorf("user %s: duplicate account number %s", u.Name, a.AccountNumber)
			}
			numbers[a.AccountNumber] = true
			if a.Balance.IsNegative() {
				return fmt.Errorf("user %s: account %s has a negative balance", u.Name, a.AccountNumber)
			}
			if a.Type == "" {
				return fmt.Errorf("user %s: account %s has no type", u.Name, a.AccountNumber)
			}
			if a.AccountHolderName == "" {
				a.AccountHolderName = u.Name
			}
		}
	}
	return nil
}

// Apply creates every user in the file, or replaces an existing user's record
// outright (own accounts set, grants cleared). It returns the number of users
// written.
func Apply(ctx context.Context, store Store, views ViewRefresher, file *File, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, u := range file.Users {
		record := &models.UserRecord{
			ID:       u.ID,
			Name:     u.Name,
			Accounts: u.Accounts,
			Grants:   models.Grants{},
		}

		existing, err := store.FindByName(ctx, u.Name)
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			if record.ID == "" {
				record.ID = utils.GenerateID("usr")
			}
		case err != nil:
			return 0, fmt.Errorf("seed user %s: %w", u.Name, err)
		default:
			record.ID = existing.ID
			record.Version = existing.Version
			record.CreatedAt = existing.CreatedAt
		}

		saved, err := store.Save(ctx, record)
		if err != nil {
			return 0, fmt.Errorf("seed user %s: %w", u.Name, err)
		}
		if views != nil {
			// A re-created store restarts versions at 1, so the old view is
			// dropped before the new one is cached.
			views.InvalidateUserView(ctx, saved.Name)
			views.CacheUserView(ctx, saved)
		}
		logger.Info("seeded user", "name", saved.Name, "id", saved.ID, "accounts", len(saved.Accounts), "version", saved.Version)
	}
	return len(file.Users), nil
}
