package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eaglebank/authorization-service/internal/repository"
	"github.com/eaglebank/authorization-service/shared/cqrs"
	"github.com/eaglebank/authorization-service/shared/models"
)

// UserReader loads user records for the query side.
type UserReader interface {
	FindByName(ctx context.Context, name string) (*models.UserRecord, error)
}

// PermissionQueryService projects a user's granted snapshots.
type PermissionQueryService struct {
	readRepo UserReader
	logger   *slog.Logger
}

func NewPermissionQueryService(readRepo UserReader, logger *slog.Logger) *PermissionQueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionQueryService{readRepo: readRepo, logger: logger}
}

// ListPermittedAccounts returns the snapshots granted to the user for the
// requested access level whose subtype matches, in grant order. No match
// yields an empty, non-nil slice.
func (s *PermissionQueryService) ListPermittedAccounts(ctx context.Context, q cqrs.ListPermittedAccountsQuery) ([]models.AccountSnapshot, error) {
	user, err := s.readRepo.FindByName(ctx, q.UserName)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, models.ErrNotFound("user %s does not exist", q.UserName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", q.UserName, err)
	}

	permitted := FilterBySubtype(user.Granted(q.Access), q.AccountSubtype)
	s.logger.Info("permitted accounts retrieved",
		"user", q.UserName,
		"access", q.Access,
		"subtype", q.AccountSubtype,
		"count", len(permitted),
	)
	return permitted, nil
}

// FilterBySubtype keeps the snapshots of the given subtype, preserving order.
func FilterBySubtype(snapshots []models.AccountSnapshot, subtype models.AccountSubtype) []models.AccountSnapshot {
	out := make([]models.AccountSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.AccountSubtype == subtype {
			out = append(out, s)
		}
	}
	return out
}
