package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eaglebank/authorization-service/internal/repository"
	"github.com/eaglebank/authorization-service/shared/cqrs"
	"github.com/eaglebank/authorization-service/shared/events"
	"github.com/eaglebank/authorization-service/shared/models"
)

// DefaultMaxAttempts bounds the read-append-save loop under version conflicts.
const DefaultMaxAttempts = 3

// UserStore is the consistent persistence gateway used by the command side.
type UserStore interface {
	FindByName(ctx context.Context, name string) (*models.UserRecord, error)
	Save(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error)
}

// ViewCache refreshes the query side's cached copy of a saved record.
type ViewCache interface {
	CacheUserView(ctx context.Context, user *models.UserRecord)
}

// EventPublisher publishes domain events to a stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// AuthorizationCommandService records access grants on the grantee's record
// and keeps the read model in sync.
type AuthorizationCommandService struct {
	store       UserStore
	views       ViewCache
	publisher   EventPublisher
	maxAttempts int
	logger      *slog.Logger
}

func NewAuthorizationCommandService(
	store UserStore,
	views ViewCache,
	publisher EventPublisher,
	maxAttempts int,
	logger *slog.Logger,
) *AuthorizationCommandService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationCommandService{
		store:       store,
		views:       views,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// GrantAccess shares the grantor's account with the grantee. Every call
// appends a new snapshot, so repeating a grant produces duplicates.
func (s *AuthorizationCommandService) GrantAccess(ctx context.Context, cmd cqrs.GrantAccessCommand) error {
	if !cmd.Access.Valid() {
		return models.ErrInvalidRequest("unknown access level %q", cmd.Access)
	}

	s.logger.Info("granting access",
		"grantor", cmd.GrantorName,
		"grantee", cmd.GranteeName,
		"access", cmd.Access,
		"subtype", cmd.AccountSubtype,
		"account", cmd.AccountNumber,
	)

	var saved *models.UserRecord
	for attempt := 1; ; attempt++ {
		var err error
		saved, err = s.tryGrant(ctx, cmd)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if attempt >= s.maxAttempts {
			return models.ErrConflict("user %s was modified concurrently, giving up after %d attempts", cmd.GranteeName, attempt)
		}
		s.logger.Warn("grantee record changed during grant, retrying", "grantee", cmd.GranteeName, "attempt", attempt)
	}

	if s.views != nil {
		s.views.CacheUserView(ctx, saved)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.AuthorizationEventsStream, events.AccessGranted, events.AccessGrantedEvent{
			GrantorName:    cmd.GrantorName,
			GranteeName:    cmd.GranteeName,
			AccountNumber:  cmd.AccountNumber,
			AccountSubtype: string(cmd.AccountSubtype),
			Access:         string(cmd.Access),
		}); err != nil {
			s.logger.Error("failed to publish access.granted event", "error", err)
		}
	}
	return nil
}

// tryGrant runs one read-append-save round. Both users are re-read on every
// attempt so the snapshot and the grantee version are current.
func (s *AuthorizationCommandService) tryGrant(ctx context.Context, cmd cqrs.GrantAccessCommand) (*models.UserRecord, error) {
	grantor, err := s.findUser(ctx, cmd.GrantorName)
	if err != nil {
		return nil, err
	}
	grantee, err := s.findUser(ctx, cmd.GranteeName)
	if err != nil {
		return nil, err
	}

	account, ok := grantor.OwnedAccount(cmd.AccountNumber)
	if !ok {
		return nil, models.ErrInvalidRequest("account %s is not a grantor account", cmd.AccountNumber)
	}
	if account.Type != "" && account.Type != cmd.AccountSubtype {
		// Stamped as requested; the mismatch is only reported.
		s.logger.Warn("granted subtype differs from the account's own type",
			"account", account.AccountNumber,
			"account_type", account.Type,
			"granted_subtype", cmd.AccountSubtype,
		)
	}

	grantee.Grant(cmd.Access, models.NewAccountSnapshot(account, cmd.AccountSubtype))

	saved, err := s.store.Save(ctx, grantee)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save grantee %s: %w", cmd.GranteeName, err)
	}
	return saved, nil
}

func (s *AuthorizationCommandService) findUser(ctx context.Context, name string) (*models.UserRecord, error) {
	user, err := s.store.FindByName(ctx, name)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, models.ErrNotFound("user %s does not exist", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", name, err)
	}
	return user, nil
}
