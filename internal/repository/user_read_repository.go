package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eaglebank/authorization-service/shared/models"
	sharedredis "github.com/eaglebank/authorization-service/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const userViewKeyPrefix = "user:view:"

// userViewTTL bounds how long a view can outlive a missed refresh, such as a
// grant whose cache write failed.
const userViewTTL = 10 * time.Minute

// UserReadRepository serves the query side. Redis is the primary read store,
// falling back to SQL on a miss and warming the cache on every cold read.
// A nil Redis client disables the cache.
type UserReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.UserRecord]
}

func NewUserReadRepository(db *sql.DB, redisClient *goredis.Client) *UserReadRepository {
	return &UserReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.UserRecord](redisClient, userViewTTL),
	}
}

// FindByName returns the user record, trying Redis first then SQL.
func (r *UserReadRepository) FindByName(ctx context.Context, name string) (*models.UserRecord, error) {
	if user, ok := r.cache.Get(ctx, userViewKeyPrefix+name); ok {
		return user, nil
	}

	user, err := findByName(ctx, r.db, name)
	if err != nil {
		return nil, err
	}

	r.CacheUserView(ctx, user)
	return user, nil
}

// CacheUserView stores or refreshes the Redis read model for a user. A record
// older than the cached one is ignored, so refreshes that land out of order
// and cold reads racing a grant never roll the view back.
func (r *UserReadRepository) CacheUserView(ctx context.Context, user *models.UserRecord) {
	r.cache.SetIfNewer(ctx, userViewKeyPrefix+user.Name, user, user.Version)
}

// InvalidateUserView removes the cached record for name.
func (r *UserReadRepository) InvalidateUserView(ctx context.Context, name string) {
	r.cache.Delete(ctx, userViewKeyPrefix+name)
}
