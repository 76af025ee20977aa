package cached

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"clean-user-service/internal/adapter/cache"
	domain "clean-user-service/internal/domain/user"
	"clean-user-service/internal/usecase/user"
	"clean-user-service/pkg/logger"
)

const generationStripes = 256

// UserRepository decorates a persistent user.Repository with a read-through cache.
// Cache failures are logged and never fail the call.
//
// A database read that overlaps an Update or Delete of the same id must not
// write its row back into the cache. Every invalidation bumps a generation
// counter for the id's stripe, and a fill is dropped when the counter moved
// while the row was loaded.
type UserRepository struct {
	next  user.Repository
	cache cache.UserCache
	log   *zap.Logger
	group singleflight.Group

	mu   sync.RWMutex
	gens [generationStripes]uint64
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository wraps next with c. A nil cache disables caching.
func NewUserRepository(next user.Repository, c cache.UserCache, log *zap.Logger) *UserRepository {
	return &UserRepository{
		next:  next,
		cache: c,
		log:   log,
	}
}

// Save delegates to the wrapped repository.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) (int64, error) {
	return r.next.Save(ctx, u)
}

// FindByID serves from cache when possible. Concurrent misses for the same id
// share one database read.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	if r.cache == nil {
		return r.next.FindByID(ctx, id)
	}
	log := logger.WithContext(ctx, r.log)

	if u := r.fromCache(ctx, log, id); u != nil {
		return u, nil
	}

	result, err, shared := r.group.Do(flightKey(id), func() (any, error) {
		// Another caller may have filled the cache while we waited
		if u := r.fromCache(ctx, log, id); u != nil {
			return u, nil
		}

		gen := r.generation(id)
		u, err := r.next.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		r.fill(ctx, log, id, u, gen)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("user lookup shared with concurrent caller", zap.Int64("id", id))
	}

	// Callers must not share one entity
	u := *result.(*domain.User)
	return &u, nil
}

func flightKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func stripe(id int64) int {
	return int(uint64(id) % generationStripes)
}

func (r *UserRepository) generation(id int64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gens[stripe(id)]
}

// fill caches u unless an invalidation for its stripe happened after gen was read.
// The read lock is held across Set so that invalidate's Delete always lands after it.
func (r *UserRepository) fill(ctx context.Context, log *zap.Logger, id int64, u *domain.User, gen uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.gens[stripe(id)] != gen {
		log.Debug("user changed while loading, not caching", zap.Int64("id", id))
		return
	}
	if err := r.cache.Set(ctx, u); err != nil {
		log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
	}
}

func (r *UserRepository) fromCache(ctx context.Context, log *zap.Logger, id int64) *domain.User {
	u, err := r.cache.Get(ctx, id)
	if err != nil {
		log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
		return nil
	}
	return u
}

// FindByEmail delegates to the wrapped repository.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.next.FindByEmail(ctx, email)
}

// Update updates the user and invalidates its cache entry.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (int64, error) {
	id, err := r.next.Update(ctx, u)
	if err != nil {
		return 0, err
	}
	r.invalidate(ctx, u.ID)
	return id, nil
}

// Delete deletes the user and invalidates its cache entry.
func (r *UserRepository) Delete(ctx context.Context, id int64) (int64, error) {
	deletedID, err := r.next.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	r.invalidate(ctx, id)
	return deletedID, nil
}

// List delegates to the wrapped repository.
func (r *UserRepository) List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) {
	return r.next.List(ctx, query, page, limit)
}

func (r *UserRepository) invalidate(ctx context.Context, id int64) {
	if r.cache == nil {
		return
	}

	r.mu.Lock()
	r.gens[stripe(id)]++
	r.mu.Unlock()
	r.group.Forget(flightKey(id))

	if err := r.cache.Delete(ctx, id); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to invalidate cache", zap.Int64("id", id), zap.Error(err))
	}
}
