package practitioner

import (
	"context"
	"sort"
	"strings"
	"time"

	"practice-controlplane/pkg/db/option"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/rediskey"
	"practice-controlplane/pkg/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const namesTTL = 10 * time.Minute

// Directory resolves practitioner display names for other contexts.
type Directory interface {
	Names(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
}

// CachedDirectory reads names from a per-tenant Redis hash and falls back to the database.
// Concurrent misses for the same ids share one query.
type CachedDirectory struct {
	repo  repository.Repository[Practitioner]
	rdb   *redis.Client
	group singleflight.Group
}

func NewCachedDirectory(repo repository.Repository[Practitioner], rdb *redis.Client) *CachedDirectory {
	return &CachedDirectory{repo: repo, rdb: rdb}
}

func (d *CachedDirectory) Names(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := d.fromCache(ctx, tenantID, ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	sort.Strings(missing)
	key := tenantID + "|" + strings.Join(missing, ",")
	v, err, _ := d.group.Do(key, func() (any, error) {
		rows, err := d.repo.Find(ctx, &Practitioner{TenantID: tenantID}, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.IN,
			Value:    missing,
		}))
		if err != nil {
			return nil, err
		}

		found := make(map[string]string, len(rows))
		for _, p := range rows {
			found[p.ID] = p.Name
		}
		d.toCache(ctx, tenantID, found)
		return found, nil
	})
	if err != nil {
		return nil, err
	}

	for id, name := range v.(map[string]string) {
		out[id] = name
	}
	return out, nil
}

// Forget drops the cached name of one practitioner.
func (d *CachedDirectory) Forget(ctx context.Context, tenantID, id string) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.HDel(ctx, cacheKey(tenantID), id).Err(); err != nil {
		logger.FromContext(ctx).Warn("failed to evict practitioner name", zap.String("practitioner_id", id), zap.Error(err))
	}
}

func (d *CachedDirectory) fromCache(ctx context.Context, tenantID string, ids []string, out map[string]string) []string {
	if d.rdb == nil {
		return append([]string(nil), ids...)
	}

	values, err := d.rdb.HMGet(ctx, cacheKey(tenantID), ids...).Result()
	if err != nil {
		logger.FromContext(ctx).Warn("practitioner name cache unavailable", zap.Error(err))
		return append([]string(nil), ids...)
	}

	var missing []string
	for i, v := range values {
		name, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		out[ids[i]] = name
	}
	return missing
}

func (d *CachedDirectory) toCache(ctx context.Context, tenantID string, names map[string]string) {
	if d.rdb == nil || len(names) == 0 {
		return
	}

	values := make(map[string]any, len(names))
	for id, name := range names {
		values[id] = name
	}

	key := cacheKey(tenantID)
	pipe := d.rdb.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, namesTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.FromContext(ctx).Warn("failed to cache practitioner names", zap.Error(err))
	}
}

func cacheKey(tenantID string) string {
	return rediskey.NamespaceKey(rediskey.PractitionerCache, tenantID)
}
