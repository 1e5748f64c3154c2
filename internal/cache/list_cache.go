// Package cache keeps product list responses in redis. Every write to the
// catalog bumps a version counter, which orphans all older list keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zapcore"

	"catalogweb/internal/domain"
	"catalogweb/internal/log"
)

const (
	listPrefix = "catalog:products:v:"
	versionKey = "catalog:products:version"
)

// ListKey identifies one list response.
type ListKey struct {
	Page        int
	PageSize    int
	Name        string
	Description string
	Price       string
	Categories  []string
}

func (k ListKey) format(version int64) string {
	cats := make([]string, len(k.Categories))
	for i, c := range k.Categories {
		cats[i] = strings.ToLower(c)
	}
	sort.Strings(cats)
	return fmt.Sprintf("%s%d:p:%d:l:%d:n:%q:d:%q:pr:%s:c:%q",
		listPrefix, version, k.Page, k.PageSize,
		strings.ToLower(k.Name), strings.ToLower(k.Description), k.Price, strings.Join(cats, ","))
}

type ListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *ListCache {
	return &ListCache{rdb: rdb, ttl: ttl}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*ListCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return New(rdb, ttl), nil
}

func (c *ListCache) Close() error { return c.rdb.Close() }

func (c *ListCache) Get(ctx context.Context, k ListKey) (domain.ListPage, bool) {
	var out domain.ListPage
	ver, err := c.version(ctx)
	if err != nil {
		return out, false
	}
	raw, err := c.rdb.Get(ctx, k.format(ver)).Bytes()
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Event(zapcore.WarnLevel, "cache.list.decode", err, nil)
		return domain.ListPage{}, false
	}
	return out, true
}

func (c *ListCache) Set(ctx context.Context, k ListKey, page domain.ListPage) {
	ver, err := c.version(ctx)
	if err != nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, k.format(ver), raw, c.ttl).Err(); err != nil {
		log.Event(zapcore.WarnLevel, "cache.list.set", err, nil)
	}
}

// Invalidate drops every cached list by moving to a new version.
func (c *ListCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

func (c *ListCache) version(ctx context.Context) (int64, error) {
	ver, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so concurrent first readers agree on 1
		if err := c.rdb.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.rdb.Get(ctx, versionKey).Int64()
	}
	return ver, err
}
