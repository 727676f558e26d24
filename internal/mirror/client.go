package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/redis/go-redis/v9"
)

// Client provides namespaced Redis operations for cached snapshots and tree
// events. It is safe for concurrent use and implements tree.Publisher.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a client whose keys and channels are scoped to namespace.
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(redisURL, namespace string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewClient(opts, namespace)
}

// Namespace returns the key namespace.
func (c *Client) Namespace() string {
	return c.namespace
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SaveSnapshot replaces the cached copy of snap's tree. The old copy's keys
// are removed and the new ones written in a single transaction.
func (c *Client) SaveSnapshot(ctx context.Context, snap *tree.Snapshot) error {
	if snap == nil || snap.RootID.IsZero() {
		return fmt.Errorf("snapshot has no root")
	}

	meta, err := SnapshotToHash(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	stale, err := c.treeKeys(ctx, snap.RootID)
	if err != nil {
		return err
	}

	writes := make([]bucketWrite, 0)
	writes, err = appendBuckets(writes, c.namespace, snap.RootID, snap.Epics)
	if err == nil {
		writes, err = appendBuckets(writes, c.namespace, snap.RootID, snap.Objectives)
	}
	if err == nil {
		writes, err = appendBuckets(writes, c.namespace, snap.RootID, snap.KeyResults)
	}
	if err == nil {
		writes, err = appendBuckets(writes, c.namespace, snap.RootID, snap.Activities)
	}
	if err == nil {
		writes, err = appendBuckets(writes, c.namespace, snap.RootID, snap.Tasks)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize buckets: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		pipe.HSet(ctx, RootKey(c.namespace, snap.RootID), meta)
		for _, w := range writes {
			pipe.RPush(ctx, w.parentsKey, w.parentID.String())
			pipe.Set(ctx, w.bucketKey, w.payload, 0)
		}
		pipe.SAdd(ctx, RootsKey(c.namespace), snap.RootID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds the cached snapshot of rootID.
// Returns redis.Nil if nothing is cached; use IsNotFound to check.
func (c *Client) LoadSnapshot(ctx context.Context, rootID okr.ID) (*tree.Snapshot, error) {
	hash, err := c.rdb.HGetAll(ctx, RootKey(c.namespace, rootID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	snap, err := HashToSnapshot(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}

	if err := loadBuckets(ctx, c, snap.RootID, snap.Epics); err != nil {
		return nil, err
	}
	if err := loadBuckets(ctx, c, snap.RootID, snap.Objectives); err != nil {
		return nil, err
	}
	if err := loadBuckets(ctx, c, snap.RootID, snap.KeyResults); err != nil {
		return nil, err
	}
	if err := loadBuckets(ctx, c, snap.RootID, snap.Activities); err != nil {
		return nil, err
	}
	if err := loadBuckets(ctx, c, snap.RootID, snap.Tasks); err != nil {
		return nil, err
	}
	return snap, nil
}

// DeleteSnapshot removes the cached copy of rootID. Missing copies are not an error.
func (c *Client) DeleteSnapshot(ctx context.Context, rootID okr.ID) error {
	keys, err := c.treeKeys(ctx, rootID)
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.SRem(ctx, RootsKey(c.namespace), rootID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// CachedRoots returns the ids of every cached root, sorted.
func (c *Client) CachedRoots(ctx context.Context) ([]okr.ID, error) {
	members, err := c.rdb.SMembers(ctx, RootsKey(c.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cached roots: %w", err)
	}
	sort.Strings(members)
	out := make([]okr.ID, 0, len(members))
	for _, m := range members {
		out = append(out, okr.ID(m))
	}
	return out, nil
}

// Publish sends ev on the namespace's tree events channel.
func (c *Client) Publish(ctx context.Context, ev *tree.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal tree event: %w", err)
	}
	if err := c.rdb.Publish(ctx, TreeEventsChannel(c.namespace), data).Err(); err != nil {
		return fmt.Errorf("failed to publish tree event: %w", err)
	}
	return nil
}

// treeKeys returns every existing key of rootID's cached copy.
func (c *Client) treeKeys(ctx context.Context, rootID okr.ID) ([]string, error) {
	keys := []string{RootKey(c.namespace, rootID)}
	for _, level := range bucketLevels {
		parentsKey := ParentsKey(c.namespace, rootID, level)
		parents, err := c.rdb.LRange(ctx, parentsKey, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s parents: %w", level, err)
		}
		keys = append(keys, parentsKey)
		for _, p := range parents {
			keys = append(keys, BucketKey(c.namespace, rootID, level, okr.ID(p)))
		}
	}
	return keys, nil
}

type bucketWrite struct {
	parentsKey string
	bucketKey  string
	parentID   okr.ID
	payload    string
}

func appendBuckets[T okr.Node](writes []bucketWrite, namespace string, rootID okr.ID, store *tree.Store[T]) ([]bucketWrite, error) {
	level := store.Level()
	for _, parentID := range store.Parents() {
		data, err := json.Marshal(store.Get(parentID))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s bucket %s: %w", level, parentID, err)
		}
		writes = append(writes, bucketWrite{
			parentsKey: ParentsKey(namespace, rootID, level),
			bucketKey:  BucketKey(namespace, rootID, level, parentID),
			parentID:   parentID,
			payload:    string(data),
		})
	}
	return writes, nil
}

func loadBuckets[T okr.Node](ctx context.Context, c *Client, rootID okr.ID, store *tree.Store[T]) error {
	level := store.Level()
	parents, err := c.rdb.LRange(ctx, ParentsKey(c.namespace, rootID, level), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read %s parents: %w", level, err)
	}
	for _, p := range parents {
		parentID := okr.ID(p)
		data, err := c.rdb.Get(ctx, BucketKey(c.namespace, rootID, level, parentID)).Result()
		if err != nil {
			return fmt.Errorf("failed to read %s bucket %s: %w", level, parentID, err)
		}
		var children []T
		if err := json.Unmarshal([]byte(data), &children); err != nil {
			return fmt.Errorf("failed to unmarshal %s bucket %s: %w", level, parentID, err)
		}
		store.Set(parentID, children)
	}
	return nil
}

// IsNotFound reports whether err is redis.Nil, as returned by LoadSnapshot
// for a root with no cached copy.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
