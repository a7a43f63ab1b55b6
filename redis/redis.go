package redis

import (
	"context"
	"fmt"
	"time"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dropsight/catmig"
)

type client struct {
	conn    *Connection
	isOwner bool
}

// NewClient returns a Coordinator backed by the default shared Redis connection.
// The underlying connection must have been initialized via package-level setup.
func NewClient() catmig.Coordinator {
	log.Debug("NewClient called")
	return &client{
		conn: nil,
	}
}

// NewConnectionClient opens a new Redis connection with the given options and
// returns a Coordinator owning it. Useful for tests against a dedicated DB index.
func NewConnectionClient(options Options) catmig.Coordinator {
	log.Info("NewConnectionClient called", "address", options.Address, "db", options.DB)
	c := openConnection(options)
	return &client{
		conn:    c,
		isOwner: true,
	}
}

func (c *client) getConnection() (*Connection, error) {
	if c.isOwner {
		if c.conn == nil {
			return nil, fmt.Errorf("redis connection is not open; can't create new client")
		}
		return c.conn, nil
	}
	if connection == nil {
		return nil, fmt.Errorf("redis connection is not open; can't create new client")
	}
	return connection, nil
}

// keyNotFound reports whether the provided error corresponds to a missing key in Redis.
func (c *client) keyNotFound(err error) bool {
	return err == redis.Nil
}

// Ping tests connectivity to Redis.
func (c *client) Ping(ctx context.Context) error {
	conn, err := c.getConnection()
	if err != nil {
		return err
	}
	pong, err := conn.Client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	log.Debug("Redis Ping success", "response", pong)
	return nil
}

// SetNX atomically creates key iff absent, with the given TTL.
func (c *client) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	conn, err := c.getConnection()
	if err != nil {
		return false, err
	}
	ok, err := conn.Client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed for key %s: %w", key, err)
	}
	return ok, nil
}

// Get retrieves a string value. Returns (found, value, error-from-backend).
func (c *client) Get(ctx context.Context, key string) (bool, string, error) {
	conn, err := c.getConnection()
	if err != nil {
		return false, "", err
	}
	s, err := conn.Client.Get(ctx, key).Result()
	// Convert key not found into returning false and nil err.
	r := err == nil
	if c.keyNotFound(err) {
		err = nil
	} else if err != nil {
		err = fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	return r, s, err
}

// Expire extends key's TTL. Returns whether the key existed.
func (c *client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	conn, err := c.getConnection()
	if err != nil {
		return false, err
	}
	ok, err := conn.Client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire failed for key %s: %w", key, err)
	}
	return ok, nil
}

// Exists reports whether key is present.
func (c *client) Exists(ctx context.Context, key string) (bool, error) {
	conn, err := c.getConnection()
	if err != nil {
		return false, err
	}
	n, err := conn.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed for key %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes keys; missing keys are not an error.
func (c *client) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	conn, err := c.getConnection()
	if err != nil {
		return err
	}
	if err := conn.Client.Del(ctx, keys...).Err(); err != nil && !c.keyNotFound(err) {
		return fmt.Errorf("redis delete failed for keys %v: %w", keys, err)
	}
	return nil
}

// HSet writes one field of a hash key.
func (c *client) HSet(ctx context.Context, key string, field string, value string) error {
	conn, err := c.getConnection()
	if err != nil {
		return err
	}
	if err := conn.Client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset failed for key %s field %s: %w", key, field, err)
	}
	return nil
}

// HGet reads one field of a hash key. Returns (found, value, error).
func (c *client) HGet(ctx context.Context, key string, field string) (bool, string, error) {
	conn, err := c.getConnection()
	if err != nil {
		return false, "", err
	}
	s, err := conn.Client.HGet(ctx, key, field).Result()
	r := err == nil
	if c.keyNotFound(err) {
		err = nil
	} else if err != nil {
		err = fmt.Errorf("redis hget failed for key %s field %s: %w", key, field, err)
	}
	return r, s, err
}

// HGetAll reads the whole hash; an absent key yields an empty map.
func (c *client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	conn, err := c.getConnection()
	if err != nil {
		return nil, err
	}
	m, err := conn.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed for key %s: %w", key, err)
	}
	return m, nil
}

// HLen returns the field count of a hash key.
func (c *client) HLen(ctx context.Context, key string) (int64, error) {
	conn, err := c.getConnection()
	if err != nil {
		return 0, err
	}
	n, err := conn.Client.HLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen failed for key %s: %w", key, err)
	}
	return n, nil
}
