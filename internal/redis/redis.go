// Package redis wraps the go-redis client used to mirror the crawl's visited set.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

// Client is a wrapper around the go-redis client.
type Client struct {
	*goredis.Client
}

// NewClient parses a redis:// URL, connects and pings the server.
func NewClient(ctx context.Context, rawURL string) (*Client, error) {
	opt, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb}, nil
}

// VisitedSet stores claimed URLs in one Redis set so an interrupted crawl can resume.
type VisitedSet struct {
	client *Client
	key    string
}

// NewVisitedSet returns a set stored under key.
func NewVisitedSet(client *Client, key string) *VisitedSet {
	return &VisitedSet{client: client, key: key}
}

// Claim adds url to the set and reports whether it was not already present.
func (s *VisitedSet) Claim(ctx context.Context, url string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, url).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// Reset deletes the set.
func (s *VisitedSet) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Members returns every URL in the set.
func (s *VisitedSet) Members(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.key).Result()
}
