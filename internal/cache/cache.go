// Package cache хранит настройки организаций в Redis, чтобы не читать их из БД на каждом заказе.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

// ErrMiss возвращается, если организации нет в кэше.
var ErrMiss = errors.New("cache miss")

const keyPrefix = "posledger:org:"

// OrganizationCache кэширует организации в Redis.
type OrganizationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOrganizationCache создаёт кэш с указанным временем жизни записей.
func NewOrganizationCache(client *redis.Client, ttl time.Duration) *OrganizationCache {
	return &OrganizationCache{client: client, ttl: ttl}
}

// Connect подключается к Redis по адресу addr и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// Get возвращает организацию из кэша или ErrMiss.
func (c *OrganizationCache) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var org model.Organization
	if err := json.Unmarshal(raw, &org); err != nil {
		return nil, fmt.Errorf("decode organization: %w", err)
	}
	return &org, nil
}

// Set сохраняет организацию в кэш.
func (c *OrganizationCache) Set(ctx context.Context, org *model.Organization) error {
	raw, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("encode organization: %w", err)
	}
	if err := c.client.Set(ctx, key(org.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate удаляет организацию из кэша.
func (c *OrganizationCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
