package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/repository/delivery_index"
)

var _ delivery_index.DeliveryIndex = (*DeliveryIndex)(nil)

const KeyPrefix = "ordernotify:delivered:"

type DeliveryIndex struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewDeliveryIndex(client *goredis.Client, ttl time.Duration) *DeliveryIndex {
	return &DeliveryIndex{client: client, ttl: ttl}
}

// Ping checks that redis is reachable.
func (i *DeliveryIndex) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := i.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func (i *DeliveryIndex) WasDelivered(ctx context.Context, jobID string) (bool, error) {
	n, err := i.client.Exists(ctx, KeyPrefix+jobID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up delivery of %s: %w", jobID, err)
	}
	return n > 0, nil
}

func (i *DeliveryIndex) MarkDelivered(ctx context.Context, jobID string) error {
	if err := i.client.SetNX(ctx, KeyPrefix+jobID, time.Now().UTC().Format(time.RFC3339), i.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark %s delivered: %w", jobID, err)
	}
	return nil
}

func (i *DeliveryIndex) Close() error {
	return i.client.Close()
}
