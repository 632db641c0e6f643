package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "soundgraph"

// Deduplicator coordena processos diferentes via Redis: claims de perfis
// em andamento e marcações de "já visto".
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeduplicator cria a instância compartilhada. ttl <= 0 usa 6 horas.
func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Deduplicator{rdb: rdb, ttl: ttl}
}

func key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, id)
}

// Claim reserva id sob kind por um ttl. Falso se outro processo já reservou.
func (d *Deduplicator) Claim(ctx context.Context, kind, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, key("claim:"+kind, id), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: claim %s/%s: %w", kind, id, err)
	}
	return ok, nil
}

// Release libera um claim, por exemplo quando a unidade abortou.
func (d *Deduplicator) Release(ctx context.Context, kind, id string) error {
	return d.rdb.Del(ctx, key("claim:"+kind, id)).Err()
}

// MarkAsSeen marca id como concluído sob kind.
func (d *Deduplicator) MarkAsSeen(ctx context.Context, kind, id string) error {
	return d.rdb.Set(ctx, key(kind, id), "1", d.ttl).Err()
}

// CheckIfProcessed informa se id já foi marcado sob kind.
func (d *Deduplicator) CheckIfProcessed(ctx context.Context, kind, id string) (bool, error) {
	exists, err := d.rdb.Exists(ctx, key(kind, id)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
