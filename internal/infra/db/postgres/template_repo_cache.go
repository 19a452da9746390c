package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
	"coop-voucher/internal/infra/metrics"
	red "coop-voucher/internal/infra/redis"
)

var _ repository.TemplateRepository = (*templateRepoCacheDecorator)(nil)

const templateListKey = "templates:all"

// templateRepoCacheDecorator is a read-through Redis cache in front of the template table.
// Templates are read on every redemption and artifact render, and change rarely.
type templateRepoCacheDecorator struct {
	inner repository.TemplateRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewTemplateRepoCacheDecorator(inner repository.TemplateRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.TemplateRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "template_cache").Logger()
	return &templateRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func templateKey(id string) string { return "template:" + id }

func (d *templateRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
	key := templateKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var t model.Template
		if json.Unmarshal([]byte(val), &t) == nil {
			metrics.IncCacheRequest("template", "hit")
			return &t, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("template cache read failed")
	}

	metrics.IncCacheRequest("template", "miss")
	t, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(t); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("template cache write failed")
		}
	}
	return t, nil
}

// Save writes through and invalidates both the entry and the list.
func (d *templateRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, t *model.Template) error {
	if err := d.inner.Save(ctx, tx, t); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, templateKey(t.ID), templateListKey); err != nil {
		d.log.Warn().Err(err).Str("template_id", t.ID).Msg("template cache invalidation failed")
	}
	return nil
}

func (d *templateRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Template, error) {
	val, err := d.cache.Get(ctx, templateListKey)
	if err == nil {
		var ts []*model.Template
		if json.Unmarshal([]byte(val), &ts) == nil {
			metrics.IncCacheRequest("template_list", "hit")
			return ts, nil
		}
	}

	metrics.IncCacheRequest("template_list", "miss")
	ts, err := d.inner.List(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(ts) > 0 {
		if b, err := json.Marshal(ts); err == nil {
			_ = d.cache.Set(ctx, templateListKey, b, d.ttl)
		}
	}
	return ts, nil
}
