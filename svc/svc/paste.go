package svc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clipbin/cfg"
	"clipbin/metrics"
	"clipbin/pkg/domain"
	"clipbin/svc/cache"
	"clipbin/svc/db"
	"clipbin/svc/util"

	"github.com/pkg/errors"
)

// Paste composes the id generator, token issuer, retention resolver and store
// behind the three public operations. All cross-layer caching honors the rule
// that burn pastes only ever flow through the authoritative store.
type Paste struct {
	db       *db.SQLite
	lru      *cache.LRU
	rdb      *db.Redis
	cfg      *cfg.Cfg
	shutdown atomic.Bool
	opWg     sync.WaitGroup
}

func NewPaste(sqlDB *db.SQLite, lru *cache.LRU, rdb *db.Redis, c *cfg.Cfg) *Paste {
	if sqlDB == nil || lru == nil || c == nil {
		panic("paste service: nil dependency (sqlDB, lru, or cfg)")
	}
	return &Paste{
		db:  sqlDB,
		lru: lru,
		rdb: rdb,
		cfg: c,
	}
}

func (p *Paste) Shutdown() {
	p.shutdown.Store(true)
	p.opWg.Wait()
	util.Debug().Msg("paste service shutdown complete")
}

// Create validates the payload bound, resolves retention, assigns the id and
// deletion capability, and persists the record. The raw token is returned to
// the caller exactly once; only its digest survives.
func (p *Paste) Create(ctx context.Context, params domain.CreateParams) (*domain.Paste, string, error) {
	if p.shutdown.Load() {
		return nil, "", errors.New("service shutting down")
	}
	p.opWg.Add(1)
	defer p.opWg.Done()
	if params.Content == "" {
		return nil, "", domain.ErrContentRequired
	}
	if int64(len(params.Content)) > p.cfg.MaxPasteSize {
		return nil, "", domain.ErrPasteTooLarge
	}
	now := time.Now()
	retention, err := domain.ResolveRetention(params.Keeping, now)
	if err != nil {
		return nil, "", err
	}
	id, err := util.GenID(func(id string) (bool, error) {
		return p.db.Exists(ctx, id)
	})
	if err != nil {
		util.Error().Err(err).Msg("id generation failed")
		return nil, "", domain.ErrIDGenerationFailed
	}
	token, err := util.NewToken()
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	paste := &domain.Paste{
		ID:        id,
		TokenHash: util.HashToken(token),
		Owner:     params.Owner,
		Title:     params.Title,
		Content:   params.Content,
		Language:  domain.LanguageName(params.Language),
		Keeping:   params.Keeping,
		Burn:      retention.Burn,
		CreatedAt: now,
	}
	if !retention.Burn {
		expiresAt := retention.ExpiresAt
		paste.ExpiresAt = &expiresAt
	}
	if err := p.db.Create(ctx, paste); err != nil {
		return nil, "", err
	}
	if !paste.Burn {
		ttl := time.Until(*paste.ExpiresAt)
		p.lru.Set(ctx, paste, ttl)
		if p.rdb != nil {
			if err := p.rdb.CachePaste(ctx, paste, ttl); err != nil {
				util.Warn().Err(err).Str("id", id).Msg("failed to cache in Redis")
			}
		}
	}
	metrics.PasteCreated.Inc()
	return paste, token, nil
}

// Get serves duration-retained pastes from the caches when possible, with a
// lazy expiry check on every hit. Burn pastes bypass both caches so the
// store's consume step stays the single point of truth.
func (p *Paste) Get(ctx context.Context, id string) (*domain.Paste, error) {
	if paste := p.lru.Get(ctx, id); paste != nil {
		if paste.Expired(time.Now()) {
			p.lru.Delete(id)
			if p.rdb != nil {
				if err := p.rdb.Delete(ctx, id); err != nil {
					util.Warn().Err(err).Str("id", id).Msg("failed to purge redis on expiry")
				}
			}
			return nil, domain.ErrPasteNotFound
		}
		metrics.CacheHits.Inc()
		metrics.PasteRetrieved.Inc()
		return paste, nil
	}
	if p.rdb != nil {
		if paste, err := p.rdb.GetPaste(ctx, id); err == nil && paste != nil {
			if paste.Expired(time.Now()) {
				p.lru.Delete(id)
				if err := p.rdb.Delete(ctx, id); err != nil {
					util.Warn().Err(err).Str("id", id).Msg("failed to purge redis on expiry")
				}
				return nil, domain.ErrPasteNotFound
			}
			metrics.CacheHits.Inc()
			p.lru.Set(ctx, paste, time.Until(*paste.ExpiresAt))
			metrics.PasteRetrieved.Inc()
			return paste, nil
		}
	}
	metrics.CacheMisses.Inc()
	paste, err := p.db.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "get paste")
	}
	if paste.Burn {
		metrics.PasteBurned.Inc()
	} else {
		ttl := time.Until(*paste.ExpiresAt)
		p.lru.Set(ctx, paste, ttl)
		if p.rdb != nil {
			if err := p.rdb.CachePaste(ctx, paste, ttl); err != nil {
				util.Warn().Err(err).Str("id", id).Msg("failed to cache in Redis")
			}
		}
	}
	metrics.PasteRetrieved.Inc()
	return paste, nil
}

// Delete removes the paste when the capability token matches. Possession of
// the token is the entire authorization model; there is no reset path.
func (p *Paste) Delete(ctx context.Context, id, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.db.Delete(ctx, id, token); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			metrics.DeleteRejected.Inc()
		}
		return err
	}
	p.lru.Delete(id)
	if p.rdb != nil {
		if err := p.rdb.Delete(ctx, id); err != nil {
			util.Warn().Err(err).Str("id", id).Msg("failed to delete from redis")
		}
	}
	metrics.PasteDeleted.Inc()
	util.Info().Str("id", id).Msg("paste deleted via token")
	return nil
}

var (
	reaperOnce    sync.Once
	reaperRunning atomic.Bool
)

// StartReaper launches the background sweep of time-expired records. It is
// the only driver of time-based deletion; burn deletion is driven by Get.
func StartReaper(ctx context.Context, store *db.SQLite, interval time.Duration) error {
	if reaperRunning.Load() {
		return errors.New("reaper already running")
	}
	reaperOnce.Do(func() {
		reaperRunning.Store(true)
		go runReaper(ctx, store, interval)
	})
	return nil
}

func runReaper(ctx context.Context, store *db.SQLite, interval time.Duration) {
	defer reaperRunning.Store(false)
	sweepRequestID := util.NewRequestID()
	ctx = util.SetRequestID(ctx, sweepRequestID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().
		Str("request_id", sweepRequestID).
		Dur("interval", interval).
		Msg("expiry reaper started")
	for {
		select {
		case <-ctx.Done():
			util.Info().
				Str("request_id", sweepRequestID).
				Msg("expiry reaper shutting down")
			return
		case <-ticker.C:
			swept, err := store.SweepExpired(ctx)
			metrics.SweepCycles.Inc()
			if err != nil {
				// Never fatal; the next tick retries.
				util.Error().
					Err(err).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("sweep failed")
			} else if swept > 0 {
				metrics.PastesSwept.Add(float64(swept))
				util.Info().
					Int("swept", swept).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("sweep completed")
			}
		}
	}
}
