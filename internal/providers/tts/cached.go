package tts

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/cache"
)

// Cached serves repeated sentences from the cache instead of the backend.
type Cached struct {
	next Provider
	c    cache.Cache
	ttl  time.Duration
	log  *logrus.Logger
}

func NewCached(next Provider, c cache.Cache, ttl time.Duration, log *logrus.Logger) *Cached {
	return &Cached{next: next, c: c, ttl: ttl, log: log}
}

func (p *Cached) Synthesize(ctx context.Context, text string) ([]byte, error) {
	key := cache.Key("tts", text)

	audio, hit, err := p.c.Get(ctx, key)
	if err != nil {
		p.log.WithError(err).Warn("tts cache read failed")
	}
	if hit && len(audio) > 0 {
		return audio, nil
	}

	audio, err = p.next.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := p.c.Set(ctx, key, audio, p.ttl); err != nil {
		p.log.WithError(err).Warn("tts cache write failed")
	}
	return audio, nil
}
