package engine

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"speech-diarization-service/internal/observability/logging"
	"speech-diarization-service/internal/observability/metrics"
)

// ErrCacheClosed is returned by Acquire after Close.
var ErrCacheClosed = errors.New("model cache closed")

// Model is a loaded engine model holding process resources.
type Model interface {
	Close() error
}

// Key identifies a loaded model.
type Key struct {
	Kind   string // "transcription" or "diarization"
	Model  string
	Device Device
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Kind, k.Model, k.Device)
}

// Loader loads the model for a key.
type Loader func(ctx context.Context) (Model, error)

type cacheEntry struct {
	key     Key
	model   Model
	refs    int
	evicted bool
}

// Cache is a bounded LRU of loaded models shared by all requests.
//
// Concurrent Acquire calls for the same key share a single load. A model
// evicted while in use stays open until its last holder releases it.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	entries  map[Key]*list.Element
	group    singleflight.Group
	closed   bool
	metrics  *metrics.Metrics
}

// NewCache creates a cache holding at most capacity models.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[Key]*list.Element),
		metrics:  metrics.DefaultMetrics,
	}
}

// Acquire returns the model for key, loading it with load on a miss.
// The caller must call release exactly once when done with the model.
func (c *Cache) Acquire(ctx context.Context, key Key, load Loader) (Model, func(), error) {
	for {
		if e, ok, err := c.lookup(key); err != nil {
			return nil, nil, err
		} else if ok {
			return e.model, c.releaser(e), nil
		}

		ch := c.group.DoChan(key.String(), func() (any, error) {
			return c.load(ctx, key, load)
		})

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, nil, res.Err
			}
		}
		// Loop to take a reference under the lock; the entry may already be gone.
	}
}

func (c *Cache) lookup(key Key) (*cacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrCacheClosed
	}
	el, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	e.refs++
	return e, true, nil
}

func (c *Cache) load(ctx context.Context, key Key, load Loader) (any, error) {
	c.mu.Lock()
	_, resident := c.entries[key]
	c.mu.Unlock()
	if resident {
		return nil, nil
	}

	logger := logging.WithModel(key.Kind, key.Model, key.Device.String())
	start := time.Now()
	// The load is shared by every waiter, so it must outlive the first caller.
	m, err := load(context.WithoutCancel(ctx))
	c.metrics.RecordModelLoad(key.Kind, err, time.Since(start).Seconds())
	if err != nil {
		logger.Error().Err(err).Msg("Model load failed")
		return nil, err
	}

	logger.Info().
		Dur("duration", time.Since(start)).
		Msg("Model loaded")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = m.Close()
		return nil, ErrCacheClosed
	}
	if _, exists := c.entries[key]; exists {
		c.mu.Unlock()
		_ = m.Close()
		return nil, nil
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, model: m})
	victims := c.evictLocked()
	c.metrics.SetModelsCached(len(c.entries))
	c.mu.Unlock()

	closeModels(victims)
	return nil, nil
}

// evictLocked trims the cache to capacity and returns models that can be closed now.
func (c *Cache) evictLocked() []Model {
	var victims []Model
	for len(c.entries) > c.capacity {
		el := c.order.Back()
		e := el.Value.(*cacheEntry)
		if v := c.removeLocked(e); v != nil {
			victims = append(victims, v)
		}
	}
	return victims
}

func (c *Cache) removeLocked(e *cacheEntry) Model {
	el, ok := c.entries[e.key]
	if !ok || el.Value.(*cacheEntry) != e {
		return nil
	}
	c.order.Remove(el)
	delete(c.entries, e.key)
	e.evicted = true
	c.metrics.RecordModelEviction()
	logger := logging.WithModel(e.key.Kind, e.key.Model, e.key.Device.String())
	logger.Debug().Int("refs", e.refs).Msg("Model evicted")
	if e.refs == 0 {
		return e.model
	}
	return nil
}

func (c *Cache) releaser(e *cacheEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			e.refs--
			closeNow := e.evicted && e.refs == 0
			c.mu.Unlock()
			if closeNow {
				closeModels([]Model{e.model})
			}
		})
	}
}

// Discard removes the model held under key if it is still m, for example
// after its worker process died. It is closed once no longer in use.
func (c *Cache) Discard(key Key, m Model) {
	c.mu.Lock()
	var victim Model
	if el, ok := c.entries[key]; ok {
		if e := el.Value.(*cacheEntry); e.model == m {
			victim = c.removeLocked(e)
		}
	}
	c.metrics.SetModelsCached(len(c.entries))
	c.mu.Unlock()

	if victim != nil {
		closeModels([]Model{victim})
	}
}

// Len returns the number of resident models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close evicts every model. Models still in use close on their last release.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	var victims []Model
	for c.order.Len() > 0 {
		if v := c.removeLocked(c.order.Back().Value.(*cacheEntry)); v != nil {
			victims = append(victims, v)
		}
	}
	c.metrics.SetModelsCached(0)
	c.mu.Unlock()

	return closeModels(victims)
}

func closeModels(models []Model) error {
	var errs []error
	for _, m := range models {
		if err := m.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing model")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
