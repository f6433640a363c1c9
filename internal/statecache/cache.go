package statecache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/retry"
)

// Default cache settings.
const (
	DefaultTTL          = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// Logger defines the logging interface used by the Cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Fetcher performs one live state read through the owning adapter.
type Fetcher interface {
	FetchState(ctx context.Context, id device.UniversalID) (device.State, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id device.UniversalID) (device.State, error)

// FetchState calls f.
func (f FetcherFunc) FetchState(ctx context.Context, id device.UniversalID) (device.State, error) {
	return f(ctx, id)
}

// Options configures a Cache. Zero fields take defaults.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration // bounds one live fetch including its retries
	Retry        *retry.Policy // nil means retry.DefaultPolicy()
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
	Fetches uint64 // underlying fetcher calls, including retries
	Dropped uint64 // updates discarded because a subscriber was full
}

type entry struct {
	state    device.State
	storedAt time.Time
}

// flight tracks the generation of a key while fetches for it are running.
type flight struct {
	gen    uint64
	active int
}

// Cache holds the latest unified state per device.
//
// Every key carries a generation that Invalidate and Set advance. A live
// fetch records the generation it started under and only populates the cache
// if that generation is still current, and callers only share a fetch with
// others that observed the same generation. Together these give
// read-your-writes after Invalidate.
//
// Generations are drawn from one cache-wide counter and are only stored for
// keys with a fetch in flight; an idle key's generation is the counter
// itself, so a generation is never reused for the same key.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	policy       retry.Policy
	logger       Logger
	now          func() time.Time

	mu      sync.RWMutex
	entries map[device.UniversalID]entry
	flights map[device.UniversalID]*flight
	seq     uint64

	group singleflight.Group

	subsMu  sync.Mutex
	subs    map[uint64]*subscriber
	nextSub uint64

	hits    atomic.Uint64
	misses  atomic.Uint64
	fetches atomic.Uint64
	dropped atomic.Uint64
}

// New creates a Cache reading through fetcher.
func New(fetcher Fetcher, opts Options) *Cache {
	c := &Cache{
		fetcher:      fetcher,
		ttl:          opts.TTL,
		fetchTimeout: opts.FetchTimeout,
		policy:       retry.DefaultPolicy(),
		logger:       noopLogger{},
		now:          time.Now,
		entries:      make(map[device.UniversalID]entry),
		flights:      make(map[device.UniversalID]*flight),
		subs:         make(map[uint64]*subscriber),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	if opts.Retry != nil {
		c.policy = *opts.Retry
	}
	return c
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached state if it is younger than the TTL, otherwise a
// fresh state from a live fetch. Concurrent callers for the same key share
// one fetch. The caller's ctx bounds only the wait; the shared fetch keeps
// running for the other waiters and is bounded by the fetch timeout.
func (c *Cache) Get(ctx context.Context, id device.UniversalID) (device.State, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	gen := c.genLocked(id)
	c.mu.RUnlock()

	if ok && c.now().Sub(e.storedAt) < c.ttl {
		c.hits.Add(1)
		return e.state.Clone(), nil
	}
	c.misses.Add(1)

	key := string(id) + "#" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(fetchCtx, id, gen)
	})

	select {
	case <-ctx.Done():
		return device.State{}, device.NewError(device.KindOf(ctx.Err()), "get state", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return device.State{}, res.Err
		}
		return res.Val.(device.State).Clone(), nil
	}
}

// Set overwrites the cached state. It supersedes any fetch still in flight.
func (c *Cache) Set(id device.UniversalID, state device.State) {
	c.put(id, state.Clone(), SourcePush)
}

// Invalidate forces the next Get to perform a fetch that starts after this
// call returns.
func (c *Cache) Invalidate(id device.UniversalID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.advanceLocked(id)
	c.mu.Unlock()
}

// ClearBackend drops every entry owned by backend.
func (c *Cache) ClearBackend(backend device.Backend) {
	c.clearMatching(func(id device.UniversalID) bool { return id.Backend() == backend })
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.clearMatching(func(device.UniversalID) bool { return true })
}

func (c *Cache) clearMatching(match func(device.UniversalID) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	for id := range c.entries {
		if match(id) {
			delete(c.entries, id)
		}
	}
	for id, f := range c.flights {
		if match(id) {
			f.gen = c.seq
		}
	}
}

// genLocked returns the current generation of id. c.mu must be held.
func (c *Cache) genLocked(id device.UniversalID) uint64 {
	if f, ok := c.flights[id]; ok {
		return f.gen
	}
	return c.seq
}

// advanceLocked supersedes every fetch in flight for id. c.mu must be held.
func (c *Cache) advanceLocked(id device.UniversalID) {
	c.seq++
	if f, ok := c.flights[id]; ok {
		f.gen = c.seq
	}
}

// begin registers a fetch started under gen and reports whether gen is
// still current.
func (c *Cache) begin(id device.UniversalID, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[id]
	if !ok {
		f = &flight{gen: gen}
		c.flights[id] = f
	}
	f.active++
	return f.gen == gen
}

// finishLocked unregisters a fetch and reports whether gen is still
// current. c.mu must be held.
func (c *Cache) finishLocked(id device.UniversalID, gen uint64) bool {
	f := c.flights[id]
	current := f.gen == gen
	if f.active--; f.active == 0 {
		delete(c.flights, id)
	}
	return current
}

// Peek returns the cached state regardless of age, and its age.
func (c *Cache) Peek(id device.UniversalID) (device.State, time.Duration, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return device.State{}, 0, false
	}
	return e.state.Clone(), c.now().Sub(e.storedAt), true
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Fetches: c.fetches.Load(),
		Dropped: c.dropped.Load(),
	}
}

func (c *Cache) fetch(ctx context.Context, id device.UniversalID, gen uint64) (state device.State, err error) {
	fresh := c.begin(id, gen)
	defer func() {
		c.mu.Lock()
		current := c.finishLocked(id, gen) && fresh && err == nil
		if current {
			c.entries[id] = entry{state: state.Clone(), storedAt: c.now()}
		}
		c.mu.Unlock()

		if current {
			c.publish(Update{DeviceID: id, State: state.Clone(), Source: SourceFetch})
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	attempts, err := retry.Do(ctx, c.policy, device.RetryClassifier, func(ctx context.Context, attempt int) error {
		c.fetches.Add(1)
		s, err := c.fetcher.FetchState(ctx, id)
		if err != nil {
			c.logger.Debug("state fetch failed", "device", id, "attempt", attempt, "error", err)
			return err
		}
		state = s
		return nil
	})
	if err != nil {
		return device.State{}, device.AsError(err, "fetch state", id)
	}
	if state.DeviceID == "" {
		state.DeviceID = id
	}
	if attempts > 1 {
		c.logger.Debug("state fetch recovered", "device", id, "attempts", attempts)
	}
	return state, nil
}

func (c *Cache) put(id device.UniversalID, state device.State, source Source) {
	if state.DeviceID == "" {
		state.DeviceID = id
	}
	c.mu.Lock()
	c.advanceLocked(id)
	c.entries[id] = entry{state: state, storedAt: c.now()}
	c.mu.Unlock()

	c.publish(Update{DeviceID: id, State: state.Clone(), Source: source})
}
