// Package resume drives a player on the viewing side: it picks the start
// position, seeks once the player is ready and reports positions back to
// the progress API.
package resume

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/starteducation/starteducation/internal/progress"
	"golang.org/x/sync/errgroup"
)

const (
	// SeekThresholdSeconds is the resume position at or below which playback starts from zero.
	SeekThresholdSeconds = 5
	SaveDebounce         = 800 * time.Millisecond
	saveTimeout          = 10 * time.Second
)

type Config struct {
	VideoID   string
	Client    ProgressClient
	Cache     Cache
	Backend   Backend
	Lifecycle *Lifecycle
	Clock     clockwork.Clock
	Debounce  time.Duration
}

type Controller struct {
	videoID   string
	client    ProgressClient
	cache     Cache
	backend   Backend
	lifecycle *Lifecycle
	clock     clockwork.Clock
	debounce  time.Duration

	mu          sync.Mutex
	position    int
	hasPosition bool
	completed   bool
	saveTimer   clockwork.Timer
	ticker      clockwork.Ticker
	unsubscribe func()
	started     bool
	closed      bool

	// finalPending is set by a lifecycle event until the next position
	// report has been flushed.
	finalPending bool

	stop   chan struct{}
	pollWG sync.WaitGroup
}

func NewController(cfg Config) *Controller {
	c := &Controller{
		videoID:   cfg.VideoID,
		client:    cfg.Client,
		cache:     cfg.Cache,
		backend:   cfg.Backend,
		lifecycle: cfg.Lifecycle,
		clock:     cfg.Clock,
		debounce:  cfg.Debounce,
		stop:      make(chan struct{}),
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.debounce <= 0 {
		c.debounce = SaveDebounce
	}
	if c.cache == nil {
		c.cache = NewMemoryCache()
	}
	return c
}

// Start resolves the resume position, mounts the backend and begins polling.
// Load failures fall back to the cache or zero and are only logged.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	start := c.resolveStart(ctx)
	seekTo := 0
	if start > SeekThresholdSeconds {
		seekTo = start
	}

	c.backend.OnPosition(c.Observe)
	if err := c.backend.Mount(seekTo); err != nil {
		slog.Warn("resume: failed to mount backend", "video_id", c.videoID, "error", err)
	}
	if seekTo > 0 {
		c.backend.OnReady(func() { c.backend.Seek(seekTo) })
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.ticker = c.clock.NewTicker(c.backend.PollInterval())
	if c.lifecycle != nil {
		c.unsubscribe = c.lifecycle.Subscribe(c.handleLifecycle)
	}
	c.pollWG.Add(1)
	go c.pollLoop(c.ticker)
}

func (c *Controller) resolveStart(ctx context.Context) int {
	var server, cached int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if c.client == nil {
			return nil
		}
		snap, err := c.client.Load(gctx, c.videoID)
		if err != nil {
			slog.Warn("resume: failed to load server progress", "video_id", c.videoID, "error", err)
			return nil
		}
		server = snap.Seconds
		if snap.Completed {
			c.mu.Lock()
			c.completed = true
			c.mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		s, ok, err := c.cache.Get(c.videoID)
		if err != nil {
			slog.Warn("resume: failed to read cached position", "video_id", c.videoID, "error", err)
			return nil
		}
		if ok {
			cached = s
		}
		return nil
	})
	_ = g.Wait()

	if server > 0 {
		return server
	}
	if cached > 0 {
		return cached
	}
	return 0
}

// Observe records a position reported by the backend. The cache is written
// before returning; the server save is debounced.
func (c *Controller) Observe(seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return
	}
	pos := int(math.Floor(seconds))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.position = pos
	c.hasPosition = true
	if progress.IsComplete(pos, c.backend.Duration()) {
		c.completed = true
	}
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	flushNow := c.finalPending
	c.finalPending = false
	if !flushNow {
		c.saveTimer = c.clock.AfterFunc(c.debounce, c.Flush)
	}
	c.mu.Unlock()

	if err := c.cache.Set(c.videoID, pos); err != nil {
		slog.Warn("resume: failed to cache position", "video_id", c.videoID, "error", err)
	}
	if flushNow {
		c.Flush()
	}
}

// Flush sends the latest position to the server without waiting for the result.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	if !c.hasPosition || c.client == nil {
		c.mu.Unlock()
		return
	}
	pos, completed := c.position, c.completed
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := c.client.Save(ctx, c.videoID, pos, completed); err != nil {
			slog.Warn("resume: failed to save progress", "video_id", c.videoID, "seconds", pos, "error", err)
		}
	}()
}

// Position returns the last observed position.
func (c *Controller) Position() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position, c.hasPosition
}

// Close stops timers, polling and lifecycle subscriptions. Saves already in
// flight are left to finish on their own.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	close(c.stop)
	c.pollWG.Wait()
	if unsubscribe != nil {
		unsubscribe()
	}
	c.backend.Close()
}

func (c *Controller) pollLoop(ticker clockwork.Ticker) {
	defer c.pollWG.Done()
	for {
		select {
		case <-ticker.Chan():
			c.backend.PollPosition()
		case <-c.stop:
			return
		}
	}
}

// handleLifecycle asks for a final report and flushes. An SDK backend answers
// PollPosition synchronously, so Observe has already flushed the fresh value.
// A message frame replies later: the flush here carries the previous position
// and the reply is flushed by Observe without waiting for the debounce.
func (c *Controller) handleLifecycle(kind EventKind) {
	slog.Debug("resume: lifecycle flush", "video_id", c.videoID, "event", kind.String())

	c.mu.Lock()
	c.finalPending = true
	c.mu.Unlock()

	c.backend.PollPosition()

	c.mu.Lock()
	pending := c.finalPending
	c.mu.Unlock()
	if pending {
		c.Flush()
	}
}
