package resume

import (
	"log/slog"
	"sync"
	"time"
)

const SDKPollInterval = 10 * time.Second

// Player is an SDK-driven player that signals readiness and answers
// position queries directly.
type Player interface {
	Ready() <-chan struct{}
	CurrentTime() (float64, error)
	Duration() float64
	SeekTo(seconds float64) error
}

type SDKBackend struct {
	player Player

	mu    sync.Mutex
	onPos func(float64)
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewSDKBackend(player Player) *SDKBackend {
	return &SDKBackend{player: player, done: make(chan struct{})}
}

func (b *SDKBackend) Mount(int) error { return nil }

func (b *SDKBackend) OnReady(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case <-b.player.Ready():
			fn()
		case <-b.done:
		}
	}()
}

func (b *SDKBackend) OnPosition(fn func(float64)) {
	b.mu.Lock()
	b.onPos = fn
	b.mu.Unlock()
}

func (b *SDKBackend) Seek(seconds int) {
	if err := b.player.SeekTo(float64(seconds)); err != nil {
		slog.Warn("resume: sdk seek failed", "seconds", seconds, "error", err)
	}
}

func (b *SDKBackend) PollPosition() {
	select {
	case <-b.player.Ready():
	default:
		return
	}

	t, err := b.player.CurrentTime()
	if err != nil {
		slog.Warn("resume: sdk position poll failed", "error", err)
		return
	}

	b.mu.Lock()
	fn := b.onPos
	b.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (b *SDKBackend) PollInterval() time.Duration { return SDKPollInterval }

func (b *SDKBackend) Duration() float64 { return b.player.Duration() }

func (b *SDKBackend) Close() {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
}
