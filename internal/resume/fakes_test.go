package resume

import (
	"context"
	"sync"
	"testing"
	"time"
)

type saveCall struct {
	videoID   string
	seconds   int
	completed bool
}

type fakeClient struct {
	snapshot Snapshot
	loadErr  error
	saveErr  error
	saves    chan saveCall
}

func newFakeClient(seconds int) *fakeClient {
	return &fakeClient{snapshot: Snapshot{Seconds: seconds}, saves: make(chan saveCall, 16)}
}

func (f *fakeClient) Load(context.Context, string) (Snapshot, error) {
	if f.loadErr != nil {
		return Snapshot{}, f.loadErr
	}
	return f.snapshot, nil
}

func (f *fakeClient) Save(_ context.Context, videoID string, seconds int, completed bool) error {
	f.saves <- saveCall{videoID: videoID, seconds: seconds, completed: completed}
	return f.saveErr
}

func (f *fakeClient) nextSave(t *testing.T) saveCall {
	t.Helper()
	select {
	case s := <-f.saves:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for save")
		return saveCall{}
	}
}

func (f *fakeClient) expectNoSave(t *testing.T) {
	t.Helper()
	select {
	case s := <-f.saves:
		t.Fatalf("unexpected save: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeBackend struct {
	mu        sync.Mutex
	mountedAt int
	mounted   bool
	readyFns  []func()
	onPos     func(float64)
	seeks     []int
	polls     int
	duration  float64
	closed    bool

	// reportOnPoll makes PollPosition answer synchronously, like an SDK player.
	reportOnPoll *float64
}

func (b *fakeBackend) Mount(start int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mounted = true
	b.mountedAt = start
	return nil
}

func (b *fakeBackend) OnReady(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readyFns = append(b.readyFns, fn)
}

func (b *fakeBackend) fireReady() {
	b.mu.Lock()
	fns := b.readyFns
	b.readyFns = nil
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *fakeBackend) OnPosition(fn func(float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPos = fn
}

func (b *fakeBackend) Seek(seconds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seeks = append(b.seeks, seconds)
}

func (b *fakeBackend) PollPosition() {
	b.mu.Lock()
	b.polls++
	report, fn := b.reportOnPoll, b.onPos
	b.mu.Unlock()
	if report != nil && fn != nil {
		fn(*report)
	}
}

func (b *fakeBackend) PollInterval() time.Duration { return 10 * time.Second }

func (b *fakeBackend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

func (b *fakeBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *fakeBackend) snapshot() (seeks []int, polls int, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.seeks...), b.polls, b.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
