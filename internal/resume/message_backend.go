package resume

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const MessagePollInterval = 7 * time.Second

// SeekRetries are the offsets at which a seek is posted. The frame gives no
// signal that it is ready to honour one; offset zero is the immediate post.
var SeekRetries = []time.Duration{
	0,
	500 * time.Millisecond,
	1500 * time.Millisecond,
	3 * time.Second,
	5 * time.Second,
}

// Frame is an embedded player reachable only through posted messages.
type Frame interface {
	Load(src string) error
	Post(msg []byte) error
}

type outboundMessage struct {
	Type    string `json:"type"`
	Seconds *int   `json:"seconds,omitempty"`
}

type inboundMessage struct {
	Type        string   `json:"type"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
}

type MessageBackend struct {
	frame Frame
	src   string
	clock clockwork.Clock

	mu       sync.Mutex
	onPos    func(float64)
	onReady  []func()
	mounted  bool
	closed   bool
	duration float64
	timers   []clockwork.Timer
}

func NewMessageBackend(frame Frame, src string, clock clockwork.Clock) *MessageBackend {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MessageBackend{frame: frame, src: src, clock: clock}
}

// FragmentURL appends a #t= start offset to src, replacing any existing fragment.
func FragmentURL(src string, startSeconds int) string {
	if startSeconds <= 0 {
		return src
	}
	if i := strings.IndexByte(src, '#'); i >= 0 {
		src = src[:i]
	}
	return src + "#t=" + strconv.Itoa(startSeconds)
}

func (b *MessageBackend) Mount(startSeconds int) error {
	if err := b.frame.Load(FragmentURL(b.src, startSeconds)); err != nil {
		return err
	}

	b.mu.Lock()
	b.mounted = true
	pending := b.onReady
	b.onReady = nil
	b.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return nil
}

func (b *MessageBackend) OnReady(fn func()) {
	b.mu.Lock()
	if !b.mounted {
		b.onReady = append(b.onReady, fn)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	fn()
}

func (b *MessageBackend) OnPosition(fn func(float64)) {
	b.mu.Lock()
	b.onPos = fn
	b.mu.Unlock()
}

func (b *MessageBackend) Seek(seconds int) {
	msg, err := json.Marshal(outboundMessage{Type: "seek", Seconds: &seconds})
	if err != nil {
		return
	}
	b.post(msg)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, delay := range SeekRetries {
		if delay <= 0 {
			continue
		}
		b.timers = append(b.timers, b.clock.AfterFunc(delay, func() { b.post(msg) }))
	}
}

func (b *MessageBackend) PollPosition() {
	msg, _ := json.Marshal(outboundMessage{Type: "getCurrentTime"})
	b.post(msg)
}

func (b *MessageBackend) PollInterval() time.Duration { return MessagePollInterval }

func (b *MessageBackend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

// HandleMessage consumes one message from the frame. Unknown or malformed
// messages are dropped.
func (b *MessageBackend) HandleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != "timeupdate" && msg.Type != "seeked" {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if msg.Duration != nil && *msg.Duration > 0 {
		b.duration = *msg.Duration
	}
	fn := b.onPos
	b.mu.Unlock()

	if msg.CurrentTime == nil || *msg.CurrentTime < 0 || fn == nil {
		return
	}
	fn(*msg.CurrentTime)
}

func (b *MessageBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
}

func (b *MessageBackend) post(msg []byte) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	if err := b.frame.Post(msg); err != nil {
		slog.Debug("resume: frame post failed", "error", err)
	}
}
