package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// Bus is an in-process SignalBus. Slow subscribers miss messages rather
// than block publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	buffer int
}

// NewBus returns a bus whose subscriber channels hold up to buffer messages.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[string]map[chan []byte]struct{}), buffer: buffer}
}

// Publish delivers a copy of payload to every current subscriber of channel.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is cancelled, after which the
// returned channel is closed.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], ch)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

var _ domain.SignalBus = (*Bus)(nil)
