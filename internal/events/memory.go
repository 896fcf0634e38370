package events

import (
	"context"
	"sync"
)

// MemoryTransport delivers within one process. Each channel has its own
// goroutine, so delivery is FIFO per channel and asynchronous to Publish.
type MemoryTransport struct {
	buffer int

	mu       sync.RWMutex
	channels map[string]*memoryChannel
	closed   bool
	wg       sync.WaitGroup
}

type memoryChannel struct {
	queue    chan []byte
	mu       sync.RWMutex
	delivers []func([]byte)
}

// NewMemoryTransport returns a transport whose channels queue up to buffer
// messages before Publish blocks.
func NewMemoryTransport(buffer int) *MemoryTransport {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryTransport{buffer: buffer, channels: make(map[string]*memoryChannel)}
}

// Publish queues data for every subscriber of channel. Messages on channels
// nobody subscribed to are dropped.
func (t *MemoryTransport) Publish(ctx context.Context, channel string, data []byte) error {
	// The read lock is held across the send so Close cannot close the
	// queue underneath it.
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}
	ch, ok := t.channels[channel]
	if !ok {
		return nil
	}

	msg := append([]byte(nil), data...)
	select {
	case ch.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers deliver for channel.
func (t *MemoryTransport) Subscribe(_ context.Context, channel string, deliver func([]byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	ch, ok := t.channels[channel]
	if !ok {
		ch = &memoryChannel{queue: make(chan []byte, t.buffer)}
		t.channels[channel] = ch
		t.wg.Go(ch.run)
	}
	ch.mu.Lock()
	ch.delivers = append(ch.delivers, deliver)
	ch.mu.Unlock()
	return nil
}

func (c *memoryChannel) run() {
	for msg := range c.queue {
		c.mu.RLock()
		delivers := c.delivers
		c.mu.RUnlock()
		for _, deliver := range delivers {
			deliver(msg)
		}
	}
}

// Close drains queued messages and stops channel goroutines.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for _, ch := range t.channels {
		close(ch.queue)
	}
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}
