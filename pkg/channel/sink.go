package channel

import (
	"errors"
	"sync/atomic"
)

var ErrSinkSealed = errors.New("the sink is sealed")

// Sink is a sealable sending side of a channel. Sealing disallows further
// sends without closing the underlying channel, which is important when the
// channel is shared between multiple producers: closing it would panic the
// producers that are still alive, whereas a sealed sink merely rejects them.
type Sink[M any] struct {
	// The channel to which the messages are sent.
	messageSink chan<- M
	// A channel that is closed once the sink is considered sealed.
	sealed chan struct{}
	// A "mutex" that protects the act of closing `sealed`.
	alreadySealed atomic.Bool
}

// Creates a new Sink. Note that since the constructor accepts a channel, the
// sink is **not responsible** for closing it.
func NewSink[M any](messageSink chan<- M) *Sink[M] {
	return &Sink[M]{
		messageSink: messageSink,
		sealed:      make(chan struct{}),
	}
}

// Sends a message to the sink. Blocks if the sink is full!
func (s *Sink[M]) Send(message M) error {
	if s.alreadySealed.Load() {
		return ErrSinkSealed
	}

	select {
	case <-s.sealed:
		return ErrSinkSealed
	case s.messageSink <- message:
		return nil
	}
}

// Seals the sink, which means that no new messages could be sent via it.
// Any attempt to send a message results in an error afterwards. Unlike a
// close, sealing is safe to perform while other goroutines are sending.
func (s *Sink[M]) Seal() {
	if !s.alreadySealed.Swap(true) {
		close(s.sealed)
	}
}
