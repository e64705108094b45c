package signaling_test

import (
	"sync"
	"testing"
	"time"

	"github.com/quickrtc/p2p-go/pkg/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackDeliversInOrder(t *testing.T) {
	loopback := signaling.NewLoopback()
	t.Cleanup(loopback.Stop)

	var mutex sync.Mutex
	var received []string
	loopback.Attach("bob", func(raw string, from string) {
		mutex.Lock()
		defer mutex.Unlock()
		received = append(received, from+":"+raw)
	})

	sender := loopback.Attach("alice", func(string, string) {})

	done := make(chan struct{})
	sender.Send("one", "bob", nil, func(err error) { t.Errorf("send failed: %v", err) })
	sender.Send("two", "bob", func() { close(done) }, func(err error) { t.Errorf("send failed: %v", err) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("messages were not delivered")
	}

	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(t, []string{"alice:one", "alice:two"}, received)
}

func TestLoopbackUnknownPeer(t *testing.T) {
	loopback := signaling.NewLoopback()
	t.Cleanup(loopback.Stop)

	sender := loopback.Attach("alice", func(string, string) {})

	failed := make(chan error, 1)
	sender.Send("hello", "nobody", nil, func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, signaling.ErrUnknownPeer)
	case <-time.After(time.Second):
		t.Fatal("expected a failure")
	}
}

func TestLoopbackDetach(t *testing.T) {
	loopback := signaling.NewLoopback()
	t.Cleanup(loopback.Stop)

	loopback.Attach("bob", func(string, string) {})
	sender := loopback.Attach("alice", func(string, string) {})
	loopback.Detach("bob")

	failed := make(chan error, 1)
	sender.Send("hello", "bob", nil, func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, signaling.ErrUnknownPeer)
	case <-time.After(time.Second):
		t.Fatal("expected a failure")
	}
}
