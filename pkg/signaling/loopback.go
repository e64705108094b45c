package signaling

import (
	"errors"
	"sync"

	"github.com/quickrtc/p2p-go/pkg/worker"
)

var ErrUnknownPeer = errors.New("unknown peer")

// Loopback is an in-process signaling fabric: every registered peer can send
// to every other by id. Deliveries are queued through a worker so that a send
// never re-enters the sender's locks synchronously, while the order of
// messages between any two peers is preserved. Useful for tests and
// same-process demos.
type Loopback struct {
	mutex      sync.Mutex
	peers      map[string]func(raw string, from string)
	deliveries *worker.Worker[func()]
}

func NewLoopback() *Loopback {
	return &Loopback{
		peers: make(map[string]func(string, string)),
		deliveries: worker.StartWorker(worker.Config[func()]{
			Name:      "LoopbackSignalingQueue",
			QueueSize: 256,
			OnTask:    func(deliver func()) { deliver() },
		}),
	}
}

// Attach registers a peer and returns the Sender it should hand to its
// channels. `deliver` is invoked for every message addressed to `id`.
func (l *Loopback) Attach(id string, deliver func(raw string, from string)) Sender {
	l.mutex.Lock()
	l.peers[id] = deliver
	l.mutex.Unlock()

	return SenderFunc(func(message, remoteID string, onSuccess func(), onFailure func(error)) {
		l.mutex.Lock()
		remote := l.peers[remoteID]
		l.mutex.Unlock()

		if remote == nil {
			if onFailure != nil {
				onFailure(ErrUnknownPeer)
			}
			return
		}

		err := l.deliveries.Send(func() {
			remote(message, id)
			if onSuccess != nil {
				onSuccess()
			}
		})
		if err != nil && onFailure != nil {
			onFailure(err)
		}
	})
}

// Detach removes a peer; subsequent sends to it fail.
func (l *Loopback) Detach(id string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.peers, id)
}

// Stop shuts the delivery queue down.
func (l *Loopback) Stop() {
	l.deliveries.Stop()
}
