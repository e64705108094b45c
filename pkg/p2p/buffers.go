package p2p

import (
	"sync"

	"github.com/quickrtc/p2p-go/pkg/engine"
)

// streamQueue holds local streams awaiting a drain into the engine. Each
// queue has its own lock; drain routines never hold two queue locks at once.
type streamQueue struct {
	mutex   sync.Mutex
	streams []*engine.LocalStream
}

func (q *streamQueue) push(stream *engine.LocalStream) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.streams = append(q.streams, stream)
}

func (q *streamQueue) drain() []*engine.LocalStream {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	streams := q.streams
	q.streams = nil
	return streams
}

func (q *streamQueue) empty() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.streams) == 0
}

// streamSet is the set of currently published stream labels.
type streamSet struct {
	mutex   sync.Mutex
	streams map[string]*engine.LocalStream
}

func newStreamSet() *streamSet {
	return &streamSet{streams: make(map[string]*engine.LocalStream)}
}

// insert adds the stream unless its label is already present. Reports
// whether the stream was inserted.
func (s *streamSet) insert(stream *engine.LocalStream) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.streams[stream.ID()]; ok {
		return false
	}

	s.streams[stream.ID()] = stream
	return true
}

// remove deletes the stream by label. Reports whether it was present.
func (s *streamSet) remove(label string) (*engine.LocalStream, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stream, ok := s.streams[label]
	if ok {
		delete(s.streams, label)
	}
	return stream, ok
}

func (s *streamSet) size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.streams)
}

func (s *streamSet) clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.streams = make(map[string]*engine.LocalStream)
}

// messageQueue buffers text messages until the data channel opens.
type messageQueue struct {
	mutex    sync.Mutex
	messages []string
}

func (q *messageQueue) push(message string) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.messages = append(q.messages, message)
}

func (q *messageQueue) drain() []string {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	messages := q.messages
	q.messages = nil
	return messages
}
