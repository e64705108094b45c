package p2p

import (
	"golang.org/x/exp/slices"
)

// ChannelObserver receives the user-visible lifecycle events of a channel.
//
// All callbacks run on the channel's event queue, one at a time, in the order
// the events occurred. Observers are iterated in registration order. Adding
// or removing observers from within a callback is not supported.
type ChannelObserver interface {
	// The remote peer invited us to a session.
	OnInvited(remoteID string)
	// The remote peer accepted our invitation.
	OnAccepted(remoteID string)
	// The remote peer denied our invitation.
	OnDenied(remoteID string)
	// The connection is established and media can flow.
	OnStarted(remoteID string)
	// The session ended.
	OnStopped(remoteID string)
	// A text message arrived over the data channel.
	OnData(remoteID string, message string)
	// The remote peer published a stream.
	OnStreamAdded(stream *RemoteStream)
	// A previously published remote stream went away.
	OnStreamRemoved(stream *RemoteStream)
}

// AddObserver registers an observer. Adding the same observer twice is a
// no-op.
func (c *Channel) AddObserver(observer ChannelObserver) {
	c.observerMutex.Lock()
	defer c.observerMutex.Unlock()

	if indexOfObserver(c.observers, observer) != -1 {
		return
	}

	c.observers = append(c.observers, observer)
}

// RemoveObserver unregisters a previously added observer.
func (c *Channel) RemoveObserver(observer ChannelObserver) {
	c.observerMutex.Lock()
	defer c.observerMutex.Unlock()

	if index := indexOfObserver(c.observers, observer); index != -1 {
		c.observers = slices.Delete(c.observers, index, index+1)
	}
}

func indexOfObserver(observers []ChannelObserver, observer ChannelObserver) int {
	return slices.IndexFunc(observers, func(o ChannelObserver) bool { return o == observer })
}

// Runs `notify` for every registered observer on the event queue.
func (c *Channel) notifyObservers(notify func(ChannelObserver)) {
	c.observerMutex.Lock()
	observers := slices.Clone(c.observers)
	c.observerMutex.Unlock()

	c.post(func() {
		for _, observer := range observers {
			notify(observer)
		}
	})
}
