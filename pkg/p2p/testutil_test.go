package p2p

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/message"
	"github.com/quickrtc/p2p-go/pkg/signaling"
)

// A PeerEngine stand-in that records every call and completes the SDP
// operations the way a well-behaved engine would, without any networking.
type fakeEngine struct {
	mutex  sync.Mutex
	events chan engine.Event

	initialized    bool
	signalingState webrtc.SignalingState

	offerCount   int
	answerCount  int
	localDescs   []webrtc.SessionDescription
	remoteDescs  []webrtc.SessionDescription
	candidates   []webrtc.ICECandidateInit
	addedStreams []*engine.LocalStream
	removedIDs   []string
	dataChannels []string
	sentTexts    []string
	closeCount   int

	dataOpen        bool
	failCreateOffer bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		events:         make(chan engine.Event, 256),
		signalingState: webrtc.SignalingStateStable,
	}
}

func (e *fakeEngine) emit(event engine.Event) {
	e.events <- event
}

func (e *fakeEngine) Events() <-chan engine.Event {
	return e.events
}

func (e *fakeEngine) InitializePeerConnection() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.initialized = true
	return nil
}

func (e *fakeEngine) CreateOffer() {
	e.mutex.Lock()
	e.offerCount++
	fail := e.failCreateOffer
	e.mutex.Unlock()

	if fail {
		e.emit(engine.CreateSDPFailure{Err: errors.New("offer rejected")})
		return
	}

	e.emit(engine.CreateSDPSuccess{Description: webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\n",
	}})
}

func (e *fakeEngine) CreateAnswer() {
	e.mutex.Lock()
	e.answerCount++
	e.mutex.Unlock()

	e.emit(engine.CreateSDPSuccess{Description: webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\n",
	}})
}

func (e *fakeEngine) SetLocalDescription(desc webrtc.SessionDescription) {
	e.mutex.Lock()
	e.localDescs = append(e.localDescs, desc)
	if desc.Type == webrtc.SDPTypeOffer {
		e.signalingState = webrtc.SignalingStateHaveLocalOffer
	} else {
		e.signalingState = webrtc.SignalingStateStable
	}
	state := e.signalingState
	e.mutex.Unlock()

	e.emit(engine.SetLocalSDPSuccess{Description: desc})
	e.emit(engine.SignalingStateChanged{State: state})
}

func (e *fakeEngine) SetRemoteDescription(desc webrtc.SessionDescription) {
	e.mutex.Lock()
	e.remoteDescs = append(e.remoteDescs, desc)
	if desc.Type == webrtc.SDPTypeOffer {
		e.signalingState = webrtc.SignalingStateHaveRemoteOffer
	} else {
		e.signalingState = webrtc.SignalingStateStable
	}
	state := e.signalingState
	e.mutex.Unlock()

	e.emit(engine.SetRemoteSDPSuccess{Description: desc})
	e.emit(engine.SignalingStateChanged{State: state})
}

func (e *fakeEngine) AddICECandidate(candidate webrtc.ICECandidateInit) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.candidates = append(e.candidates, candidate)
}

func (e *fakeEngine) AddStream(stream *engine.LocalStream) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.addedStreams = append(e.addedStreams, stream)
}

func (e *fakeEngine) RemoveStream(stream *engine.LocalStream) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.removedIDs = append(e.removedIDs, stream.ID())
}

func (e *fakeEngine) CreateDataChannel(label string) {
	e.mutex.Lock()
	e.dataChannels = append(e.dataChannels, label)
	e.mutex.Unlock()

	e.emit(engine.DataChannelCreated{Label: label})
	// Adding a channel kicks off a negotiation round, like Pion does.
	e.emit(engine.RenegotiationNeeded{})
}

// Marks the data channel as open and lets the channel drain its buffer.
func (e *fakeEngine) openDataChannel() {
	e.mutex.Lock()
	e.dataOpen = true
	e.mutex.Unlock()

	e.emit(engine.DataChannelOpen{Label: "message"})
}

func (e *fakeEngine) SendText(text string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.dataOpen {
		return engine.ErrDataChannelNotReady
	}

	e.sentTexts = append(e.sentTexts, text)
	return nil
}

func (e *fakeEngine) ClosePeerConnection() {
	e.mutex.Lock()
	closed := e.initialized
	e.initialized = false
	e.dataOpen = false
	e.signalingState = webrtc.SignalingStateStable
	e.closeCount++
	e.mutex.Unlock()

	if closed {
		e.emit(engine.ICEConnectionStateChanged{State: webrtc.ICEConnectionStateClosed})
	}
}

func (e *fakeEngine) GetStats(onSuccess func(engine.ConnectionStats), onFailure func(error)) {
	e.mutex.Lock()
	initialized := e.initialized
	e.mutex.Unlock()

	if !initialized {
		onFailure(engine.ErrNoPeerConnection)
		return
	}

	onSuccess(engine.ConnectionStats{})
}

func (e *fakeEngine) SignalingState() webrtc.SignalingState {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.signalingState
}

func (e *fakeEngine) Release() {}

func (e *fakeEngine) offers() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.offerCount
}

func (e *fakeEngine) initializedNow() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.initialized
}

func (e *fakeEngine) sentTextsNow() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]string(nil), e.sentTexts...)
}

func (e *fakeEngine) addedStreamsNow() []*engine.LocalStream {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]*engine.LocalStream(nil), e.addedStreams...)
}

func (e *fakeEngine) remoteDescsNow() []webrtc.SessionDescription {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]webrtc.SessionDescription(nil), e.remoteDescs...)
}

func (e *fakeEngine) dataChannelsNow() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]string(nil), e.dataChannels...)
}

// A Sender that records everything a channel sends, decoded for convenience.
type recordingSender struct {
	mutex    sync.Mutex
	messages []message.Content
	failAll  bool
}

func (s *recordingSender) Send(raw string, remoteID string, onSuccess func(), onFailure func(error)) {
	s.mutex.Lock()
	fail := s.failAll
	if !fail {
		if content, err := message.Decode(raw); err == nil {
			s.messages = append(s.messages, content)
		}
	}
	s.mutex.Unlock()

	if fail {
		if onFailure != nil {
			onFailure(errors.New("transport down"))
		}
		return
	}

	if onSuccess != nil {
		onSuccess()
	}
}

func (s *recordingSender) sent() []message.Content {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]message.Content(nil), s.messages...)
}

// Returns the sent messages of the given variant.
func sentOfType[M message.Content](s *recordingSender) []M {
	var matched []M
	for _, content := range s.sent() {
		if msg, ok := content.(M); ok {
			matched = append(matched, msg)
		}
	}
	return matched
}

var _ signaling.Sender = (*recordingSender)(nil)

// An observer that records event names in arrival order.
type recordingObserver struct {
	mutex  sync.Mutex
	events []string
}

func (o *recordingObserver) record(event string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.events = append(o.events, event)
}

func (o *recordingObserver) OnInvited(remoteID string)  { o.record("invited:" + remoteID) }
func (o *recordingObserver) OnAccepted(remoteID string) { o.record("accepted:" + remoteID) }
func (o *recordingObserver) OnDenied(remoteID string)   { o.record("denied:" + remoteID) }
func (o *recordingObserver) OnStarted(remoteID string)  { o.record("started:" + remoteID) }
func (o *recordingObserver) OnStopped(remoteID string)  { o.record("stopped:" + remoteID) }
func (o *recordingObserver) OnData(remoteID string, text string) {
	o.record("data:" + text)
}
func (o *recordingObserver) OnStreamAdded(stream *RemoteStream) {
	o.record("stream-added:" + stream.Label() + ":" + stream.Source())
}
func (o *recordingObserver) OnStreamRemoved(stream *RemoteStream) {
	o.record("stream-removed:" + stream.Label())
}

func (o *recordingObserver) recorded() []string {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	return append([]string(nil), o.events...)
}

func (o *recordingObserver) count(event string) int {
	total := 0
	for _, recorded := range o.recorded() {
		if recorded == event {
			total++
		}
	}
	return total
}
