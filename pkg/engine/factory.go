package engine

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// Configuration of the WebRTC engine.
type Config struct {
	// STUN/TURN servers to use for ICE.
	ICEServers []string `yaml:"iceServers"`
	// Public IP address to announce in host candidates (if any).
	PublicIP string `yaml:"ip"`
}

// PeerConnectionFactory constructs pre-configured peer connections.
type PeerConnectionFactory struct {
	api    *webrtc.API
	config Config
}

func NewPeerConnectionFactory(config Config) (*PeerConnectionFactory, error) {
	api, err := createWebRTCAPI(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC API: %w", err)
	}

	return &PeerConnectionFactory{api: api, config: config}, nil
}

// Creates a peer connection with the ICE servers from the configuration.
func (f *PeerConnectionFactory) CreatePeerConnection() (*webrtc.PeerConnection, error) {
	configuration := webrtc.Configuration{}
	if len(f.config.ICEServers) != 0 {
		configuration.ICEServers = []webrtc.ICEServer{{URLs: f.config.ICEServers}}
	}

	return f.api.NewPeerConnection(configuration)
}

// Creates Pion's WebRTC API with default codecs and interceptors configured.
func createWebRTCAPI(config Config) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register default codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	// Configure the custom IP address of this host (if set).
	settingsEngine := webrtc.SettingEngine{}
	if config.PublicIP != "" {
		settingsEngine.SetNAT1To1IPs([]string{config.PublicIP}, webrtc.ICECandidateTypeHost)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(settingsEngine),
	), nil
}
