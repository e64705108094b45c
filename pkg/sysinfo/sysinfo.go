package sysinfo

import "runtime"

const (
	sdkType    = "quickrtc-go"
	sdkVersion = "0.3.0"
)

// SDK identifies the SDK flavor and version that a peer runs.
type SDK struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// Runtime identifies the runtime (browser or native platform) of a peer.
type Runtime struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// UserAgent is the self-description a peer advertises in its invitation and
// acceptance messages. The remote side derives its capability flags from it.
type UserAgent struct {
	SDK     SDK     `json:"sdk"`
	Runtime Runtime `json:"runtime"`
}

// Local returns the user agent block describing this process.
func Local() UserAgent {
	return UserAgent{
		SDK:     SDK{Type: sdkType, Version: sdkVersion},
		Runtime: Runtime{Name: "Go", Version: runtime.Version()},
	}
}
