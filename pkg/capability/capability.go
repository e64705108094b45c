package capability

import "github.com/quickrtc/p2p-go/pkg/sysinfo"

// Firefox does not implement plan-B SDP and cannot remove streams from an
// established connection, so both capabilities are gated on the runtime name
// the remote peer advertises.
const firefoxRuntimeName = "FireFox"

// Flags describe what the remote peer's runtime permits us to do.
type Flags struct {
	// Whether a published stream can be withdrawn from the connection.
	SupportsRemoveStream bool
	// Whether more than one outbound stream can be carried (plan-B SDP).
	SupportsPlanB bool
}

// Classify derives the capability flags from the advertised user agent.
func Classify(ua sysinfo.UserAgent) Flags {
	if ua.Runtime.Name == firefoxRuntimeName {
		return Flags{}
	}

	return Flags{SupportsRemoveStream: true, SupportsPlanB: true}
}
