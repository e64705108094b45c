package p2p

import (
	"fmt"
	"strings"
)

// Writes the configured bandwidth caps into the local SDP as `b=AS:` lines.
// Returns the SDP unchanged when no cap is configured.
func (c *Channel) applyBitrateLimits(sdp string) string {
	if c.config.MaxAudioBitrate > 0 {
		sdp = insertBandwidth(sdp, "audio", c.config.MaxAudioBitrate)
	}
	if c.config.MaxVideoBitrate > 0 {
		sdp = insertBandwidth(sdp, "video", c.config.MaxVideoBitrate)
	}
	return sdp
}

// Inserts a `b=AS:<kbps>` line into every media section of the given kind.
// The line goes after the section's `c=` line when present, per the ordering
// rules of RFC 4566. Sections that already carry a bandwidth line are left
// alone.
func insertBandwidth(sdp string, media string, kbps int) string {
	sectionPrefix := "m=" + media
	bandwidth := fmt.Sprintf("b=AS:%d", kbps)

	lines := strings.Split(sdp, "\r\n")
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], sectionPrefix) {
			continue
		}

		insertAt := i + 1
		capped := false
		for j := i + 1; j < len(lines) && !strings.HasPrefix(lines[j], "m="); j++ {
			if strings.HasPrefix(lines[j], "c=") {
				insertAt = j + 1
			}
			if strings.HasPrefix(lines[j], "b=") {
				capped = true
				break
			}
		}
		if capped {
			continue
		}

		lines = append(lines[:insertAt], append([]string{bandwidth}, lines[insertAt:]...)...)
		i = insertAt
	}

	return strings.Join(lines, "\r\n")
}
