package webrtc

import (
	"strings"

	"github.com/pion/sdp/v3"
)

var directions = []string{"sendrecv", "sendonly", "recvonly", "inactive"}

// describeSDP summarizes the media sections of an SDP blob for logging, e.g.
// "audio/sendrecv video/recvonly application". Unparsable input is reported
// as such rather than failing.
func describeSDP(raw string) string {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return "unparsable sdp"
	}
	if len(sd.MediaDescriptions) == 0 {
		return "no media"
	}

	parts := make([]string, 0, len(sd.MediaDescriptions))
	for _, md := range sd.MediaDescriptions {
		part := md.MediaName.Media
		for _, dir := range directions {
			if _, ok := md.Attribute(dir); ok {
				part += "/" + dir
				break
			}
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
