package webrtc

import "testing"

func TestDescribeSDP(t *testing.T) {
	const audioOnly = "v=0\r\n" +
		"o=- 1 1 IN IP4 0.0.0.0\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:0\r\n" +
		"a=sendonly\r\n" +
		"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:1\r\n"

	const sessionOnly = "v=0\r\n" +
		"o=- 1 1 IN IP4 0.0.0.0\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"media sections", audioOnly, "audio/sendonly application"},
		{"no media", sessionOnly, "no media"},
		{"garbage", "hello", "unparsable sdp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeSDP(tt.in); got != tt.want {
				t.Errorf("describeSDP = %q, want %q", got, tt.want)
			}
		})
	}
}
