// Package audiotest builds audio payloads for tests.
package audiotest

// frameHeader is MPEG-1 Layer III, no CRC, 128 kbit/s, 44.1 kHz, stereo.
var frameHeader = [4]byte{0xFF, 0xFB, 0x90, 0x00}

const (
	// FrameBytes is 144 * bitrate / sample rate, without padding.
	FrameBytes      = 144 * 128000 / 44100
	SampleRate      = 44100
	SamplesPerFrame = 1152
)

// SilentMP3 returns frames consecutive MP3 frames whose side information and
// main data are all zero, which decode to silence.
func SilentMP3(frames int) []byte {
	out := make([]byte, 0, frames*FrameBytes)
	for i := 0; i < frames; i++ {
		frame := make([]byte, FrameBytes)
		copy(frame, frameHeader[:])
		out = append(out, frame...)
	}
	return out
}
