// Package audio inspects encoded audio payloads.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Info describes a decoded MP3 stream.
type Info struct {
	SampleRate int
	Duration   time.Duration
}

// InspectMP3 parses the MP3 frames in data and reports the stream duration. The
// decoder emits 16-bit stereo PCM, four bytes per sample frame.
func InspectMP3(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, errors.New("audio: empty payload")
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		return Info{}, errors.New("audio: mp3 has no sample rate")
	}
	frames := dec.Length() / 4
	return Info{
		SampleRate: rate,
		Duration:   time.Duration(frames) * time.Second / time.Duration(rate),
	}, nil
}
