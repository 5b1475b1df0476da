package audio

import "time"

// Window is a fixed-length run of mono samples in [-1, 1], handed to the
// voice analyzer once per analysis tick. Windows are ephemeral; code that
// needs to keep one beyond the current tick must copy it.
type Window []float32

// Duration returns the playback length of w at sampleRate.
func (w Window) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w)) * time.Second / time.Duration(sampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// FramesFor returns the number of frames that make up d at the format's rate,
// rounded to the nearest frame.
func (f Format) FramesFor(d time.Duration) int {
	if f.SampleRate <= 0 || d <= 0 {
		return 0
	}
	return int((d*time.Duration(f.SampleRate) + time.Second/2) / time.Second)
}
