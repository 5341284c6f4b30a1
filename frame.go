package visage

import "time"

// Frame is a normalized decoded frame together with its
// presentation timestamp. A frame is exclusively owned: the
// converter allocates it, the queue holds it, and whoever
// pops it must Close it when done.
type Frame struct {
	data          []byte
	width, height int
	sampleRate    int
	channels      int

	pts      uint64
	ptsKnown bool

	release func()
	closed  bool
}

// NewVideoFrame wraps normalized pixel data into a frame.
// The release hook, if any, runs once when the frame is
// closed; converters use it to return buffers they own.
func NewVideoFrame(data []byte, width, height int, release func()) *Frame {
	return &Frame{
		data:    data,
		width:   width,
		height:  height,
		release: release,
	}
}

// NewAudioFrame wraps normalized interleaved sample data
// into a frame.
func NewAudioFrame(data []byte, sampleRate, channels int, release func()) *Frame {
	return &Frame{
		data:       data,
		sampleRate: sampleRate,
		channels:   channels,
		release:    release,
	}
}

// Data returns the frame's payload bytes: pixel data for
// video frames, interleaved samples for audio frames.
func (frame *Frame) Data() []byte {
	return frame.data
}

// Width returns the width of a video frame in pixels.
func (frame *Frame) Width() int {
	return frame.width
}

// Height returns the height of a video frame in pixels.
func (frame *Frame) Height() int {
	return frame.height
}

// SampleRate returns the sample rate of an audio frame.
func (frame *Frame) SampleRate() int {
	return frame.sampleRate
}

// Channels returns the channel count of an audio frame.
func (frame *Frame) Channels() int {
	return frame.channels
}

// Timestamp returns the frame's presentation time in
// milliseconds relative to the stream start.
func (frame *Frame) Timestamp() uint64 {
	return frame.pts
}

// TimestampKnown reports whether the frame carried a native
// presentation timestamp. Frames without one are tagged
// with timestamp 0; sync-sensitive consumers may want to
// skip them.
func (frame *Frame) TimestampKnown() bool {
	return frame.ptsKnown
}

// PresentationOffset returns the frame's presentation time
// as a duration relative to the stream start.
func (frame *Frame) PresentationOffset() time.Duration {
	return time.Duration(frame.pts) * time.Millisecond
}

// Close releases the frame's payload. Closing an already
// closed frame is a no-op.
func (frame *Frame) Close() error {
	if frame.closed {
		return nil
	}

	frame.closed = true
	frame.data = nil

	if frame.release != nil {
		frame.release()
	}

	return nil
}

// setTimestamp is called by the decode loop once the
// native PTS has been scaled by the stream time base.
func (frame *Frame) setTimestamp(pts uint64, known bool) {
	frame.pts = pts
	frame.ptsKnown = known
}
