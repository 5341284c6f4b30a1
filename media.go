package visage

// MediaKind is the kind of data a stream carries.
type MediaKind int

const (
	// KindVideo is a video stream.
	KindVideo MediaKind = iota
	// KindAudio is an audio stream.
	KindAudio
	// KindOther is any stream this package
	// doesn't decode (subtitles, data, ...).
	KindOther
)

// String returns the kind name for error messages.
func (kind MediaKind) String() string {
	switch kind {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// PixelFormat is a normalized pixel layout a
// video converter can produce.
type PixelFormat int

const (
	PixelRGBA PixelFormat = iota
	PixelYUV420P
)

// SampleFormat is a normalized, interleaved sample
// layout an audio converter can produce.
type SampleFormat int

const (
	SampleS16 SampleFormat = iota
	SampleF64
)

// TargetFormat is the fixed output format a decode context
// normalizes frames into. Video contexts read the Pixel side,
// audio contexts the Sample side.
type TargetFormat struct {
	Pixel  PixelFormat
	Sample SampleFormat
}

// TimeBase is the rational scale factor that converts a
// stream's native timestamp units into seconds.
type TimeBase struct {
	Num int
	Den int
}

// ToMilliseconds converts a native presentation timestamp
// into whole milliseconds.
func (tb TimeBase) ToMilliseconds(pts int64) uint64 {
	if tb.Den == 0 || pts < 0 {
		return 0
	}

	return uint64(pts) * uint64(tb.Num) * 1000 / uint64(tb.Den)
}

// StreamInfo describes one stream of an opened source.
type StreamInfo struct {
	// Index of the stream within the source. Packets
	// carry this index to say which stream they belong to.
	Index int
	// Kind of data the stream carries.
	Kind MediaKind
	// CodecID identifies the codec the stream is encoded
	// in. Opaque to this package; the decoder factory
	// interprets it.
	CodecID int
	// TimeBase scales the stream's native timestamps.
	TimeBase TimeBase
	// Width and Height of a video stream's frames.
	Width, Height int
	// SampleRate and Channels of an audio stream.
	SampleRate, Channels int
}

// Packet is a compressed unit of data read from a source,
// tagged with the stream it belongs to.
type Packet interface {
	// StreamIndex returns the index of the stream
	// the packet belongs to.
	StreamIndex() int
	// PTS returns the packet's native presentation
	// timestamp, or false if it is unset.
	PTS() (int64, bool)
	// Data returns the compressed payload.
	Data() []byte
}

// Source is an opened, demuxed media container. Opening and
// closing it belongs to the driver; a decode context only
// reads from it.
type Source interface {
	// Streams enumerates the source's streams.
	Streams() []StreamInfo
	// ReadPacket reads the next packet, from any stream.
	// It returns false on a clean end of stream and an
	// error on a failed read. The returned packet is
	// only valid until the next ReadPacket call.
	ReadPacket() (Packet, bool, error)
}

// RawFrame is a decoder's uncompressed output in the
// stream's native format, before conversion.
type RawFrame interface {
	// PTS returns the frame's native presentation
	// timestamp, or false if the decoder couldn't
	// determine it.
	PTS() (int64, bool)
}

// Decoder turns compressed packets into raw frames. One
// packet may yield zero, one or many frames; frames still
// buffering inside the decoder come out on later submits.
type Decoder interface {
	// Submit feeds one packet to the decoder.
	Submit(pkt Packet) error
	// Receive drains the next decoded frame. It returns
	// false when the decoder needs more input; that is
	// not an error. The returned frame is only valid
	// until the next Receive call.
	Receive() (RawFrame, bool, error)
	// Close releases the decoder state.
	Close() error
}

// DecoderFactory finds and opens a decoder for a stream.
//
// Errors are expected to wrap ErrDecoderNotFound when no
// decoder exists for the stream's codec and ErrDecoderInit
// when one exists but rejects the codec parameters.
type DecoderFactory interface {
	NewDecoder(info StreamInfo) (Decoder, error)
}

// Converter turns raw frames into normalized frames of a
// fixed target format. It is configured once, for a single
// stream's native parameters.
type Converter interface {
	// Convert produces a freshly allocated normalized
	// frame from a raw one. The caller owns the result.
	Convert(raw RawFrame) (*Frame, error)
	// Close releases the conversion state.
	Close() error
}

// ConverterFactory configures a converter from a stream's
// native format to the given target format.
type ConverterFactory interface {
	NewConverter(info StreamInfo, target TargetFormat) (Converter, error)
}
