package visage

import "errors"

// Errors reported by context initialization and the decode loop.
// Collaborator failures are wrapped around one of these sentinels, so
// callers can tell the failing stage apart with errors.Is while still
// seeing the collaborator's own detail.
var (
	// ErrSourceOpen is returned by source
	// implementations when the media container
	// can't be opened or probed.
	ErrSourceOpen = errors.New("couldn't open the source")
	// ErrStreamNotFound is returned by Init when the
	// source has no stream of the wanted kind.
	ErrStreamNotFound = errors.New("couldn't find a matching stream")
	// ErrDecoderNotFound is returned by Init when a
	// matching stream exists but no decoder is
	// registered for its codec.
	ErrDecoderNotFound = errors.New("couldn't find a decoder for the stream")
	// ErrDecoderInit is returned by Init when the
	// decoder rejects the stream's codec parameters.
	ErrDecoderInit = errors.New("couldn't initialize the decoder")
	// ErrConverterInit is returned by Init when the
	// converter can't be configured for the stream's
	// native format.
	ErrConverterInit = errors.New("couldn't initialize the converter")
	// ErrPacketRead is returned by Produce when reading
	// a packet fails for a reason other than a clean
	// end of stream.
	ErrPacketRead = errors.New("couldn't read a packet")
	// ErrDecodeSubmit is returned by Produce when the
	// decoder refuses a packet. Decoder state is
	// assumed corrupted past this point, so the loop
	// never retries.
	ErrDecodeSubmit = errors.New("couldn't submit a packet to the decoder")
	// ErrDecodeDrain is returned by Produce when
	// draining decoded frames fails.
	ErrDecodeDrain = errors.New("couldn't drain frames from the decoder")
	// ErrConvert is returned by Produce when format
	// conversion of a decoded frame fails.
	ErrConvert = errors.New("couldn't convert a decoded frame")
	// ErrContextClosed is returned when a destroyed or
	// never-initialized context is used.
	ErrContextClosed = errors.New("decode context is not usable")
)
