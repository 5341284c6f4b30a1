package visage

import (
	"fmt"
	"sync/atomic"
)

// DecodeContext owns everything needed to decode one stream
// of an opened source into a queue of normalized frames: the
// decoder, the format converter and the frame queue between
// the producing and consuming goroutines.
//
// A context is created empty, bound to a source with Init,
// fed by one goroutine running Produce and drained by one
// goroutine calling Pop. Destroy releases the decoder, the
// converter and every frame still queued.
type DecodeContext struct {
	kind   MediaKind
	target TargetFormat

	decoders   DecoderFactory
	converters ConverterFactory

	source      Source
	streamIndex int
	timeBase    TimeBase
	decoder     Decoder
	converter   Converter

	queue FrameQueue

	stopped     atomic.Bool
	initialized bool
	destroyed   bool
}

// NewDecodeContext allocates an empty context that will
// decode the first stream of the given kind and normalize
// its frames into the given target format. The factories
// supply the decoder and converter when Init binds the
// context to a source.
func NewDecodeContext(kind MediaKind, target TargetFormat,
	decoders DecoderFactory, converters ConverterFactory) *DecodeContext {
	return &DecodeContext{
		kind:       kind,
		target:     target,
		decoders:   decoders,
		converters: converters,
	}
}

// Init binds the context to an opened source: it picks the
// first stream of the context's kind, opens a decoder for
// its codec and configures the converter from the stream's
// native format to the target format.
//
// On error the context stays unusable and nothing is left
// half-bound. Errors wrap ErrStreamNotFound,
// ErrDecoderNotFound, ErrDecoderInit or ErrConverterInit.
func (ctx *DecodeContext) Init(source Source) error {
	if ctx.destroyed {
		return ErrContextClosed
	}

	streamIndex := -1
	var info StreamInfo

	for _, stream := range source.Streams() {
		if stream.Kind == ctx.kind {
			streamIndex = stream.Index
			info = stream
			break
		}
	}

	if streamIndex == -1 {
		return fmt.Errorf("%w: no %s stream in the source",
			ErrStreamNotFound, ctx.kind)
	}

	decoder, err := ctx.decoders.NewDecoder(info)
	if err != nil {
		return err
	}

	converter, err := ctx.converters.NewConverter(info, ctx.target)
	if err != nil {
		decoder.Close()
		return err
	}

	ctx.source = source
	ctx.streamIndex = streamIndex
	ctx.timeBase = info.TimeBase
	ctx.decoder = decoder
	ctx.converter = converter
	ctx.initialized = true

	return nil
}

// StreamIndex returns the index of the stream the context
// was bound to by Init.
func (ctx *DecodeContext) StreamIndex() int {
	return ctx.streamIndex
}

// Produce runs the decode loop to completion: it reads
// packets from the source, skips the ones belonging to
// other streams, decodes and converts the rest, timestamps
// each resulting frame and appends it to the queue.
//
// It returns nil on a clean end of stream or after Stop.
// Any other outcome is fatal to the loop: the error is
// surfaced and whatever was already queued stays queued.
// Produce must only run on a single goroutine.
func (ctx *DecodeContext) Produce() error {
	if !ctx.initialized || ctx.destroyed {
		return ErrContextClosed
	}

	for !ctx.stopped.Load() {
		pkt, ok, err := ctx.source.ReadPacket()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPacketRead, err)
		}

		// Clean end of stream.
		if !ok {
			return nil
		}

		// Packets interleave across streams at the source
		// level; irrelevant ones are never decoded.
		if pkt.StreamIndex() != ctx.streamIndex {
			continue
		}

		err = ctx.decoder.Submit(pkt)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecodeSubmit, err)
		}

		// A single packet may yield zero, one or many
		// frames; zero just means the decoder is still
		// buffering.
		for {
			raw, ok, err := ctx.decoder.Receive()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrDecodeDrain, err)
			}

			if !ok {
				break
			}

			frame, err := ctx.converter.Convert(raw)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConvert, err)
			}

			if pts, known := raw.PTS(); known {
				frame.setTimestamp(ctx.timeBase.ToMilliseconds(pts), true)
			} else {
				// Best effort: an unset native PTS
				// becomes timestamp 0, flagged so the
				// consumer can tell.
				frame.setTimestamp(0, false)
			}

			ctx.queue.Append(frame)
		}
	}

	return nil
}

// Pop detaches the oldest queued frame and hands its
// ownership to the caller. It never blocks: false means
// nothing is available right now, and the consumer is
// expected to wait and retry on its own clock.
func (ctx *DecodeContext) Pop() (*Frame, bool) {
	return ctx.queue.TakeHead()
}

// Stop asks a running Produce to end after the current
// iteration. Safe to call from any goroutine.
func (ctx *DecodeContext) Stop() {
	ctx.stopped.Store(true)
}

// Destroy releases the decoder and converter, closes every
// frame still queued and poisons the context; any further
// Init or Produce reports ErrContextClosed. Destroying an
// already destroyed context is a no-op.
//
// The producer goroutine must have finished before Destroy
// runs; use Stop to end it mid-stream.
func (ctx *DecodeContext) Destroy() {
	if ctx.destroyed {
		return
	}

	ctx.destroyed = true
	ctx.initialized = false

	if ctx.decoder != nil {
		ctx.decoder.Close()
		ctx.decoder = nil
	}

	if ctx.converter != nil {
		ctx.converter.Close()
		ctx.converter = nil
	}

	ctx.queue.purge()
	ctx.source = nil
}
