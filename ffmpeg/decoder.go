package ffmpeg

// #cgo pkg-config: libavformat libavcodec libavutil
// #include <libavcodec/avcodec.h>
// #include <libavformat/avformat.h>
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/zimwip/visage"
)

// NewDecoder finds and opens a libav decoder for the given
// stream. It implements visage.DecoderFactory.
func (media *Media) NewDecoder(info visage.StreamInfo) (visage.Decoder, error) {
	codec := C.avcodec_find_decoder(C.enum_AVCodecID(info.CodecID))

	if codec == nil {
		return nil, fmt.Errorf("%w: codec id %d",
			visage.ErrDecoderNotFound, info.CodecID)
	}

	codecCtx := C.avcodec_alloc_context3(codec)

	if codecCtx == nil {
		return nil, fmt.Errorf(
			"%w: couldn't allocate a codec context",
			visage.ErrDecoderInit)
	}
	trackAlloc(ResAVCodecContext, unsafe.Pointer(codecCtx))

	codecParams := unsafe.Slice(media.ctx.streams,
		media.ctx.nb_streams)[info.Index].codecpar
	status := C.avcodec_parameters_to_context(codecCtx, codecParams)

	if status < 0 {
		trackFree(unsafe.Pointer(codecCtx))
		C.avcodec_free_context(&codecCtx)

		return nil, fmt.Errorf(
			"%w: couldn't copy the codec parameters",
			visage.ErrDecoderInit)
	}

	status = C.avcodec_open2(codecCtx, codec, nil)

	if status < 0 {
		trackFree(unsafe.Pointer(codecCtx))
		C.avcodec_free_context(&codecCtx)

		return nil, fmt.Errorf(
			"%w: couldn't open the codec",
			visage.ErrDecoderInit)
	}

	frame := C.av_frame_alloc()

	if frame == nil {
		trackFree(unsafe.Pointer(codecCtx))
		C.avcodec_free_context(&codecCtx)

		return nil, fmt.Errorf(
			"%w: couldn't allocate a frame",
			visage.ErrDecoderInit)
	}
	trackAlloc(ResAVFrame, unsafe.Pointer(frame))

	return &Decoder{
		codecCtx: codecCtx,
		frame:    frame,
	}, nil
}

// Decoder wraps an opened libav codec context. Submit maps
// to avcodec_send_packet, Receive to avcodec_receive_frame.
type Decoder struct {
	codecCtx *C.AVCodecContext
	frame    *C.AVFrame
}

// Submit feeds one packet to the decoder. Only packets read
// from this package's Media are accepted.
func (dec *Decoder) Submit(pkt visage.Packet) error {
	inner, ok := pkt.(*Packet)

	if !ok {
		return fmt.Errorf(
			"packet doesn't come from an ffmpeg media source")
	}

	status := C.avcodec_send_packet(dec.codecCtx, inner.media.packet)
	C.av_packet_unref(inner.media.packet)

	if status < 0 {
		return fmt.Errorf(
			"%d: couldn't send the packet to the decoder", status)
	}

	return nil
}

// Receive drains the next decoded frame. False means the
// decoder wants more input. The frame is reused and stays
// valid only until the next Receive call.
func (dec *Decoder) Receive() (visage.RawFrame, bool, error) {
	status := C.avcodec_receive_frame(dec.codecCtx, dec.frame)

	if status < 0 {
		if status == C.int(ErrorAgain) ||
			status == C.int(ErrorEndOfFile) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf(
			"%d: couldn't receive a frame from the decoder", status)
	}

	return &RawFrame{frame: dec.frame}, true, nil
}

// Close releases the decoder state.
func (dec *Decoder) Close() error {
	if dec.frame != nil {
		trackFree(unsafe.Pointer(dec.frame))
		C.av_frame_free(&dec.frame)
		dec.frame = nil
	}

	if dec.codecCtx != nil {
		trackFree(unsafe.Pointer(dec.codecCtx))
		C.avcodec_free_context(&dec.codecCtx)
		dec.codecCtx = nil
	}

	return nil
}

// RawFrame is a decoded frame in the stream's native
// format, before conversion.
type RawFrame struct {
	frame *C.AVFrame
}

// PTS returns the frame's native presentation timestamp,
// or false if the decoder couldn't determine one.
func (raw *RawFrame) PTS() (int64, bool) {
	pts := int64(raw.frame.pts)

	if pts == noPTSValue {
		return 0, false
	}

	return pts, true
}
