// Package ffmpeg implements the visage collaborator
// interfaces on top of libav: demuxing through libavformat,
// decoding through libavcodec and frame normalization
// through libswscale/libswresample.
package ffmpeg

// #cgo pkg-config: libavformat libavcodec libavutil libswscale libswresample
// #include <libavcodec/avcodec.h>
// #include <libavformat/avformat.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/zimwip/visage"
)

// noPTSValue mirrors libav's AV_NOPTS_VALUE, which cgo
// can't ingest as a constant.
const noPTSValue = int64(math.MinInt64)

// Media is an opened media container. It implements
// visage.Source along with the decoder and converter
// factories, so a single Media wires a whole decode
// context.
type Media struct {
	ctx     *C.AVFormatContext
	packet  *C.AVPacket
	streams []visage.StreamInfo
}

// Open opens a media file and reads its stream information.
//
// Close() should be called afterwards.
func Open(filename string) (*Media, error) {
	media := &Media{
		ctx: C.avformat_alloc_context(),
	}

	if media.ctx == nil {
		return nil, fmt.Errorf(
			"%w: couldn't create a new media context",
			visage.ErrSourceOpen)
	}
	trackAlloc(ResAVFormatContext, unsafe.Pointer(media.ctx))

	fname := C.CString(filename)
	defer C.free(unsafe.Pointer(fname))
	status := C.avformat_open_input(&media.ctx, fname, nil, nil)

	if status < 0 {
		// avformat_open_input frees ctx on failure.
		trackFree(unsafe.Pointer(media.ctx))
		media.ctx = nil

		return nil, fmt.Errorf(
			"%w: couldn't open file %s",
			visage.ErrSourceOpen, filename)
	}

	err := media.findStreams()
	if err != nil {
		media.Close()
		return nil, err
	}

	media.packet = C.av_packet_alloc()

	if media.packet == nil {
		media.Close()
		return nil, fmt.Errorf(
			"%w: couldn't allocate a new packet",
			visage.ErrSourceOpen)
	}
	trackAlloc(ResAVPacket, unsafe.Pointer(media.packet))

	return media, nil
}

// findStreams retrieves the stream information
// from the media container.
func (media *Media) findStreams() error {
	status := C.avformat_find_stream_info(media.ctx, nil)

	if status < 0 {
		return fmt.Errorf(
			"%w: couldn't find stream information",
			visage.ErrSourceOpen)
	}

	innerStreams := unsafe.Slice(
		media.ctx.streams, media.ctx.nb_streams)
	streams := make([]visage.StreamInfo, 0, len(innerStreams))

	for i, innerStream := range innerStreams {
		codecParams := innerStream.codecpar

		info := visage.StreamInfo{
			Index:   i,
			CodecID: int(codecParams.codec_id),
			TimeBase: visage.TimeBase{
				Num: int(innerStream.time_base.num),
				Den: int(innerStream.time_base.den),
			},
		}

		switch codecParams.codec_type {
		case C.AVMEDIA_TYPE_VIDEO:
			info.Kind = visage.KindVideo
			info.Width = int(codecParams.width)
			info.Height = int(codecParams.height)

		case C.AVMEDIA_TYPE_AUDIO:
			info.Kind = visage.KindAudio
			info.SampleRate = int(codecParams.sample_rate)
			info.Channels = int(codecParams.ch_layout.nb_channels)

		default:
			info.Kind = visage.KindOther
		}

		streams = append(streams, info)
	}

	media.streams = streams

	return nil
}

// StreamCount returns the number of streams.
func (media *Media) StreamCount() int {
	return len(media.streams)
}

// Streams returns a slice of all the available
// media data streams.
func (media *Media) Streams() []visage.StreamInfo {
	streams := make([]visage.StreamInfo, len(media.streams))
	copy(streams, media.streams)

	return streams
}

// ReadPacket reads the next packet from the media stream.
// It returns false upon a clean end of file. The returned
// packet is only valid until the next ReadPacket call.
func (media *Media) ReadPacket() (visage.Packet, bool, error) {
	// The container packet is reused between reads.
	C.av_packet_unref(media.packet)
	status := C.av_read_frame(media.ctx, media.packet)

	if status < 0 {
		if status == C.int(ErrorEndOfFile) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf(
			"%d: couldn't read a packet", status)
	}

	return &Packet{media: media}, true, nil
}

// Close closes the media container.
func (media *Media) Close() {
	if media.packet != nil {
		trackFree(unsafe.Pointer(media.packet))
		C.av_packet_free(&media.packet)
		media.packet = nil
	}

	if media.ctx != nil {
		// avformat_close_input frees the format context
		// and sets the pointer to NULL.
		trackFree(unsafe.Pointer(media.ctx))
		C.avformat_close_input(&media.ctx)
		media.ctx = nil
	}
}

// Packet is a piece of encoded data acquired from the media
// container. It wraps the container's reused packet, so it
// stays valid only until the next ReadPacket call.
type Packet struct {
	media *Media
}

// StreamIndex returns the index of the
// stream the packet belongs to.
func (pkt *Packet) StreamIndex() int {
	return int(pkt.media.packet.stream_index)
}

// PTS returns the packet's native presentation timestamp,
// or false if the container didn't record one.
func (pkt *Packet) PTS() (int64, bool) {
	pts := int64(pkt.media.packet.pts)

	if pts == noPTSValue {
		return 0, false
	}

	return pts, true
}

// Data returns a copy of the data encoded in the packet.
func (pkt *Packet) Data() []byte {
	cPkt := pkt.media.packet

	if cPkt.data == nil || cPkt.size <= 0 {
		return nil
	}

	buf := make([]byte, int(cPkt.size))
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(cPkt.data)), int(cPkt.size)))

	return buf
}
