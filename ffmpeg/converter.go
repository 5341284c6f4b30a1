package ffmpeg

// #cgo pkg-config: libavformat libavcodec libavutil libswscale libswresample
// #include <libavcodec/avcodec.h>
// #include <libavformat/avformat.h>
// #include <libavutil/imgutils.h>
// #include <libswresample/swresample.h>
// #include <libswscale/swscale.h>
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/zimwip/visage"
)

func pixelFormat(format visage.PixelFormat) (C.enum_AVPixelFormat, error) {
	switch format {
	case visage.PixelRGBA:
		return C.AV_PIX_FMT_RGBA, nil
	case visage.PixelYUV420P:
		return C.AV_PIX_FMT_YUV420P, nil
	default:
		return 0, fmt.Errorf("%w: unsupported pixel format %d",
			visage.ErrConverterInit, format)
	}
}

func sampleFormat(format visage.SampleFormat) (C.enum_AVSampleFormat, error) {
	switch format {
	case visage.SampleS16:
		return C.AV_SAMPLE_FMT_S16, nil
	case visage.SampleF64:
		return C.AV_SAMPLE_FMT_DBL, nil
	default:
		return 0, fmt.Errorf("%w: unsupported sample format %d",
			visage.ErrConverterInit, format)
	}
}

// NewConverter configures a converter from the stream's
// native format to the target format: an swscale pixel
// converter for video streams, an swresample one for audio
// streams. It implements visage.ConverterFactory.
func (media *Media) NewConverter(info visage.StreamInfo,
	target visage.TargetFormat) (visage.Converter, error) {
	codecParams := unsafe.Slice(media.ctx.streams,
		media.ctx.nb_streams)[info.Index].codecpar

	switch info.Kind {
	case visage.KindVideo:
		return newVideoConverter(codecParams, target.Pixel)
	case visage.KindAudio:
		return newAudioConverter(codecParams, target.Sample)
	default:
		return nil, fmt.Errorf("%w: no converter for %s streams",
			visage.ErrConverterInit, info.Kind)
	}
}

// VideoConverter rescales decoded video frames into a fixed
// pixel format at the stream's original dimensions.
type VideoConverter struct {
	swsCtx *C.struct_SwsContext
	scaled *C.AVFrame

	format        C.enum_AVPixelFormat
	width, height C.int
}

func newVideoConverter(codecParams *C.AVCodecParameters,
	target visage.PixelFormat) (*VideoConverter, error) {
	dstFormat, err := pixelFormat(target)
	if err != nil {
		return nil, err
	}

	width := codecParams.width
	height := codecParams.height

	swsCtx := C.sws_getContext(width, height,
		C.enum_AVPixelFormat(codecParams.format),
		width, height, dstFormat,
		C.SWS_BILINEAR, nil, nil, nil)

	if swsCtx == nil {
		return nil, fmt.Errorf(
			"%w: couldn't create an SWS context",
			visage.ErrConverterInit)
	}
	trackAlloc(ResSwsContext, unsafe.Pointer(swsCtx))

	scaled := C.av_frame_alloc()

	if scaled == nil {
		trackFree(unsafe.Pointer(swsCtx))
		C.sws_freeContext(swsCtx)

		return nil, fmt.Errorf(
			"%w: couldn't allocate a scaled frame",
			visage.ErrConverterInit)
	}
	trackAlloc(ResAVFrame, unsafe.Pointer(scaled))

	scaled.format = C.int(dstFormat)
	scaled.width = width
	scaled.height = height

	status := C.av_frame_get_buffer(scaled, 0)

	if status < 0 {
		trackFree(unsafe.Pointer(scaled))
		C.av_frame_free(&scaled)
		trackFree(unsafe.Pointer(swsCtx))
		C.sws_freeContext(swsCtx)

		return nil, fmt.Errorf(
			"%w: %d: couldn't allocate the scaled frame buffer",
			visage.ErrConverterInit, status)
	}

	return &VideoConverter{
		swsCtx: swsCtx,
		scaled: scaled,
		format: dstFormat,
		width:  width,
		height: height,
	}, nil
}

// Convert rescales a decoded frame and returns a freshly
// allocated normalized frame owned by the caller.
func (conv *VideoConverter) Convert(raw visage.RawFrame) (*visage.Frame, error) {
	inner, ok := raw.(*RawFrame)

	if !ok {
		return nil, fmt.Errorf(
			"frame doesn't come from an ffmpeg decoder")
	}

	C.sws_scale(conv.swsCtx, &inner.frame.data[0],
		&inner.frame.linesize[0], 0, inner.frame.height,
		&conv.scaled.data[0], &conv.scaled.linesize[0])

	size := C.av_image_get_buffer_size(
		conv.format, conv.width, conv.height, 1)

	if size < 0 {
		return nil, fmt.Errorf(
			"%d: couldn't get the frame buffer size", size)
	}

	buf := make([]byte, int(size))
	status := C.av_image_copy_to_buffer(
		(*C.uint8_t)(unsafe.Pointer(&buf[0])), size,
		&conv.scaled.data[0], &conv.scaled.linesize[0],
		conv.format, conv.width, conv.height, 1)

	if status < 0 {
		return nil, fmt.Errorf(
			"%d: couldn't copy the frame buffer", status)
	}

	return visage.NewVideoFrame(buf,
		int(conv.width), int(conv.height), nil), nil
}

// Close releases the conversion state.
func (conv *VideoConverter) Close() error {
	if conv.scaled != nil {
		trackFree(unsafe.Pointer(conv.scaled))
		C.av_frame_free(&conv.scaled)
		conv.scaled = nil
	}

	if conv.swsCtx != nil {
		trackFree(unsafe.Pointer(conv.swsCtx))
		C.sws_freeContext(conv.swsCtx)
		conv.swsCtx = nil
	}

	return nil
}

// AudioConverter resamples decoded audio frames into a
// fixed interleaved sample format.
type AudioConverter struct {
	swrCtx *C.SwrContext

	format     C.enum_AVSampleFormat
	sampleRate int
	channels   int
}

func newAudioConverter(codecParams *C.AVCodecParameters,
	target visage.SampleFormat) (*AudioConverter, error) {
	dstFormat, err := sampleFormat(target)
	if err != nil {
		return nil, err
	}

	var swrCtx *C.SwrContext
	status := C.swr_alloc_set_opts2(&swrCtx,
		&codecParams.ch_layout, dstFormat, codecParams.sample_rate,
		&codecParams.ch_layout,
		C.enum_AVSampleFormat(codecParams.format),
		codecParams.sample_rate, 0, nil)

	if status < 0 {
		return nil, fmt.Errorf(
			"%w: couldn't allocate an SWR context",
			visage.ErrConverterInit)
	}
	trackAlloc(ResSwrContext, unsafe.Pointer(swrCtx))

	status = C.swr_init(swrCtx)

	if status < 0 {
		trackFree(unsafe.Pointer(swrCtx))
		C.swr_free(&swrCtx)

		return nil, fmt.Errorf(
			"%w: couldn't initialize the SWR context",
			visage.ErrConverterInit)
	}

	return &AudioConverter{
		swrCtx:     swrCtx,
		format:     dstFormat,
		sampleRate: int(codecParams.sample_rate),
		channels:   int(codecParams.ch_layout.nb_channels),
	}, nil
}

// Convert resamples a decoded frame and returns a freshly
// allocated normalized frame owned by the caller.
func (conv *AudioConverter) Convert(raw visage.RawFrame) (*visage.Frame, error) {
	inner, ok := raw.(*RawFrame)

	if !ok {
		return nil, fmt.Errorf(
			"frame doesn't come from an ffmpeg decoder")
	}

	sampleCount := inner.frame.nb_samples

	var buffer *C.uint8_t
	status := C.av_samples_alloc(&buffer, nil,
		C.int(conv.channels), sampleCount, conv.format, 0)

	if status < 0 {
		return nil, fmt.Errorf(
			"%d: couldn't allocate a sample buffer", status)
	}

	converted := C.swr_convert(conv.swrCtx, &buffer, sampleCount,
		&inner.frame.data[0], sampleCount)

	if converted < 0 {
		C.av_freep(unsafe.Pointer(&buffer))

		return nil, fmt.Errorf(
			"%d: couldn't convert the samples", converted)
	}

	size := int(converted) * conv.channels *
		int(C.av_get_bytes_per_sample(conv.format))
	data := C.GoBytes(unsafe.Pointer(buffer), C.int(size))
	C.av_freep(unsafe.Pointer(&buffer))

	return visage.NewAudioFrame(data,
		conv.sampleRate, conv.channels, nil), nil
}

// Close releases the conversion state.
func (conv *AudioConverter) Close() error {
	if conv.swrCtx != nil {
		trackFree(unsafe.Pointer(conv.swrCtx))
		C.swr_free(&conv.swrCtx)
		conv.swrCtx = nil
	}

	return nil
}
