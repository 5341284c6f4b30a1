// Package visage is a playback core for decoded media: it buffers
// decoded, format-normalized frames in a thread-safe FIFO so that a
// producer goroutine can decode ahead of a real-time consumer.
//
// The package does not demux, decode or convert anything itself.
// Those jobs belong to collaborators plugged in through the Source,
// Decoder and Converter interfaces; the ffmpeg subpackage provides
// implementations backed by libav. What this package owns is the
// decode-and-enqueue loop, the frame queue between the producer and
// the consumer, and the per-frame presentation timestamp bookkeeping.
//
// A typical driver:
//
//	media, _ := ffmpeg.Open("demo.mp4")
//	defer media.Close()
//
//	ctx := visage.NewDecodeContext(visage.KindVideo,
//		visage.TargetFormat{Pixel: visage.PixelRGBA}, media, media)
//	if err := ctx.Init(media); err != nil {
//		// no video stream, no decoder, ...
//	}
//	defer ctx.Destroy()
//
//	go func() { err := ctx.Produce(); ... }()
//
//	for {
//		frame, ok := ctx.Pop()
//		if !ok {
//			// producer hasn't caught up; wait and retry
//			continue
//		}
//		// present frame at frame.PresentationOffset()
//	}
//
// One producer and one consumer per context; no other concurrent
// access pattern is supported.
package visage
