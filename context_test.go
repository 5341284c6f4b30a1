package visage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Synthetic collaborators. The fake decoder turns every
// submitted packet into one raw frame per PTS value the
// packet carries in its payload schedule, so tests control
// exactly what the decode loop sees.

type fakePacket struct {
	index  int
	pts    int64
	hasPTS bool
	// frames the fake decoder emits for this packet
	frames []fakeRawFrame
}

func (pkt *fakePacket) StreamIndex() int { return pkt.index }

func (pkt *fakePacket) PTS() (int64, bool) { return pkt.pts, pkt.hasPTS }

func (pkt *fakePacket) Data() []byte { return []byte{byte(pkt.pts)} }

type fakeRawFrame struct {
	pts    int64
	hasPTS bool
}

func (raw *fakeRawFrame) PTS() (int64, bool) { return raw.pts, raw.hasPTS }

type fakeSource struct {
	streams []StreamInfo
	packets []*fakePacket
	pos     int
	// readErr fires instead of the packet at errAt (if >= 0)
	errAt   int
	readErr error
}

func (src *fakeSource) Streams() []StreamInfo { return src.streams }

func (src *fakeSource) ReadPacket() (Packet, bool, error) {
	if src.readErr != nil && src.pos == src.errAt {
		return nil, false, src.readErr
	}

	if src.pos >= len(src.packets) {
		return nil, false, nil
	}

	pkt := src.packets[src.pos]
	src.pos++

	return pkt, true, nil
}

type fakeDecoder struct {
	pending   []*fakeRawFrame
	submitted int
	// failAt makes the n-th Submit fail (1-based, 0 = never)
	failAt  int
	drained bool
	closed  bool
}

func (dec *fakeDecoder) Submit(pkt Packet) error {
	dec.submitted++

	if dec.failAt != 0 && dec.submitted == dec.failAt {
		return errors.New("corrupted bitstream")
	}

	inner := pkt.(*fakePacket)

	for i := range inner.frames {
		dec.pending = append(dec.pending, &inner.frames[i])
	}

	return nil
}

func (dec *fakeDecoder) Receive() (RawFrame, bool, error) {
	if len(dec.pending) == 0 {
		return nil, false, nil
	}

	raw := dec.pending[0]
	dec.pending = dec.pending[1:]

	return raw, true, nil
}

func (dec *fakeDecoder) Close() error {
	dec.closed = true
	return nil
}

type fakeConverter struct {
	converted  int
	released   *int
	convertErr error
	closed     bool
}

func (conv *fakeConverter) Convert(raw RawFrame) (*Frame, error) {
	if conv.convertErr != nil {
		return nil, conv.convertErr
	}

	conv.converted++

	return NewVideoFrame([]byte{byte(conv.converted)}, 4, 4, func() {
		if conv.released != nil {
			*conv.released++
		}
	}), nil
}

func (conv *fakeConverter) Close() error {
	conv.closed = true
	return nil
}

type fakeFactories struct {
	decoder    *fakeDecoder
	converter  *fakeConverter
	decoderErr error
	convErr    error
}

func (f *fakeFactories) NewDecoder(info StreamInfo) (Decoder, error) {
	if f.decoderErr != nil {
		return nil, f.decoderErr
	}

	return f.decoder, nil
}

func (f *fakeFactories) NewConverter(info StreamInfo, target TargetFormat) (Converter, error) {
	if f.convErr != nil {
		return nil, f.convErr
	}

	return f.converter, nil
}

func videoSource(packets ...*fakePacket) *fakeSource {
	return &fakeSource{
		streams: []StreamInfo{
			{Index: 0, Kind: KindVideo, CodecID: 27,
				TimeBase: TimeBase{Num: 1, Den: 1000}},
			{Index: 1, Kind: KindAudio, CodecID: 86018,
				TimeBase: TimeBase{Num: 1, Den: 48000}},
		},
		packets: packets,
		errAt:   -1,
	}
}

func newTestContext(factories *fakeFactories) *DecodeContext {
	return NewDecodeContext(KindVideo,
		TargetFormat{Pixel: PixelRGBA}, factories, factories)
}

func TestTimeBaseToMilliseconds(t *testing.T) {
	assert.Equal(t, uint64(33), TimeBase{Num: 1, Den: 1000}.ToMilliseconds(33))
	assert.Equal(t, uint64(1000), TimeBase{Num: 1, Den: 90000}.ToMilliseconds(90000))
	assert.Equal(t, uint64(0), TimeBase{Num: 1, Den: 1000}.ToMilliseconds(0))
	assert.Equal(t, uint64(0), TimeBase{}.ToMilliseconds(42))
	assert.Equal(t, uint64(0), TimeBase{Num: 1, Den: 1000}.ToMilliseconds(-7))
}

func TestInitStreamNotFound(t *testing.T) {
	source := &fakeSource{
		streams: []StreamInfo{
			{Index: 0, Kind: KindAudio},
		},
		errAt: -1,
	}

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)

	err := ctx.Init(source)
	require.ErrorIs(t, err, ErrStreamNotFound)
}

func TestInitDecoderNotFound(t *testing.T) {
	factories := &fakeFactories{
		decoderErr: fmt.Errorf("%w: codec id 27", ErrDecoderNotFound),
	}
	ctx := newTestContext(factories)

	err := ctx.Init(videoSource())
	require.ErrorIs(t, err, ErrDecoderNotFound)
}

func TestInitDecoderInitFailed(t *testing.T) {
	factories := &fakeFactories{
		decoderErr: fmt.Errorf("%w: bad extradata", ErrDecoderInit),
	}
	ctx := newTestContext(factories)

	err := ctx.Init(videoSource())
	require.ErrorIs(t, err, ErrDecoderInit)
}

func TestInitConverterInitFailed(t *testing.T) {
	decoder := &fakeDecoder{}
	factories := &fakeFactories{
		decoder: decoder,
		convErr: fmt.Errorf("%w: unsupported pixel format", ErrConverterInit),
	}
	ctx := newTestContext(factories)

	err := ctx.Init(videoSource())
	require.ErrorIs(t, err, ErrConverterInit)

	// No partial context: the decoder opened before the
	// converter failure must be released again.
	assert.True(t, decoder.closed)
}

func TestInitBindsFirstMatchingStream(t *testing.T) {
	source := &fakeSource{
		streams: []StreamInfo{
			{Index: 0, Kind: KindAudio},
			{Index: 1, Kind: KindVideo, TimeBase: TimeBase{Num: 1, Den: 1000}},
			{Index: 2, Kind: KindVideo, TimeBase: TimeBase{Num: 1, Den: 25}},
		},
		errAt: -1,
	}

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)

	require.NoError(t, ctx.Init(source))
	assert.Equal(t, 1, ctx.StreamIndex())
}

// TestProduceEndToEnd replays the canonical scenario: three
// packets for the video stream decoding 1:1 into frames with
// native timestamps {0, 33, 66} at a 1/1000 time base, and
// two audio packets interleaved between them that must never
// reach the decoder or the queue.
func TestProduceEndToEnd(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0, pts: 0, hasPTS: true,
			frames: []fakeRawFrame{{pts: 0, hasPTS: true}}},
		&fakePacket{index: 1, pts: 100, hasPTS: true},
		&fakePacket{index: 0, pts: 33, hasPTS: true,
			frames: []fakeRawFrame{{pts: 33, hasPTS: true}}},
		&fakePacket{index: 1, pts: 200, hasPTS: true},
		&fakePacket{index: 0, pts: 66, hasPTS: true,
			frames: []fakeRawFrame{{pts: 66, hasPTS: true}}},
	)

	decoder := &fakeDecoder{}
	factories := &fakeFactories{
		decoder:   decoder,
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))
	require.NoError(t, ctx.Produce())

	// Only the three video packets were submitted.
	assert.Equal(t, 3, decoder.submitted)

	want := []uint64{0, 33, 66}

	for i, ts := range want {
		frame, ok := ctx.Pop()
		require.True(t, ok, "frame %d missing", i)
		assert.Equal(t, ts, frame.Timestamp())
		assert.True(t, frame.TimestampKnown())
		frame.Close()
	}

	_, ok := ctx.Pop()
	assert.False(t, ok, "more frames than expected")
}

func TestProduceSubmitFailure(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0, pts: 0, hasPTS: true,
			frames: []fakeRawFrame{{pts: 0, hasPTS: true}}},
		&fakePacket{index: 0, pts: 33, hasPTS: true,
			frames: []fakeRawFrame{{pts: 33, hasPTS: true}}},
		&fakePacket{index: 0, pts: 66, hasPTS: true,
			frames: []fakeRawFrame{{pts: 66, hasPTS: true}}},
	)

	decoder := &fakeDecoder{failAt: 2}
	factories := &fakeFactories{
		decoder:   decoder,
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))

	err := ctx.Produce()
	require.ErrorIs(t, err, ErrDecodeSubmit)

	// The loop stops hard, but the frame produced from the
	// first packet stays queued.
	frame, ok := ctx.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(0), frame.Timestamp())
	frame.Close()

	_, ok = ctx.Pop()
	assert.False(t, ok)
}

func TestProducePacketReadError(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0, pts: 0, hasPTS: true},
	)
	source.errAt = 1
	source.readErr = errors.New("truncated container")

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))
	require.ErrorIs(t, ctx.Produce(), ErrPacketRead)
}

func TestProduceConvertError(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0, pts: 0, hasPTS: true,
			frames: []fakeRawFrame{{pts: 0, hasPTS: true}}},
	)

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{convertErr: errors.New("bad plane count")},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))
	require.ErrorIs(t, ctx.Produce(), ErrConvert)
}

func TestProduceUnknownTimestamp(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0,
			frames: []fakeRawFrame{{}}},
	)

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))
	require.NoError(t, ctx.Produce())

	frame, ok := ctx.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(0), frame.Timestamp())
	assert.False(t, frame.TimestampKnown())
	frame.Close()
}

// TestProduceMonotonicTimestamps checks that a source whose
// packets arrive in non-decreasing native order yields
// non-decreasing millisecond timestamps.
func TestProduceMonotonicTimestamps(t *testing.T) {
	native := []int64{0, 0, 512, 1024, 1024, 2048, 4096}
	packets := make([]*fakePacket, len(native))

	for i, pts := range native {
		packets[i] = &fakePacket{index: 0, pts: pts, hasPTS: true,
			frames: []fakeRawFrame{{pts: pts, hasPTS: true}}}
	}

	source := videoSource(packets...)
	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))
	require.NoError(t, ctx.Produce())

	last := uint64(0)

	for {
		frame, ok := ctx.Pop()
		if !ok {
			break
		}

		assert.GreaterOrEqual(t, frame.Timestamp(), last)
		last = frame.Timestamp()
		frame.Close()
	}
}

// TestProduceBufferingDecoder covers packets that yield zero
// or several frames: decoders buffer internally, and that is
// not an error.
func TestProduceBufferingDecoder(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0, pts: 0, hasPTS: true},
		&fakePacket{index: 0, pts: 33, hasPTS: true,
			frames: []fakeRawFrame{
				{pts: 0, hasPTS: true},
				{pts: 33, hasPTS: true},
			}},
	)

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))
	require.NoError(t, ctx.Produce())

	count := 0

	for {
		frame, ok := ctx.Pop()
		if !ok {
			break
		}

		count++
		frame.Close()
	}

	assert.Equal(t, 2, count)
}

func TestDestroyFreesQueuedFrames(t *testing.T) {
	const queued = 4

	packets := make([]*fakePacket, queued)

	for i := range packets {
		pts := int64(i * 33)
		packets[i] = &fakePacket{index: 0, pts: pts, hasPTS: true,
			frames: []fakeRawFrame{{pts: pts, hasPTS: true}}}
	}

	released := 0
	decoder := &fakeDecoder{}
	converter := &fakeConverter{released: &released}
	factories := &fakeFactories{decoder: decoder, converter: converter}
	ctx := newTestContext(factories)

	require.NoError(t, ctx.Init(videoSource(packets...)))
	require.NoError(t, ctx.Produce())

	ctx.Destroy()

	// Every un-consumed payload released exactly once,
	// decoder and converter closed.
	assert.Equal(t, queued, released)
	assert.True(t, decoder.closed)
	assert.True(t, converter.closed)

	// Idempotent: a second Destroy releases nothing twice.
	ctx.Destroy()
	assert.Equal(t, queued, released)

	// Poisoned: the context rejects further use.
	require.ErrorIs(t, ctx.Produce(), ErrContextClosed)
	require.ErrorIs(t, ctx.Init(videoSource()), ErrContextClosed)

	_, ok := ctx.Pop()
	assert.False(t, ok)
}

func TestProduceBeforeInit(t *testing.T) {
	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)

	require.ErrorIs(t, ctx.Produce(), ErrContextClosed)
}

func TestStopEndsProduce(t *testing.T) {
	source := videoSource(
		&fakePacket{index: 0, pts: 0, hasPTS: true,
			frames: []fakeRawFrame{{pts: 0, hasPTS: true}}},
	)

	factories := &fakeFactories{
		decoder:   &fakeDecoder{},
		converter: &fakeConverter{},
	}
	ctx := newTestContext(factories)
	defer ctx.Destroy()

	require.NoError(t, ctx.Init(source))

	ctx.Stop()
	require.NoError(t, ctx.Produce())

	// Nothing was read after the stop flag was set.
	assert.Equal(t, 0, source.pos)
}

func TestFrameCloseIdempotent(t *testing.T) {
	released := 0
	frame := NewVideoFrame([]byte{1, 2, 3}, 1, 1, func() {
		released++
	})

	require.NoError(t, frame.Close())
	require.NoError(t, frame.Close())
	assert.Equal(t, 1, released)
	assert.Nil(t, frame.Data())
}
