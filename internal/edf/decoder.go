package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/oculab/edfparse/internal/errors"
)

// maxRecordLength bounds a single record frame. The length field is 16
// bits so this is the wire format's own ceiling.
const maxRecordLength = 1<<16 - 1

// Decoder reads framed records from an EDF byte stream, one forward pass,
// no seeking. It carries the trial segmentation state for the whole file:
// a single counter advanced by marker messages, never reset. Any error is
// latched and every later call returns the same error.
type Decoder struct {
	r    *bufio.Reader
	opts DecodeOptions
	err  error

	// markers holds the timestamp of each trial marker seen so far;
	// markers[i] is the start of trial i.
	markers  []uint32
	lastTime uint32
	started  bool
	buf      []byte
}

// NewDecoder returns a decoder reading records from r. The preamble must
// already have been consumed (see ReadPreamble). If r is a *bufio.Reader
// it is used directly, otherwise one is allocated around it.
func NewDecoder(r io.Reader, opts DecodeOptions) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br, opts: opts}
}

// Next returns the next retained record from the stream. Records the
// options exclude (ignored samples, filtered messages, skipped unknown
// tags) are consumed internally and never returned, but they still
// participate in timestamp and trial-marker accounting. At the end of the
// stream Next returns io.EOF.
func (d *Decoder) Next() (*Record, error) {
	if d.err != nil {
		return nil, d.err
	}
	for {
		rec, err := d.decodeOne()
		if err != nil {
			d.err = err
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
}

// decodeOne consumes exactly one frame. It returns (nil, nil) for frames
// that are consumed but not emitted.
func (d *Decoder) decodeOne() (*Record, error) {
	tag, err := d.r.ReadByte()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCategoryDecode, errors.CodeBadRecord, "reading record tag", err)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryDecode, errors.CodeTruncatedRecord,
			"record header extends past end of stream", err)
	}
	length := int(binary.LittleEndian.Uint16(lenBuf[:]))

	if cap(d.buf) < length {
		d.buf = make([]byte, length)
	}
	payload := d.buf[:length]
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryDecode, errors.CodeTruncatedRecord,
			fmt.Sprintf("record tag %d declares %d bytes past end of stream", tag, length), err)
	}

	switch Tag(tag) {
	case TagSample:
		s, err := parseSample(payload)
		if err != nil {
			return nil, err
		}
		if err := d.checkTime(s.Time); err != nil {
			return nil, err
		}
		if d.opts.IgnoreSamples {
			return nil, nil
		}
		return &Record{Kind: KindSample, Sample: s}, nil

	case TagEndFixation, TagEndSaccade, TagEndBlink, TagStartRecording, TagEndRecording:
		ev, err := parseEvent(Tag(tag), payload)
		if err != nil {
			return nil, err
		}
		// Events enter the stream at their end time; their start may
		// precede records already emitted.
		if err := d.checkTime(ev.End); err != nil {
			return nil, err
		}
		ev.Trial = d.trialAt(ev.Start)
		return &Record{Kind: KindEvent, Event: ev}, nil

	case TagMessage:
		m, err := parseMessage(payload)
		if err != nil {
			return nil, err
		}
		if err := d.checkTime(m.Time); err != nil {
			return nil, err
		}
		// Segmentation happens on the unfiltered stream: a marker counts
		// even when the filter will drop the message itself.
		if strings.HasPrefix(m.Text, d.opts.marker()) {
			d.markers = append(d.markers, m.Time)
		}
		m.Trial = len(d.markers) - 1
		if !d.retainMessage(m.Text) {
			return nil, nil
		}
		return &Record{Kind: KindMessage, Message: m}, nil

	default:
		if d.opts.SkipUnknownRecords {
			return nil, nil
		}
		return nil, errors.NewDecodeError(errors.CodeUnknownRecordType,
			fmt.Sprintf("unknown record tag %d", tag))
	}
}

// checkTime enforces non-decreasing stream timestamps.
func (d *Decoder) checkTime(t uint32) error {
	if d.started && t < d.lastTime {
		return errors.NewDecodeError(errors.CodeTimeRegression,
			fmt.Sprintf("timestamp %d precedes %d", t, d.lastTime))
	}
	d.started = true
	d.lastTime = t
	return nil
}

// trialAt returns the trial index active at time t: the latest marker at
// or before t, or -1 when no marker has occurred yet.
func (d *Decoder) trialAt(t uint32) int {
	return sort.Search(len(d.markers), func(i int) bool { return d.markers[i] > t }) - 1
}

func (d *Decoder) retainMessage(text string) bool {
	if len(d.opts.MessageFilter) == 0 {
		return true
	}
	for _, prefix := range d.opts.MessageFilter {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

const (
	sampleLength    = 28 // u32 time + 6 f32
	fixationLength  = 20 // u32 start, end + f32 avgx, avgy, pupil
	saccadeLength   = 16 // u32 start, end + f32 amplitude, peak velocity
	blinkLength     = 8  // u32 start, end
	recordingLength = 4  // u32 time
	messageMinimum  = 4  // u32 time + text
)

func parseSample(p []byte) (*Sample, error) {
	if len(p) != sampleLength {
		return nil, badLength("sample", sampleLength, len(p))
	}
	return &Sample{
		Time:    binary.LittleEndian.Uint32(p[0:]),
		GxLeft:  f32(p[4:]),
		GyLeft:  f32(p[8:]),
		PaLeft:  f32(p[12:]),
		GxRight: f32(p[16:]),
		GyRight: f32(p[20:]),
		PaRight: f32(p[24:]),
	}, nil
}

func parseEvent(tag Tag, p []byte) (*Event, error) {
	nan := float32(math.NaN())
	ev := &Event{AvgX: nan, AvgY: nan, Amplitude: nan, PeakVelocity: nan, Pupil: nan}

	switch tag {
	case TagEndFixation:
		if len(p) != fixationLength {
			return nil, badLength("fixation event", fixationLength, len(p))
		}
		ev.Type = EventFixation
		ev.AvgX, ev.AvgY, ev.Pupil = f32(p[8:]), f32(p[12:]), f32(p[16:])
	case TagEndSaccade:
		if len(p) != saccadeLength {
			return nil, badLength("saccade event", saccadeLength, len(p))
		}
		ev.Type = EventSaccade
		ev.Amplitude, ev.PeakVelocity = f32(p[8:]), f32(p[12:])
	case TagEndBlink:
		if len(p) != blinkLength {
			return nil, badLength("blink event", blinkLength, len(p))
		}
		ev.Type = EventBlink
	case TagStartRecording, TagEndRecording:
		if len(p) != recordingLength {
			return nil, badLength("recording event", recordingLength, len(p))
		}
		if tag == TagStartRecording {
			ev.Type = EventRecordingStart
		} else {
			ev.Type = EventRecordingEnd
		}
		ev.Start = binary.LittleEndian.Uint32(p[0:])
		ev.End = ev.Start
		return ev, nil
	}

	ev.Start = binary.LittleEndian.Uint32(p[0:])
	ev.End = binary.LittleEndian.Uint32(p[4:])
	if ev.End < ev.Start {
		return nil, errors.NewDecodeError(errors.CodeBadRecord,
			fmt.Sprintf("%s event ends at %d before it starts at %d", ev.Type, ev.End, ev.Start))
	}
	return ev, nil
}

func parseMessage(p []byte) (*Message, error) {
	if len(p) < messageMinimum {
		return nil, errors.NewDecodeError(errors.CodeBadRecord,
			fmt.Sprintf("message payload is %d bytes, want at least %d", len(p), messageMinimum))
	}
	return &Message{
		Time: binary.LittleEndian.Uint32(p[0:]),
		Text: string(p[4:]),
	}, nil
}

func badLength(what string, want, got int) error {
	return errors.NewDecodeError(errors.CodeBadRecord,
		fmt.Sprintf("%s payload is %d bytes, want %d", what, got, want))
}

func f32(p []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p))
}
