package edf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encoder writes the framed EDF wire format. It exists for tooling and
// tests that need synthetic recordings; the error from the first failed
// write is latched and reported by Err.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Err returns the first write error, if any.
func (e *Encoder) Err() error {
	return e.err
}

// PreambleLine writes one "** KEY: value" preamble line. All preamble
// lines must be written before the first record.
func (e *Encoder) PreambleLine(key, value string) {
	e.write([]byte(fmt.Sprintf("** %s: %s\n", key, value)))
}

// Sample writes one sample record.
func (e *Encoder) Sample(s Sample) {
	p := make([]byte, sampleLength)
	binary.LittleEndian.PutUint32(p[0:], s.Time)
	putF32(p[4:], s.GxLeft)
	putF32(p[8:], s.GyLeft)
	putF32(p[12:], s.PaLeft)
	putF32(p[16:], s.GxRight)
	putF32(p[20:], s.GyRight)
	putF32(p[24:], s.PaRight)
	e.Frame(TagSample, p)
}

// Fixation writes an end-of-fixation event record.
func (e *Encoder) Fixation(start, end uint32, avgX, avgY, pupil float32) {
	p := make([]byte, fixationLength)
	binary.LittleEndian.PutUint32(p[0:], start)
	binary.LittleEndian.PutUint32(p[4:], end)
	putF32(p[8:], avgX)
	putF32(p[12:], avgY)
	putF32(p[16:], pupil)
	e.Frame(TagEndFixation, p)
}

// Saccade writes an end-of-saccade event record.
func (e *Encoder) Saccade(start, end uint32, amplitude, peakVelocity float32) {
	p := make([]byte, saccadeLength)
	binary.LittleEndian.PutUint32(p[0:], start)
	binary.LittleEndian.PutUint32(p[4:], end)
	putF32(p[8:], amplitude)
	putF32(p[12:], peakVelocity)
	e.Frame(TagEndSaccade, p)
}

// Blink writes an end-of-blink event record.
func (e *Encoder) Blink(start, end uint32) {
	p := make([]byte, blinkLength)
	binary.LittleEndian.PutUint32(p[0:], start)
	binary.LittleEndian.PutUint32(p[4:], end)
	e.Frame(TagEndBlink, p)
}

// StartRecording writes a start-of-recording marker event.
func (e *Encoder) StartRecording(t uint32) {
	e.recording(TagStartRecording, t)
}

// EndRecording writes an end-of-recording marker event.
func (e *Encoder) EndRecording(t uint32) {
	e.recording(TagEndRecording, t)
}

func (e *Encoder) recording(tag Tag, t uint32) {
	p := make([]byte, recordingLength)
	binary.LittleEndian.PutUint32(p, t)
	e.Frame(tag, p)
}

// Message writes a message record.
func (e *Encoder) Message(t uint32, text string) {
	p := make([]byte, messageMinimum+len(text))
	binary.LittleEndian.PutUint32(p[0:], t)
	copy(p[4:], text)
	e.Frame(TagMessage, p)
}

// Frame writes one raw record frame: tag, little-endian 16-bit payload
// length, payload.
func (e *Encoder) Frame(tag Tag, payload []byte) {
	if len(payload) > maxRecordLength {
		e.fail(fmt.Errorf("edf: payload of %d bytes exceeds frame limit", len(payload)))
		return
	}
	var hdr [3]byte
	hdr[0] = byte(tag)
	binary.LittleEndian.PutUint16(hdr[1:], uint16(len(payload)))
	e.write(hdr[:])
	e.write(payload)
}

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(p); err != nil {
		e.fail(err)
	}
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func putF32(p []byte, v float32) {
	binary.LittleEndian.PutUint32(p, math.Float32bits(v))
}
