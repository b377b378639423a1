// Package edf decodes EyeLink EDF recordings into tabular form. The byte
// stream is a fixed ASCII preamble followed by self-describing framed
// records, each one a sample, an ocular event, or a free-text message.
// Decoding is a single forward pass: records are classified, assigned a
// trial index from marker messages, optionally filtered, and folded into
// samples/events/messages tables.
package edf

// Tag identifies the record type in the framed stream. The values follow
// the vendor's published event codes and are fixed wire constants, not a
// design choice of this package.
type Tag byte

const (
	TagEndBlink       Tag = 4
	TagEndSaccade     Tag = 6
	TagEndFixation    Tag = 8
	TagStartRecording Tag = 15
	TagEndRecording   Tag = 16
	TagMessage        Tag = 24
	TagSample         Tag = 200
)

// Event type labels as they appear in the events table.
const (
	EventFixation       = "fixation"
	EventSaccade        = "saccade"
	EventBlink          = "blink"
	EventRecordingStart = "recording_start"
	EventRecordingEnd   = "recording_end"
)

// DefaultTrialMarker is the message prefix that starts a new trial.
const DefaultTrialMarker = "TRIALID"

// RecordKind discriminates the variants of Record.
type RecordKind int

const (
	KindSample RecordKind = iota
	KindEvent
	KindMessage
)

// Sample is one tracker tick: instantaneous gaze position and pupil size
// for each eye. Missing per-eye fields arrive as NaN on the wire.
type Sample struct {
	Time                      uint32
	GxLeft, GyLeft, PaLeft    float32
	GxRight, GyRight, PaRight float32
}

// Event is a discrete ocular event spanning [Start, End]. Attribute
// fields that the event type does not carry are NaN.
type Event struct {
	Type         string
	Trial        int
	Start, End   uint32
	AvgX, AvgY   float32
	Amplitude    float32
	PeakVelocity float32
	Pupil        float32
}

// Message is a timestamped free-text annotation.
type Message struct {
	Trial int
	Time  uint32
	Text  string
}

// Record is a tagged variant over sample, event and message. Exactly one
// of the pointer fields is non-nil, according to Kind.
type Record struct {
	Kind    RecordKind
	Sample  *Sample
	Event   *Event
	Message *Message
}

// DecodeOptions control one decode pass.
type DecodeOptions struct {
	// TrialMarker is the exact, case-sensitive message prefix that starts
	// a new trial. Defaults to DefaultTrialMarker when empty. Trials are
	// numbered from 0 at the first marker; records seen before any marker
	// carry trial -1.
	TrialMarker string

	// MessageFilter keeps a message only if its text starts with one of
	// these prefixes. An empty list keeps everything. Filtered messages
	// still advance the trial counter when they match TrialMarker.
	MessageFilter []string

	// IgnoreSamples skips sample records entirely; the samples table is
	// built with its fixed schema but zero rows.
	IgnoreSamples bool

	// SkipUnknownRecords consumes and discards records with an
	// unrecognized tag instead of failing the decode. Off by default:
	// silently dropping unknown physiological data is unsafe for
	// downstream trial boundaries.
	SkipUnknownRecords bool
}

// marker returns the effective trial marker prefix.
func (o DecodeOptions) marker() string {
	if o.TrialMarker == "" {
		return DefaultTrialMarker
	}
	return o.TrialMarker
}
