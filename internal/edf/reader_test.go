package edf

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/oculab/edfparse/internal/errors"
)

// minimalStream builds the scenario stream used across tests: a preamble,
// two samples at 100 and 101, a trial marker message at 100, and one
// fixation spanning 100-101.
func minimalStream(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.PreambleLine("DATE", "Wed Mar  4 10:01:21 2026")
	enc.PreambleLine("TYPE", "EDF_FILE BINARY EVENT SAMPLE TAGGED")
	enc.PreambleLine("RECORDED BY", "edfapi")
	enc.Message(100, "TRIALID 1")
	enc.Sample(Sample{Time: 100})
	enc.Sample(Sample{Time: 101})
	enc.Fixation(100, 101, 512.5, 384.25, 900)
	if err := enc.Err(); err != nil {
		t.Fatalf("building stream: %v", err)
	}
	return buf.Bytes()
}

func TestReadStream_MinimalRecording(t *testing.T) {
	rec, err := ReadStream(bytes.NewReader(minimalStream(t)), DecodeOptions{})
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}

	if got := rec.Samples.NumRows(); got != 2 {
		t.Errorf("samples rows = %d, want 2", got)
	}
	if got := rec.Messages.NumRows(); got != 1 {
		t.Errorf("messages rows = %d, want 1", got)
	}
	if got := rec.Events.NumRows(); got != 1 {
		t.Errorf("events rows = %d, want 1", got)
	}

	if rec.Meta["DATE"] != "Wed Mar  4 10:01:21 2026" {
		t.Errorf("preamble DATE = %q", rec.Meta["DATE"])
	}

	trial, _ := rec.Events.Column("trial")
	if trial.Nums[0] != 0 {
		t.Errorf("event trial = %v, want 0 (first marker starts trial 0)", trial.Nums[0])
	}
	start, _ := rec.Events.Column("start")
	end, _ := rec.Events.Column("end")
	if got := end.Nums[0] - start.Nums[0]; got != 1 {
		t.Errorf("event duration = %v, want 1", got)
	}

	// Fixed samples schema, independent of content.
	wantCols := []string{"time", "gx_left", "gy_left", "pa_left", "gx_right", "gy_right", "pa_right"}
	names := rec.Samples.Names()
	if len(names) != len(wantCols) {
		t.Fatalf("samples columns = %v, want %v", names, wantCols)
	}
	for i, w := range wantCols {
		if names[i] != w {
			t.Errorf("samples column %d = %q, want %q", i, names[i], w)
		}
	}
}

func TestReadStream_IgnoreSamples(t *testing.T) {
	stream := minimalStream(t)
	rec, err := ReadStream(bytes.NewReader(stream), DecodeOptions{IgnoreSamples: true})
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if got := rec.Samples.NumRows(); got != 0 {
		t.Errorf("samples rows = %d, want 0", got)
	}
	if got := rec.Events.NumRows(); got != 1 {
		t.Errorf("events rows = %d, want 1 (unchanged)", got)
	}
	if got := rec.Messages.NumRows(); got != 1 {
		t.Errorf("messages rows = %d, want 1 (unchanged)", got)
	}
}

func TestReadStream_TruncatedRecordDiscardsEverything(t *testing.T) {
	stream := minimalStream(t)
	var buf bytes.Buffer
	buf.Write(stream)
	// A message frame declaring 100 payload bytes with only 4 present.
	buf.Write([]byte{byte(TagMessage), 100, 0, 1, 2, 3, 4})

	rec, err := ReadStream(bytes.NewReader(buf.Bytes()), DecodeOptions{})
	if err == nil {
		t.Fatal("expected truncated record error")
	}
	if got := pkgerrors.GetCode(err); got != pkgerrors.CodeTruncatedRecord {
		t.Errorf("error code = %q, want %q", got, pkgerrors.CodeTruncatedRecord)
	}
	if rec != nil {
		t.Error("partial recording must not be returned on decode failure")
	}
}

func TestReadStream_UnknownTagFailsFast(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.PreambleLine("DATE", "today")
	enc.Frame(Tag(99), []byte{1, 2, 3})
	if err := enc.Err(); err != nil {
		t.Fatal(err)
	}

	_, err := ReadStream(bytes.NewReader(buf.Bytes()), DecodeOptions{})
	if got := pkgerrors.GetCode(err); got != pkgerrors.CodeUnknownRecordType {
		t.Errorf("error code = %q, want %q", got, pkgerrors.CodeUnknownRecordType)
	}
}

func TestReadStream_UnknownTagSkippedWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.PreambleLine("DATE", "today")
	enc.Frame(Tag(99), []byte{1, 2, 3})
	enc.Message(50, "still decoded")
	if err := enc.Err(); err != nil {
		t.Fatal(err)
	}

	rec, err := ReadStream(bytes.NewReader(buf.Bytes()), DecodeOptions{SkipUnknownRecords: true})
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if got := rec.Messages.NumRows(); got != 1 {
		t.Errorf("messages rows = %d, want 1", got)
	}
}

func TestReadStream_TimestampRegression(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.PreambleLine("DATE", "today")
	enc.Sample(Sample{Time: 200})
	enc.Sample(Sample{Time: 150})
	if err := enc.Err(); err != nil {
		t.Fatal(err)
	}

	_, err := ReadStream(bytes.NewReader(buf.Bytes()), DecodeOptions{})
	if got := pkgerrors.GetCode(err); got != pkgerrors.CodeTimeRegression {
		t.Errorf("error code = %q, want %q", got, pkgerrors.CodeTimeRegression)
	}
}

func TestReadStream_Deterministic(t *testing.T) {
	stream := minimalStream(t)
	a, err := ReadStream(bytes.NewReader(stream), DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ReadStream(bytes.NewReader(stream), DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Samples.Equal(b.Samples) || !a.Events.Equal(b.Events) || !a.Messages.Equal(b.Messages) {
		t.Error("two decodes of the same stream must be identical")
	}
}

func TestRead_FileNotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.edf"), DecodeOptions{})
	if got := pkgerrors.GetCode(err); got != pkgerrors.CodeFileNotFound {
		t.Errorf("error code = %q, want %q", got, pkgerrors.CodeFileNotFound)
	}
}

func TestRead_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.edf")
	if err := os.WriteFile(path, minimalStream(t), 0644); err != nil {
		t.Fatal(err)
	}
	rec, err := Read(path, DecodeOptions{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := rec.Samples.NumRows(); got != 2 {
		t.Errorf("samples rows = %d, want 2", got)
	}
}

func TestReadStream_EventAttributeUnion(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.PreambleLine("DATE", "today")
	enc.Fixation(100, 110, 1, 2, 3)
	enc.Blink(120, 130)
	if err := enc.Err(); err != nil {
		t.Fatal(err)
	}

	rec, err := ReadStream(bytes.NewReader(buf.Bytes()), DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// No saccade occurred, so no amplitude or peak velocity columns.
	if _, ok := rec.Events.Column("ampl"); ok {
		t.Error("ampl column should be absent without saccades")
	}
	if _, ok := rec.Events.Column("pvel"); ok {
		t.Error("pvel column should be absent without saccades")
	}

	// Blink rows carry NaN for the fixation-only attributes.
	gavx, ok := rec.Events.Column("gavx")
	if !ok {
		t.Fatal("expected gavx column")
	}
	if gavx.Nums[0] != 1 {
		t.Errorf("fixation gavx = %v, want 1", gavx.Nums[0])
	}
	if !math.IsNaN(gavx.Nums[1]) {
		t.Errorf("blink gavx = %v, want NaN", gavx.Nums[1])
	}
}

func TestReadStream_EventEndBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.PreambleLine("DATE", "today")
	enc.Blink(130, 120)
	if err := enc.Err(); err != nil {
		t.Fatal(err)
	}

	_, err := ReadStream(bytes.NewReader(buf.Bytes()), DecodeOptions{})
	if got := pkgerrors.GetCode(err); got != pkgerrors.CodeBadRecord {
		t.Errorf("error code = %q, want %q", got, pkgerrors.CodeBadRecord)
	}
}

func TestReadStream_ErrorIsParseError(t *testing.T) {
	_, err := ReadStream(bytes.NewReader([]byte("no preamble here")), DecodeOptions{})
	var pe *pkgerrors.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if pe.Code != pkgerrors.CodeBadPreamble {
		t.Errorf("error code = %q, want %q", pe.Code, pkgerrors.CodeBadPreamble)
	}
}
