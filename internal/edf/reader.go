package edf

import (
	"bufio"
	"io"
	"os"

	"github.com/oculab/edfparse/internal/errors"
	"github.com/oculab/edfparse/internal/table"
)

// Recording is the result of one decode pass: the preamble metadata and
// the three assembled tables. Tables are built fresh on every call; no
// state survives between decodes.
type Recording struct {
	Meta     map[string]string
	Samples  *table.Table
	Events   *table.Table
	Messages *table.Table
}

// Read decodes the EDF file at path. The file's existence is checked up
// front; any decode failure discards all partial output and returns only
// the error.
func Read(path string, opts DecodeOptions) (*Recording, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NewFileNotFoundError(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCategoryIO, errors.CodeFileNotFound, "opening recording", err)
	}
	defer f.Close()
	return ReadStream(f, opts)
}

// ReadStream decodes a complete EDF byte stream: preamble first, then one
// forward pass over the records.
func ReadStream(r io.Reader, opts DecodeOptions) (*Recording, error) {
	br := bufio.NewReader(r)
	meta, err := ReadPreamble(br)
	if err != nil {
		return nil, err
	}

	dec := NewDecoder(br, opts)
	asm := newAssembler()
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		asm.add(rec)
	}

	samples, events, messages, err := asm.tables()
	if err != nil {
		return nil, err
	}
	return &Recording{Meta: meta, Samples: samples, Events: events, Messages: messages}, nil
}

// Samples table column order is fixed regardless of input content.
var sampleColumns = []string{
	"time", "gx_left", "gy_left", "pa_left", "gx_right", "gy_right", "pa_right",
}

// assembler folds the record stream into column slices. Events and
// messages get the union of attribute columns actually seen; samples keep
// the fixed schema.
type assembler struct {
	sTime, sGxL, sGyL, sPaL, sGxR, sGyR, sPaR []float64

	eTrial, eStart, eEnd               []float64
	eType                              []string
	eAvgX, eAvgY, ePupil, eAmpl, ePvel []float64
	sawGaze, sawSaccadeMetrics         bool

	mTrial, mTime []float64
	mText         []string
}

func newAssembler() *assembler {
	return &assembler{}
}

func (a *assembler) add(rec *Record) {
	switch rec.Kind {
	case KindSample:
		s := rec.Sample
		a.sTime = append(a.sTime, float64(s.Time))
		a.sGxL = append(a.sGxL, float64(s.GxLeft))
		a.sGyL = append(a.sGyL, float64(s.GyLeft))
		a.sPaL = append(a.sPaL, float64(s.PaLeft))
		a.sGxR = append(a.sGxR, float64(s.GxRight))
		a.sGyR = append(a.sGyR, float64(s.GyRight))
		a.sPaR = append(a.sPaR, float64(s.PaRight))

	case KindEvent:
		ev := rec.Event
		a.eTrial = append(a.eTrial, float64(ev.Trial))
		a.eStart = append(a.eStart, float64(ev.Start))
		a.eEnd = append(a.eEnd, float64(ev.End))
		a.eType = append(a.eType, ev.Type)
		a.eAvgX = append(a.eAvgX, float64(ev.AvgX))
		a.eAvgY = append(a.eAvgY, float64(ev.AvgY))
		a.ePupil = append(a.ePupil, float64(ev.Pupil))
		a.eAmpl = append(a.eAmpl, float64(ev.Amplitude))
		a.ePvel = append(a.ePvel, float64(ev.PeakVelocity))
		switch ev.Type {
		case EventFixation:
			a.sawGaze = true
		case EventSaccade:
			a.sawSaccadeMetrics = true
		}

	case KindMessage:
		m := rec.Message
		a.mTrial = append(a.mTrial, float64(m.Trial))
		a.mTime = append(a.mTime, float64(m.Time))
		a.mText = append(a.mText, m.Text)
	}
}

func (a *assembler) tables() (samples, events, messages *table.Table, err error) {
	samples = table.New()
	sampleData := [][]float64{a.sTime, a.sGxL, a.sGyL, a.sPaL, a.sGxR, a.sGyR, a.sPaR}
	for i, name := range sampleColumns {
		col := sampleData[i]
		if col == nil {
			col = []float64{}
		}
		if err := samples.AddNumeric(name, col); err != nil {
			return nil, nil, nil, errors.NewInternalError("assembling samples table", err)
		}
	}

	events = table.New()
	evCols := []struct {
		name    string
		nums    []float64
		text    []string
		present bool
	}{
		{name: "trial", nums: a.eTrial, present: true},
		{name: "start", nums: a.eStart, present: true},
		{name: "end", nums: a.eEnd, present: true},
		{name: "type", text: a.eType, present: true},
		{name: "gavx", nums: a.eAvgX, present: a.sawGaze},
		{name: "gavy", nums: a.eAvgY, present: a.sawGaze},
		{name: "pa", nums: a.ePupil, present: a.sawGaze},
		{name: "ampl", nums: a.eAmpl, present: a.sawSaccadeMetrics},
		{name: "pvel", nums: a.ePvel, present: a.sawSaccadeMetrics},
	}
	for _, c := range evCols {
		if !c.present {
			continue
		}
		if c.text != nil || c.name == "type" {
			text := c.text
			if text == nil {
				text = []string{}
			}
			err = events.AddText(c.name, text)
		} else {
			nums := c.nums
			if nums == nil {
				nums = []float64{}
			}
			err = events.AddNumeric(c.name, nums)
		}
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("assembling events table", err)
		}
	}

	messages = table.New()
	mTrial, mTime, mText := a.mTrial, a.mTime, a.mText
	if mTrial == nil {
		mTrial, mTime, mText = []float64{}, []float64{}, []string{}
	}
	if err := messages.AddNumeric("trial", mTrial); err != nil {
		return nil, nil, nil, errors.NewInternalError("assembling messages table", err)
	}
	if err := messages.AddNumeric("time", mTime); err != nil {
		return nil, nil, nil, errors.NewInternalError("assembling messages table", err)
	}
	if err := messages.AddText("message", mText); err != nil {
		return nil, nil, nil, errors.NewInternalError("assembling messages table", err)
	}

	return samples, events, messages, nil
}
