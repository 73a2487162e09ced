package dlm

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// MeasureItems are the automated measurement items read by Measure.
var MeasureItems = []string{"PTOPeak", "AVERage", "FREQuency"}

// Measurement is one automated measurement result.
type Measurement struct {
	Item  string
	Value float64
}

// waitTimeout is the instrument side timeout of :SSTart? and :MEASure:WAIT?,
// in units of 100 ms.
const waitTimeout = 100

// Measurement time range in divisions, the whole screen.
const (
	TimeRangeStart = -5
	TimeRangeEnd   = 5
)

// Measure makes a single acquisition in normal acquisition mode and returns
// the automated measurement items of channel over the whole screen. On
// failure the instrument error queue is attached.
func (d *Scope) Measure(channel int) ([]Measurement, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	out, err := d.measure(channel)
	return out, d.withErrorLog(err)
}

func (d *Scope) measure(channel int) ([]Measurement, error) {
	cmds := []string{":STOP", ":COMMunicate:HEADer OFF", ":MEASure:MODE OFF", ":ACQuire:MODE NORMal"}
	for _, item := range MeasureItems {
		cmds = append(cmds, fmt.Sprintf(":MEASure:CHANnel%d:%s:STATe ON", channel, item))
	}
	cmds = append(cmds, fmt.Sprintf(":MEASure:TRANge %d,%d", TimeRangeStart, TimeRangeEnd))
	if err := d.send(cmds...); err != nil {
		return nil, err
	}
	defer func() {
		if err := d.s.Send(":COMMunicate:HEADer ON"); err != nil {
			log.Debug().Err(err).Msg("failed to restore command headers")
		}
	}()

	// Both queries answer 0 on success and 1 when the timeout expired.
	busy, err := d.s.QueryInt(fmt.Sprintf(":SSTart? %d", waitTimeout))
	if err != nil {
		return nil, err
	}
	if busy == 1 {
		return nil, ErrNotTriggered
	}
	if err := d.send(":MEASure:MODE ON"); err != nil {
		return nil, err
	}
	busy, err = d.s.QueryInt(fmt.Sprintf(":MEASure:WAIT? %d", waitTimeout))
	if err != nil {
		return nil, err
	}
	if busy == 1 {
		return nil, ErrMeasureIncomplete
	}

	out := make([]Measurement, 0, len(MeasureItems))
	for _, item := range MeasureItems {
		v, err := d.s.QueryFloat(fmt.Sprintf(":MEASure:CHANnel%d:%s:VALue?", channel, item))
		if err != nil {
			return out, fmt.Errorf("failed to read %s: %w", item, err)
		}
		out = append(out, Measurement{Item: item, Value: v})
	}
	return out, nil
}
