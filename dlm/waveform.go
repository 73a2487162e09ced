package dlm

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/waveform"
)

// WaveformRequest selects the trace and the sample range to transfer.
type WaveformRequest struct {
	Trace   int
	Start   int
	End     int
	Divisor float64 // counts per division, waveform.DefaultDivisor if zero
}

// Waveform stops the acquisition and streams the selected samples of the
// latest record to emit as physical values. Samples are decoded chunk by chunk
// while the block is received. It returns the scale used and the sample count.
// On failure the instrument error queue is attached.
func (d *Scope) Waveform(req WaveformRequest, emit func(index int, v float64) error) (waveform.Scale, int, error) {
	if err := checkChannel(req.Trace); err != nil {
		return waveform.Scale{}, 0, err
	}
	if req.Start < 0 || req.End < req.Start {
		return waveform.Scale{}, 0, fmt.Errorf("%w: invalid sample range %d..%d", scpi.ErrInvariant, req.Start, req.End)
	}
	scale, n, err := d.waveform(req, emit)
	return scale, n, d.withErrorLog(err)
}

func (d *Scope) waveform(req WaveformRequest, emit func(index int, v float64) error) (waveform.Scale, int, error) {
	var scale waveform.Scale

	err := d.send(
		":STOP",
		":COMMunicate:HEADer OFF",
		fmt.Sprintf(":WAVeform:TRACe %d", req.Trace),
		":WAVeform:RECord 0",
		":WAVeform:FORMat WORD",
		":WAVeform:BYTeorder LSBFirst",
		fmt.Sprintf(":WAVeform:STARt %d", req.Start),
		fmt.Sprintf(":WAVeform:END %d", req.End),
	)
	if err != nil {
		return scale, 0, err
	}
	defer func() {
		if err := d.s.Send(":COMMunicate:HEADer ON"); err != nil {
			log.Debug().Err(err).Msg("failed to restore command headers")
		}
	}()

	vdiv, err := d.s.QueryFloat(":WAVeform:RANGe?")
	if err != nil {
		return scale, 0, fmt.Errorf("failed to read waveform range: %w", err)
	}
	offset, err := d.s.QueryFloat(":WAVeform:OFFSet?")
	if err != nil {
		return scale, 0, fmt.Errorf("failed to read waveform offset: %w", err)
	}
	scale = waveform.NewScale(vdiv, offset)
	if req.Divisor > 0 {
		scale.Divisor = req.Divisor
	}

	dec := waveform.NewDecoder(scale, emit)
	if _, err := d.s.ReadBlock(":WAVeform:SEND?", dec); err != nil {
		return scale, dec.Count(), fmt.Errorf("failed to receive waveform: %w", err)
	}
	if err := dec.Close(); err != nil {
		return scale, dec.Count(), err
	}
	return scale, dec.Count(), nil
}
