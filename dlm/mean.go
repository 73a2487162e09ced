package dlm

import (
	"errors"
	"fmt"

	"github.com/dazui0019/yokogawa/scpi"
)

// Mean stops the acquisition, reads the average of channel and restarts it.
// A non-numeric reply is returned as scpi.ErrProtocol after the restart.
// On failure the instrument error queue is attached.
func (d *Scope) Mean(channel int) (float64, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	v, err := d.mean(channel)
	return v, d.withErrorLog(err)
}

func (d *Scope) mean(channel int) (float64, error) {
	if err := d.send(":STOP"); err != nil {
		return 0, err
	}
	if err := d.s.OperationComplete(); err != nil {
		return 0, err
	}
	err := d.send(
		":COMMunicate:HEADer OFF",
		fmt.Sprintf(":MEASure:CHANnel%d:AVERage:STATe ON", channel),
		":MEASure:MODE ON",
	)
	if err != nil {
		return 0, err
	}

	v, qerr := d.s.QueryFloat(fmt.Sprintf(":MEASure:CHANnel%d:AVERage:VALue?", channel))
	if qerr != nil && !errors.Is(qerr, scpi.ErrProtocol) {
		return 0, qerr
	}
	if err := d.send(":STARt"); err != nil {
		return 0, err
	}
	return v, qerr
}

func checkChannel(ch int) error {
	if ch < 1 || ch > 8 {
		return fmt.Errorf("%w: channel %d out of range 1..8", scpi.ErrInvariant, ch)
	}
	return nil
}
