package dlm

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
)

// SaveWaveform runs auto setup, then saves the acquired waveform in binary
// format to the instrument storage under name. The overlap mask is restored
// to its default even if the save fails. On failure the instrument error
// queue is attached.
func (d *Scope) SaveWaveform(name string) error {
	if name == "" || strings.ContainsAny(name, "\"\n") {
		return fmt.Errorf("%w: invalid file name %q", scpi.ErrInvariant, name)
	}
	return d.withErrorLog(d.saveWaveform(name))
}

func (d *Scope) saveWaveform(name string) error {
	if err := d.autoSetup(); err != nil {
		return err
	}
	d.sleep(SettleDelay)

	if err := d.send(":STOP", fmt.Sprintf(":COMMunicate:OVERlap %d", OverlapFile)); err != nil {
		return err
	}
	defer func() {
		if err := d.s.Send(fmt.Sprintf(":COMMunicate:OVERlap %d", OverlapDefault)); err != nil {
			log.Debug().Err(err).Msg("failed to restore overlap mask")
		}
	}()

	err := d.send(
		"*CLS",
		":FILE:SAVE:ANAMing ON",
		fmt.Sprintf(":FILE:SAVE:NAME %q", name),
		":FILE:SAVE:BINary:EXECute",
	)
	if err != nil {
		return err
	}
	if err := d.s.WaitCondition(scpi.FileSaveComplete); err != nil {
		return fmt.Errorf("failed to wait for file save: %w", err)
	}
	return nil
}
