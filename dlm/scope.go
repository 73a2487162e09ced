// Package dlm drives Yokogawa DLM series oscilloscopes: the command sequences
// behind each tool operation, built on an scpi.Session.
package dlm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
)

// Overlap masks for :COMMunicate:OVERlap.
const (
	OverlapFile    = 64   // only file operations run overlapped
	OverlapDefault = 2400 // instrument default
)

// SettleDelay is waited after auto setup before the acquisition is stopped.
const SettleDelay = 2 * time.Second

var (
	// ErrNotTriggered is returned when a single start times out without a trigger.
	ErrNotTriggered = errors.New("not triggered")

	// ErrMeasureIncomplete is returned when automated measurement did not finish.
	ErrMeasureIncomplete = errors.New("measurement not finished")

	// ErrEmptyImage is returned when the instrument announces a zero length image.
	ErrEmptyImage = errors.New("empty image")
)

// Scope is a connected DLM oscilloscope.
type Scope struct {
	s     *scpi.Session
	sleep func(time.Duration)
}

// New returns a scope speaking over s.
func New(s *scpi.Session) *Scope {
	return &Scope{s: s, sleep: time.Sleep}
}

// Session returns the underlying session.
func (d *Scope) Session() *scpi.Session {
	return d.s
}

// send issues commands in order and stops at the first failure.
func (d *Scope) send(cmds ...string) error {
	for _, cmd := range cmds {
		if err := d.s.Send(cmd); err != nil {
			return fmt.Errorf("failed to send %s: %w", cmd, err)
		}
	}
	return nil
}

// withErrorLog attaches the instrument error queue to err. A failure to read
// the queue leaves err unchanged. A nil err is returned as is.
func (d *Scope) withErrorLog(err error) error {
	if err == nil {
		return nil
	}
	msg, lerr := d.s.ErrorLog()
	if lerr != nil {
		log.Debug().Err(lerr).Msg("failed to read device error log")
		return err
	}
	return fmt.Errorf("%w (device error log: %s)", err, msg)
}

// Identify returns the *IDN? reply.
func (d *Scope) Identify() (string, error) {
	return d.s.Query("*IDN?")
}

// ErrorLog returns the instrument error queue.
func (d *Scope) ErrorLog() (string, error) {
	return d.s.ErrorLog()
}

// Clear clears the status registers and the error queue.
func (d *Scope) Clear() error {
	return d.send("*CLS")
}

// Status returns the condition register.
func (d *Scope) Status() (uint32, error) {
	return d.s.Condition()
}

// StatusBits lists the set bits of the condition register, naming the ones
// the command sequences wait on.
func StatusBits(v uint32) []string {
	var out []string
	for bit := range 32 {
		if v&(1<<bit) == 0 {
			continue
		}
		switch bit {
		case 0:
			out = append(out, "bit0 (auto setup done)")
		case 6:
			out = append(out, "bit6 (file operation busy)")
		default:
			out = append(out, fmt.Sprintf("bit%d", bit))
		}
	}
	return out
}

// AutoSetup runs auto setup and waits for it to finish.
func (d *Scope) AutoSetup() error {
	return d.withErrorLog(d.autoSetup())
}

func (d *Scope) autoSetup() error {
	if err := d.send(":ASETup:EXECute"); err != nil {
		return err
	}
	if err := d.s.WaitCondition(scpi.AutoSetupComplete); err != nil {
		return fmt.Errorf("failed to wait for auto setup: %w", err)
	}
	return nil
}

// SetTimebase sets the time per division, for example "100ms", and returns
// the value the instrument settled on in seconds.
func (d *Scope) SetTimebase(tdiv string) (float64, error) {
	tdiv = strings.TrimSpace(tdiv)
	if tdiv == "" {
		return 0, fmt.Errorf("%w: empty time/div", scpi.ErrInvariant)
	}
	v, err := d.setTimebase(tdiv)
	return v, d.withErrorLog(err)
}

func (d *Scope) setTimebase(tdiv string) (float64, error) {
	if err := d.send(":COMMunicate:HEADer OFF", ":TIMebase:TDIV "+tdiv); err != nil {
		return 0, err
	}
	v, err := d.s.QueryFloat(":TIMebase:TDIV?")
	if err != nil {
		return 0, fmt.Errorf("failed to read back time/div: %w", err)
	}
	return v, nil
}
