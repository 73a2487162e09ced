package scpi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Condition is a predicate on the status condition register.
type Condition struct {
	Mask     uint32
	Expected uint32
}

// Conditions used by the DLM command sequences.
var (
	// Bit 0 of the condition register is set once auto setup has finished.
	AutoSetupComplete = Condition{Mask: 1 << 0, Expected: 1 << 0}

	// Bit 6 of the condition register is cleared once a file save has finished.
	FileSaveComplete = Condition{Mask: 1 << 6, Expected: 0}
)

// Satisfied reports whether the register value meets the condition.
func (c Condition) Satisfied(value uint32) bool {
	return value&c.Mask == c.Expected
}

func (c Condition) String() string {
	return fmt.Sprintf("value&0x%x==0x%x", c.Mask, c.Expected)
}

// Default polling parameters.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultPollAttempts = 600
)

// Poller repeatedly queries a register until a condition holds.
// At least one of Attempts and Timeout must be positive.
type Poller struct {
	Interval time.Duration // delay between polls
	Attempts int           // maximum number of queries, 0 = unlimited
	Timeout  time.Duration // wall-clock bound, 0 = unlimited

	sleep func(time.Duration)
	now   func() time.Time
}

// NewPoller returns a poller bounded by an attempt count.
func NewPoller(interval time.Duration, attempts int) *Poller {
	return &Poller{
		Interval: interval,
		Attempts: attempts,
	}
}

// Wait blocks until query returns a value satisfying cond.
// The first result is judged like every later one. A query error is returned
// unchanged and stops the wait. Exceeding the bound yields a *TimeoutError.
func (p *Poller) Wait(query func() (uint32, error), cond Condition) error {
	if p.Attempts <= 0 && p.Timeout <= 0 {
		return fmt.Errorf("%w: poller needs an attempt or time bound", ErrInvariant)
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := p.now
	if now == nil {
		now = time.Now
	}

	start := now()
	var last uint32
	for attempt := 1; ; attempt++ {
		value, err := query()
		if err != nil {
			return err
		}
		last = value
		log.Debug().Int("attempt", attempt).Uint32("value", value).Stringer("condition", cond).Msg("poll")
		if cond.Satisfied(value) {
			return nil
		}

		elapsed := now().Sub(start)
		if (p.Attempts > 0 && attempt >= p.Attempts) || (p.Timeout > 0 && elapsed >= p.Timeout) {
			return &TimeoutError{
				Condition: cond,
				Attempts:  attempt,
				Last:      last,
				Elapsed:   elapsed,
			}
		}
		sleep(p.Interval)
	}
}

// ParseRegister parses a register reply such as "65" or, with command
// headers enabled, ":STATUS:CONDITION 65".
func ParseRegister(reply string) (uint32, error) {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty register reply", ErrProtocol)
	}
	value, err := strconv.ParseUint(fields[len(fields)-1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: register reply %q is not a number", ErrProtocol, reply)
	}
	return uint32(value), nil
}
