package rs232

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"
)

// IdentifyTimeout bounds the *IDN? query made while listing.
const IdentifyTimeout = 500 * time.Millisecond

// List returns every serial port. Ports that answer *IDN? carry the reply.
func List() ([]transport.Instrument, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var found []transport.Instrument
	for _, port := range ports {
		inst := transport.Instrument{
			Kind:     transport.KindSerial,
			Resource: port.Name,
		}
		if port.IsUSB {
			vid, _ := strconv.ParseUint(port.VID, 16, 16)
			pid, _ := strconv.ParseUint(port.PID, 16, 16)
			inst.Vendor, inst.Product = uint16(vid), uint16(pid)
		}
		inst.Identity = identify(port.Name)
		found = append(found, inst)
	}
	return found, nil
}

func identify(name string) string {
	c, err := Open(name, DefaultBaud, IdentifyTimeout)
	if err != nil {
		log.Debug().Err(err).Str("port", name).Msg("failed to open for identify")
		return ""
	}
	defer c.Close()
	idn, err := scpi.NewSession(c).Query("*IDN?")
	if err != nil {
		log.Debug().Err(err).Str("port", name).Msg("identify failed")
		return ""
	}
	return idn
}
