package usbtmc

import (
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"
)

// IdentifyTimeout bounds the *IDN? query made while listing.
const IdentifyTimeout = 2 * time.Second

// List returns every attached USBTMC instrument with its identity.
func List() ([]transport.Instrument, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, _, _, _, ok := findTMC(desc)
		return ok
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var found []transport.Instrument
	for _, dev := range devs {
		inst := transport.Instrument{
			Kind:    transport.KindUSBTMC,
			Vendor:  uint16(dev.Desc.Vendor),
			Product: uint16(dev.Desc.Product),
		}
		inst.Resource, _ = dev.SerialNumber()
		c, err := open(nil, dev, IdentifyTimeout)
		if err != nil {
			log.Debug().Err(err).Str("serial", inst.Resource).Msg("failed to open for identify")
			dev.Close()
			found = append(found, inst)
			continue
		}
		inst.Identity, err = scpi.NewSession(c).Query("*IDN?")
		if err != nil {
			log.Debug().Err(err).Str("serial", inst.Resource).Msg("identify failed")
		}
		c.Close()
		found = append(found, inst)
	}
	return found, nil
}
