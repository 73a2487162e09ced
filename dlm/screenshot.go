package dlm

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dazui0019/yokogawa/scpi"
)

// Image formats accepted by :IMAGe:FORMat.
var ImageFormats = []string{"PNG", "BMP", "JPEG"}

// sizedWriter learns the declared block length as data arrives.
type sizedWriter interface {
	Declare(total uint64)
}

// Screenshot captures the screen and writes the image verbatim to w. It
// returns the image size. The acquisition is stopped for the capture and
// restarted afterwards. On failure the instrument error queue is attached.
func (d *Scope) Screenshot(w io.Writer, format string) (uint64, error) {
	format = strings.ToUpper(format)
	if format == "" {
		format = "PNG"
	}
	if !slices.Contains(ImageFormats, format) {
		return 0, fmt.Errorf("%w: image format %q, expected one of %v", scpi.ErrInvariant, format, ImageFormats)
	}
	n, err := d.screenshot(w, format)
	return n, d.withErrorLog(err)
}

func (d *Scope) screenshot(w io.Writer, format string) (uint64, error) {
	if err := d.send("*CLS", ":STOP"); err != nil {
		return 0, err
	}
	if err := d.s.OperationComplete(); err != nil {
		return 0, err
	}
	if err := d.send(":IMAGe:FORMat " + format); err != nil {
		return 0, err
	}
	if err := d.s.OperationComplete(); err != nil {
		return 0, err
	}

	if sw, ok := w.(sizedWriter); ok {
		progress := d.s.Progress
		d.s.Progress = func(received, total uint64) {
			sw.Declare(total)
			if progress != nil {
				progress(received, total)
			}
		}
		defer func() { d.s.Progress = progress }()
	}

	n, err := d.s.ReadBlock(":IMAGe:SEND?", w)
	if err != nil {
		return n, fmt.Errorf("failed to receive image: %w", err)
	}
	if n == 0 {
		return 0, ErrEmptyImage
	}
	if err := d.send(":STARt"); err != nil {
		return n, err
	}
	return n, nil
}
