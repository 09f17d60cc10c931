package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Read PHY error captures from a serial port, as written
 *		by a test rig that streams the capture format.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pkg/term"
)

/*-------------------------------------------------------------------
 *
 * Name:	OpenCaptureSerial
 *
 * Inputs:	devicename	- Usually like /dev/ttyUSB0.
 *
 *		baud		- Speed.  If 0, leave it alone.
 *
 *---------------------------------------------------------------*/

func OpenCaptureSerial(devicename string, baud int) (io.ReadCloser, error) {
	var fd, err = term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", devicename, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600:
		var speedErr = fd.SetSpeed(baud)
		if speedErr != nil {
			fd.Close() //nolint:gosec
			return nil, fmt.Errorf("setting serial speed %d: %w", baud, speedErr)
		}
	default:
		fd.Close() //nolint:gosec
		return nil, fmt.Errorf("%w: serial speed %d", ErrBadArgument, baud)
	}

	return fd, nil
}

// Ingest feeds reports from a live source until it ends or ctx is done.
// Sweeping is left to Run.
func (e *Engine) Ingest(ctx context.Context, cr *CaptureReader, onReport func(*PhyErrReport)) error {
	for ctx.Err() == nil {
		var r, err = cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, ErrBadArgument) {
				e.log.Warn("bad capture record", "err", err)
				continue
			}
			return err
		}

		if onReport != nil {
			onReport(r)
		}

		var phyErr = e.ProcessPhyErr(r)
		if phyErr != nil && e.debugEnabled(DebugPhyErrSum) {
			e.log.Debug("report not queued", "err", phyErr)
		}
	}

	return ctx.Err()
}
