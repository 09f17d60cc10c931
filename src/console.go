package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Offer the control commands on a pseudo terminal, for
 *		boards with nothing but a serial console.
 *
 * Description:	The slave side is linked from consoleSymlink so users
 *		don't have to find out which /dev/pts/N it got:
 *
 *			screen /tmp/dfsctl
 *
 *		Linux only.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

const consoleSymlink = "/tmp/dfsctl"

type Console struct {
	master  *os.File
	slave   *os.File
	symlink string
}

// OpenConsole creates the pseudo terminal.  An empty symlink means
// consoleSymlink.
func OpenConsole(symlink string) (*Console, error) {
	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("could not create pseudo terminal for control console: %w", err)
	}

	if symlink == "" {
		symlink = consoleSymlink
	}

	// Raw, like a serial line.  With echo on, every reply would come
	// back to us as a command.
	var raw, rawErr = term.Open(pts.Name(), term.RawMode)
	if rawErr != nil {
		ptmx.Close() //nolint:gosec
		pts.Close()  //nolint:gosec
		return nil, fmt.Errorf("could not set control console to raw mode: %w", rawErr)
	}
	raw.Close() //nolint:gosec

	var c = &Console{master: ptmx, slave: pts}

	os.Remove(symlink) //nolint:gosec
	if linkErr := os.Symlink(pts.Name(), symlink); linkErr == nil {
		c.symlink = symlink
	}

	return c, nil
}

// Name is the path users open: the symlink if it could be made, or the
// slave device.
func (c *Console) Name() string {
	if c.symlink != "" {
		return c.symlink
	}

	return c.slave.Name()
}

// Serve answers commands on the console until ctx is done.
func (c *Console) Serve(ctx context.Context, e *Engine) {
	var stop = context.AfterFunc(ctx, func() { c.Close() }) //nolint:errcheck
	defer stop()

	e.log.Info("control console ready", "tty", c.Name())

	// "quit" only ends the session, not the console.
	for ctx.Err() == nil {
		var err = e.serveControl(c.master)
		if err != nil {
			if ctx.Err() == nil {
				e.log.Error("control console", "err", err)
			}
			return
		}
	}
}

func (c *Console) Close() error {
	if c.symlink != "" {
		os.Remove(c.symlink) //nolint:gosec
	}

	c.slave.Close() //nolint:gosec

	return c.master.Close()
}
