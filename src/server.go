package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Control socket: one text command per line, answered
 *		with the reply and a status line.
 *
 * Description:	Each reply ends with "ok" or "error: <reason>" on a
 *		line of its own so scripts know where it stops.
 *
 *		  $ nc localhost 8001
 *		  nol
 *		  5260 MHz width 20 remaining 29m12s
 *		  ok
 *
 *		Any number of clients may be connected.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
)

const (
	controlReplyOK  = "ok"
	maxControlLine  = 1024
	controlQuitWord = "quit"
)

type ControlServer struct {
	engine   *Engine
	listener net.Listener
	wg       sync.WaitGroup
}

// ListenControl opens the control socket.  Serve must be called to accept
// clients.
func ListenControl(e *Engine, addr string) (*ControlServer, error) {
	var l, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("control socket %s: %w", addr, err)
	}

	return &ControlServer{engine: e, listener: l}, nil
}

func (cs *ControlServer) Addr() net.Addr {
	return cs.listener.Addr()
}

// Port is the TCP port actually bound.
func (cs *ControlServer) Port() int {
	if ta, ok := cs.listener.Addr().(*net.TCPAddr); ok {
		return ta.Port
	}

	return 0
}

// Serve accepts clients until ctx is done, then closes the socket and
// waits for the clients to go.
func (cs *ControlServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		cs.listener.Close() //nolint:gosec
	}()

	cs.engine.log.Info("control socket ready", "addr", cs.listener.Addr())

	for {
		var conn, err = cs.listener.Accept()
		if err != nil {
			cs.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		cs.engine.log.Info("control client connected", "remote", conn.RemoteAddr())

		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()

			var stop = context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck
			defer stop()

			cs.engine.serveControl(conn) //nolint:errcheck
			conn.Close()                 //nolint:gosec

			cs.engine.log.Info("control client gone", "remote", conn.RemoteAddr())
		}()
	}
}

// serveControl runs commands from rw until it ends or says quit.
func (e *Engine) serveControl(rw io.ReadWriter) error {
	var sc = bufio.NewScanner(rw)
	sc.Buffer(make([]byte, 0, maxControlLine), maxControlLine)

	var w = bufio.NewWriter(rw)

	for sc.Scan() {
		var line = strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.EqualFold(line, controlQuitWord) {
			return nil
		}

		var reply, err = e.ExecControl(line)
		if err != nil {
			fmt.Fprintf(w, "error: %s\n", err)
		} else {
			if reply != "" {
				fmt.Fprintln(w, reply)
			}
			fmt.Fprintln(w, controlReplyOK)
		}

		if err := w.Flush(); err != nil {
			return err
		}
	}

	return sc.Err()
}
