//go:build linux

package dfs

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole(t *testing.T) {
	var link = filepath.Join(t.TempDir(), "dfsctl")

	var c, err = OpenConsole(link)
	if err != nil {
		t.Skipf("no pseudo terminals here: %s", err)
	}

	assert.Equal(t, link, c.Name())
	var target, linkErr = os.Readlink(link)
	require.NoError(t, linkErr)
	assert.Equal(t, c.slave.Name(), target)

	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)

	var ctx, cancel = context.WithCancel(context.Background())
	var served = make(chan struct{})
	go func() {
		c.Serve(ctx, rig.engine)
		close(served)
	}()

	var replies = make(chan string, 4)
	go func() {
		var r = bufio.NewReader(c.slave)
		for {
			var line, readErr = r.ReadString('\n')
			if readErr != nil {
				return
			}
			replies <- line
		}
	}()

	_, err = io.WriteString(c.slave, "detects\n")
	require.NoError(t, err)

	for _, want := range []string{"detects 0\n", "ok\n"} {
		select {
		case got := <-replies:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("no %q from the console", want)
		}
	}

	cancel()

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("console did not stop")
	}

	var _, statErr = os.Lstat(link)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "symlink removed")
}
