package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Save radar detections to a CSV log file.
 *
 * Description:	Two ways to name the file.
 *
 *		A directory plus a strftime pattern gives a new file
 *		each time the expanded name changes, daily by default.
 *
 *		A plain file name is used as is.
 *
 *		A header line is written when a file is created.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

var detectLogHeader = []string{"utime", "isotime", "freq", "flags", "width", "detects", "nol"}

type DetectLog struct {
	mu        sync.Mutex
	logger    *log.Logger
	dir       string
	pattern   *strftime.Strftime // nil when path is a single file.
	path      string
	fp        *os.File
	w         *csv.Writer
	openFname string
}

// NewDetectLog logs into dir with names from pattern, or, with an empty
// pattern, into the single file path.
func NewDetectLog(path string, pattern string, logger *log.Logger) (*DetectLog, error) {
	if logger == nil {
		logger = log.Default()
	}

	var dl = &DetectLog{logger: logger}

	if pattern == "" {
		dl.path = path
		return dl, nil
	}

	var p, patternErr = strftime.New(pattern)
	if patternErr != nil {
		return nil, fmt.Errorf("%w: detection log pattern %q: %w", ErrBadArgument, pattern, patternErr)
	}
	dl.pattern = p

	var stat, statErr = os.Stat(path)
	switch {
	case statErr == nil && !stat.IsDir():
		return nil, fmt.Errorf("%w: detection log location %q is not a directory", ErrBadArgument, path)
	case statErr != nil:
		var mkdirErr = os.MkdirAll(path, 0755)
		if mkdirErr != nil {
			return nil, fmt.Errorf("creating detection log directory: %w", mkdirErr)
		}
		logger.Info("detection log directory created", "dir", path)
	}
	dl.dir = path

	return dl, nil
}

func (dl *DetectLog) fileName(now time.Time) string {
	if dl.pattern == nil {
		return dl.path
	}

	return filepath.Join(dl.dir, dl.pattern.FormatString(now))
}

// openLocked makes sure the right file for now is open.  Caller holds
// dl.mu.
func (dl *DetectLog) openLocked(now time.Time) error {
	var fname = dl.fileName(now)

	if dl.fp != nil && fname == dl.openFname {
		return nil
	}

	dl.closeLocked()

	var _, statErr = os.Stat(fname)
	var alreadyThere = statErr == nil

	var f, openErr = os.OpenFile(fname, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if openErr != nil {
		return fmt.Errorf("opening detection log: %w", openErr)
	}

	dl.logger.Info("opening detection log", "file", fname)

	dl.fp = f
	dl.w = csv.NewWriter(f)
	dl.openFname = fname

	if !alreadyThere {
		if err := dl.w.Write(detectLogHeader); err != nil {
			return err
		}
	}

	return nil
}

// Write appends one detection.
func (dl *DetectLog) Write(now time.Time, ch Channel, detects uint64, nol []NOLEntry) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	var openErr = dl.openLocked(now)
	if openErr != nil {
		return openErr
	}

	var nolFreqs = make([]string, len(nol))
	for i, ent := range nol {
		nolFreqs[i] = strconv.Itoa(int(ent.Freq))
	}

	var record = []string{
		strconv.FormatInt(now.Unix(), 10),
		now.UTC().Format(time.RFC3339),
		strconv.Itoa(int(ch.Freq)),
		ch.Flags.String(),
		strconv.Itoa(int(ch.Width())),
		strconv.FormatUint(detects, 10),
		strings.Join(nolFreqs, " "),
	}

	if err := dl.w.Write(record); err != nil {
		return fmt.Errorf("writing detection log: %w", err)
	}

	dl.w.Flush()

	return dl.w.Error()
}

func (dl *DetectLog) closeLocked() {
	if dl.fp == nil {
		return
	}

	dl.w.Flush()
	dl.fp.Close() //nolint:gosec
	dl.fp = nil
	dl.w = nil
	dl.openFname = ""
}

func (dl *DetectLog) Close() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.closeLocked()
}
