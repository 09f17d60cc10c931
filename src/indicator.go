package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Drive a GPIO line, usually an LED, while any channel is
 *		on the NOL.
 *
 * Description:	Uses the Linux GPIO character device, e.g.
 *
 *			indicator:
 *			  chip: gpiochip0
 *			  line: 17
 *
 *		"gpioinfo" lists the chips and their lines.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

// indicatorLine is the part of *gpiocdev.Line we use.
type indicatorLine interface {
	SetValue(value int) error
	Close() error
}

type Indicator struct {
	mu     sync.Mutex
	line   indicatorLine
	logger *log.Logger
	lit    bool
}

// OpenIndicator requests offset on chip as an output, initially off.
func OpenIndicator(chip string, offset int, logger *log.Logger) (*Indicator, error) {
	var l, err = gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("dfsd"))
	if err != nil {
		return nil, fmt.Errorf("requesting GPIO %s line %d: %w", chip, offset, err)
	}

	return newIndicator(l, logger), nil
}

func newIndicator(l indicatorLine, logger *log.Logger) *Indicator {
	if logger == nil {
		logger = log.Default()
	}

	return &Indicator{line: l, logger: logger}
}

// Update lights the indicator if nol has any entries.
func (ind *Indicator) Update(nol []NOLEntry) {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	var lit = len(nol) > 0
	if lit == ind.lit {
		return
	}

	var v = 0
	if lit {
		v = 1
	}

	if err := ind.line.SetValue(v); err != nil {
		ind.logger.Error("setting radar indicator", "err", err)
		return
	}

	ind.lit = lit
}

func (ind *Indicator) Close() error {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	if ind.lit {
		ind.line.SetValue(0) //nolint:errcheck
		ind.lit = false
	}

	return ind.line.Close()
}
