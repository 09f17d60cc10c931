package dfs

import (
	"fmt"
	"strings"
)

// PhyErrParams are the radar PHY error thresholds programmed into the
// baseband.  A negative value leaves the hardware default.
type PhyErrParams struct {
	FirPwr  int32 `yaml:"firpwr"`
	RRSSI   int32 `yaml:"rrssi"`
	Height  int32 `yaml:"height"`
	PRSSI   int32 `yaml:"prssi"`
	Inband  int32 `yaml:"inband"`
	RelPwr  int32 `yaml:"relpwr"`
	RelStep int32 `yaml:"relstep"`
	MaxLen  int32 `yaml:"maxlen"`
}

// Param names one field of PhyErrParams for the control interface.
type Param int

const (
	ParamFirPwr Param = iota + 1
	ParamRRSSI
	ParamHeight
	ParamPRSSI
	ParamInband
	ParamRelPwr
	ParamRelStep
	ParamMaxLen
)

var paramNames = []string{
	ParamFirPwr:  "firpwr",
	ParamRRSSI:   "rrssi",
	ParamHeight:  "height",
	ParamPRSSI:   "prssi",
	ParamInband:  "inband",
	ParamRelPwr:  "relpwr",
	ParamRelStep: "relstep",
	ParamMaxLen:  "maxlen",
}

func (p Param) String() string {
	if p < ParamFirPwr || p > ParamMaxLen {
		return fmt.Sprintf("param(%d)", int(p))
	}

	return paramNames[p]
}

func ParseParam(s string) (Param, error) {
	var want = strings.ToLower(s)
	for p := ParamFirPwr; p <= ParamMaxLen; p++ {
		if paramNames[p] == want {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: threshold %q", ErrBadArgument, s)
}

func (pe *PhyErrParams) field(p Param) (*int32, error) {
	switch p {
	case ParamFirPwr:
		return &pe.FirPwr, nil
	case ParamRRSSI:
		return &pe.RRSSI, nil
	case ParamHeight:
		return &pe.Height, nil
	case ParamPRSSI:
		return &pe.PRSSI, nil
	case ParamInband:
		return &pe.Inband, nil
	case ParamRelPwr:
		return &pe.RelPwr, nil
	case ParamRelStep:
		return &pe.RelStep, nil
	case ParamMaxLen:
		return &pe.MaxLen, nil
	}

	return nil, fmt.Errorf("%w: threshold %d", ErrBadArgument, int(p))
}

func (pe *PhyErrParams) Set(p Param, v int32) error {
	var f, err = pe.field(p)
	if err != nil {
		return err
	}

	*f = v

	return nil
}

func (pe *PhyErrParams) Get(p Param) (int32, error) {
	var f, err = pe.field(p)
	if err != nil {
		return 0, err
	}

	return *f, nil
}

func (pe PhyErrParams) String() string {
	var sb strings.Builder
	for p := ParamFirPwr; p <= ParamMaxLen; p++ {
		var v, _ = pe.Get(p)
		if p > ParamFirPwr {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%d", p, v)
	}

	return sb.String()
}
