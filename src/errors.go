package dfs

import "errors"

var (
	ErrUnknownDomain       = errors.New("unknown DFS domain")
	ErrBadRadarTable       = errors.New("invalid radar table")
	ErrTooManyRadarTypes   = errors.New("too many radar filter types")
	ErrTooManyOverlaps     = errors.New("too many radar filter types overlap one duration")
	ErrDetectionDisabled   = errors.New("radar detection disabled")
	ErrChannelInterference = errors.New("current channel already marked for radar")
	ErrShortReport         = errors.New("phy error report too short")
	ErrNoRadarIndication   = errors.New("phy error report has no radar indication")
	ErrSpuriousReport      = errors.New("spurious phy error report")
	ErrFalseDetect         = errors.New("phy error report matches false detect signature")
	ErrRSSITooLow          = errors.New("pulse rssi below every filter threshold")
	ErrDurationOutOfRange  = errors.New("pulse duration above every filter")
	ErrNoChannelState      = errors.New("no radar state for channel")
	ErrNOLFull             = errors.New("non-occupancy list full")
	ErrBadArgument         = errors.New("bad argument")
	ErrUnknownCommand      = errors.New("unknown control command")
)
