package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Record and replay radar PHY error reports.
 *
 * Description:	A capture is CSV, one report per line:
 *
 *		  full_tsf,rx_tstamp,rssi,ext_rssi,data
 *
 *		data is the report payload in hex.  Lines starting with
 *		'#' are comments.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const captureHeader = "# full_tsf,rx_tstamp,rssi,ext_rssi,data\n"

type CaptureWriter struct {
	w        io.Writer
	csv      *csv.Writer
	wroteHdr bool
}

func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{w: w, csv: csv.NewWriter(w)}
}

func (cw *CaptureWriter) Write(r *PhyErrReport) error {
	if !cw.wroteHdr {
		if _, err := io.WriteString(cw.w, captureHeader); err != nil {
			return err
		}
		cw.wroteHdr = true
	}

	return cw.csv.Write([]string{
		strconv.FormatUint(r.FullTSF, 10),
		strconv.FormatUint(uint64(r.RxTS), 10),
		strconv.Itoa(int(r.RSSI)),
		strconv.Itoa(int(r.ExtRSSI)),
		hex.EncodeToString(r.Data),
	})
}

func (cw *CaptureWriter) Flush() error {
	cw.csv.Flush()
	return cw.csv.Error()
}

type CaptureReader struct {
	csv  *csv.Reader
	line int
}

func NewCaptureReader(r io.Reader) *CaptureReader {
	var cr = csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 5
	cr.ReuseRecord = true

	return &CaptureReader{csv: cr}
}

// Read returns the next report, or io.EOF.
func (cr *CaptureReader) Read() (*PhyErrReport, error) {
	var rec, err = cr.csv.Read()
	if err != nil {
		return nil, err
	}
	cr.line++

	var fullTSF, tsfErr = strconv.ParseUint(rec[0], 10, 64)
	var rxTS, tsErr = strconv.ParseUint(rec[1], 10, 32)
	var rssi, rssiErr = strconv.ParseUint(rec[2], 10, 8)
	var extRSSI, extErr = strconv.ParseUint(rec[3], 10, 8)
	var data, dataErr = hex.DecodeString(rec[4])

	var parseErr = errors.Join(tsfErr, tsErr, rssiErr, extErr, dataErr)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: capture record %d: %w", ErrBadArgument, cr.line, parseErr)
	}

	return &PhyErrReport{
		Data:    data,
		FullTSF: fullTSF,
		RxTS:    uint32(rxTS),
		RSSI:    uint8(rssi),
		ExtRSSI: uint8(extRSSI),
	}, nil
}

// ReplayResult counts what happened to a replayed capture.
type ReplayResult struct {
	Reports  int
	Rejected int
	Detects  int
}

// Replay feeds a capture through the engine, sweeping after every queued
// report so a detection takes effect before the next pulse arrives.
// onReport, if set, sees every report before the engine does.
func (e *Engine) Replay(ctx context.Context, cr *CaptureReader, onReport func(*PhyErrReport)) (ReplayResult, error) {
	var res ReplayResult

	for ctx.Err() == nil {
		var r, err = cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}

		res.Reports++

		if onReport != nil {
			onReport(r)
		}

		if e.ProcessPhyErr(r) != nil {
			res.Rejected++
			continue
		}

		if e.ProcessRadarEvents() {
			res.Detects++
		}
	}

	return res, ctx.Err()
}
