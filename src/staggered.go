package dfs

// Staggered radars cycle through two or three PRIs.  The delay line then
// holds distinct PRI clusters, and a detection needs the two strongest
// clusters to each reach the filter threshold.

// isPRIMultiple reports whether samplePRI is close to a small multiple of
// refPRI, as when pulses are missed.
func isPRIMultiple(samplePRI, refPRI uint32) bool {
	if refPRI == 0 || samplePRI < refPRI {
		return false
	}

	for k := uint32(1); k <= maxAllowedMissed+1; k++ {
		if absDiff(samplePRI, k*refPRI) <= priMultipleTolerance {
			return true
		}
	}

	return false
}

// isUniquePRI reports whether refPRI starts a new cluster: it is at least
// the minimum distance from each known cluster and not a multiple of one.
// Zero clusters are unset and ignored.
func isUniquePRI(highest, middle, lowest, refPRI uint32) bool {
	for _, pri := range [3]uint32{highest, middle, lowest} {
		if pri == 0 {
			continue
		}

		if absDiff(pri, refPRI) < staggeredMinPRIDistance || isPRIMultiple(refPRI, pri) {
			return false
		}
	}

	return true
}

func (e *Engine) staggeredCheck(rf *RadarFilter, deltaT, width uint32) bool {
	var dl = &rf.dl

	if dl.num+1 < int(rf.Threshold) || deltaT > rf.FilterLen {
		return false
	}

	var margin uint32 = StaggeredPRIMargin

	var scores [MaxDelayLineSize]int
	for n := 0; n < dl.num; n++ {
		var ref = dl.at(n).pri
		if ref == 0 || ref < rf.MinPRI || ref > rf.MaxPRI {
			continue
		}

		for i := 0; i < dl.num; i++ {
			if absDiff(dl.at(i).pri, ref) < margin {
				scores[n]++
			}
		}
	}

	// Pick the strongest clusters, each unique against those already
	// picked.  Ties go to the lower PRI.
	var picked [3]uint32
	var pickedIndex = [3]int{-1, -1, -1}

	for c := 0; c < len(picked); c++ {
		var best = -1
		for n := 0; n < dl.num; n++ {
			if scores[n] == 0 || !isUniquePRI(picked[0], picked[1], picked[2], dl.at(n).pri) {
				continue
			}

			if best < 0 || scores[n] > scores[best] ||
				(scores[n] == scores[best] && dl.at(n).pri < dl.at(best).pri) {
				best = n
			}
		}

		if best < 0 {
			break
		}

		picked[c] = dl.at(best).pri
		pickedIndex[c] = best
	}

	if pickedIndex[0] < 0 || pickedIndex[1] < 0 {
		return false
	}

	var thresh = e.filterThreshold(rf)

	var high = binPRICheck(dl, rf, picked[0], dl.at(pickedIndex[0]).dur, margin)
	var mid = binPRICheck(dl, rf, picked[1], dl.at(pickedIndex[1]).dur, margin)

	var low uint32
	if pickedIndex[2] >= 0 {
		low = binPRICheck(dl, rf, picked[2], dl.at(pickedIndex[2]).dur, margin)
	}

	if e.debugEnabled(DebugDFS1) {
		e.log.Debug("staggered check", "filter", rf.ID, "width", width,
			"high_pri", picked[0], "high", high, "mid_pri", picked[1], "mid", mid,
			"low_pri", picked[2], "low", low, "thresh", thresh)
	}

	return high >= thresh && mid >= thresh
}
