package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Decide whether a filter's delay line holds a radar burst.
 *
 * Description:	Variable PRI filters score every PRI in the delay line
 *		by how many other entries lie within the PRI margin of
 *		it.  The best PRI, refined by averaging its neighbours,
 *		is then checked pulse by pulse.
 *
 *		Fixed PRI filters instead lay a comb of expected arrival
 *		windows over the pulse line.
 *
 *---------------------------------------------------------------*/

// priMargin is the PRI tolerance.  While the extension channel is loaded
// the margin tightens and filterThreshold grows, so a busy neighbour has
// to produce cleaner and longer trains to trigger a filter.
func (e *Engine) priMargin(fixedPattern bool) uint32 {
	var margin uint32 = DefaultPRIMargin
	if fixedPattern {
		margin = FixedPatternPRIMargin
	}

	var busy = e.rinfo.extChanBusy
	if busy > ExtChanLoadingThresh {
		margin -= (uint32(busy-ExtChanLoadingThresh) * margin) / 100
	}

	return margin
}

// filterThreshold is the pulse count a filter needs, raised while the
// extension channel is loaded.
func (e *Engine) filterThreshold(rf *RadarFilter) uint32 {
	var thresh = rf.Threshold

	var busy = e.rinfo.extChanBusy
	if busy > ExtChanLoadingThresh {
		thresh += (uint32(busy-ExtChanLoadingThresh) * thresh) / 100
	}

	return thresh
}

// binCheck runs the variable or fixed PRI check on a filter after a pulse
// was added to its delay line.
func (e *Engine) binCheck(rf *RadarFilter, deltaT, width uint32) bool {
	var dl = &rf.dl

	if dl.num+1 < int(rf.Threshold) || deltaT > rf.FilterLen {
		return false
	}

	if rf.PatternType == PatternFixed {
		var found = e.fixedPatternCheck(rf, width)
		if found {
			dl.num = 0
		}
		return found
	}

	var margin = e.priMargin(false)

	var refPRI, refDur, score, ok = referencePRI(dl, rf, margin)
	if !ok {
		return false
	}

	var numPulses = binPRICheck(dl, rf, refPRI, refDur, margin)
	var thresh = e.filterThreshold(rf)

	if e.debugEnabled(DebugDFS1) {
		e.log.Debug("bin check", "filter", rf.ID, "ref_pri", refPRI, "ref_dur", refDur,
			"score", score, "pulses", numPulses, "thresh", thresh)
	}

	return numPulses >= thresh
}

// referencePRI picks the PRI with the most support in the delay line.
// Ties go to the lower PRI.  With too little support the lowest PRI is
// used instead.
func referencePRI(dl *DelayLine, rf *RadarFilter, margin uint32) (refPRI, refDur uint32, score int, ok bool) {
	var scores [MaxDelayLineSize]int

	var lowIndex = -1
	var lowPRI uint32
	for n := 0; n < dl.num; n++ {
		var pri = dl.at(n).pri
		if pri != 0 && (lowIndex < 0 || pri < lowPRI) {
			lowPRI = pri
			lowIndex = n
		}
	}

	if lowIndex < 0 {
		return 0, 0, 0, false
	}

	for n := 0; n < dl.num; n++ {
		var ref = dl.at(n).pri
		if ref == 0 || ref < rf.MinPRI || ref > rf.MaxPRI {
			continue
		}

		for i := 0; i < dl.num; i++ {
			var search = dl.at(i).pri
			if absDiff(search, ref) < margin {
				scores[n]++
			} else if rf.IgnorePRIWindow > 0 &&
				(absDiff(search, 2*ref) < margin || absDiff(search, 3*ref) < margin) {
				scores[n]++
			}
		}

		if scores[n] > int(rf.Threshold) {
			break
		}
	}

	var highScore = 0
	var highIndex = -1
	for n := 0; n < dl.num; n++ {
		if scores[n] == 0 {
			continue
		}

		if scores[n] > highScore ||
			(scores[n] == highScore && dl.at(n).pri < dl.at(highIndex).pri) {
			highScore = scores[n]
			highIndex = n
		}
	}

	var lowPRIChk = 3
	if rf.IgnorePRIWindow > 0 {
		lowPRIChk = int(rf.Threshold>>1) + 1
	}

	var index = highIndex
	if highScore < lowPRIChk {
		index = lowIndex
	}

	refPRI = dl.at(index).pri
	refDur = dl.at(index).dur
	score = scores[index]

	// Average the PRIs close to the reference.
	var sum, count uint64
	for n := 0; n < dl.num; n++ {
		var pri = dl.at(n).pri
		if absDiff(pri, refPRI) < margin {
			sum += uint64(pri)
			count++
		}
	}

	if count > 0 {
		refPRI = uint32((sum + count/2) / count)
	}

	if rf.FixedPRI {
		refPRI = (rf.MinPRI + rf.MaxPRI) / 2
	}

	return refPRI, refDur, score, true
}

// binPRICheck counts delay line entries consistent with refPRI and
// refDur.  The newest pulse is always counted.
func binPRICheck(dl *DelayLine, rf *RadarFilter, refPRI, refDur, margin uint32) uint32 {
	var numPulses uint32 = 1

	if refPRI == 0 || refPRI < rf.MinPRI || refPRI > rf.MaxPRI {
		return 0
	}

	var durMargin uint32 = 4
	if rf.MaxDur >= 10 {
		durMargin = 6
	}

	var missedOK = rf.IgnorePRIWindow > 0 && rf.PatternType != PatternStaggered
	var checkVariance = rf.IgnorePRIWindow == 0 && rf.PatternType != PatternStaggered

	var anchor uint64
	var anchored = false

	for n := 0; n < dl.num-1; n++ {
		var de = dl.at(n)
		var primatch = false

		if missedOK {
			for j := uint32(1); j <= rf.NumPulses; j++ {
				if absDiff(j*refPRI, de.pri) <= 2*margin {
					primatch = true
					break
				}
			}
		} else {
			primatch = absDiff(refPRI, de.pri) <= margin
		}

		if !primatch || absDiff(refDur, de.dur) > durMargin {
			continue
		}

		if checkVariance {
			// Matching pulses must also sit on one comb, not just
			// have plausible gaps.
			if !anchored {
				anchor = de.ts
				anchored = true
			} else if !onPRIComb(de.ts-anchor, refPRI, margin) {
				continue
			}
		}

		numPulses++
	}

	return numPulses
}

// onPRIComb reports whether span is a whole number of PRIs, allowing the
// margin to accumulate once per PRI.
func onPRIComb(span uint64, pri, margin uint32) bool {
	var k = (span + uint64(pri)/2) / uint64(pri)
	var expected = k * uint64(pri)
	var slack = uint64(margin) * max(k, 1)

	return span+slack >= expected && span <= expected+slack
}

// fixedPatternCheck lays windows at multiples of the nominal PRI over the
// pulse line, starting from the pulse NumPulses back, and counts the
// windows holding a pulse of the right width.
func (e *Engine) fixedPatternCheck(rf *RadarFilter, width uint32) bool {
	var pl = &e.pulses

	var numPulses = int(rf.NumPulses)
	if pl.num < numPulses {
		numPulses = pl.num
	}

	if numPulses == 0 {
		return false
	}

	var refPRI = uint64(rf.MinPRI+rf.MaxPRI) / 2
	var margin = uint64(e.priMargin(true))
	var start = pl.back(numPulses - 1).ts

	var score uint32
	var next = pl.num - numPulses

	for n := 0; n < numPulses; n++ {
		var expected = start + refPRI*uint64(n)
		var slack = margin + uint64(n)
		var windowStart = expected - min(expected, slack)
		var windowEnd = expected + slack

		for ; next < pl.num; next++ {
			var p = pl.at(next)
			if p.ts < windowStart {
				continue
			}
			if p.ts > windowEnd {
				break
			}
			if absDiff(p.dur, width) <= 2 || p.dur == 1 {
				score++
				next++
				break
			}
		}
	}

	var thresh = e.filterThreshold(rf)

	if e.debugEnabled(DebugDFS2) {
		e.log.Debug("fixed pattern check", "filter", rf.ID, "ref_pri", refPRI,
			"pulses", numPulses, "score", score, "thresh", thresh)
	}

	return score >= thresh
}
