// elImpute: a high-performance tool for imputing GBS genotypes.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/exascience/elimpute/blob/master/LICENSE.txt>.

package impute

import "math/bits"

// Window is a range of blocks around a focus block.
type Window struct {
	Start, Focus, End int
}

// MinorWindow grows a window around the focus block, one block at a
// time on the side closest to the focus, until it contains minMinor
// minor alleles or minMinor*ratio major alleles, or covers all
// blocks. It fails if the focus block contains no data.
func MinorWindow(major, minor []uint64, focus, minMinor, ratio int) (w Window, ok bool) {
	if major[focus]|minor[focus] == 0 {
		return w, false
	}
	last := len(major) - 1
	w = Window{Start: focus, Focus: focus, End: focus}
	majorCount := bits.OnesCount64(major[focus])
	minorCount := bits.OnesCount64(minor[focus])
	minMajor := minMinor * ratio
	for minorCount < minMinor && majorCount < minMajor {
		if w.Start == 0 && w.End == last {
			break
		}
		preferStart := focus-w.Start < w.End-focus
		if w.Start == 0 {
			preferStart = false
		}
		if w.End == last {
			preferStart = true
		}
		if preferStart {
			w.Start--
			minorCount += bits.OnesCount64(minor[w.Start])
			majorCount += bits.OnesCount64(major[w.Start])
		} else {
			w.End++
			minorCount += bits.OnesCount64(minor[w.End])
			majorCount += bits.OnesCount64(major[w.End])
		}
	}
	return w, true
}
