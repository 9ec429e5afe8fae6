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

package genotype

import "fmt"

// Allele codes stored in each nibble of a diploid call.
const (
	AlleleA byte = iota
	AlleleC
	AlleleG
	AlleleT
	AlleleInsertion
	AlleleGap
	AlleleUnknown byte = 0xF
)

// Special diploid calls.
const (
	// Unknown is the diploid call for a missing genotype.
	Unknown byte = 0xFF
	// Gap is the homozygous gap call.
	Gap byte = 0x55
)

var alleleChars = [16]byte{'A', 'C', 'G', 'T', '+', '-', 'N', 'N', 'N', 'N', 'N', 'N', 'N', 'N', 'N', 'N'}

// Diploid combines two allele codes into one call.
func Diploid(allele1, allele2 byte) byte {
	return allele1<<4 | allele2&0xF
}

// Alleles splits a call into its two allele codes.
func Alleles(call byte) (allele1, allele2 byte) {
	return call >> 4, call & 0xF
}

// IsHeterozygous returns true if the two alleles of the call differ.
func IsHeterozygous(call byte) bool {
	return call>>4 != call&0xF
}

// IsPartiallyEqual returns true if the calls share at least one allele.
func IsPartiallyEqual(call1, call2 byte) bool {
	low1, high1 := call1&0xF, call1>>4
	low2, high2 := call2&0xF, call2>>4
	return low1 == low2 || high1 == low2 || low1 == high2 || high1 == high2
}

// UnphasedNoHets combines two homozygous donor calls into the call of
// their offspring. The result is Unknown if either donor call is
// unknown or heterozygous.
func UnphasedNoHets(call1, call2 byte) byte {
	if call1 == Unknown || call2 == Unknown {
		return Unknown
	}
	if IsHeterozygous(call1) || IsHeterozygous(call2) {
		return Unknown
	}
	if call1 == call2 {
		return call1
	}
	a, b := call1&0xF, call2&0xF
	if a < b {
		return a<<4 | b
	}
	return b<<4 | a
}

var iupacCalls = map[byte]byte{
	'A': Diploid(AlleleA, AlleleA),
	'C': Diploid(AlleleC, AlleleC),
	'G': Diploid(AlleleG, AlleleG),
	'T': Diploid(AlleleT, AlleleT),
	'R': Diploid(AlleleA, AlleleG),
	'Y': Diploid(AlleleC, AlleleT),
	'S': Diploid(AlleleC, AlleleG),
	'W': Diploid(AlleleA, AlleleT),
	'K': Diploid(AlleleG, AlleleT),
	'M': Diploid(AlleleA, AlleleC),
	'+': Diploid(AlleleInsertion, AlleleInsertion),
	'-': Gap,
	'0': Diploid(AlleleInsertion, AlleleGap),
	'N': Unknown,
}

var iupacChars [256]byte

func init() {
	for i := range iupacChars {
		iupacChars[i] = 'N'
	}
	for ch, call := range iupacCalls {
		iupacChars[call] = ch
		a1, a2 := Alleles(call)
		iupacChars[Diploid(a2, a1)] = ch
	}
}

func alleleOf(ch byte) (byte, bool) {
	switch ch {
	case 'A', 'a':
		return AlleleA, true
	case 'C', 'c':
		return AlleleC, true
	case 'G', 'g':
		return AlleleG, true
	case 'T', 't':
		return AlleleT, true
	case '+':
		return AlleleInsertion, true
	case '-':
		return AlleleGap, true
	case 'N', 'n':
		return AlleleUnknown, true
	}
	return 0, false
}

// ParseCall parses a call in IUPAC notation ("R"), as a pair of
// nucleotides ("AG"), or as a slash-separated pair ("A/G").
func ParseCall(s string) (byte, error) {
	switch len(s) {
	case 1:
		ch := s[0]
		if 'a' <= ch && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if call, ok := iupacCalls[ch]; ok {
			return call, nil
		}
	case 2:
		a1, ok1 := alleleOf(s[0])
		a2, ok2 := alleleOf(s[1])
		if ok1 && ok2 {
			if a1 == AlleleUnknown || a2 == AlleleUnknown {
				return Unknown, nil
			}
			return Diploid(a1, a2), nil
		}
	case 3:
		if s[1] == '/' {
			return ParseCall(s[:1] + s[2:])
		}
	}
	return Unknown, fmt.Errorf("invalid genotype call %q", s)
}

// CallString returns the IUPAC letter for a call.
func CallString(call byte) byte {
	return iupacChars[call]
}

// AlleleString returns the nucleotide letter for an allele code.
func AlleleString(allele byte) byte {
	return alleleChars[allele&0xF]
}
