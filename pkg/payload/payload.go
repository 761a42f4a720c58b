// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package payload generates the files fed to the device during a campaign.
// Generation is pure: a Generator built from a given seed always yields the
// same sequence, so a failing campaign can be replayed.
package payload

import (
	"fmt"
	"math/rand"
	"unicode/utf8"
)

const (
	DefaultMinSize = 1
	DefaultMaxSize = 65536
)

type Kind int

const (
	Binary Kind = iota
	Printable
	Unicode
	Pattern
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Printable:
		return "ascii"
	case Unicode:
		return "unicode"
	case Pattern:
		return "pattern"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Payload is immutable once generated; Bytes returns the backing slice, which
// callers must not modify.
type Payload struct {
	kind Kind
	size int //requested size, the upper bound on len(data)
	data []byte
}

func (p Payload) Kind() Kind     { return p.kind }
func (p Payload) Size() int      { return p.size }
func (p Payload) Len() int       { return len(p.data) }
func (p Payload) Bytes() []byte  { return p.data }
func (p Payload) String() string { return fmt.Sprintf("%s/%d", p.kind, len(p.data)) }

type Generator struct {
	min, max int
	rng      *rand.Rand
}

// New returns a generator producing payloads of min..max bytes. Sizes are
// clamped so that 1 <= min <= max.
func New(seed int64, min, max int) *Generator {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &Generator{min: min, max: max, rng: rand.New(rand.NewSource(seed))}
}

// Generate picks a size uniformly in [min, max] and a kind uniformly among
// the four kinds. The result is never empty and never longer than the size.
func (g *Generator) Generate() Payload {
	size := g.min + g.rng.Intn(g.max-g.min+1)
	kind := Kind(g.rng.Intn(int(numKinds)))
	var data []byte
	switch kind {
	case Binary:
		data = g.binary(size)
	case Printable:
		data = g.printable(size)
	case Unicode:
		data = g.unicode(size)
	case Pattern:
		data = g.pattern(size)
	}
	return Payload{kind: kind, size: size, data: data}
}

func (g *Generator) binary(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(g.rng.Intn(256))
	}
	return b
}

// PrintableAlphabet matches python's string.printable.
const PrintableAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" + " \t\n\r\x0b\x0c"

func (g *Generator) printable(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = PrintableAlphabet[g.rng.Intn(len(PrintableAlphabet))]
	}
	return b
}

type runeRange struct{ lo, hi rune }

// UnicodeRanges are the blocks sampled for Unicode payloads, including
// characters known to trip up naive text handling.
var UnicodeRanges = []runeRange{
	{0x0000, 0x007f},   //Basic Latin
	{0x0080, 0x00ff},   //Latin-1 Supplement
	{0x0100, 0x017f},   //Latin Extended-A
	{0x2000, 0x206f},   //General Punctuation
	{0x2200, 0x22ff},   //Mathematical Operators
	{0x2600, 0x26ff},   //Miscellaneous Symbols
	{0x1f600, 0x1f64f}, //Emoticons
}

// Draws up to size code points, stopping before the encoding would exceed
// size bytes. Code points that cannot be encoded become U+FFFD.
func (g *Generator) unicode(size int) []byte {
	b := make([]byte, 0, size)
	for i := 0; i < size; i++ {
		r := g.codePoint(UnicodeRanges[g.rng.Intn(len(UnicodeRanges))])
		if !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		if len(b)+utf8.RuneLen(r) > size {
			break
		}
		b = utf8.AppendRune(b, r)
	}
	if len(b) == 0 {
		//first code point was wider than size; Basic Latin always fits
		b = append(b, byte(g.codePoint(UnicodeRanges[0])))
	}
	return b
}

func (g *Generator) codePoint(rr runeRange) rune {
	return rr.lo + rune(g.rng.Intn(int(rr.hi-rr.lo)+1))
}

// Patterns aimed at buffer, format string, path and parser handling.
var Patterns = []string{
	"A",   //repeated character
	"%s",  //format string
	"%n",  //format string
	"/",   //path traversal
	"\\",  //path traversal
	".",   //path traversal
	"%00", //null byte injection
	"0x0", //very large number: "0x" then zeros
}

// PatternAlphabet holds every byte a pattern payload can contain.
const PatternAlphabet = "A%sn/\\.0x"

func (g *Generator) pattern(size int) []byte {
	return Materialize(Patterns[g.rng.Intn(len(Patterns))], size)
}

// Materialize expands a template from Patterns to at most size bytes.
// Multi-byte templates repeat size/len times (integer division); a template
// longer than size is truncated so the result is never empty. The numeric
// template is "0x" followed by zeros filling the remaining size.
func Materialize(tmpl string, size int) []byte {
	if size < 1 {
		size = 1
	}
	if tmpl == "0x0" {
		b := make([]byte, size)
		for i := range b {
			b[i] = '0'
		}
		copy(b, "0x")
		return b
	}
	n := size / len(tmpl)
	if n == 0 {
		return []byte(tmpl[:size])
	}
	b := make([]byte, 0, n*len(tmpl))
	for i := 0; i < n; i++ {
		b = append(b, tmpl...)
	}
	return b
}
