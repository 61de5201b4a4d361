/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package size

import (
	"fmt"
	"strings"
)

const (
	FormatRound0 = "%.0f"
	FormatRound1 = "%.1f"
	FormatRound2 = "%.2f"
	FormatRound3 = "%.3f"
)

// scale returns the largest unit threshold the size crosses along with the
// divisor and two-letter code to use for formatting.
func (s Size) scale() (Size, string) {
	switch {
	case s >= SizeExa:
		return SizeExa, "E"
	case s >= SizePeta:
		return SizePeta, "P"
	case s >= SizeTera:
		return SizeTera, "T"
	case s >= SizeGiga:
		return SizeGiga, "G"
	case s >= SizeMega:
		return SizeMega, "M"
	case s >= SizeKilo:
		return SizeKilo, "K"
	default:
		return SizeUnit, ""
	}
}

// Unit returns the two (or three, with a custom rune) letter unit code for
// the size, e.g. "B", "KB", "MB". A non-zero rune replaces the trailing 'B'.
func (s Size) Unit(r rune) string {
	_, code := s.scale()

	suffix := "B"
	if r != 0 {
		suffix = string(r)
	}

	return code + suffix
}

// Code is an alias of Unit that falls back to the package default unit rune
// when r is zero.
func (s Size) Code(r rune) string {
	if r == 0 {
		r = _defaultUnit
	}
	return s.Unit(r)
}

// Format renders the size divided down to its natural unit using the given
// fmt verb (e.g. FormatRound2), followed by the unit code.
func (s Size) Format(verb string) string {
	div, _ := s.scale()
	return strings.TrimSpace(fmt.Sprintf(verb, s.Float64()/div.Float64()))
}

// String renders the size with two decimals of precision and its unit code,
// e.g. "5.50 MB".
func (s Size) String() string {
	return s.Format(FormatRound2) + " " + s.Unit(0)
}
