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

// Size represents a count of bytes.
type Size uint64

const (
	SizeNul  Size = 0
	SizeUnit Size = 1
	SizeKilo Size = SizeUnit << 10
	SizeMega Size = SizeKilo << 10
	SizeGiga Size = SizeMega << 10
	SizeTera Size = SizeGiga << 10
	SizePeta Size = SizeTera << 10
	SizeExa  Size = SizePeta << 10

	// aliases matching common shorthand used across the codebase.
	KiB = SizeKilo
	MiB = SizeMega
	GiB = SizeGiga
	TiB = SizeTera
	PiB = SizePeta
	EiB = SizeExa
)

var _defaultUnit rune = 'B'

// SetDefaultUnit changes the rune appended by Code when the caller passes 0.
func SetDefaultUnit(r rune) {
	if r != 0 {
		_defaultUnit = r
	}
}

// Add increments the size by n bytes.
func (s *Size) Add(n uint64) {
	*s = Size(uint64(*s) + n)
}

// Sub decrements the size by n bytes, floored at zero.
func (s *Size) Sub(n uint64) {
	if uint64(*s) < n {
		*s = 0
		return
	}
	*s = Size(uint64(*s) - n)
}

// Uint64 returns the size as a uint64 byte count.
func (s Size) Uint64() uint64 {
	return uint64(s)
}

// Int64 returns the size as an int64 byte count, clamped to math.MaxInt64.
func (s Size) Int64() int64 {
	const maxInt64 = uint64(1<<63 - 1)
	if uint64(s) > maxInt64 {
		return int64(maxInt64)
	}
	return int64(s)
}

// Float64 returns the size as a float64 byte count.
func (s Size) Float64() float64 {
	return float64(s)
}

// KiloBytes returns the size expressed as a whole number of kilobytes.
func (s Size) KiloBytes() uint64 {
	return uint64(s / SizeKilo)
}

// MegaBytes returns the size expressed as a whole number of megabytes.
func (s Size) MegaBytes() uint64 {
	return uint64(s / SizeMega)
}

// GigaBytes returns the size expressed as a whole number of gigabytes.
func (s Size) GigaBytes() uint64 {
	return uint64(s / SizeGiga)
}

// TeraBytes returns the size expressed as a whole number of terabytes.
func (s Size) TeraBytes() uint64 {
	return uint64(s / SizeTera)
}

// PetaBytes returns the size expressed as a whole number of petabytes.
func (s Size) PetaBytes() uint64 {
	return uint64(s / SizePeta)
}

// ExaBytes returns the size expressed as a whole number of exabytes.
func (s Size) ExaBytes() uint64 {
	return uint64(s / SizeExa)
}
