/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package clock

import (
	"time"
)

// Tick is a 31-bit wrapping millisecond counter.
type Tick uint32

// Eternity never expires. tick_add saturates to it and tick_is_expired
// always reports false against it.
const Eternity Tick = 0xFFFFFFFF

const wrapMask uint32 = 0x7FFFFFFF

// Add returns base advanced by ms milliseconds, wrapped at 31 bits.
// Eternity is absorbing: Add(Eternity, ms) == Eternity for any ms.
func Add(base Tick, ms uint32) Tick {
	if base == Eternity {
		return Eternity
	}
	return Tick((uint32(base) + ms) & wrapMask)
}

// IsExpired reports whether exp has passed relative to now, using modular
// comparison so wrap-around is handled correctly. Eternity never expires.
func IsExpired(exp, now Tick) bool {
	if exp == Eternity {
		return false
	}
	diff := int32(uint32(now)-uint32(exp)) << 1 >> 1
	return diff >= 0
}

// First returns the earlier of a and b, ignoring Eternity unless both are
// Eternity.
func First(a, b Tick) Tick {
	if a == Eternity {
		return b
	}
	if b == Eternity {
		return a
	}
	diff := int32(uint32(a)-uint32(b)) << 1 >> 1
	if diff <= 0 {
		return a
	}
	return b
}

// Remain returns the non-negative number of milliseconds until exp,
// relative to now. Eternity yields the sentinel value math.MaxUint32 as a
// "wait indefinitely" marker for callers that clamp their own timeout.
func Remain(now, exp Tick) uint32 {
	if exp == Eternity {
		return 0xFFFFFFFF
	}
	diff := int32(uint32(exp)-uint32(now)) << 1 >> 1
	if diff <= 0 {
		return 0
	}
	return uint32(diff)
}

// Source produces the current monotonic tick, cached and refreshed once per
// scheduler iteration so every handler in that iteration observes the same
// now_ms value (spec requires "a" now_ms per iteration, not per read).
type Source struct {
	start time.Time
	now   Tick
}

// NewSource creates a Source anchored at the current wall-clock instant.
func NewSource() *Source {
	return &Source{start: time.Now()}
}

// Refresh recomputes and caches the current tick from elapsed wall time.
func (s *Source) Refresh() Tick {
	elapsed := time.Since(s.start).Milliseconds()
	s.now = Tick(uint32(elapsed) & wrapMask)
	return s.now
}

// Now returns the tick cached by the last Refresh call.
func (s *Source) Now() Tick {
	return s.now
}
