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

package rules

import (
	"github.com/bits-and-blooms/bitset"
)

// Kind identifies one stage of the fixed analyser pipeline order: L4
// connection rules, the optional content-inspection delay, L7 content
// rules, backend-switching rules, then stick rules.
type Kind uint

const (
	KindTCPConnection Kind = iota
	KindInspectDelay
	KindTCPContent
	KindBackendSwitch
	KindStick

	kindCount
)

// Bitmap marks which analyser stages a frontend or backend has
// configured, so a session only evaluates the stages that apply to it.
type Bitmap struct {
	bits *bitset.BitSet
}

// NewBitmap builds a bitmap with the given kinds enabled.
func NewBitmap(kinds ...Kind) *Bitmap {
	b := &Bitmap{bits: bitset.New(uint(kindCount))}
	for _, k := range kinds {
		b.bits.Set(uint(k))
	}
	return b
}

func (b *Bitmap) Enable(k Kind)        { b.bits.Set(uint(k)) }
func (b *Bitmap) Disable(k Kind)       { b.bits.Clear(uint(k)) }
func (b *Bitmap) Enabled(k Kind) bool  { return b.bits.Test(uint(k)) }
