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
	"math"
	"regexp"
	"strconv"
	"strings"
)

var _parseRegex = regexp.MustCompile(`(?i)^([+-]?[0-9]*\.?[0-9]+)\s*([KMGTPE]?B|[KMGTPE])$`)

var _units = map[string]Size{
	"B":  SizeUnit,
	"K":  SizeKilo,
	"KB": SizeKilo,
	"M":  SizeMega,
	"MB": SizeMega,
	"G":  SizeGiga,
	"GB": SizeGiga,
	"T":  SizeTera,
	"TB": SizeTera,
	"P":  SizePeta,
	"PB": SizePeta,
	"E":  SizeExa,
	"EB": SizeExa,
}

// Parse converts a human-readable size string (e.g. "5MB", "1.5GB", "100")
// into a Size. The unit suffix is case-insensitive and optional whitespace
// or surrounding quotes are trimmed before parsing. A bare number without a
// recognized unit suffix is rejected.
func Parse(s string) (Size, error) {
	t := strings.TrimSpace(s)
	t = strings.Trim(t, `"'`)
	t = strings.TrimSpace(t)

	if t == "" {
		return 0, fmt.Errorf("invalid size: empty value")
	}

	m := _parseRegex.FindStringSubmatch(t)
	if m == nil {
		if _, err := strconv.ParseFloat(t, 64); err == nil {
			return 0, fmt.Errorf("invalid size %q: missing unit", s)
		}
		return 0, fmt.Errorf("invalid size %q", s)
	}

	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if f < 0 {
		return 0, fmt.Errorf("invalid size %q: negative value not allowed", s)
	}

	unit, ok := _units[strings.ToUpper(m[2])]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, m[2])
	}

	v := f * float64(unit)
	if v > math.MaxUint64 {
		return 0, fmt.Errorf("invalid size %q: value overflows", s)
	}

	return Size(v), nil
}

// ParseByte is a byte-slice convenience wrapper around Parse.
func ParseByte(b []byte) (Size, error) {
	return Parse(string(b))
}

// ParseSize is a deprecated alias of Parse, kept for older call sites.
//
// Deprecated: use Parse instead.
func ParseSize(s string) (Size, error) {
	return Parse(s)
}
