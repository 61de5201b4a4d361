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

package pidcontroller

import (
	"context"
	"math"
)

const _maxSteps = 256

// Controller is a simple PID step generator. It does not drive a real
// feedback loop: it uses the PID terms to compute a sequence of
// progressively adjusted step sizes between a start and end value.
type Controller struct {
	kp, ki, kd float64
}

// New returns a Controller configured with the given proportional, integral
// and derivative rates.
func New(rateP, rateI, rateD float64) *Controller {
	return &Controller{kp: rateP, ki: rateI, kd: rateD}
}

// RangeCtx returns the sequence of intermediate values between from and to,
// stepped according to the controller's PID rates. The first and last
// values are always from and to. If ctx is cancelled before the sequence
// converges, the values computed so far are returned.
func (c *Controller) RangeCtx(ctx context.Context, from, to float64) []float64 {
	res := []float64{from}

	if from == to {
		return res
	}

	dir := 1.0
	if to < from {
		dir = -1.0
	}

	var (
		integral float64
		prevErr  float64
		cur      = from
	)

	for i := 0; i < _maxSteps; i++ {
		select {
		case <-ctx.Done():
			return append(res, to)
		default:
		}

		remain := (to - cur) * dir
		if remain <= 0 {
			break
		}

		errVal := remain
		integral += errVal
		deriv := errVal - prevErr
		prevErr = errVal

		step := c.kp*errVal + c.ki*integral + c.kd*deriv
		if step <= 0 {
			step = remain / 2
		}

		cur += dir * math.Min(step, remain)
		res = append(res, cur)

		if remain-step <= 0 {
			break
		}
	}

	if res[len(res)-1] != to {
		res = append(res, to)
	}

	return res
}
