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
	"github.com/nabbar/golib/session"
)

// SwitchRule assigns a backend when Match fires; unlike Rule it never
// terminates the chain itself — backend assignment keeps evaluation
// going so later stick/content rules can still run.
type SwitchRule struct {
	Match   Predicate
	Backend string
}

// Chain holds every configured rule for one frontend and builds the
// ordered session.Analyser list the pipeline actually runs, skipping
// stages the bitmap doesn't enable.
type Chain struct {
	bitmap  *Bitmap
	conn    []Rule
	content []Rule
	switch_ []SwitchRule
	stick   []Rule

	defaultBackend string
}

// NewChain builds an empty chain gated by bitmap.
func NewChain(bitmap *Bitmap) *Chain {
	return &Chain{bitmap: bitmap}
}

func (c *Chain) AddConnectionRule(r Rule)   { c.conn = append(c.conn, r) }
func (c *Chain) AddContentRule(r Rule)      { c.content = append(c.content, r) }
func (c *Chain) AddSwitchRule(r SwitchRule) { c.switch_ = append(c.switch_, r) }
func (c *Chain) AddStickRule(r Rule)        { c.stick = append(c.stick, r) }
func (c *Chain) SetDefaultBackend(name string) { c.defaultBackend = name }

func ruleAnalyser(r Rule) session.Analyser {
	return func(s *session.Session) session.AnalysisResult {
		switch r.Match(s) {
		case Match:
			return r.OnMatch.result()
		case NeedMore:
			return session.AnalysisMiss
		default:
			return session.AnalysisContinue
		}
	}
}

func switchAnalyser(rules []SwitchRule, fallback string) session.Analyser {
	return func(s *session.Session) session.AnalysisResult {
		for _, r := range rules {
			if r.Match(s) == Match {
				s.AssignBackend(r.Backend)
				return session.AnalysisContinue
			}
		}
		if fallback != "" {
			s.AssignBackend(fallback)
		}
		return session.AnalysisContinue
	}
}

// Build returns the fixed-order analyser list: TCP connection rules,
// then (if content inspection is enabled) content rules gated by
// inspect-delay semantics handled by the caller, then backend-switching,
// then stick rules.
func (c *Chain) Build() []session.Analyser {
	var out []session.Analyser

	if c.bitmap.Enabled(KindTCPConnection) {
		for _, r := range c.conn {
			out = append(out, ruleAnalyser(r))
		}
	}
	if c.bitmap.Enabled(KindTCPContent) {
		for _, r := range c.content {
			out = append(out, ruleAnalyser(r))
		}
	}
	if c.bitmap.Enabled(KindBackendSwitch) {
		out = append(out, switchAnalyser(c.switch_, c.defaultBackend))
	}
	if c.bitmap.Enabled(KindStick) {
		for _, r := range c.stick {
			out = append(out, ruleAnalyser(r))
		}
	}
	return out
}
