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
	"bytes"
	"net"

	"github.com/nabbar/golib/session"
)

// Verdict is a predicate's private tri-state result before it is turned
// into a session.AnalysisResult: NoMatch lets the chain fall through to
// the next rule (equivalent to session.AnalysisContinue once the chain
// is exhausted), Match stops the chain with the rule's configured
// Action, and NeedMore asks the session to wait for more bytes.
type Verdict uint8

const (
	NoMatch Verdict = iota
	Match
	NeedMore
)

// Action is what a matching rule does to the session.
type Action uint8

const (
	ActionAccept Action = iota
	ActionReject
	ActionTarpit
)

// Predicate inspects the session's buffered request data.
type Predicate func(s *session.Session) Verdict

// Rule pairs a predicate with what happens when it matches.
type Rule struct {
	Kind    Kind
	Match   Predicate
	OnMatch Action
}

func (a Action) result() session.AnalysisResult {
	switch a {
	case ActionAccept:
		return session.AnalysisAccept
	default:
		return session.AnalysisReject
	}
}

// SourceIP returns a Predicate matching when the session's recorded
// client address falls inside cidr (tcp-request connection src rules).
func SourceIP(addr func(s *session.Session) net.IP, cidr *net.IPNet) Predicate {
	return func(s *session.Session) Verdict {
		ip := addr(s)
		if ip == nil {
			return NoMatch
		}
		if cidr.Contains(ip) {
			return Match
		}
		return NoMatch
	}
}

// PayloadPrefix returns a Predicate matching when the session's request
// buffer begins with prefix; if fewer bytes than len(prefix) have
// arrived yet, it reports NeedMore so the caller installs the
// inspect-delay timer instead of rejecting prematurely.
func PayloadPrefix(prefix []byte) Predicate {
	return func(s *session.Session) Verdict {
		have := s.Req.Peek(len(prefix))
		if len(have) < len(prefix) {
			return NeedMore
		}
		if bytes.Equal(have, prefix) {
			return Match
		}
		return NoMatch
	}
}

// PayloadContains returns a Predicate matching when needle appears
// anywhere in the currently buffered request data; it never reports
// NeedMore, since "not found yet" and "never found" are indistinguishable
// without an explicit inspect-delay budget managed by the caller.
func PayloadContains(needle []byte) Predicate {
	return func(s *session.Session) Verdict {
		if bytes.Contains(s.Req.Peek(s.Req.Len()), needle) {
			return Match
		}
		return NoMatch
	}
}
