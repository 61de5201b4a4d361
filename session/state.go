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

package session

// State is a stream interface's position in the session lifecycle.
type State uint8

const (
	StateINI State = iota
	StateREQ
	StateQUE
	StateTAR
	StateASS
	StateCON
	StateCER
	StateEST
	StateDIS
	StateCLO
)

func (s State) String() string {
	switch s {
	case StateINI:
		return "INI"
	case StateREQ:
		return "REQ"
	case StateQUE:
		return "QUE"
	case StateTAR:
		return "TAR"
	case StateASS:
		return "ASS"
	case StateCON:
		return "CON"
	case StateCER:
		return "CER"
	case StateEST:
		return "EST"
	case StateDIS:
		return "DIS"
	case StateCLO:
		return "CLO"
	default:
		return "UNKNOWN"
	}
}

// ErrClass classifies why a session terminated, mirroring the SN_ERR_*
// family: which side caused the failure and whether it was a timeout.
type ErrClass uint8

const (
	ErrNone ErrClass = iota
	ErrCliCL          // client closed / reset
	ErrCliTO          // client timeout
	ErrSrvCL          // server closed / reset / refused
	ErrSrvTO          // server timeout
	ErrPrxCond        // proxy-side condition: maxconn, rule reject, tarpit
	ErrResource       // local resource exhaustion: fd, memory, port
)

func (e ErrClass) String() string {
	switch e {
	case ErrNone:
		return "NONE"
	case ErrCliCL:
		return "CLICL"
	case ErrCliTO:
		return "CLITO"
	case ErrSrvCL:
		return "SRVCL"
	case ErrSrvTO:
		return "SRVTO"
	case ErrPrxCond:
		return "PRXCOND"
	case ErrResource:
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}

// FinishStep records which lifecycle phase a session was in when it
// terminated, mirroring the SN_FINST_* family (request, connect,
// headers, data, close, queue, tarpit).
type FinishStep uint8

const (
	FinstR FinishStep = iota // request phase
	FinstC                   // connect phase
	FinstH                   // headers phase
	FinstD                   // data/forwarding phase
	FinstL                   // close phase
	FinstQ                   // queue phase
	FinstT                   // tarpit phase
)

// Flags is a bitset of session-wide conditions tracked outside the
// per-side state machines (direct assignment, address resolved, backend
// assigned, redispatch already used, ...).
type Flags uint32

const (
	FlagDirect Flags = 1 << iota
	FlagAddrSet
	FlagBeAssigned
	FlagRedispatched
	FlagAbortOnClose
	FlagIndependentStreams
)

func (f *Flags) Set(bit Flags)      { *f |= bit }
func (f *Flags) Clear(bit Flags)    { *f &^= bit }
func (f Flags) Has(bit Flags) bool  { return f&bit != 0 }
