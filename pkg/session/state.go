package session

import "time"

// State is one of the states a Session Entry's TCP-aware lifecycle can be
// in. UDP and ICMP flows live entirely in their own single state.
type State uint8

const (
	StateClosed State = iota
	StateSynSent
	StateEstablished
	StateFinWait
	StateClosing
	StateTimeWait
	StateUDPActive
	StateICMPActive
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynSent:
		return "SYN_SENT"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait:
		return "FIN_WAIT"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateUDPActive:
		return "UDP_ACTIVE"
	case StateICMPActive:
		return "ICMP_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Timeout returns the idle timeout for a state, per spec.md §4.D.
func (s State) Timeout() time.Duration {
	switch s {
	case StateSynSent:
		return 60 * time.Second
	case StateEstablished:
		return 7200 * time.Second
	case StateFinWait, StateClosing, StateTimeWait:
		return 120 * time.Second
	case StateUDPActive:
		return 300 * time.Second
	case StateICMPActive:
		return 30 * time.Second
	default:
		return 0
	}
}

// TCPFlags is the subset of TCP control bits the state machine observes.
type TCPFlags struct {
	SYN bool
	ACK bool
	FIN bool
	RST bool
}

// AdvanceTCP applies one observed TCP segment's flags, from the given
// direction, to e's current state and updates e.State and e.Flags in
// place. No segment is rejected: an ACK while still SYN_SENT moves the
// entry to ESTABLISHED, and a segment that matches no transition leaves
// the state unchanged. The new state's idle timeout is whatever Timeout
// returns for it, so a transition can lengthen it (SYN_SENT's 60s to
// ESTABLISHED's 7200s) as well as shorten it. AdvanceTCP does not touch
// LastActive; callers refresh it with Touch.
//
// fromCustomer is true when the segment was observed travelling in the
// outbound (customer->internet) direction; it is what lets CLOSING be
// reached only once both directions have sent a FIN.
func AdvanceTCP(e *Entry, f TCPFlags, fromCustomer bool) {
	if f.RST {
		e.State = StateTimeWait
		return
	}

	if f.FIN {
		if fromCustomer {
			e.Flags |= FlagFinCustomer
		} else {
			e.Flags |= FlagFinRemote
		}
	}
	bothFin := e.Flags&FlagFinCustomer != 0 && e.Flags&FlagFinRemote != 0

	switch e.State {
	case StateClosed:
		e.State = StateSynSent
	case StateSynSent:
		switch {
		case f.FIN:
			e.State = StateFinWait
		case f.SYN && f.ACK:
			e.State = StateEstablished
		case !f.SYN:
			e.State = StateEstablished
		}
	case StateEstablished:
		if f.FIN {
			e.State = StateFinWait
		}
	case StateFinWait:
		if bothFin {
			e.State = StateClosing
		}
	case StateClosing:
		if f.ACK {
			e.State = StateTimeWait
		}
	case StateTimeWait:
		// terminal until aged out.
	}
}
