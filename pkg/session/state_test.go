package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTCPHandshakeReachesEstablished(t *testing.T) {
	e := &Entry{State: StateClosed}

	AdvanceTCP(e, TCPFlags{SYN: true}, true) // customer SYN creates the entry
	assert.Equal(t, StateSynSent, e.State)

	AdvanceTCP(e, TCPFlags{SYN: true, ACK: true}, false) // remote SYN-ACK
	assert.Equal(t, StateEstablished, e.State)

	AdvanceTCP(e, TCPFlags{ACK: true}, true) // ordinary data ACK
	assert.Equal(t, StateEstablished, e.State)
}

func TestTCPBothSidesFinBeforeClosing(t *testing.T) {
	e := &Entry{State: StateEstablished}

	AdvanceTCP(e, TCPFlags{FIN: true, ACK: true}, true) // customer closes
	assert.Equal(t, StateFinWait, e.State)

	AdvanceTCP(e, TCPFlags{ACK: true}, false) // remote ack only, not FIN yet
	assert.Equal(t, StateFinWait, e.State, "must not move to CLOSING until both sides FIN")

	AdvanceTCP(e, TCPFlags{FIN: true, ACK: true}, false) // remote closes too
	assert.Equal(t, StateClosing, e.State)

	AdvanceTCP(e, TCPFlags{ACK: true}, true) // final ack
	assert.Equal(t, StateTimeWait, e.State)
}

func TestRSTJumpsToTimeWait(t *testing.T) {
	e := &Entry{State: StateEstablished}
	AdvanceTCP(e, TCPFlags{RST: true}, true)
	assert.Equal(t, StateTimeWait, e.State)
}

func TestOutOfStateSegmentIsAccepted(t *testing.T) {
	e := &Entry{State: StateSynSent}
	AdvanceTCP(e, TCPFlags{ACK: true}, false) // ACK while still SYN_SENT
	assert.Equal(t, StateEstablished, e.State, "non-SYN/FIN/RST after SYN_SENT moves to ESTABLISHED")
}

func TestTimeouts(t *testing.T) {
	assert.Equal(t, 60*time.Second, StateSynSent.Timeout())
	assert.Equal(t, 7200*time.Second, StateEstablished.Timeout())
	assert.Equal(t, 120*time.Second, StateFinWait.Timeout())
	assert.Equal(t, 120*time.Second, StateClosing.Timeout())
	assert.Equal(t, 120*time.Second, StateTimeWait.Timeout())
	assert.Equal(t, 300*time.Second, StateUDPActive.Timeout())
	assert.Equal(t, 30*time.Second, StateICMPActive.Timeout())
}
