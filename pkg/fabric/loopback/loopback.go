// Package loopback provides an in-memory fabric.Queue for tests and for
// the Worker Loop's own unit tests, standing in for a real AF_PACKET
// socket without needing raw-socket privileges.
package loopback

import (
	"context"

	"github.com/flowforge/cgnat/pkg/fabric"
)

// Queue is a fabric.Queue backed by a buffered channel. Frames pushed
// with Inject appear on the next RxBurst; frames submitted with TxBurst
// land on Sent for a test to inspect.
type Queue struct {
	rx   chan fabric.Frame
	Sent []fabric.Frame

	// TxLimit caps how many frames a single TxBurst accepts, simulating a
	// fabric that declines the tail of a batch (e.g. a full ring). -1
	// (the default) accepts the whole batch every time.
	TxLimit int
}

// New returns a Queue with the given receive-side buffer depth.
func New(depth int) *Queue {
	return &Queue{rx: make(chan fabric.Frame, depth), TxLimit: -1}
}

// Inject makes data available to the next RxBurst, as if it had arrived
// on the wire.
func (q *Queue) Inject(data []byte) {
	q.rx <- fabric.Frame{Data: data}
}

// RxBurst drains up to max pending frames, blocking for at least one
// unless ctx is cancelled first.
func (q *Queue) RxBurst(ctx context.Context, max int) ([]fabric.Frame, error) {
	select {
	case f := <-q.rx:
		out := make([]fabric.Frame, 0, max)
		out = append(out, f)
		for len(out) < max {
			select {
			case f := <-q.rx:
				out = append(out, f)
			default:
				return out, nil
			}
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TxBurst appends up to TxLimit frames to Sent. The frames it declines
// are not an error; per the fabric.Queue contract the caller is
// responsible for counting them as drops.
func (q *Queue) TxBurst(frames []fabric.Frame) (int, error) {
	n := len(frames)
	if q.TxLimit >= 0 && q.TxLimit < n {
		n = q.TxLimit
	}
	q.Sent = append(q.Sent, frames[:n]...)
	return n, nil
}

// Close closes the receive channel. It does not drain it: frames already
// buffered are still returned by later RxBurst calls, and Inject after
// Close panics.
func (q *Queue) Close() error {
	close(q.rx)
	return nil
}
