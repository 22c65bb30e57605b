// Package worker implements the Worker Loop (spec.md §4.H): one
// goroutine per RSS queue, each pinned to its own Core Context, pulling
// bursts from a fabric.Queue and driving them through the Translation
// Engine.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/flowforge/cgnat/pkg/engine"
	"github.com/flowforge/cgnat/pkg/fabric"
)

const (
	burstSize   = 32
	agingPeriod = 1 * time.Second
)

// Loop drains one fabric.Queue through one engine.Context until ctx is
// cancelled. It is the only goroutine that ever touches that Context or
// that Queue, satisfying spec.md §5's "no cross-core sharing" rule.
type Loop struct {
	Queue   fabric.Queue
	Context *engine.Context
}

// New returns a Loop ready to Run.
func New(q fabric.Queue, c *engine.Context) *Loop {
	return &Loop{Queue: q, Context: c}
}

// Run is the core rx_burst -> translate -> tx_burst cycle, with a
// periodic aging sweep folded in. It returns nil on clean shutdown
// (ctx cancelled) and any unexpected queue error otherwise.
func (l *Loop) Run(ctx context.Context) error {
	txBuf := make([]fabric.Frame, 0, burstSize)

	ticker := time.NewTicker(agingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Context.Sweep()
		default:
		}

		frames, err := l.Queue.RxBurst(ctx, burstSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		txBuf = txBuf[:0]
		for _, frame := range frames {
			l.Context.Counters.RecordRx(len(frame.Data))
			if err := l.translate(frame); err != nil {
				continue // counters already recorded the drop cause
			}
			txBuf = append(txBuf, frame)
		}

		if len(txBuf) > 0 {
			// A short write is not itself an error (fabric.Queue's contract):
			// whatever the fabric declined is freed and counted as a drop,
			// per spec.md §4.H step 4 / §7's tx-drop row, rather than
			// aborting the loop.
			sent, _ := l.Queue.TxBurst(txBuf)
			for _, f := range txBuf[:sent] {
				l.Context.Counters.RecordTx(len(f.Data))
			}
			for range txBuf[sent:] {
				l.Context.Counters.RecordDrop()
			}
		}
	}
}

// translate classifies the frame's direction by source address and
// drives it through the matching Translation Engine path, per spec.md
// §4.H step 3.
func (l *Loop) translate(frame fabric.Frame) error {
	addr, ok := peekSourceAddr(frame.Data)
	if ok && l.Context.IsCustomer(addr) {
		return l.Context.TranslateOutbound(frame.Data)
	}
	return l.Context.TranslateInbound(frame.Data)
}
