package token

import "context"

// gate admits one holder at a time. A caller whose context ends while waiting leaves
// without touching the gate, so the current holder's release is unaffected.
type gate chan struct{}

func newGate() gate {
	return make(gate, 1)
}

func (g gate) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g gate) release() {
	<-g
}
