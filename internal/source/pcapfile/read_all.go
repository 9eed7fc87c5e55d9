package pcapfile

import (
	"context"
	"errors"
	"io"

	"firestige.xyz/synscope/internal/core"
)

const cancelCheckInterval = 4096

// ReadAll drains r into memory. Frames failing with a recoverable error are
// skipped and counted in r.Stats(); any other error aborts and no packets are
// returned.
func ReadAll(ctx context.Context, r *Reader) ([]core.Packet, error) {
	var packets []core.Packet
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		pkt, err := r.Next()
		switch {
		case err == nil:
			packets = append(packets, pkt)
		case errors.Is(err, io.EOF):
			return packets, nil
		case core.IsRecoverable(err):
			if r.logger.IsDebugEnabled() {
				r.logger.WithError(err).Debug("frame skipped")
			}
		default:
			return nil, err
		}
	}
}
