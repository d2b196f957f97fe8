package player

import (
	"context"
	"time"

	"github.com/parkerpayne/bard/logger"
)

// watch waits for the song-ended signal and asks the owner loop to advance.
func (c *Controller) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.ended:
			if c.opts.SettleDelay > 0 {
				t := time.NewTimer(c.opts.SettleDelay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			c.log.Debug("歌曲自然结束, 自动切歌", logger.String("identity", id))
			c.enqueue(ctx, "advance", func(ctx context.Context) (string, error) {
				return c.advance(ctx, id)
			})
		}
	}
}
