package handler

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// WatchGrantExpiry periodically revokes expired access grants and notifies
// the affected users. Runs only when ENFORCE_GRANT_EXPIRY is set; by default
// expiry dates are informational.
func (h *Handler) WatchGrantExpiry(ctx context.Context, b *bot.Bot) {
	if !h.cfg.EnforceGrantExpiry {
		h.logger.Info("Grant expiry enforcement disabled")
		return
	}

	h.logger.Info("Started grant expiry watcher",
		zap.Duration("period", h.cfg.ExpirySweepPeriod))
	ticker := time.NewTicker(h.cfg.ExpirySweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Grant expiry watcher stopped")
			return
		case <-ticker.C:
			ids, err := h.store.RevokeExpired(ctx, time.Now())
			if err != nil {
				h.logger.Error("Grant expiry sweep failed", zap.Error(err))
				continue
			}
			for _, id := range ids {
				h.sendMessage(ctx, b, id,
					"Subscription Expired: your subscription has ended, and access to the receipt generator has been removed.")
			}
		}
	}
}
