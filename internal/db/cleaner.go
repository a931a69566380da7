package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartTransientCleaner purges expired transients every interval until ctx is done.
// Reads already ignore expired rows; this only reclaims space.
func StartTransientCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := db.ExecContext(ctx, `
                    DELETE FROM transients
                     WHERE expires_at <= $1
                `, time.Now())
				if err != nil {
					log.Error("failed to clean expired transients", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned expired transients", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
