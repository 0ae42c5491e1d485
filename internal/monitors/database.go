package monitors

import (
	"context"
	"fmt"
	"time"
)

const defaultDatabaseTimeout = 10 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func CheckDatabase(ctx context.Context, db Pinger, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultDatabaseTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
