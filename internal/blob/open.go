package blob

import (
	"context"
	"fmt"
)

// Config selects and configures a driver.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the store cfg describes. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}
