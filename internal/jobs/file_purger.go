package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes soft-deleted files older than a retention window.
type Purger interface {
	PurgeDeleted(ctx context.Context, olderThan time.Duration) (int, error)
}

// FilePurgerConfig holds the schedule of a FilePurger.
type FilePurgerConfig struct {
	Interval   time.Duration // How often to purge (default 1h)
	Retention  time.Duration // How long deleted files are kept (default 30 days)
	StartDelay time.Duration // Delay before the first run (default 5s)
	Timeout    time.Duration // Limit of one run (default 10m)
}

// FilePurger periodically removes the content and rows of files that were
// soft-deleted longer ago than the retention window.
type FilePurger struct {
	purger  Purger
	cfg     FilePurgerConfig
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewFilePurger creates a new file purge job
func NewFilePurger(purger Purger, cfg FilePurgerConfig) *FilePurger {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.StartDelay == 0 {
		cfg.StartDelay = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &FilePurger{
		purger: purger,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start begins the purge loop
func (p *FilePurger) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	slog.Info("file purger started",
		slog.Duration("interval", p.cfg.Interval),
		slog.Duration("retention", p.cfg.Retention))
}

// Stop gracefully stops the purge loop and waits for a running pass.
func (p *FilePurger) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	slog.Info("file purger stopped")
}

func (p *FilePurger) run() {
	defer p.wg.Done()

	select {
	case <-time.After(p.cfg.StartDelay):
	case <-p.stopCh:
		return
	}
	p.purge()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.purge()
		case <-p.stopCh:
			return
		}
	}
}

func (p *FilePurger) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	n, err := p.RunOnce(ctx)
	if err != nil {
		slog.Error("file purge failed",
			slog.Int("purged", n),
			slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		slog.Info("purged deleted files", slog.Int("count", n))
	}
}

// RunOnce runs one purge pass (for testing or manual trigger)
func (p *FilePurger) RunOnce(ctx context.Context) (int, error) {
	return p.purger.PurgeDeleted(ctx, p.cfg.Retention)
}

// IsRunning returns whether the purger is running
func (p *FilePurger) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
