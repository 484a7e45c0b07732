package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for chunk payloads in flight.
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxDetectors is the maximum number of concurrent detector runs.
	// If 0, detector runs are not limited.
	MaxDetectors int64

	// IOLimitBytesPerSec is the maximum archive throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	detSem  *semaphore.Weighted // nil if unlimited
	running atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxDetectors > 0 {
		c.detSem = semaphore.NewWeighted(cfg.MaxDetectors)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes without blocking.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrMemoryLimitExceeded, bytes, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
	}

	c.memUsed.Add(bytes)

	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}

	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}

	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}

	return c.cfg.MemoryLimitBytes
}

// AcquireDetector reserves a detector slot, blocking while all are busy.
func (c *Controller) AcquireDetector(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.detSem != nil {
		if err := c.detSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	c.running.Add(1)

	return nil
}

// TryAcquireDetector reserves a detector slot without blocking.
func (c *Controller) TryAcquireDetector() bool {
	if c == nil {
		return true
	}

	if c.detSem != nil && !c.detSem.TryAcquire(1) {
		return false
	}

	c.running.Add(1)

	return true
}

// ReleaseDetector releases a detector slot.
func (c *Controller) ReleaseDetector() {
	if c == nil {
		return
	}

	if c.detSem != nil {
		c.detSem.Release(1)
	}

	c.running.Add(-1)
}

// RunningDetectors returns the number of held detector slots.
func (c *Controller) RunningDetectors() int64 {
	if c == nil {
		return 0
	}

	return c.running.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than one second of budget are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}

		bytes -= n
	}

	return nil
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}

	return c.ioLimiter.AllowN(time.Now(), bytes)
}
