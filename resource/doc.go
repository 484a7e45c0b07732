// Package resource governs the resources a segmentation run may use.
//
// A Controller limits three things:
//
//   - Detector slots: concurrent detector runs across all schedulers sharing
//     the controller (blocking semaphore).
//   - Memory: bytes of chunk payloads held by in-flight detector runs
//     (fail-fast, ErrMemoryLimitExceeded).
//   - IO: bytes per second written or read by result archives (token bucket).
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MaxDetectors:       4,
//	    MemoryLimitBytes:   512 << 20,
//	    IOLimitBytesPerSec: 16 << 20,
//	})
//
//	if err := rc.AcquireDetector(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseDetector()
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
