package monitor

import (
	"context"
	"time"

	"github.com/orbit-sync/transferd/internal/core/logger"
)

// NewS3MonitorForTest builds an S3Monitor around a fake S3Client, bypassing
// the real AWS config resolution NewS3Monitor performs.
func NewS3MonitorForTest(d *Dispatcher, client S3Client, interval time.Duration) *S3Monitor {
	return &S3Monitor{
		dispatcher: d,
		client:     client,
		interval:   interval,
		logger:     logger.Named("monitor.s3.test"),
		seen:       make(map[string]struct{}),
	}
}

// PollOnceForTest runs a single poll synchronously, without the background
// ticker loop.
func (m *S3Monitor) PollOnceForTest(ctx context.Context) {
	m.poll(ctx)
}
