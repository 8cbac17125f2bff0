package monitor

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// s3ListLimit matches spec.md's bound on each poll's ListObjectsV2 page.
const s3ListLimit = 100

// s3DedupCapacity bounds the in-memory seen-object set; the oldest entries
// are evicted first once it fills, so a long-running poller can't grow
// without bound.
const s3DedupCapacity = 10000

// S3Client is the subset of the AWS S3 client the monitor needs, so tests
// can fake it without standing up a real bucket.
type S3Client interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Monitor periodically lists every actively-monitored bucket and
// dispatches one event per object it has not seen before.
type S3Monitor struct {
	dispatcher *Dispatcher
	client     S3Client
	interval   time.Duration
	logger     *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
	fifo []string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewS3Monitor creates an S3Monitor that dispatches through d using the
// default AWS config (region, credentials) resolved from the environment.
func NewS3Monitor(ctx context.Context, d *Dispatcher, interval time.Duration) (*S3Monitor, error) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Monitor{
		dispatcher: d,
		client:     s3.NewFromConfig(cfg),
		interval:   interval,
		logger:     logger.Named("monitor.s3"),
		seen:       make(map[string]struct{}),
	}, nil
}

// Start runs the poll loop until ctx is cancelled.
func (m *S3Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.poll(ctx)
			}
		}
	}()
}

// Stop halts the poll loop and waits for the in-flight poll to finish.
func (m *S3Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *S3Monitor) poll(ctx context.Context) {
	templates, err := m.dispatcher.Templates.ListActiveByEventType(ctx, model.EventTypeS3)
	if err != nil {
		m.logger.Error("failed to list s3 templates", zap.Error(err))
		return
	}

	buckets := map[string]bool{}
	for _, tmpl := range templates {
		if tmpl.SourceConfig.BucketName != "" {
			buckets[tmpl.SourceConfig.BucketName] = true
		}
	}

	staleBefore := time.Now().Add(-2 * m.interval)
	for bucket := range buckets {
		m.pollBucket(ctx, bucket, staleBefore)
	}
}

func (m *S3Monitor) pollBucket(ctx context.Context, bucket string, staleBefore time.Time) {
	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(s3ListLimit),
	})
	if err != nil {
		m.logger.Error("failed to list bucket", zap.String("bucket", bucket), zap.Error(err))
		return
	}

	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		if obj.LastModified != nil && obj.LastModified.Before(staleBefore) {
			continue
		}

		etag := ""
		if obj.ETag != nil {
			etag = *obj.ETag
		}
		dedupKey := bucket + "/" + *obj.Key + "/" + etag
		if m.markSeen(dedupKey) {
			continue
		}

		ev := Event{
			EventType: model.EventTypeS3,
			Bucket:    bucket,
			FilePath:  *obj.Key,
			FileName:  path.Base(*obj.Key),
			EventTime: time.Now(),
		}
		if obj.Size != nil {
			ev.FileSize = *obj.Size
		}
		if obj.LastModified != nil {
			ev.ModifiedAt = *obj.LastModified
		}

		m.dispatcher.Dispatch(ctx, ev)
	}
}

// markSeen reports whether key was already seen, recording it if not. The
// set evicts its oldest entry once it reaches s3DedupCapacity.
func (m *S3Monitor) markSeen(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[key]; ok {
		return true
	}

	if len(m.fifo) >= s3DedupCapacity {
		oldest := m.fifo[0]
		m.fifo = m.fifo[1:]
		delete(m.seen, oldest)
	}
	m.seen[key] = struct{}{}
	m.fifo = append(m.fifo, key)
	return false
}
