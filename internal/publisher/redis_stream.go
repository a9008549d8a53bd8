package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/sibyl/internal/report"
)

// DefaultStream receives one entry per generated report.
const DefaultStream = "reports.merged.baseball_mlb"

// RedisStreamPublisher publishes reports to a Redis stream
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher creates a publisher from an existing client. The
// stream is trimmed to roughly maxLen entries; zero keeps everything.
func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Stream returns the stream name.
func (p *RedisStreamPublisher) Stream() string {
	return p.stream
}

// Name implements report.Sink.
func (p *RedisStreamPublisher) Name() string { return "redis-stream" }

// Write implements report.Sink.
func (p *RedisStreamPublisher) Write(ctx context.Context, r *report.Report) error {
	_, err := p.PublishReport(ctx, r)
	return err
}

// PublishReport appends the report to the stream and returns the entry ID.
func (p *RedisStreamPublisher) PublishReport(ctx context.Context, r *report.Report) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"run_id":    r.RunID.String(),
			"name":      r.Name,
			"games":     len(r.Records),
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
