package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/sibyl/internal/reconciliation"
	"github.com/fortuna/sibyl/internal/report"
)

func TestPublishReport(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewRedisStreamPublisher(client, "", 0)
	assert.Equal(t, DefaultStream, pub.Stream())

	odds := -150
	rep := report.New("2025-04-21", time.Now(), time.UTC, &reconciliation.Result{
		Records: []reconciliation.MergedRecord{{GameID: "abc123", HomeTeam: "NY Yankees", HomeOdds: &odds}},
	})

	ctx := context.Background()
	id, err := pub.PublishReport(ctx, rep)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, pub.Write(ctx, rep))

	entries, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	values := entries[0].Values
	assert.Equal(t, rep.RunID.String(), values["run_id"])
	assert.Equal(t, "2025-04-21", values["name"])
	assert.Equal(t, "1", values["games"])

	var decoded report.Report
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, rep.RunID, decoded.RunID)
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, -150, *decoded.Records[0].HomeOdds)
}

func TestPublishReportFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	pub := NewRedisStreamPublisher(client, "custom", 100)
	_, err := pub.PublishReport(context.Background(), report.New("x", time.Now(), time.UTC, nil))
	assert.ErrorContains(t, err, "xadd custom")
}
