package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/domain/stats"
	"orpheus/internal/domain/transcript"
	"orpheus/internal/testsupport"
)

func TestToolUsageRepository_InsertAndAggregate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewToolUsageRepository(helper.Client().Conn())
	ctx := context.Background()

	callID := uuid.New()
	callerID := uuid.New()
	helper.RegisterTableCleanup(t, "tool_usage", "call_id = '"+callID.String()+"'")

	t.Run("InsertBatch_Success", func(t *testing.T) {
		now := time.Now()
		events := []stats.ToolUsageEvent{
			{
				Timestamp:   now,
				CallID:      callID,
				CallerID:    callerID,
				ToolName:    "get_current_time",
				LatencyMs:   4,
				Success:     true,
				OutputBytes: 32,
			},
			{
				Timestamp:    now,
				CallID:       callID,
				CallerID:     callerID,
				ToolName:     "recall_memories",
				LatencyMs:    180,
				Success:      false,
				OutputBytes:  96,
				ErrorMessage: "embedding provider timeout",
			},
		}

		err := repo.InsertToolUsageBatch(ctx, events)
		require.NoError(t, err)

		var count uint64
		err = helper.Client().Query(ctx, &count,
			"SELECT count() FROM tool_usage WHERE call_id = ?", callID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, uint64(2))
	})

	t.Run("InsertBatch_EmptySlice", func(t *testing.T) {
		err := repo.InsertToolUsageBatch(ctx, nil)
		require.NoError(t, err)
	})

	t.Run("AggregateSince", func(t *testing.T) {
		rows, err := repo.AggregateSince(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)

		byTool := map[string]stats.ToolUsageAggregated{}
		for _, row := range rows {
			byTool[row.ToolName] = row
		}

		recall, ok := byTool["recall_memories"]
		require.True(t, ok, "aggregation should include the inserted tool")
		assert.GreaterOrEqual(t, recall.ErrorCount, uint64(1))
	})
}

func TestTranscriptRepository_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewTranscriptRepository(helper.Client().Conn())
	ctx := context.Background()

	callID := uuid.New()
	callerID := uuid.New()
	helper.RegisterTableCleanup(t, "transcripts", "call_id = '"+callID.String()+"'")

	now := time.Now()
	entries := []transcript.Entry{
		{CallID: callID, CallerID: callerID, Seq: 0, Role: transcript.RoleCaller, Text: "Hi, it's me again", At: now},
		{CallID: callID, CallerID: callerID, Seq: 1, Role: transcript.RoleAssistant, Text: "Welcome back!", At: now.Add(time.Second)},
		{CallID: callID, CallerID: callerID, Seq: 2, Role: transcript.RoleCaller, Text: "What time is it?", At: now.Add(2 * time.Second)},
	}

	err := repo.InsertBatch(ctx, entries)
	require.NoError(t, err)

	got, err := repo.GetByCall(ctx, callID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Utterance order survives the round trip
	for i, e := range got {
		assert.Equal(t, uint32(i), e.Seq)
	}
	assert.Equal(t, transcript.RoleAssistant, got[1].Role)
	assert.Equal(t, "Welcome back!", got[1].Text)
}
