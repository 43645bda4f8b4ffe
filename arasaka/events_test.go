package arasaka

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_Query(t *testing.T) {
	ctx := context.Background()
	events := NewEventLog(testDBI(t), testLogger())

	base := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC).UnixMilli()
	for i, r := range []EventRecord{
		{HostUsername: "Saburo", HostID: "1", AttendeeUsername: "alice", AttendeeID: "100", EventType: "Patrol", XPAwarded: 2},
		{HostUsername: "Saburo", HostID: "1", AttendeeUsername: "bob", EventType: "Patrol", XPAwarded: 2},
		{HostUsername: "alice", HostID: "100", AttendeeUsername: "bob", EventType: "Raid", XPAwarded: 5},
		{HostUsername: "Saburo", HostID: "1", AttendeeUsername: "alice", AttendeeID: "100", EventType: "Training", XPAwarded: 3},
		{HostUsername: "Saburo", HostID: "1", AttendeeUsername: "carol", EventType: "Training", XPAwarded: 3},
	} {
		r.CreatedAt = base + int64(i)*int64(time.Minute/time.Millisecond)
		require.NoError(t, events.RecordEvent(ctx, &r))
	}

	t.Run(
		"matches host or attendee", func(t *testing.T) {
			records, total, err := events.Query(ctx, EventQuery{Usernames: []string{"alice"}})
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			require.Len(t, records, 3)
			assert.Equal(t, "Training", records[0].EventType)
			assert.Equal(t, "Raid", records[1].EventType)
			assert.Equal(t, "Patrol", records[2].EventType)
		},
	)

	t.Run(
		"usernames and ids are combined", func(t *testing.T) {
			_, total, err := events.Query(
				ctx, EventQuery{Usernames: []string{"carol"}, DiscordIDs: []string{"100", "100", ""}},
			)
			require.NoError(t, err)
			assert.Equal(t, int64(4), total)
		},
	)

	t.Run(
		"limit and offset", func(t *testing.T) {
			records, total, err := events.Query(
				ctx, EventQuery{DiscordIDs: []string{"1"}, Limit: 2, Offset: 1},
			)
			require.NoError(t, err)
			assert.Equal(t, int64(4), total)
			require.Len(t, records, 2)
			assert.Equal(t, "alice", records[0].AttendeeUsername)
			assert.Equal(t, "Patrol", records[1].EventType)
		},
	)

	t.Run(
		"empty query", func(t *testing.T) {
			records, total, err := events.Query(ctx, EventQuery{})
			require.NoError(t, err)
			assert.Zero(t, total)
			assert.Empty(t, records)
		},
	)

	t.Run(
		"recent", func(t *testing.T) {
			records, total, err := events.Recent(
				ctx, EventQuery{Usernames: []string{"Saburo"}, Limit: 50},
			)
			require.NoError(t, err)
			assert.Len(t, records, recentEventsLimit)
			assert.Equal(t, int64(4), total)

			text := formatRecentEvents(records, total, time.UTC)
			assert.Contains(t, text, "+ Received 3 XP from Training at 3/4 12:04 PM UTC (Saburo)")
			assert.Contains(t, text, "... 1 more events")
		},
	)
}

func TestFormatRecentEvents(t *testing.T) {
	assert.Equal(t, "No recent events found.", formatRecentEvents(nil, 0, time.UTC))

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	records := []EventRecord{
		{
			HostUsername: "Saburo",
			EventType:    "Raid",
			XPAwarded:    2.5,
			CreatedAt:    time.Date(2024, 7, 1, 18, 30, 0, 0, time.UTC).UnixMilli(),
		},
	}
	assert.Equal(
		t,
		fmt.Sprintf("```diff\n%s\n```", "+ Received 2.5 XP from Raid at 7/1 1:30 PM CDT (Saburo)"),
		formatRecentEvents(records, 1, loc),
	)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "", "b", "a"}))
	assert.Nil(t, dedupe(nil))
}
