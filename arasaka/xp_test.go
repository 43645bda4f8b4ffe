package arasaka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdateToken(t *testing.T) {
	t.Run(
		"single delta", func(t *testing.T) {
			line, err := ParseUpdateToken(" alice:10 ")
			require.NoError(t, err)
			assert.Equal(t, "alice", line.Username)
			assert.Equal(t, SingleDelta, line.Mode)
			assert.Equal(t, float64(10), line.DeltaWeekly)
			assert.Equal(t, float64(10), line.DeltaTotal)
			assert.Equal(t, float64(10), line.Awarded())
		},
	)

	t.Run(
		"dual delta", func(t *testing.T) {
			line, err := ParseUpdateToken("alice:2.5:-4")
			require.NoError(t, err)
			assert.Equal(t, DualDelta, line.Mode)
			assert.Equal(t, 2.5, line.DeltaWeekly)
			assert.Equal(t, float64(-4), line.DeltaTotal)
		},
	)

	t.Run(
		"bad format", func(t *testing.T) {
			for _, token := range []string{"alice", ":5", "a:1:2:3"} {
				_, err := ParseUpdateToken(token)
				var formatErr *FormatError
				require.ErrorAsf(t, err, &formatErr, "token %q", token)
				assert.Empty(t, formatErr.Value)
				assert.Contains(t, err.Error(), "Invalid username format")
			}
		},
	)

	t.Run(
		"bad number", func(t *testing.T) {
			_, err := ParseUpdateToken("alice:lots")
			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, "lots", formatErr.Value)
			assert.Equal(
				t,
				"Invalid XP value: `lots`. Please provide a valid number for XP.",
				err.Error(),
			)

			_, err = ParseUpdateToken("alice:NaN")
			assert.ErrorAs(t, err, &formatErr)
		},
	)

	t.Run(
		"out of range", func(t *testing.T) {
			line, err := ParseUpdateToken("bob:5:-60")
			var rangeErr *RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, "bob", rangeErr.Username)
			assert.Equal(t, float64(-60), rangeErr.Delta)
			assert.Equal(t, "bob", line.Username)

			_, err = ParseUpdateToken("bob:50")
			assert.NoError(t, err)
		},
	)
}

func TestCalculateNewXP(t *testing.T) {
	weekly, total := calculateNewXP(
		NumericWeekly(3), 10,
		BulkUpdateLine{DeltaWeekly: -5, DeltaTotal: -20},
	)
	assert.Equal(t, NumericWeekly(0), weekly)
	assert.Zero(t, total)

	weekly, total = calculateNewXP(
		StatusWeekly(StatusRecentHire), 10,
		BulkUpdateLine{DeltaWeekly: 5, DeltaTotal: 5},
	)
	assert.Equal(t, StatusWeekly(StatusRecentHire), weekly)
	assert.Equal(t, float64(15), total)
}

func newTestEngine(ledger Ledger, recorder EventRecorder) *XPEngine {
	engine := NewXPEngine(
		ledger,
		fakeResolver{"alice": "1001"},
		recorder,
		testLogger(),
	)
	engine.now = func() time.Time {
		return time.UnixMilli(1_700_000_000_000)
	}
	return engine
}

func testLedgerRows() []LedgerRow {
	return []LedgerRow{
		{Username: "alice", Rank: RankInitiate, Weekly: NumericWeekly(2), Total: 10},
		{Username: "bob", Rank: RankOperative, Weekly: NumericWeekly(0), Total: 40},
		{Username: "carol", Rank: RankSpecialist, Weekly: StatusWeekly(StatusInactivityNotice), Total: 60},
	}
}

func reportLines(report *UpdateReport) []string {
	lines := make([]string, 0, len(report.Lines))
	for _, l := range report.Lines {
		lines = append(lines, l.String())
	}
	return lines
}

func TestProcessUpdates(t *testing.T) {
	ctx := context.Background()
	actor := Actor{ID: "42", DisplayName: "Saburo"}

	t.Run(
		"applies each token", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			recorder := &fakeRecorder{}
			engine := newTestEngine(ledger, recorder)

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{
					Tokens:    []string{"alice:10", "bob:-60", "zzzqqq:5", "bob:3:7"},
					Reason:    "Patrol",
					EventType: "Patrol",
					Actor:     actor,
				},
			)

			assert.Equal(
				t,
				[]string{
					"+ 1: Success: alice gained 10 XP.",
					"- 2: Error: You can only add/remove up to 50 XP at a time.",
					"- 3: Error: zzzqqq not found in spreadsheet, and no close match could be identified.",
					"+ 4: Success: bob gained 3 weekly XP and gained 7 total XP.",
				},
				reportLines(report),
			)

			alice := ledger.get("alice")
			assert.Equal(t, NumericWeekly(12), alice.Weekly)
			assert.Equal(t, float64(20), alice.Total)

			bob := ledger.get("bob")
			assert.Equal(t, NumericWeekly(3), bob.Weekly)
			assert.Equal(t, float64(47), bob.Total)

			require.Len(t, report.Updated, 2)
			assert.Equal(t, "<@1001>", report.Updated[0].Mention())
			assert.Equal(t, float64(10), report.Updated[0].BeforeTotal)
			assert.Equal(t, "bob", report.Updated[1].Mention())

			require.Len(t, recorder.records, 2)
			first := recorder.records[0]
			assert.Equal(t, "alice", first.AttendeeUsername)
			assert.Equal(t, "1001", first.AttendeeID)
			assert.Equal(t, "Saburo", first.HostUsername)
			assert.Equal(t, "42", first.HostID)
			assert.Equal(t, float64(10), first.XPAwarded)
			assert.Equal(t, int64(1_700_000_000_000), first.CreatedAt)
			assert.Empty(t, recorder.records[1].AttendeeID)
			assert.Equal(t, float64(3), recorder.records[1].XPAwarded)

			assert.Equal(t, "Authorized by: Saburo", report.Footer())
			assert.Contains(t, report.Description(), "alice:10, bob:-60")
			assert.Contains(t, report.ConsoleOutput(), "```diff\n+ 1: Success")
		},
	)

	t.Run(
		"status is preserved", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			engine := newTestEngine(ledger, nil)

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{Tokens: []string{"carol:5", "alice:1"}, Actor: actor},
			)
			assert.Equal(
				t,
				[]string{
					"- 1: Warning: carol is on an inactivity notice. (WP will not be updated, only TP will be)",
					"+ 1: Success: carol gained 5 XP.",
					"+ 2: Success: alice gained 1 XP.",
				},
				reportLines(report),
			)

			carol := ledger.get("carol")
			assert.Equal(t, StatusWeekly(StatusInactivityNotice), carol.Weekly)
			assert.Equal(t, float64(65), carol.Total)
		},
	)

	t.Run(
		"removal floors at zero", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			engine := newTestEngine(ledger, nil)

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{Tokens: []string{"alice:-50"}, Actor: actor},
			)
			assert.Equal(t, []string{"+ 1: Success: alice lost 50 XP."}, reportLines(report))
			alice := ledger.get("alice")
			assert.Equal(t, NumericWeekly(0), alice.Weekly)
			assert.Zero(t, alice.Total)
		},
	)

	t.Run(
		"accepted fuzzy match", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			engine := newTestEngine(ledger, nil)
			confirmer := &fakeConfirmer{answer: true}

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{
					Tokens:    []string{"alicee:5", "bob:1"},
					Actor:     actor,
					Confirmer: confirmer,
				},
			)
			assert.Equal(
				t,
				[]string{
					"+ 1: Proceeding with closest match: alice.",
					"+ 2: Success: alice gained 5 XP.",
					"+ 3: Success: bob gained 1 XP.",
				},
				reportLines(report),
			)
			assert.Equal(t, [][2]string{{"alicee", "alice"}}, confirmer.asked)
			assert.Equal(t, float64(15), ledger.get("alice").Total)
		},
	)

	t.Run(
		"declined fuzzy match", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			engine := newTestEngine(ledger, nil)
			confirmer := &fakeConfirmer{answer: false, err: context.DeadlineExceeded}

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{
					Tokens:    []string{"alicee:5"},
					Actor:     actor,
					Confirmer: confirmer,
				},
			)
			assert.Equal(
				t,
				[]string{
					"- 1: Error: alicee not found in spreadsheet, and no close match could be identified.",
				},
				reportLines(report),
			)
			assert.Equal(t, float64(10), ledger.get("alice").Total)
			assert.Empty(t, report.Updated)
		},
	)

	t.Run(
		"malformed and placeholder tokens", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			engine := newTestEngine(ledger, nil)

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{
					Tokens: []string{"alice", "N/A", "", "bob:lots", "bob:2"},
					Actor:  actor,
				},
			)
			assert.Equal(t, []string{"+ 1: Success: bob gained 2 XP."}, reportLines(report))
			require.Len(t, report.Rejected, 2)
			var formatErr *FormatError
			assert.ErrorAs(t, report.Rejected[1], &formatErr)
			assert.Equal(t, "lots", formatErr.Value)
		},
	)

	t.Run(
		"remote failure continues the batch", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			ledger.writeErr = errors.New("quota exceeded")
			recorder := &fakeRecorder{}
			engine := newTestEngine(ledger, recorder)

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{Tokens: []string{"alice:1", "bob:1"}, Actor: actor},
			)
			assert.Equal(
				t,
				[]string{
					"- 1: Error: could not update alice: remote failure.",
					"- 2: Error: could not update bob: remote failure.",
				},
				reportLines(report),
			)
			assert.Empty(t, report.Updated)
			assert.Empty(t, recorder.records)
		},
	)

	t.Run(
		"event type falls back to reason", func(t *testing.T) {
			ledger := newFakeLedger(testLedgerRows()...)
			recorder := &fakeRecorder{err: errors.New("disk full")}
			engine := newTestEngine(ledger, recorder)

			report := engine.ProcessUpdates(
				ctx, UpdateRequest{
					Tokens: []string{"alice:1"},
					Reason: "Raid",
					Actor:  actor,
				},
			)
			// a failed event write doesn't fail the update
			assert.Len(t, report.Updated, 1)

			recorder.err = nil
			engine.ProcessUpdates(
				ctx, UpdateRequest{
					Tokens: []string{"alice:1"},
					Reason: "Raid",
					Actor:  actor,
				},
			)
			require.Len(t, recorder.records, 1)
			assert.Equal(t, "Raid", recorder.records[0].EventType)
		},
	)
}
