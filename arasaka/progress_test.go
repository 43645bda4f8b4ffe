package arasaka

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	calc := DefaultCalculator()

	t.Run(
		"partway to next rank", func(t *testing.T) {
			p := calc.ComputeProgress(
				LedgerRow{Rank: RankInitiate, Weekly: NumericWeekly(6), Total: 10},
			)
			assert.Equal(t, RankJuniorOperative, p.NextRank)
			assert.Equal(t, float64(5), p.XPRemaining)
			assert.InDelta(t, 10.0/15.0, p.Fraction, 0.0001)
			assert.False(t, p.Eligible)
			assert.False(t, p.Locked)
			assert.Equal(t, QuotaMet, p.Quota.Kind)
			assert.Equal(t, "met", p.Quota.Label)

			assert.Equal(
				t,
				strings.Repeat(progressBarFilled, 6)+
					strings.Repeat(progressBarEmpty, 4)+" **66.67%**",
				p.ProgressBar(),
			)
			assert.Equal(t, "✅ **6**/6 WP", p.QuotaText())
		},
	)

	t.Run(
		"eligible is not promotion", func(t *testing.T) {
			p := calc.ComputeProgress(
				LedgerRow{Rank: RankOperative, Weekly: NumericWeekly(1), Total: 75},
			)
			assert.Equal(t, RankOperative, p.CurrentRank)
			assert.Equal(t, RankSpecialist, p.NextRank)
			assert.True(t, p.Eligible)
			assert.Equal(t, float64(1), p.Fraction)
			assert.Zero(t, p.XPRemaining)
			assert.Contains(t, p.ProgressBar(), "Pending Promotion")
			assert.Equal(t, QuotaUnmet, p.Quota.Kind)
			assert.Equal(t, "⬛ **1**/6 WP", p.QuotaText())
		},
	)

	t.Run(
		"below current threshold", func(t *testing.T) {
			p := calc.ComputeProgress(
				LedgerRow{Rank: RankSpecialist, Total: 20},
			)
			assert.Zero(t, p.Fraction)
			assert.Equal(t, float64(60), p.XPRemaining)
		},
	)

	t.Run(
		"terminal rank", func(t *testing.T) {
			p := calc.ComputeProgress(
				LedgerRow{
					Rank:   RankSergeant,
					Weekly: StatusWeekly(StatusExempt),
					Total:  500,
				},
			)
			assert.True(t, p.Locked)
			assert.True(t, p.Terminal)
			assert.Empty(t, p.NextRank)
			assert.Equal(t, QuotaExempt, p.Quota.Kind)
			assert.Equal(t, "**Quota Exempt**", p.QuotaText())
			assert.Equal(t, strings.Repeat(progressBarEmpty, progressBarCells)+"🔒", p.ProgressBar())
		},
	)

	t.Run(
		"rank off the ladder", func(t *testing.T) {
			p := calc.ComputeProgress(
				LedgerRow{
					Rank:   "Commander",
					Weekly: NumericWeekly(2),
					Total:  900,
				},
			)
			assert.True(t, p.Locked)
			assert.False(t, p.Terminal)
			assert.Equal(t, QuotaUnmet, p.Quota.Kind)
			assert.Equal(t, float64(4), p.Quota.Required)
		},
	)

	t.Run(
		"rank without a quota", func(t *testing.T) {
			p := calc.ComputeProgress(
				LedgerRow{Rank: "Clan Leader", Weekly: NumericWeekly(3)},
			)
			assert.Equal(t, QuotaUnknown, p.Quota.Kind)
			assert.Equal(t, "**3** WP", p.QuotaText())
		},
	)
}

func TestQuotaStatuses(t *testing.T) {
	calc := DefaultCalculator()

	testCases := []struct {
		status   SpecialStatus
		kind     QuotaKind
		contains string
	}{
		{StatusInactivityNotice, QuotaInactive, "inactivity notice"},
		{StatusExempt, QuotaExempt, "exempt from quota"},
		{StatusRecentHire, QuotaRecentHire, "new recruit"},
	}
	for _, tc := range testCases {
		t.Run(
			string(tc.status), func(t *testing.T) {
				p := calc.ComputeProgress(
					LedgerRow{
						Rank:   RankInitiate,
						Weekly: StatusWeekly(tc.status),
						Total:  3,
					},
				)
				assert.Equal(t, tc.kind, p.Quota.Kind)
				assert.Zero(t, p.Quota.Weekly)
				assert.Contains(t, p.QuotaText(), tc.contains)
			},
		)
	}
}
