package arasaka

import (
	"fmt"
	"math"
	"strings"
)

const (
	progressBarCells  = 10
	progressBarFilled = "🟥"
	progressBarEmpty  = "⬛"
)

// QuotaKind classifies a member's weekly quota standing.
type QuotaKind int

const (
	QuotaUnknown QuotaKind = iota
	QuotaMet
	QuotaUnmet
	QuotaExempt
	QuotaInactive
	QuotaRecentHire
)

func (k QuotaKind) String() string {
	switch k {
	case QuotaMet:
		return "met"
	case QuotaUnmet:
		return "unmet"
	case QuotaExempt:
		return "exempt"
	case QuotaInactive:
		return "inactivity notice"
	case QuotaRecentHire:
		return "recent hire exemption"
	default:
		return "unknown"
	}
}

// QuotaStatus is the weekly XP standing against the rank's quota.
type QuotaStatus struct {
	Kind     QuotaKind `json:"-"`
	Label    string    `json:"status"`
	Weekly   float64   `json:"weekly_xp"`
	Required float64   `json:"required"`
}

// Progress is a member's standing on the rank ladder.
type Progress struct {
	CurrentRank string `json:"current_rank"`
	// NextRank is empty when Locked
	NextRank    string  `json:"next_rank,omitempty"`
	XPRemaining float64 `json:"xp_remaining"`
	// Fraction is clamped to [0,1]
	Fraction float64 `json:"progress_fraction"`
	// Eligible is set when the next threshold has been reached. Promotion
	// itself is a separate, manual action.
	Eligible bool `json:"eligible"`
	// Locked is set when there is no next rank by XP, either because the
	// rank is the last on the ladder (Terminal) or isn't on it at all.
	Locked   bool        `json:"locked"`
	Terminal bool        `json:"terminal"`
	Quota    QuotaStatus `json:"quota"`
}

// Calculator derives rank progress and quota compliance from ledger rows.
type Calculator struct {
	Ladder RankLadder
	Quotas QuotaTable
}

func NewCalculator(ladder RankLadder, quotas QuotaTable) (*Calculator, error) {
	if err := ladder.validate(); err != nil {
		return nil, err
	}
	return &Calculator{Ladder: ladder, Quotas: quotas}, nil
}

func DefaultCalculator() *Calculator {
	return &Calculator{Ladder: DefaultLadder(), Quotas: DefaultQuotaTable()}
}

// ComputeProgress never promotes; ranks off the ladder yield a locked
// result rather than an error.
func (c *Calculator) ComputeProgress(row LedgerRow) Progress {
	p := Progress{
		CurrentRank: row.Rank,
		Quota:       c.quotaStatus(row),
	}

	next, terminal, ok := c.Ladder.Next(row.Rank)
	switch {
	case !ok:
		p.Locked = true
		return p
	case terminal:
		p.Locked = true
		p.Terminal = true
		return p
	}

	current, _ := c.Ladder.Threshold(row.Rank)
	raw := (row.Total - current) / (next.Threshold - current)
	p.NextRank = next.Name
	p.XPRemaining = math.Max(0, next.Threshold-row.Total)
	p.Eligible = raw >= 1
	p.Fraction = math.Max(0, math.Min(raw, 1))
	return p
}

func (c *Calculator) quotaStatus(row LedgerRow) QuotaStatus {
	q := c.classifyQuota(row)
	q.Label = q.Kind.String()
	return q
}

func (c *Calculator) classifyQuota(row LedgerRow) QuotaStatus {
	q := QuotaStatus{Weekly: row.Weekly.Value()}
	required, hasQuota := c.Quotas[row.Rank]
	q.Required = required

	if status, ok := row.Weekly.Status(); ok {
		switch status {
		case StatusExempt:
			q.Kind = QuotaExempt
		case StatusInactivityNotice:
			q.Kind = QuotaInactive
		case StatusRecentHire:
			q.Kind = QuotaRecentHire
		}
		return q
	}
	switch {
	case !hasQuota:
		q.Kind = QuotaUnknown
	case q.Weekly >= required:
		q.Kind = QuotaMet
	default:
		q.Kind = QuotaUnmet
	}
	return q
}

// progressBar renders a fraction as a fixed-width bar of cells.
func progressBar(fraction float64) string {
	filled := int(math.Max(0, math.Min(fraction, 1)) * progressBarCells)
	return strings.Repeat(progressBarFilled, filled) +
		strings.Repeat(progressBarEmpty, progressBarCells-filled)
}

// ProgressBar renders the progress field shown by xp view.
func (p Progress) ProgressBar() string {
	switch {
	case p.Locked:
		return strings.Repeat(progressBarEmpty, progressBarCells) + "🔒"
	case p.Eligible:
		return progressBar(1) + " **100%** | **Pending Promotion**"
	default:
		return fmt.Sprintf(
			"%s **%s%%**",
			progressBar(p.Fraction),
			formatXP(math.Round(p.Fraction*10000)/100),
		)
	}
}

// QuotaText renders the quota field shown by xp view.
func (p Progress) QuotaText() string {
	q := p.Quota
	switch q.Kind {
	case QuotaRecentHire:
		return "✅ You're marked as being a new recruit, so you're exempt from the quota for this week!"
	case QuotaInactive:
		if p.Locked {
			return "**Inactivity Notice**"
		}
		return "**You're marked as being on an inactivity notice, so you're exempt from the quota for this week.**"
	case QuotaExempt:
		if p.Locked {
			return "**Quota Exempt**"
		}
		return "**You're marked as being exempt from quota.**"
	case QuotaMet:
		return fmt.Sprintf("✅ **%s**/%s WP", formatXP(q.Weekly), formatXP(q.Required))
	case QuotaUnmet:
		return fmt.Sprintf("⬛ **%s**/%s WP", formatXP(q.Weekly), formatXP(q.Required))
	default:
		return fmt.Sprintf("**%s** WP", formatXP(q.Weekly))
	}
}
