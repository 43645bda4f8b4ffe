package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Ledger sheet columns
const (
	columnUsername  = "B"
	columnRank      = "E"
	columnDivision  = "F"
	columnWeeklyXP  = "H"
	columnTotalXP   = "I"
	columnDiscordID = "Q"
)

// SpecialStatus is a non-numeric state stored in the weekly XP column.
type SpecialStatus string

const (
	StatusNone             SpecialStatus = ""
	StatusInactivityNotice SpecialStatus = "IN"
	StatusExempt           SpecialStatus = "EX"
	StatusRecentHire       SpecialStatus = "RH"
)

// Description is the phrase used in report lines, "{user} is {description}".
func (s SpecialStatus) Description() string {
	switch s {
	case StatusInactivityNotice:
		return "on an inactivity notice"
	case StatusExempt:
		return "exempt from receiving XP"
	case StatusRecentHire:
		return "a recent hire"
	default:
		return ""
	}
}

// ParseSpecialStatus returns the status for a cell value, if it is one.
func ParseSpecialStatus(s string) (SpecialStatus, bool) {
	switch st := SpecialStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusInactivityNotice, StatusExempt, StatusRecentHire:
		return st, true
	default:
		return StatusNone, false
	}
}

// WeeklyXP is either a numeric weekly XP value or a SpecialStatus.
// While a status is set, the numeric value is suspended.
type WeeklyXP struct {
	value  float64
	status SpecialStatus
}

func NumericWeekly(v float64) WeeklyXP {
	return WeeklyXP{value: v}
}

func StatusWeekly(s SpecialStatus) WeeklyXP {
	return WeeklyXP{status: s}
}

// Status returns the special status, and whether one is set.
func (w WeeklyXP) Status() (SpecialStatus, bool) {
	return w.status, w.status != StatusNone
}

// Value returns the numeric weekly XP. Statuses count as 0.
func (w WeeklyXP) Value() float64 {
	if w.status != StatusNone {
		return 0
	}
	return w.value
}

// CellValue is what gets written back to the sheet.
func (w WeeklyXP) CellValue() any {
	if w.status != StatusNone {
		return string(w.status)
	}
	return w.value
}

func (w WeeklyXP) String() string {
	if w.status != StatusNone {
		return string(w.status)
	}
	return formatXP(w.value)
}

// ParseWeeklyXP reads a weekly XP cell. Empty cells are 0.
func ParseWeeklyXP(s string) (WeeklyXP, error) {
	if st, ok := ParseSpecialStatus(s); ok {
		return StatusWeekly(st), nil
	}
	v, err := parseXPCell(s)
	if err != nil {
		return WeeklyXP{}, err
	}
	return NumericWeekly(v), nil
}

func parseXPCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if _, ok := ParseSpecialStatus(s); ok {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid xp value %q: %w", s, err)
	}
	return v, nil
}

// formatXP renders XP without trailing zeros, e.g. 10 or 2.5
func formatXP(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LedgerRow is one member's record in the ledger.
type LedgerRow struct {
	// Row is the 1-indexed sheet row
	Row      int      `json:"row"`
	Username string   `json:"username"`
	Rank     string   `json:"rank"`
	Division string   `json:"division"`
	Weekly   WeeklyXP `json:"-"`
	Total    float64  `json:"total_xp"`
	// DiscordRef is the raw identity cell, like ":123456789"
	DiscordRef string `json:"discord_ref,omitempty"`
}

func (r LedgerRow) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("row", r.Row),
		slog.String("username", r.Username),
		slog.String("rank", r.Rank),
		slog.String("weekly_xp", r.Weekly.String()),
		slog.Float64("total_xp", r.Total),
	)
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// DiscordID parses the digits out of the identity cell.
func (r LedgerRow) DiscordID() (string, bool) {
	id := nonDigits.ReplaceAllString(r.DiscordRef, "")
	return id, id != ""
}

// ErrLedgerRowNotFound is returned by Ledger.Find when no row matches.
var ErrLedgerRowNotFound = errors.New("ledger row not found")

// Ledger is the remote record store holding one row per member.
// Implementations do no internal locking; the remote store's
// last-write-wins semantics apply.
type Ledger interface {
	// Find returns the row whose username matches case-insensitively.
	Find(ctx context.Context, username string) (LedgerRow, error)
	// Row reads the row with the given 1-indexed row number.
	Row(ctx context.Context, row int) (LedgerRow, error)
	// Usernames returns every username in the ledger, in row order,
	// excluding the header.
	Usernames(ctx context.Context) ([]string, error)
	// WriteXP writes the weekly and total XP cells of a row in one
	// range write.
	WriteXP(ctx context.Context, row int, weekly WeeklyXP, total float64) error
	// WriteWeekly writes only the weekly XP cell.
	WriteWeekly(ctx context.Context, row int, weekly WeeklyXP) error
	// WriteRank writes the rank cell.
	WriteRank(ctx context.Context, row int, rank string) error
	// Append adds a new member row.
	Append(ctx context.Context, row LedgerRow) error
	// Delete removes a row, shifting the rows below it up.
	Delete(ctx context.Context, row int) error
}
