package arasaka

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// MaxXPDelta is the largest XP change a single token may apply, in
// either direction, to either field.
const MaxXPDelta = 50

// tokens containing this are placeholders (ex: an event with no co-host)
const skipTokenMarker = "N/A"

type UpdateMode int

const (
	// SingleDelta is "username:xp", applied to weekly and total XP
	SingleDelta UpdateMode = iota + 1
	// DualDelta is "username:weekly_xp:total_xp"
	DualDelta
)

// BulkUpdateLine is one parsed token of a bulk XP update.
type BulkUpdateLine struct {
	Token       string
	Username    string
	Mode        UpdateMode
	DeltaWeekly float64
	DeltaTotal  float64
}

// Awarded is the XP recorded in the event log for this line.
func (l BulkUpdateLine) Awarded() float64 {
	return l.DeltaWeekly
}

// ErrUnauthorized is returned when the actor lacks the rank or role to
// perform an operation. It is checked before anything is mutated.
var ErrUnauthorized = errors.New("you do not have permission to use this command")

// FormatError is a malformed update token.
type FormatError struct {
	Token string
	// Value is set when a numeric field failed to parse
	Value string
}

func (e *FormatError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf(
			"Invalid XP value: `%s`. Please provide a valid number for XP.",
			e.Value,
		)
	}
	return fmt.Sprintf(
		"Invalid username format: `%s`. Please use the format "+
			"`username:XP` or `username:weekly_xp:total_xp`.",
		e.Token,
	)
}

// RangeError is a delta whose magnitude exceeds MaxXPDelta.
type RangeError struct {
	Username string
	Delta    float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf(
		"You can only add/remove up to %d XP at a time.",
		MaxXPDelta,
	)
}

// NotFoundError is a username that isn't in the ledger, even after
// fuzzy matching.
type NotFoundError struct {
	Username string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(
		"%s not found in spreadsheet, and no close match could be identified.",
		e.Username,
	)
}

// RemoteError wraps a failed call to the ledger or an external API for
// a single unit of work.
type RemoteError struct {
	Op       string
	Username string
	Err      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Username, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ParseUpdateToken parses "username:xp" or "username:weekly_xp:total_xp".
// Deltas over MaxXPDelta are returned alongside a *RangeError so the
// caller can still report which member was affected.
func ParseUpdateToken(token string) (BulkUpdateLine, error) {
	token = strings.TrimSpace(token)
	line := BulkUpdateLine{Token: token}

	parts := strings.Split(token, ":")
	switch len(parts) {
	case 2:
		line.Mode = SingleDelta
	case 3:
		line.Mode = DualDelta
	default:
		return line, &FormatError{Token: token}
	}

	line.Username = strings.TrimSpace(parts[0])
	if line.Username == "" {
		return line, &FormatError{Token: token}
	}

	deltas := make([]float64, 0, 2)
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return line, &FormatError{Token: token, Value: p}
		}
		deltas = append(deltas, v)
	}

	if line.Mode == SingleDelta {
		line.DeltaWeekly, line.DeltaTotal = deltas[0], deltas[0]
	} else {
		line.DeltaWeekly, line.DeltaTotal = deltas[0], deltas[1]
	}

	for _, d := range deltas {
		if math.Abs(d) > MaxXPDelta {
			return line, &RangeError{Username: line.Username, Delta: d}
		}
	}
	return line, nil
}

// applyDelta floors at zero when removing XP, and has no ceiling when
// adding it.
func applyDelta(old, delta float64) float64 {
	if delta < 0 {
		return math.Max(0, old+delta)
	}
	return old + delta
}

// calculateNewXP applies a line to the current values. A weekly value
// holding a special status is left as-is; the total is always updated.
func calculateNewXP(
	weekly WeeklyXP,
	total float64,
	line BulkUpdateLine,
) (WeeklyXP, float64) {
	newWeekly := weekly
	if _, ok := weekly.Status(); !ok {
		newWeekly = NumericWeekly(applyDelta(weekly.Value(), line.DeltaWeekly))
	}
	return newWeekly, applyDelta(total, line.DeltaTotal)
}

// Confirmer proposes a fuzzy username match to the invoking user and
// waits, bounded, for their answer. A timeout is a decline.
type Confirmer interface {
	ConfirmMatch(ctx context.Context, username string, match string) (bool, error)
}

// DiscordIDResolver maps a game username to a Discord user ID.
// ok is false when the ID could not be resolved, in which case the
// returned value is the username itself.
type DiscordIDResolver interface {
	ResolveDiscordID(ctx context.Context, gameUsername string) (id string, ok bool)
}

// EventRecorder appends XP-granting actions to the event log.
type EventRecorder interface {
	RecordEvent(ctx context.Context, record *EventRecord) error
}

// Actor is the member running a command.
type Actor struct {
	ID          string
	DisplayName string
}

func (a Actor) Mention() string {
	return fmt.Sprintf("<@%s>", a.ID)
}

// UpdateRequest is a bulk XP update.
type UpdateRequest struct {
	Tokens []string
	Reason string
	// EventType is recorded on each EventRecord. Reason is used if empty.
	EventType string
	Actor     Actor
	// Confirmer handles fuzzy matches. When nil, matches are declined.
	Confirmer Confirmer
}

type outcomeKind int

const (
	outcomeUpdated outcomeKind = iota + 1
	outcomeOutOfRange
	outcomeNotFound
	outcomeRemoteFailure
)

// tokenOutcome is the resolved result for one token, from which the
// report lines are rendered.
type tokenOutcome struct {
	kind     outcomeKind
	line     BulkUpdateLine
	username string
	// matchedFrom is the original username when a fuzzy match was accepted
	matchedFrom string
	status      SpecialStatus
	err         error
}

// UpdatedMember is a member whose ledger row was changed.
type UpdatedMember struct {
	Username     string
	DiscordID    string
	Resolved     bool
	BeforeWeekly WeeklyXP
	BeforeTotal  float64
	AfterWeekly  WeeklyXP
	AfterTotal   float64
}

// Mention is a ping for a resolved member, or their username.
func (m UpdatedMember) Mention() string {
	if m.Resolved {
		return fmt.Sprintf("<@%s>", m.DiscordID)
	}
	return m.Username
}

// LineKind distinguishes report lines, rendered as a diff block.
type LineKind int

const (
	LineSuccess LineKind = iota + 1
	LineWarning
	LineError
)

type ReportLine struct {
	Number int
	Kind   LineKind
	Text   string
}

func (l ReportLine) String() string {
	prefix := "-"
	if l.Kind == LineSuccess {
		prefix = "+"
	}
	return fmt.Sprintf("%s %d: %s", prefix, l.Number, l.Text)
}

// UpdateReport is delivered once, after the whole batch is processed.
type UpdateReport struct {
	Tokens   []string
	Reason   string
	Actor    Actor
	Lines    []ReportLine
	Rejected []error
	Updated  []UpdatedMember
}

func (r *UpdateReport) Title() string {
	return "XP Update"
}

func (r *UpdateReport) Description() string {
	return fmt.Sprintf(
		"Processing XP update for %s.\n**Reason:** %s",
		strings.Join(r.Tokens, ", "),
		r.Reason,
	)
}

func (r *UpdateReport) Footer() string {
	return fmt.Sprintf("Authorized by: %s", r.Actor.DisplayName)
}

// ConsoleOutput renders the lines as a diff code block.
func (r *UpdateReport) ConsoleOutput() string {
	var sb strings.Builder
	sb.WriteString("```diff\n")
	for _, l := range r.Lines {
		sb.WriteString(l.String())
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return sb.String()
}

func gainedOrLost(v float64) string {
	if v >= 0 {
		return "gained"
	}
	return "lost"
}

// renderLines builds the numbered report lines. Line numbers are
// shared: an accepted fuzzy match takes a number of its own, while a
// status warning shares the number of the line that follows it.
func renderLines(outcomes []tokenOutcome) []ReportLine {
	var lines []ReportLine
	n := 1
	add := func(kind LineKind, text string, consume bool) {
		lines = append(lines, ReportLine{Number: n, Kind: kind, Text: text})
		if consume {
			n++
		}
	}
	for _, o := range outcomes {
		if o.matchedFrom != "" {
			add(
				LineSuccess,
				fmt.Sprintf("Proceeding with closest match: %s.", o.username),
				true,
			)
		}
		switch o.kind {
		case outcomeOutOfRange, outcomeNotFound:
			add(LineError, "Error: "+o.err.Error(), true)
		case outcomeRemoteFailure:
			add(
				LineError,
				fmt.Sprintf("Error: could not update %s: remote failure.", o.username),
				true,
			)
		case outcomeUpdated:
			if o.status != StatusNone {
				add(
					LineWarning,
					fmt.Sprintf(
						"Warning: %s is %s. (WP will not be updated, only TP will be)",
						o.username, o.status.Description(),
					),
					false,
				)
			}
			l := o.line
			var text string
			if l.Mode == SingleDelta {
				text = fmt.Sprintf(
					"Success: %s %s %s XP.",
					o.username,
					gainedOrLost(l.DeltaTotal),
					formatXP(math.Abs(l.DeltaTotal)),
				)
			} else {
				text = fmt.Sprintf(
					"Success: %s %s %s weekly XP and %s %s total XP.",
					o.username,
					gainedOrLost(l.DeltaWeekly),
					formatXP(math.Abs(l.DeltaWeekly)),
					gainedOrLost(l.DeltaTotal),
					formatXP(math.Abs(l.DeltaTotal)),
				)
			}
			add(LineSuccess, text, true)
		}
	}
	return lines
}

// XPEngine applies bulk XP updates to the ledger.
type XPEngine struct {
	ledger   Ledger
	identity DiscordIDResolver
	events   EventRecorder
	logger   *slog.Logger
	cutoff   float64
	now      func() time.Time
}

func NewXPEngine(
	ledger Ledger,
	identity DiscordIDResolver,
	events EventRecorder,
	logger *slog.Logger,
) *XPEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &XPEngine{
		ledger:   ledger,
		identity: identity,
		events:   events,
		logger:   logger.With(loggerNameKey, "xp"),
		cutoff:   defaultMatchCutoff,
		now:      time.Now,
	}
}

// ProcessUpdates processes every token in order, one at a time. A bad
// token never aborts the batch; it's reported and the next one is
// processed.
func (e *XPEngine) ProcessUpdates(ctx context.Context, req UpdateRequest) *UpdateReport {
	logger, ok := ContextLogger(ctx)
	if !ok {
		logger = e.logger
	}
	report := &UpdateReport{
		Tokens: req.Tokens,
		Reason: req.Reason,
		Actor:  req.Actor,
	}

	var (
		outcomes     []tokenOutcome
		allUsernames []string
	)

	for _, token := range req.Tokens {
		token = strings.TrimSpace(token)
		if token == "" || strings.Contains(token, skipTokenMarker) {
			continue
		}

		line, err := ParseUpdateToken(token)
		var rangeErr *RangeError
		switch {
		case errors.As(err, &rangeErr):
			outcomes = append(
				outcomes,
				tokenOutcome{
					kind:     outcomeOutOfRange,
					line:     line,
					username: line.Username,
					err:      err,
				},
			)
			continue
		case err != nil:
			logger.InfoContext(ctx, "rejected token", "token", token, tint.Err(err))
			report.Rejected = append(report.Rejected, err)
			continue
		}

		outcome := tokenOutcome{line: line, username: line.Username}
		row, err := e.ledger.Find(ctx, line.Username)
		if errors.Is(err, ErrLedgerRowNotFound) {
			err = nil
			if allUsernames == nil {
				allUsernames, err = e.ledger.Usernames(ctx)
			}
			if err == nil {
				row, err = e.fuzzyFind(ctx, req.Confirmer, line.Username, allUsernames)
				if err == nil {
					outcome.matchedFrom = line.Username
					outcome.username = row.Username
				}
			}
		}

		var notFound *NotFoundError
		switch {
		case errors.As(err, &notFound):
			outcome.kind = outcomeNotFound
			outcome.err = err
			outcomes = append(outcomes, outcome)
			continue
		case err != nil:
			logger.ErrorContext(
				ctx, "error looking up ledger row",
				"username", line.Username,
				tint.Err(err),
			)
			outcome.kind = outcomeRemoteFailure
			outcome.err = &RemoteError{Op: "find", Username: line.Username, Err: err}
			outcomes = append(outcomes, outcome)
			continue
		}

		outcome.status, _ = row.Weekly.Status()
		member, err := e.apply(ctx, req, row, line)
		if err != nil {
			logger.ErrorContext(
				ctx, "error updating ledger row",
				"row", row,
				tint.Err(err),
			)
			outcome.kind = outcomeRemoteFailure
			outcome.err = err
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.kind = outcomeUpdated
		outcomes = append(outcomes, outcome)
		report.Updated = append(report.Updated, member)
	}

	report.Lines = renderLines(outcomes)
	return report
}

// fuzzyFind looks for a single close match and, if one exists, asks the
// confirmer before using it.
func (e *XPEngine) fuzzyFind(
	ctx context.Context,
	confirmer Confirmer,
	username string,
	candidates []string,
) (LedgerRow, error) {
	matches := closeMatches(username, candidates, 1, e.cutoff)
	if len(matches) == 0 || confirmer == nil {
		return LedgerRow{}, &NotFoundError{Username: username}
	}
	ok, err := confirmer.ConfirmMatch(ctx, username, matches[0])
	if err != nil {
		e.logger.WarnContext(
			ctx, "match confirmation failed",
			"username", username,
			"match", matches[0],
			tint.Err(err),
		)
	}
	if !ok {
		return LedgerRow{}, &NotFoundError{Username: username}
	}
	return e.ledger.Find(ctx, matches[0])
}

// apply writes the new values, then resolves the member's Discord ID and
// records the event. Only the ledger write can fail the unit of work.
func (e *XPEngine) apply(
	ctx context.Context,
	req UpdateRequest,
	row LedgerRow,
	line BulkUpdateLine,
) (UpdatedMember, error) {
	weekly, total := calculateNewXP(row.Weekly, row.Total, line)
	if err := e.ledger.WriteXP(ctx, row.Row, weekly, total); err != nil {
		return UpdatedMember{}, &RemoteError{
			Op:       "write",
			Username: row.Username,
			Err:      err,
		}
	}

	member := UpdatedMember{
		Username:     row.Username,
		BeforeWeekly: row.Weekly,
		BeforeTotal:  row.Total,
		AfterWeekly:  weekly,
		AfterTotal:   total,
	}
	if e.identity != nil {
		member.DiscordID, member.Resolved = e.identity.ResolveDiscordID(ctx, row.Username)
	}

	if e.events != nil {
		record := &EventRecord{
			HostUsername:     req.Actor.DisplayName,
			HostID:           req.Actor.ID,
			AttendeeUsername: row.Username,
			EventType:        cmp.Or(req.EventType, req.Reason),
			XPAwarded:        line.Awarded(),
			CreatedAt:        e.now().UnixMilli(),
		}
		if member.Resolved {
			record.AttendeeID = member.DiscordID
		}
		if err := e.events.RecordEvent(ctx, record); err != nil {
			e.logger.ErrorContext(
				ctx, "error recording event",
				"username", row.Username,
				tint.Err(err),
			)
		}
	}
	return member, nil
}
