package arasaka

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	recentEventsLimit = 3
	recentEventFormat = "1/2 3:04 PM MST"
)

// EventRecord is an append-only entry for one XP grant, shown in the
// "Recent Events" section of /xp view.
type EventRecord struct {
	ModelUintID

	HostUsername     string  `json:"host_username" gorm:"index"`
	HostID           string  `json:"host_id" gorm:"index"`
	AttendeeUsername string  `json:"attendee_username" gorm:"index"`
	AttendeeID       string  `json:"attendee_id" gorm:"index"`
	EventType        string  `json:"event_type"`
	XPAwarded        float64 `json:"xp_awarded"`
	CreatedAt        int64   `json:"created_at" gorm:"autoCreateTime:milli;index"`
}

func (e EventRecord) LogValue() slog.Value {
	return structToSlogValue(e)
}

// EventHosted is written once per /xp-manage update, and counted toward
// the host's weekly event quota.
type EventHosted struct {
	ModelUintID

	HostID       string `json:"host_id" gorm:"index;not null"`
	HostUsername string `json:"host_username"`
	EventType    string `json:"event_type"`
	Attendees    int    `json:"attendees"`
	CreatedAt    int64  `json:"created_at" gorm:"autoCreateTime:milli;index"`
}

// EventQuery selects event records where any of the given names or IDs
// appears as the host or the attendee.
type EventQuery struct {
	Usernames  []string
	DiscordIDs []string
	Limit      int
	Offset     int
}

func (q EventQuery) empty() bool {
	return len(q.Usernames) == 0 && len(q.DiscordIDs) == 0
}

// EventLog reads and writes EventRecord rows.
type EventLog struct {
	db     DBI
	logger *slog.Logger
}

func NewEventLog(db DBI, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{db: db, logger: logger.With(loggerNameKey, "events")}
}

func (l *EventLog) RecordEvent(ctx context.Context, record *EventRecord) error {
	if _, err := l.db.Create(ctx, record); err != nil {
		return fmt.Errorf("error recording event: %w", err)
	}
	l.logger.DebugContext(ctx, "recorded event", "event", record)
	return nil
}

// RecordHosted stores an EventHosted row
func (l *EventLog) RecordHosted(ctx context.Context, hosted *EventHosted) error {
	if _, err := l.db.Create(ctx, hosted); err != nil {
		return fmt.Errorf("error recording hosted event: %w", err)
	}
	return nil
}

func (l *EventLog) filter(ctx context.Context, q EventQuery) *gorm.DB {
	var (
		exprs []string
		args  []any
	)
	for _, name := range dedupe(q.Usernames) {
		exprs = append(exprs, "host_username = ?", "attendee_username = ?")
		args = append(args, name, name)
	}
	for _, id := range dedupe(q.DiscordIDs) {
		exprs = append(exprs, "host_id = ?", "attendee_id = ?")
		args = append(args, id, id)
	}
	return l.db.DB().WithContext(ctx).
		Model(&EventRecord{}).
		Where(strings.Join(exprs, " OR "), args...)
}

// Query returns matching records, newest first, and the total number of
// matching records ignoring Limit and Offset.
func (l *EventLog) Query(ctx context.Context, q EventQuery) (
	records []EventRecord,
	total int64,
	err error,
) {
	if q.empty() {
		return nil, 0, nil
	}
	if err = l.filter(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	db := l.filter(ctx, q).Order("created_at desc").Order("id desc")
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	err = db.Find(&records).Error
	return records, total, err
}

// Recent returns the three newest matching records and the total count
func (l *EventLog) Recent(ctx context.Context, q EventQuery) ([]EventRecord, int64, error) {
	q.Limit = recentEventsLimit
	q.Offset = 0
	return l.Query(ctx, q)
}

// formatRecentEvents renders records as diff lines, with a trailing
// count of the records not shown.
func formatRecentEvents(records []EventRecord, total int64, loc *time.Location) string {
	if len(records) == 0 {
		return "No recent events found."
	}
	lines := make([]string, 0, len(records)+1)
	for _, r := range records {
		at := time.UnixMilli(r.CreatedAt).In(loc)
		lines = append(
			lines,
			fmt.Sprintf(
				"+ Received %s XP from %s at %s (%s)",
				formatXP(r.XPAwarded),
				r.EventType,
				at.Format(recentEventFormat),
				r.HostUsername,
			),
		)
	}
	if more := total - int64(len(records)); more > 0 {
		lines = append(lines, fmt.Sprintf("... %d more events", more))
	}
	return "```diff\n" + strings.Join(lines, "\n") + "\n```"
}

// dedupe drops empty and repeated values, keeping the first occurrence
func dedupe(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
