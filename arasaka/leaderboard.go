package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
)

const (
	quotaKeyPrefix  = "arasaka:quota:"
	quotaEmbedTitle = "Weekly Event Quota"
	quotaEmbedColor = 0xb3001b
)

// HostTally is one host's hosted-event count for the current week.
type HostTally struct {
	HostID       string           `json:"host_id"`
	HostUsername string           `json:"host_username"`
	Events       int64            `json:"events"`
	ByType       map[string]int64 `json:"by_type"`
}

// QuotaBoard ranks hosts by the number of events hosted since the start
// of the week. When a redis client is set, tallies are kept in sorted
// sets keyed by week, and rebuilt from the database when missing.
type QuotaBoard struct {
	db     DBI
	events *EventLog
	redis  *redis.Client
	ttl    time.Duration
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func NewQuotaBoard(
	db DBI,
	events *EventLog,
	client *redis.Client,
	ttl time.Duration,
	loc *time.Location,
	logger *slog.Logger,
) *QuotaBoard {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if ttl <= 0 {
		ttl = 8 * 24 * time.Hour
	}
	return &QuotaBoard{
		db:     db,
		events: events,
		redis:  client,
		ttl:    ttl,
		loc:    loc,
		logger: logger.With(loggerNameKey, "quota"),
		now:    time.Now,
	}
}

// newRedisClient returns nil when no URL is configured
func newRedisClient(config *RedisConfig) (*redis.Client, error) {
	if config == nil || config.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// weekStart is Monday 00:00 of the week containing t, in loc
func weekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// WeekStart is the start of the current quota week
func (q *QuotaBoard) WeekStart() time.Time {
	return weekStart(q.now(), q.loc)
}

type quotaKeys struct {
	ready  string
	totals string
	names  string
	types  string
	prefix string
}

func (k quotaKeys) byType(eventType string) string {
	return k.prefix + "type:" + eventType
}

func (k quotaKeys) all(types ...string) []string {
	keys := []string{k.ready, k.totals, k.names, k.types}
	for _, t := range types {
		keys = append(keys, k.byType(t))
	}
	return keys
}

func keysForWeek(week time.Time) quotaKeys {
	prefix := quotaKeyPrefix + week.Format(time.DateOnly) + ":"
	return quotaKeys{
		prefix: prefix,
		ready:  prefix + "ready",
		totals: prefix + "totals",
		names:  prefix + "names",
		types:  prefix + "types",
	}
}

// Record stores a hosted event. The redis tallies are only incremented
// once they've been built for the week, otherwise the next Standings
// call rebuilds them (including this event) from the database.
func (q *QuotaBoard) Record(ctx context.Context, hosted *EventHosted) error {
	if err := q.events.RecordHosted(ctx, hosted); err != nil {
		return err
	}
	if q.redis == nil {
		return nil
	}

	keys := keysForWeek(q.WeekStart())
	ready, err := q.redis.Exists(ctx, keys.ready).Result()
	if err != nil {
		q.logger.WarnContext(ctx, "error checking quota cache", tint.Err(err))
		return nil
	}
	if ready == 0 {
		return nil
	}

	pipe := q.redis.TxPipeline()
	pipe.ZIncrBy(ctx, keys.totals, 1, hosted.HostID)
	pipe.HSet(ctx, keys.names, hosted.HostID, hosted.HostUsername)
	pipe.SAdd(ctx, keys.types, hosted.EventType)
	pipe.ZIncrBy(ctx, keys.byType(hosted.EventType), 1, hosted.HostID)
	for _, key := range keys.all(hosted.EventType) {
		pipe.Expire(ctx, key, q.ttl)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		q.logger.WarnContext(ctx, "error updating quota cache", tint.Err(err))
		// the tallies may be partially updated, so drop them
		q.redis.Del(ctx, keys.ready)
	}
	return nil
}

// Standings returns the current week's tallies, most events first.
func (q *QuotaBoard) Standings(ctx context.Context) ([]HostTally, error) {
	week := q.WeekStart()
	if q.redis != nil {
		tallies, err := q.cachedStandings(ctx, week)
		switch {
		case err == nil:
			return tallies, nil
		case errors.Is(err, redis.Nil):
			q.logger.DebugContext(ctx, "quota cache empty, rebuilding")
		default:
			q.logger.WarnContext(ctx, "error reading quota cache", tint.Err(err))
		}
	}

	tallies, err := q.dbStandings(ctx, week)
	if err != nil {
		return nil, err
	}
	if q.redis != nil {
		if err = q.warm(ctx, week, tallies); err != nil {
			q.logger.WarnContext(ctx, "error rebuilding quota cache", tint.Err(err))
		}
	}
	return tallies, nil
}

func (q *QuotaBoard) cachedStandings(ctx context.Context, week time.Time) ([]HostTally, error) {
	keys := keysForWeek(week)
	ready, err := q.redis.Exists(ctx, keys.ready).Result()
	if err != nil {
		return nil, err
	}
	if ready == 0 {
		return nil, redis.Nil
	}

	totals, err := q.redis.ZRevRangeWithScores(ctx, keys.totals, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	names, err := q.redis.HGetAll(ctx, keys.names).Result()
	if err != nil {
		return nil, err
	}
	types, err := q.redis.SMembers(ctx, keys.types).Result()
	if err != nil {
		return nil, err
	}

	byHost := make(map[string]*HostTally, len(totals))
	tallies := make([]HostTally, 0, len(totals))
	for _, z := range totals {
		hostID, _ := z.Member.(string)
		tallies = append(
			tallies,
			HostTally{
				HostID:       hostID,
				HostUsername: names[hostID],
				Events:       int64(z.Score),
				ByType:       map[string]int64{},
			},
		)
	}
	for i := range tallies {
		byHost[tallies[i].HostID] = &tallies[i]
	}
	for _, eventType := range types {
		scores, e := q.redis.ZRangeWithScores(ctx, keys.byType(eventType), 0, -1).Result()
		if e != nil {
			return nil, e
		}
		for _, z := range scores {
			hostID, _ := z.Member.(string)
			if t, ok := byHost[hostID]; ok {
				t.ByType[eventType] = int64(z.Score)
			}
		}
	}
	sortTallies(tallies)
	return tallies, nil
}

type hostedCount struct {
	HostID       string
	HostUsername string
	EventType    string
	Events       int64
}

func (q *QuotaBoard) dbStandings(ctx context.Context, week time.Time) ([]HostTally, error) {
	var counts []hostedCount
	err := q.db.DB().WithContext(ctx).
		Model(&EventHosted{}).
		Select(
			"host_id, max(host_username) as host_username, " +
				"event_type, count(*) as events",
		).
		Where("created_at >= ?", week.UnixMilli()).
		Group("host_id").
		Group("event_type").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("error counting hosted events: %w", err)
	}
	return foldCounts(counts), nil
}

func foldCounts(counts []hostedCount) []HostTally {
	byHost := map[string]*HostTally{}
	var order []string
	for _, c := range counts {
		t, ok := byHost[c.HostID]
		if !ok {
			t = &HostTally{
				HostID:       c.HostID,
				HostUsername: c.HostUsername,
				ByType:       map[string]int64{},
			}
			byHost[c.HostID] = t
			order = append(order, c.HostID)
		}
		t.Events += c.Events
		t.ByType[c.EventType] += c.Events
	}
	tallies := make([]HostTally, 0, len(order))
	for _, id := range order {
		tallies = append(tallies, *byHost[id])
	}
	sortTallies(tallies)
	return tallies
}

func sortTallies(tallies []HostTally) {
	sort.SliceStable(
		tallies, func(i, j int) bool {
			if tallies[i].Events != tallies[j].Events {
				return tallies[i].Events > tallies[j].Events
			}
			return strings.ToLower(tallies[i].HostUsername) <
				strings.ToLower(tallies[j].HostUsername)
		},
	)
}

func (q *QuotaBoard) warm(ctx context.Context, week time.Time, tallies []HostTally) error {
	keys := keysForWeek(week)
	typeSet := map[string]struct{}{}
	for _, t := range tallies {
		for eventType := range t.ByType {
			typeSet[eventType] = struct{}{}
		}
	}
	types := make([]string, 0, len(typeSet))
	for eventType := range typeSet {
		types = append(types, eventType)
	}

	pipe := q.redis.TxPipeline()
	pipe.Del(ctx, keys.all(types...)...)
	for _, t := range tallies {
		pipe.ZAdd(ctx, keys.totals, redis.Z{Score: float64(t.Events), Member: t.HostID})
		pipe.HSet(ctx, keys.names, t.HostID, t.HostUsername)
		for eventType, n := range t.ByType {
			pipe.SAdd(ctx, keys.types, eventType)
			pipe.ZAdd(ctx, keys.byType(eventType), redis.Z{Score: float64(n), Member: t.HostID})
		}
	}
	pipe.Set(ctx, keys.ready, q.now().UnixMilli(), q.ttl)
	for _, key := range keys.all(types...) {
		pipe.Expire(ctx, key, q.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// quotaEmbed lists hosts by number of events hosted this week
func quotaEmbed(tallies []HostTally, week time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: quotaEmbedTitle,
		Color: quotaEmbedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Week of " + week.Format("January 2, 2006"),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(tallies) == 0 {
		embed.Description = "No events have been hosted this week."
		return embed
	}

	var sb strings.Builder
	for i, t := range tallies {
		types := make([]string, 0, len(t.ByType))
		for eventType := range t.ByType {
			types = append(types, eventType)
		}
		sort.Strings(types)
		parts := make([]string, 0, len(types))
		for _, eventType := range types {
			parts = append(parts, fmt.Sprintf("%s: %d", eventType, t.ByType[eventType]))
		}
		plural := "s"
		if t.Events == 1 {
			plural = ""
		}
		fmt.Fprintf(
			&sb,
			"**%d.** <@%s> - %d event%s (%s)\n",
			i+1, t.HostID, t.Events, plural, strings.Join(parts, ", "),
		)
	}
	embed.Description = truncate(strings.TrimSuffix(sb.String(), "\n"), 4096)
	return embed
}
