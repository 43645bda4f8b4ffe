package arasaka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotLinked is returned by the Bloxlink client when a Discord user
// has no linked Roblox account (any non-200 response).
var ErrNotLinked = errors.New("account is not linked")

// DiscordToRoblox is a locally stored link between a Discord user and a
// Roblox username, used when Bloxlink can't resolve a member.
type DiscordToRoblox struct {
	ModelUintID
	ModelUnixTime
	DiscordID      string `json:"discord_id" gorm:"uniqueIndex;not null"`
	RobloxUsername string `json:"roblox_username" gorm:"index;not null"`
}

// BloxlinkClient calls the Bloxlink public API for a single guild.
type BloxlinkClient struct {
	baseURL string
	apiKey  string
	guildID string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewBloxlinkClient(
	config *BloxlinkConfig,
	guildID string,
	httpClient *http.Client,
	logger *slog.Logger,
) *BloxlinkClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BloxlinkClient{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		guildID: guildID,
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  logger.With(loggerNameKey, "bloxlink"),
	}
}

func (b *BloxlinkClient) get(ctx context.Context, path string, v any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/guilds/%s/%s", b.baseURL, url.PathEscape(b.guildID), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", b.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		b.logger.DebugContext(ctx, "bloxlink lookup failed", "path", path, "status", resp.StatusCode)
		return ErrNotLinked
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// DiscordToRoblox returns the Roblox user ID linked to a Discord user.
func (b *BloxlinkClient) DiscordToRoblox(ctx context.Context, discordID string) (int64, error) {
	var body struct {
		RobloxID json.Number `json:"robloxID"`
	}
	if err := b.get(ctx, "discord-to-roblox/"+url.PathEscape(discordID), &body); err != nil {
		return 0, err
	}
	id, err := body.RobloxID.Int64()
	if err != nil {
		return 0, fmt.Errorf("invalid robloxID %q: %w", body.RobloxID, err)
	}
	return id, nil
}

// RobloxToDiscord returns the Discord user IDs linked to a Roblox user.
func (b *BloxlinkClient) RobloxToDiscord(ctx context.Context, robloxID int64) ([]string, error) {
	var body struct {
		DiscordIDs []string `json:"discordIDs"`
	}
	path := "roblox-to-discord/" + strconv.FormatInt(robloxID, 10)
	if err := b.get(ctx, path, &body); err != nil {
		return nil, err
	}
	if len(body.DiscordIDs) == 0 {
		return nil, ErrNotLinked
	}
	return body.DiscordIDs, nil
}

func notLinked(err error) bool {
	return errors.Is(err, ErrNotLinked) || errors.Is(err, ErrRobloxUserNotFound)
}

// MemberDirectory looks up current guild members.
type MemberDirectory interface {
	// MemberIDByDisplayName returns the ID of the member whose display
	// name is exactly name.
	MemberIDByDisplayName(ctx context.Context, name string) (string, bool)
}

// IdentityResolver maps between Discord user IDs and Roblox usernames.
// Lookups fall through, in order: Bloxlink, guild members, the local
// link table, then the ledger's Discord column. Failures along the way
// are logged and never returned.
type IdentityResolver struct {
	bloxlink *BloxlinkClient
	roblox   *RobloxClient
	members  MemberDirectory
	ledger   Ledger
	db       DBI
	logger   *slog.Logger
}

// NewIdentityResolver returns a resolver. Any collaborator may be nil,
// in which case that step is skipped.
func NewIdentityResolver(
	bloxlink *BloxlinkClient,
	roblox *RobloxClient,
	members MemberDirectory,
	ledger Ledger,
	db DBI,
	logger *slog.Logger,
) *IdentityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{
		bloxlink: bloxlink,
		roblox:   roblox,
		members:  members,
		ledger:   ledger,
		db:       db,
		logger:   logger.With(loggerNameKey, "identity"),
	}
}

// ResolveGameUsername returns the Roblox username linked to a Discord
// user, or false if it couldn't be found.
func (r *IdentityResolver) ResolveGameUsername(ctx context.Context, discordID string) (string, bool) {
	logger := r.logger.With("discord_id", discordID)

	if r.bloxlink != nil && r.roblox != nil {
		robloxID, err := r.bloxlink.DiscordToRoblox(ctx, discordID)
		if err == nil {
			var name string
			name, err = r.roblox.Username(ctx, robloxID)
			if err == nil {
				return name, true
			}
		}
		if !notLinked(err) {
			logger.WarnContext(ctx, "bloxlink lookup failed", tint.Err(err))
		}
	}

	if name, ok := r.linkedUsername(ctx, discordID); ok {
		return name, true
	}
	return "", false
}

// ResolveDiscordID returns the Discord user ID for a Roblox username. If
// it can't be resolved, the username is returned as-is with ok false.
func (r *IdentityResolver) ResolveDiscordID(ctx context.Context, gameUsername string) (string, bool) {
	logger := r.logger.With("username", gameUsername)

	if r.bloxlink != nil && r.roblox != nil {
		if id, err := r.bloxlinkDiscordID(ctx, gameUsername); err == nil {
			return id, true
		} else if !notLinked(err) {
			logger.WarnContext(ctx, "bloxlink lookup failed", tint.Err(err))
		}
	}

	if r.members != nil {
		if id, ok := r.members.MemberIDByDisplayName(ctx, gameUsername); ok {
			return id, true
		}
	}

	if r.db != nil {
		var link DiscordToRoblox
		err := r.db.DB().WithContext(ctx).
			Where("lower(roblox_username) = ?", strings.ToLower(gameUsername)).
			Order("updated_at desc").
			Take(&link).Error
		switch {
		case err == nil:
			return link.DiscordID, true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			logger.WarnContext(ctx, "error reading account links", tint.Err(err))
		}
	}

	if r.ledger != nil {
		row, err := r.ledger.Find(ctx, gameUsername)
		switch {
		case err == nil:
			if id, ok := row.DiscordID(); ok {
				return id, true
			}
		case !errors.Is(err, ErrLedgerRowNotFound):
			logger.WarnContext(ctx, "error reading ledger", tint.Err(err))
		}
	}

	logger.DebugContext(ctx, "unable to resolve discord id")
	return gameUsername, false
}

func (r *IdentityResolver) bloxlinkDiscordID(ctx context.Context, gameUsername string) (string, error) {
	robloxID, err := r.roblox.UserID(ctx, gameUsername)
	if err != nil {
		return "", err
	}
	ids, err := r.bloxlink.RobloxToDiscord(ctx, robloxID)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (r *IdentityResolver) linkedUsername(ctx context.Context, discordID string) (string, bool) {
	if r.db == nil {
		return "", false
	}
	var link DiscordToRoblox
	err := r.db.DB().WithContext(ctx).Where("discord_id = ?", discordID).Take(&link).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.WarnContext(ctx, "error reading account links", tint.Err(err))
		}
		return "", false
	}
	return link.RobloxUsername, true
}

// Link stores (or replaces) the Roblox username for a Discord user.
func (r *IdentityResolver) Link(ctx context.Context, discordID, robloxUsername string) error {
	if r.db == nil {
		return errors.New("no database configured")
	}
	link := &DiscordToRoblox{DiscordID: discordID, RobloxUsername: robloxUsername}
	return r.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			return tx.Clauses(
				clause.OnConflict{
					Columns:   []clause.Column{{Name: "discord_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"roblox_username", "updated_at"}),
				},
			).Create(link).Error
		},
	)
}
