package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermitTier is a bot administrator level. Higher tiers include the
// permissions of lower ones.
type PermitTier int

const (
	PermitNone PermitTier = iota
	PermitBotManager
	PermitAdmin
	PermitSudoAdmin
	PermitOwner
)

func (t PermitTier) String() string {
	switch t {
	case PermitBotManager:
		return "Bot Manager"
	case PermitAdmin:
		return "Administrator"
	case PermitSudoAdmin:
		return "Sudo Administrator"
	case PermitOwner:
		return "Owner"
	default:
		return "None"
	}
}

func (t PermitTier) Valid() bool {
	return t >= PermitBotManager && t <= PermitOwner
}

var (
	ErrAdminNotFound       = errors.New("no record found")
	ErrAlreadyBlacklisted  = errors.New("user is already blacklisted")
	ErrBlacklistNotFound   = errors.New("user is not blacklisted")
	ErrInvalidPermitTier   = errors.New("permit level must be between 1 and 4")
	blacklistDefaultReason = "No reason given."
)

// Administrator is a bot administrator, set with /permit.
type Administrator struct {
	ModelUintID
	ModelUnixTime
	DiscordID string     `json:"discord_id" gorm:"uniqueIndex;not null"`
	TierLevel PermitTier `json:"tier_level" gorm:"not null;default:1"`
}

// AdminLog records administrative actions taken through the bot.
type AdminLog struct {
	ModelUintID
	DiscordID string `json:"discord_id" gorm:"index;not null"`
	Action    string `json:"action" gorm:"not null"`
	Content   string `json:"content" gorm:"default:N/A"`
	CreatedAt int64  `json:"created_at" gorm:"autoCreateTime:milli;index"`
}

// Blacklist holds users who may not use any command.
type Blacklist struct {
	ModelUintID
	DiscordID string `json:"discord_id" gorm:"uniqueIndex;not null"`
	Reason    string `json:"reason"`
	AddedBy   string `json:"added_by"`
	CreatedAt int64  `json:"created_at" gorm:"autoCreateTime:milli"`
}

// Permits manages bot administrators and the blacklist.
type Permits struct {
	db       DBI
	ownerIDs []string
	logger   *slog.Logger
}

func NewPermits(db DBI, ownerIDs []string, logger *slog.Logger) *Permits {
	if logger == nil {
		logger = slog.Default()
	}
	return &Permits{
		db:       db,
		ownerIDs: ownerIDs,
		logger:   logger.With(loggerNameKey, "permits"),
	}
}

// Tier returns the user's permit tier. Configured owners are always
// PermitOwner.
func (p *Permits) Tier(ctx context.Context, discordID string) (PermitTier, error) {
	if slices.Contains(p.ownerIDs, discordID) {
		return PermitOwner, nil
	}
	var admin Administrator
	err := p.db.DB().WithContext(ctx).Where("discord_id = ?", discordID).Take(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return PermitNone, nil
	case err != nil:
		return PermitNone, err
	}
	return admin.TierLevel, nil
}

// HasTier is true if the user's tier is at least min. Lookup errors are
// logged, and treated as no permit.
func (p *Permits) HasTier(ctx context.Context, discordID string, minTier PermitTier) bool {
	tier, err := p.Tier(ctx, discordID)
	if err != nil {
		p.logger.ErrorContext(ctx, "error checking permit", "discord_id", discordID, tint.Err(err))
		return false
	}
	return tier >= minTier
}

// SetTier adds the user as an administrator, or updates their tier
func (p *Permits) SetTier(ctx context.Context, actorID, discordID string, tier PermitTier) error {
	if !tier.Valid() {
		return ErrInvalidPermitTier
	}
	admin := &Administrator{DiscordID: discordID, TierLevel: tier}
	err := p.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			if err := tx.Clauses(
				clause.OnConflict{
					Columns:   []clause.Column{{Name: "discord_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"tier_level", "updated_at"}),
				},
			).Create(admin).Error; err != nil {
				return err
			}
			return tx.Create(
				&AdminLog{
					DiscordID: actorID,
					Action:    "permit_add",
					Content:   fmt.Sprintf("%s -> %d", discordID, tier),
				},
			).Error
		},
	)
	if err != nil {
		return fmt.Errorf("error saving administrator: %w", err)
	}
	return nil
}

// Remove deletes the user's administrator record
func (p *Permits) Remove(ctx context.Context, actorID, discordID string) error {
	return p.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			rv := tx.Unscoped().Where("discord_id = ?", discordID).Delete(&Administrator{})
			if rv.Error != nil {
				return rv.Error
			}
			if rv.RowsAffected == 0 {
				return ErrAdminNotFound
			}
			return tx.Create(
				&AdminLog{DiscordID: actorID, Action: "permit_remove", Content: discordID},
			).Error
		},
	)
}

// Administrators returns every administrator, highest tier first
func (p *Permits) Administrators(ctx context.Context) ([]Administrator, error) {
	var admins []Administrator
	err := p.db.DB().WithContext(ctx).
		Order("tier_level desc").
		Order("id").
		Find(&admins).Error
	return admins, err
}

func (p *Permits) IsBlacklisted(ctx context.Context, discordID string) bool {
	var n int64
	err := p.db.DB().WithContext(ctx).
		Model(&Blacklist{}).
		Where("discord_id = ?", discordID).
		Count(&n).Error
	if err != nil {
		p.logger.ErrorContext(ctx, "error checking blacklist", "discord_id", discordID, tint.Err(err))
		return false
	}
	return n > 0
}

func (p *Permits) AddBlacklist(ctx context.Context, actorID, discordID, reason string) error {
	if reason == "" {
		reason = blacklistDefaultReason
	}
	return p.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			rv := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(
				&Blacklist{DiscordID: discordID, Reason: reason, AddedBy: actorID},
			)
			if rv.Error != nil {
				return rv.Error
			}
			if rv.RowsAffected == 0 {
				return ErrAlreadyBlacklisted
			}
			return tx.Create(
				&AdminLog{DiscordID: actorID, Action: "blacklist_add", Content: discordID + ": " + reason},
			).Error
		},
	)
}

func (p *Permits) RemoveBlacklist(ctx context.Context, actorID, discordID string) error {
	return p.db.Transaction(
		ctx, func(tx *gorm.DB) error {
			rv := tx.Where("discord_id = ?", discordID).Delete(&Blacklist{})
			if rv.Error != nil {
				return rv.Error
			}
			if rv.RowsAffected == 0 {
				return ErrBlacklistNotFound
			}
			return tx.Create(
				&AdminLog{DiscordID: actorID, Action: "blacklist_remove", Content: discordID},
			).Error
		},
	)
}
