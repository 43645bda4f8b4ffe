//nolint:lll // struct tags can't be split
package arasaka

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	columnRuntimeConfigAdminUsername  = "admin_username"
	columnRuntimeConfigAdminPassword  = "admin_password"
	columnRuntimeConfigQuotaChannelID = "quota_channel_id"
	columnRuntimeConfigQuotaMessageID = "quota_message_id"
)

// RuntimeConfig holds settings which can be changed while the bot is
// running, stored as a single row.
type RuntimeConfig struct {
	ModelUintID
	ModelUnixTime

	// Paused ignores all commands from non-administrators
	Paused bool `json:"paused" gorm:"not null;default:false"`

	// RecoverPanic recovers (and logs) panics in interaction handlers
	RecoverPanic bool `json:"recover_panic" gorm:"not null;default:true"`

	DiscordGatewayEnabled bool `json:"discord_gateway_enabled" gorm:"not null;default:true"`

	DiscordCustomStatus string `json:"discord_custom_status" gorm:"type:string"`

	// DiscordErrorMessage is sent when a command fails unexpectedly
	DiscordErrorMessage string `json:"discord_error_message" gorm:"type:string"`

	// QuotaChannelID and QuotaMessageID locate the weekly event quota
	// embed, which is edited after every XP update
	QuotaChannelID string `json:"quota_channel_id" gorm:"type:string"`
	QuotaMessageID string `json:"quota_message_id" gorm:"type:string"`

	AdminUsername string `json:"admin_username" gorm:"type:string" log:"[redacted]"`

	AdminPassword string `json:"admin_password" gorm:"type:string" log:"[redacted]"`

	LogLevel DBLogLevel `gorm:"default:INFO;type:string;check:log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	DiscordLogLevel DBLogLevel `gorm:"default:INFO;type:string;check:discord_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"discord_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	DiscordGoLogLevel DBLogLevel `gorm:"default:WARN;column:discordgo_log_level;type:string;check:discordgo_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"discordgo_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	DatabaseLogLevel DBLogLevel `gorm:"default:INFO;type:string;check:database_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"database_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	APILogLevel DBLogLevel `gorm:"default:INFO;type:string;check:api_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"api_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	SheetsLogLevel DBLogLevel `gorm:"default:INFO;type:string;check:sheets_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"sheets_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`
}

func (RuntimeConfig) TableName() string {
	return "config"
}

func (r RuntimeConfig) LogValue() slog.Value {
	return structToSlogValue(r)
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		RecoverPanic:          true,
		DiscordGatewayEnabled: true,
		DiscordCustomStatus:   DefaultDiscordCustomStatus,
		DiscordErrorMessage:   DefaultDiscordErrorMessage,
		LogLevel:              DBLogLevelInfo,
		DiscordLogLevel:       DBLogLevelInfo,
		DiscordGoLogLevel:     DBLogLevelWarn,
		DatabaseLogLevel:      DBLogLevelInfo,
		APILogLevel:           DBLogLevelInfo,
		SheetsLogLevel:        DBLogLevelInfo,
	}
}

// RuntimeConfigUpdate is a partial update of RuntimeConfig. Nil fields
// are left unchanged.
type RuntimeConfigUpdate struct {
	Paused                *bool   `json:"paused,omitempty"`
	RecoverPanic          *bool   `json:"recover_panic,omitempty"`
	DiscordGatewayEnabled *bool   `json:"discord_gateway_enabled,omitempty"`
	DiscordCustomStatus   *string `json:"discord_custom_status,omitempty" binding:"omitnil,max=128"`
	DiscordErrorMessage   *string `json:"discord_error_message,omitempty" binding:"omitnil,min=1,max=2000"`
	QuotaChannelID        *string `json:"quota_channel_id,omitempty" binding:"omitnil,max=32"`
	QuotaMessageID        *string `json:"quota_message_id,omitempty" binding:"omitnil,max=32"`

	LogLevel          *DBLogLevel `json:"log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DiscordLogLevel   *DBLogLevel `json:"discord_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DiscordGoLogLevel *DBLogLevel `json:"discordgo_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DatabaseLogLevel  *DBLogLevel `json:"database_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	APILogLevel       *DBLogLevel `json:"api_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	SheetsLogLevel    *DBLogLevel `json:"sheets_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
}

func (u RuntimeConfigUpdate) validate() error {
	return structValidator.Struct(u)
}

// columns returns the column/value pairs of the non-nil fields, keyed
// by the field's JSON name (which matches the column name)
func (u RuntimeConfigUpdate) columns() map[string]any {
	updates := map[string]any{}
	val := reflect.ValueOf(u)
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		fv := val.Field(i)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		updates[name] = fv.Elem().Interface()
	}
	return updates
}

// apply copies the non-nil fields onto config, returning the names of
// the fields that changed
func (u RuntimeConfigUpdate) apply(config *RuntimeConfig) []string {
	var changed []string
	set := func(name string, dst any, src any) {
		dv := reflect.ValueOf(dst).Elem()
		sv := reflect.ValueOf(src)
		if sv.IsNil() {
			return
		}
		if !reflect.DeepEqual(dv.Interface(), sv.Elem().Interface()) {
			dv.Set(sv.Elem())
			changed = append(changed, name)
		}
	}
	set("paused", &config.Paused, u.Paused)
	set("recover_panic", &config.RecoverPanic, u.RecoverPanic)
	set("discord_gateway_enabled", &config.DiscordGatewayEnabled, u.DiscordGatewayEnabled)
	set("discord_custom_status", &config.DiscordCustomStatus, u.DiscordCustomStatus)
	set("discord_error_message", &config.DiscordErrorMessage, u.DiscordErrorMessage)
	set(columnRuntimeConfigQuotaChannelID, &config.QuotaChannelID, u.QuotaChannelID)
	set(columnRuntimeConfigQuotaMessageID, &config.QuotaMessageID, u.QuotaMessageID)
	set("log_level", &config.LogLevel, u.LogLevel)
	set("discord_log_level", &config.DiscordLogLevel, u.DiscordLogLevel)
	set("discordgo_log_level", &config.DiscordGoLogLevel, u.DiscordGoLogLevel)
	set("database_log_level", &config.DatabaseLogLevel, u.DatabaseLogLevel)
	set("api_log_level", &config.APILogLevel, u.APILogLevel)
	set("sheets_log_level", &config.SheetsLogLevel, u.SheetsLogLevel)
	return changed
}

func getDiscordPresenceStatusUpdate(config RuntimeConfig) discordgo.UpdateStatusData {
	if config.Paused {
		return discordgo.UpdateStatusData{
			AFK:    true,
			Status: string(discordgo.StatusDoNotDisturb),
		}
	}
	status := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}
	if config.DiscordCustomStatus != "" {
		status.Activities = []*discordgo.Activity{
			{
				Name:  "Custom Status",
				Type:  discordgo.ActivityTypeCustom,
				State: config.DiscordCustomStatus,
			},
		}
	}
	return status
}

// getDiscordIdentifyPresence is the presence sent when identifying to
// the gateway, matching getDiscordPresenceStatusUpdate
func getDiscordIdentifyPresence(config RuntimeConfig) discordgo.GatewayStatusUpdate {
	status := getDiscordPresenceStatusUpdate(config)
	presence := discordgo.GatewayStatusUpdate{Status: status.Status, AFK: status.AFK}
	if len(status.Activities) > 0 {
		presence.Game = *status.Activities[0]
	}
	return presence
}
