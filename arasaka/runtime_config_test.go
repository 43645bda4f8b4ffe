package arasaka

import (
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestRuntimeConfigUpdate(t *testing.T) {
	update := RuntimeConfigUpdate{
		Paused:         ptr(true),
		QuotaChannelID: ptr("123"),
		LogLevel:       ptr(DBLogLevelDebug),
		// unchanged from the default, so not reported
		RecoverPanic: ptr(true),
	}
	require.NoError(t, update.validate())

	assert.Equal(
		t,
		map[string]any{
			"paused":                          true,
			"recover_panic":                   true,
			columnRuntimeConfigQuotaChannelID: "123",
			"log_level":                       DBLogLevelDebug,
		},
		update.columns(),
	)

	config := DefaultRuntimeConfig()
	changed := update.apply(&config)
	assert.Equal(t, []string{"paused", columnRuntimeConfigQuotaChannelID, "log_level"}, changed)
	assert.True(t, config.Paused)
	assert.Equal(t, "123", config.QuotaChannelID)
	assert.Equal(t, DBLogLevelDebug, config.LogLevel)
	assert.Equal(t, DefaultDiscordErrorMessage, config.DiscordErrorMessage)

	assert.Empty(t, update.apply(&config))
	assert.Empty(t, RuntimeConfigUpdate{}.columns())
}

func TestRuntimeConfigUpdate_Validate(t *testing.T) {
	tests := []struct {
		name   string
		update RuntimeConfigUpdate
	}{
		{"log level", RuntimeConfigUpdate{LogLevel: ptr(DBLogLevel("LOUD"))}},
		{"empty error message", RuntimeConfigUpdate{DiscordErrorMessage: ptr("")}},
		{"long quota message id", RuntimeConfigUpdate{QuotaMessageID: ptr(string(make([]byte, 33)))}},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				var errs validator.ValidationErrors
				assert.ErrorAs(t, tt.update.validate(), &errs)
			},
		)
	}
}

func TestGetDiscordPresenceStatusUpdate(t *testing.T) {
	config := DefaultRuntimeConfig()
	config.DiscordCustomStatus = "Monitoring Night City"

	status := getDiscordPresenceStatusUpdate(config)
	assert.Equal(t, string(discordgo.StatusOnline), status.Status)
	require.Len(t, status.Activities, 1)
	assert.Equal(t, "Monitoring Night City", status.Activities[0].State)

	presence := getDiscordIdentifyPresence(config)
	assert.Equal(t, "Monitoring Night City", presence.Game.State)

	config.Paused = true
	status = getDiscordPresenceStatusUpdate(config)
	assert.Equal(t, string(discordgo.StatusDoNotDisturb), status.Status)
	assert.True(t, status.AFK)
	assert.Empty(t, status.Activities)
}

func TestRuntimeConfig_LogValue(t *testing.T) {
	config := DefaultRuntimeConfig()
	config.AdminUsername = "admin"
	config.AdminPassword = "$argon2id$..."

	attrs := map[string]string{}
	for _, a := range config.LogValue().Group() {
		attrs[a.Key] = a.Value.String()
	}
	assert.Equal(t, "[redacted]", attrs["admin_username"])
	assert.Equal(t, "[redacted]", attrs["admin_password"])
	assert.Equal(t, DefaultDiscordErrorMessage, attrs["discord_error_message"])
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel.Level())
	assert.Equal(t, slog.Level(DefaultDiscordgoLogLevel), cfg.Discord.DiscordGoLogLevel.Level())
	assert.False(t, cfg.API.SSL.Enabled())
	assert.Empty(t, cfg.API.CORS.GINConfig().AllowOrigins)

	// validation needs credentials and a spreadsheet
	err := structValidator.Struct(cfg)
	var errs validator.ValidationErrors
	require.ErrorAs(t, err, &errs)

	cfg.Discord.Token = "token"
	cfg.Discord.ApplicationID = "app-1"
	cfg.Discord.GuildID = testGuildID
	cfg.Sheets.SpreadsheetID = "sheet-1"
	assert.NoError(t, structValidator.Struct(cfg))
}
