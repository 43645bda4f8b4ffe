package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rohitp30/ArasakaBot-P/arasaka"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = arasaka.DefaultConfig()
	configFile string
)

// logLevelKeys are the config keys holding a *slog.LevelVar
var logLevelKeys = []string{
	"log_level",
	"database_log_level",
	"api.log_level",
	"discord.log_level",
	"discord.discordgo_log_level",
	"discord.webhook_server.log_level",
	"sheets.log_level",
	"bloxlink.log_level",
}

// envKeys have no default, so they're bound to the environment explicitly
var envKeys = []string{
	"discord.webhook_server.ssl.cert",
	"discord.webhook_server.ssl.key",
	"api.ssl.cert",
	"api.ssl.key",
	"sheets.endpoint",
}

// stringSliceKeys are set from space-separated environment variables
var stringSliceKeys = []string{
	"api.cors.allow_headers",
	"api.cors.allow_origins",
	"api.cors.allow_methods",
	"api.cors.expose_headers",
	"guild.officer_role_ids",
	"guild.reviewer_role_ids",
	"guild.owner_ids",
}

var rootCmd = &cobra.Command{
	Use:   "arasakabot [flags]",
	Short: "ArasakaBot keeps the XP ledger and rank progression for a Discord group",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					mapstructure.StringToSliceHookFunc(" "),
					LevelToStringHookFunc(),
				),
			),
		)
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// LevelToStringHookFunc decodes a level name like "INFO" into a
// *slog.LevelVar.
func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}
		if t.Elem() != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, err
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the env file and sets up viper's defaults and
// environment bindings. It starts from a clean viper instance, so it can
// run once per command execution.
func initConfig() error {
	viper.Reset()

	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("error loading %s: %v", configFile, err)
		}
	}

	viper.SetDefault("database", arasaka.DefaultDatabase)
	viper.SetDefault("database_type", arasaka.DefaultDatabaseType)
	viper.SetDefault("database_slow_threshold", arasaka.DefaultDatabaseSlowThreshold)
	viper.SetDefault("database_log_level", arasaka.DefaultDatabaseLogLevel.String())

	viper.SetDefault("runtime_config_ttl", arasaka.DefaultRuntimeConfigTTL)
	viper.SetDefault("confirmation_timeout", arasaka.DefaultConfirmationTimeout)
	viper.SetDefault("event_timezone", arasaka.DefaultEventTimezone)

	viper.SetDefault("log_level", arasaka.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", arasaka.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", arasaka.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.log_level", arasaka.DefaultDiscordLogLevel.String())
	viper.SetDefault("discord.discordgo_log_level", arasaka.DefaultDiscordgoLogLevel.String())
	viper.SetDefault("discord.gateway_intents", arasaka.DefaultDiscordGatewayIntent)
	viper.SetDefault("discord.startup_message", arasaka.DefaultDiscordStartupMessage)

	// Discord: Webhook server
	viper.SetDefault("discord.webhook_server.enabled", false)
	viper.SetDefault("discord.webhook_server.listen", arasaka.DefaultDiscordWebhookServerListen)
	viper.SetDefault("discord.webhook_server.listen_network", "tcp")
	viper.SetDefault("discord.webhook_server.public_key", "")
	viper.SetDefault("discord.webhook_server.read_timeout", arasaka.DefaultReadTimeout)
	viper.SetDefault("discord.webhook_server.read_header_timeout", arasaka.DefaultReadHeaderTimeout)
	viper.SetDefault("discord.webhook_server.write_timeout", arasaka.DefaultWriteTimeout)
	viper.SetDefault("discord.webhook_server.idle_timeout", arasaka.DefaultIdleTimeout)
	viper.SetDefault(
		"discord.webhook_server.log_level",
		arasaka.DefaultDiscordWebhookLogLevel.String(),
	)
	viper.SetDefault(
		"discord.webhook_server.ssl.tls_min_version",
		arasaka.DefaultDiscordWebhookServerTLSminVersion,
	)


	// API config
	viper.SetDefault("api.listen", arasaka.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.secret", "")
	viper.SetDefault("api.development", false)
	viper.SetDefault("api.log_level", arasaka.DefaultAPILogLevel.String())
	viper.SetDefault("api.session_max_age", arasaka.DefaultAPISessionMaxAge)
	viper.SetDefault("api.read_timeout", arasaka.DefaultReadTimeout)
	viper.SetDefault("api.read_header_timeout", arasaka.DefaultReadHeaderTimeout)
	viper.SetDefault("api.write_timeout", arasaka.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", arasaka.DefaultIdleTimeout)
	viper.SetDefault("api.ssl.tls_min_version", arasaka.DefaultUITLSMinVersion)

	// API: CORS config
	viper.SetDefault("api.cors.allow_headers", arasaka.DefaultCORSAllowHeaders)
	viper.SetDefault("api.cors.allow_methods", arasaka.DefaultCORSAllowMethods)
	viper.SetDefault("api.cors.expose_headers", arasaka.DefaultCORSExposeHeaders)
	viper.SetDefault("api.cors.allow_origins", []string{})
	viper.SetDefault("api.cors.max_age", arasaka.DefaultCORSMaxAge)
	viper.SetDefault("api.cors.allow_credentials", arasaka.DefaultAPICORSAllowCredentials)

	// Google Sheets ledger
	viper.SetDefault("sheets.spreadsheet_id", "")
	viper.SetDefault("sheets.worksheet", arasaka.DefaultSheetsWorksheet)
	viper.SetDefault("sheets.credentials_file", "")
	viper.SetDefault("sheets.request_timeout", arasaka.DefaultSheetsRequestTimeout)
	viper.SetDefault("sheets.log_level", arasaka.DefaultSheetsLogLevel.String())

	// Bloxlink and Roblox
	viper.SetDefault("bloxlink.base_url", arasaka.DefaultBloxlinkBaseURL)
	viper.SetDefault("bloxlink.api_key", "")
	viper.SetDefault("bloxlink.requests_per_second", arasaka.DefaultExternalRateLimit)
	viper.SetDefault("bloxlink.timeout", arasaka.DefaultExternalTimeout)
	viper.SetDefault("bloxlink.log_level", arasaka.DefaultIdentityLogLevel.String())

	viper.SetDefault("roblox.users_url", arasaka.DefaultRobloxUsersURL)
	viper.SetDefault("roblox.groups_url", arasaka.DefaultRobloxGroupsURL)
	viper.SetDefault("roblox.security_cookie", "")
	viper.SetDefault("roblox.group_id", "")
	viper.SetDefault("roblox.requests_per_second", arasaka.DefaultExternalRateLimit)
	viper.SetDefault("roblox.timeout", arasaka.DefaultExternalTimeout)

	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.ttl", arasaka.DefaultRedisTTL)

	// Guild channels and roles
	viper.SetDefault("guild.xp_log_channel_id", "")
	viper.SetDefault("guild.notification_channel_id", "")
	viper.SetDefault("guild.promotion_channel_id", "")
	viper.SetDefault("guild.inactivity_channel_id", "")
	viper.SetDefault("guild.discharge_channel_id", "")
	viper.SetDefault("guild.startup_channel_id", "")
	viper.SetDefault("guild.inactivity_role_id", "")
	viper.SetDefault("guild.officer_role_ids", []string{})
	viper.SetDefault("guild.reviewer_role_ids", []string{})
	viper.SetDefault("guild.owner_ids", []string{})

	envPrefix := os.Getenv(arasaka.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = arasaka.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			return fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	// Convert values to correct types
	for _, key := range stringSliceKeys {
		viper.Set(key, viper.GetStringSlice(key))
	}

	for _, key := range logLevelKeys {
		switch viper.Get(key).(type) {
		case *slog.LevelVar:
			// already converted
		default:
			lvl, err := levelStringToLevelVar(viper.GetString(key))
			if err != nil {
				return fmt.Errorf("error parsing %s: %w", key, err)
			}
			viper.Set(key, lvl)
		}
	}
	return nil
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

//goland:noinspection GoLinter,GoLinter
func init() {
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Environment file to load",
	)
}
