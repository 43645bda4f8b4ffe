//nolint:lll // struct tags can't be split
package arasaka

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
)

const (
	EnvvarSetEnvPrefix    = "ARASAKA_ENV_PREFIX"
	DefaultEnvPrefix      = "ARASAKA"
	DefaultDatabaseType   = "sqlite"
	DefaultDatabase       = "arasaka.sqlite3"
	DefaultLogLevel       = slog.LevelInfo
	DefaultStartupTimeout = 30 * time.Second

	DefaultShutdownTimeout = 60 * time.Second

	DefaultReadTimeout                       = 5 * time.Second
	DefaultReadHeaderTimeout                 = 5 * time.Second
	DefaultWriteTimeout                      = 10 * time.Second
	DefaultIdleTimeout                       = 30 * time.Second
	DefaultDiscordWebhookServerListen        = "127.0.0.1:5001"
	DefaultDiscordWebhookServerTLSminVersion = tls.VersionTLS12
	DefaultDiscordGatewayIntent              = discordgo.IntentsAllWithoutPrivileged | discordgo.IntentsGuildMembers

	DefaultDiscordWebhookLogLevel = slog.LevelInfo
	DefaultDiscordLogLevel        = slog.LevelWarn
	DefaultDiscordErrorMessage    = "Sorry, something went wrong!"
	DefaultDiscordCustomStatus    = "Watching over Night City"
	DefaultDiscordStartupMessage  = "ArasakaBot is online."
	discordMaxMessageLength       = 2000
	DefaultAPIListen              = "127.0.0.1:5000"
	DefaultUITLSMinVersion        = tls.VersionTLS12
	DefaultAPISessionMaxAge       = 6 * time.Hour

	DefaultDatabaseSlowThreshold   = 200 * time.Millisecond
	DefaultDatabaseLogLevel        = slog.LevelInfo
	DefaultDiscordgoLogLevel       = slog.LevelWarn
	DefaultAPILogLevel             = slog.LevelInfo
	DefaultSheetsLogLevel          = slog.LevelInfo
	DefaultIdentityLogLevel        = slog.LevelInfo
	defaultListenNetwork           = "tcp"
	DefaultAPICORSAllowCredentials = true

	DefaultRuntimeConfigTTL = 5 * time.Minute

	DefaultSheetsWorksheet      = "Main"
	DefaultSheetsRequestTimeout = 20 * time.Second

	DefaultBloxlinkBaseURL   = "https://api.blox.link/v4/public"
	DefaultRobloxUsersURL    = "https://users.roblox.com"
	DefaultRobloxGroupsURL   = "https://groups.roblox.com"
	DefaultExternalRateLimit = 2.0
	DefaultExternalTimeout   = 10 * time.Second

	DefaultRedisTTL = time.Hour

	DefaultConfirmationTimeout = 30 * time.Second
	DefaultEventTimezone       = "America/New_York"
)

// DiscordInteractionReceiveMethod is how an interaction reached the bot
type DiscordInteractionReceiveMethod string

var (
	discordInteractionReceiveMethodGateway DiscordInteractionReceiveMethod = "gateway"
	discordInteractionReceiveMethodWebhook DiscordInteractionReceiveMethod = "webhook"
)

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-Requested-With",
		"Cache-Control",
		"X-CSRF-Token",
		xRequestIDHeader,
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		xRequestIDHeader,
		"Location",
		"ETag",
		"Last-Modified",
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

// Config is the startup configuration for the bot. Settings which may
// change while the bot is running live in RuntimeConfig instead.
type Config struct {
	// Database is the DSN, or, for sqlite, the path to the database file
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration after which a query is
	// logged as slow
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	Sheets *SheetsConfig `yaml:"sheets" mapstructure:"sheets" json:"sheets"`

	Bloxlink *BloxlinkConfig `yaml:"bloxlink" mapstructure:"bloxlink" json:"bloxlink"`

	Roblox *RobloxConfig `yaml:"roblox" mapstructure:"roblox" json:"roblox"`

	Redis *RedisConfig `yaml:"redis" mapstructure:"redis" json:"redis"`

	Guild *GuildConfig `yaml:"guild" mapstructure:"guild" json:"guild"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// RuntimeConfigTTL is how often RuntimeConfig is reloaded from
	// the database
	RuntimeConfigTTL time.Duration `yaml:"runtime_config_ttl" mapstructure:"runtime_config_ttl" json:"runtime_config_ttl"`

	// ConfirmationTimeout bounds how long a fuzzy username match waits
	// for the invoking user to confirm it
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" mapstructure:"confirmation_timeout" json:"confirmation_timeout" binding:"min=1s"`

	// EventTimezone is used to display event times and to find the start
	// of the quota week
	EventTimezone string `yaml:"event_timezone" mapstructure:"event_timezone" json:"event_timezone" binding:"timezone"`

	HTTPClient *http.Client `yaml:"-" mapstructure:"-" json:"-" log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig holds the bot's Discord credentials and gateway settings.
type DiscordConfig struct {
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	WebhookServer DiscordWebhookServerConfig `yaml:"webhook_server" mapstructure:"webhook_server" json:"webhook_server"`

	// GuildID is the server commands are registered to, and where
	// members are looked up
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id" binding:"required"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`
}

type DiscordWebhookServerConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true"`

	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,omitempty,oneof=tcp tcp4 tcp6 unix"`

	SSL SSLConfig `yaml:"ssl" mapstructure:"ssl" json:"ssl"`

	// PublicKey is the application's hex-encoded ed25519 key, used to
	// verify interaction requests
	PublicKey string `yaml:"public_key" mapstructure:"public_key" json:"public_key" binding:"required_if=Enabled true"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"`

	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`

	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"`
}

// APIConfig configures the admin HTTP API.
type APIConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required"`

	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"oneof=tcp tcp4 tcp6 unix"`

	// Secret is used to derive the session cookie key. If unset, a random
	// key is generated, and sessions won't survive a restart.
	Secret string `yaml:"secret" mapstructure:"secret" json:"secret" log:"[redacted]"`

	SSL SSLConfig `yaml:"ssl" mapstructure:"ssl" json:"ssl"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"min=1s"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout" binding:"min=1s"`

	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout" binding:"min=1s"`

	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout" binding:"min=1s"`

	SessionMaxAge time.Duration `yaml:"session_max_age" mapstructure:"session_max_age" json:"session_max_age" binding:"min=10m,max=24h"`

	// Development relaxes CORS and cookie settings, and enables pprof
	Development bool `yaml:"development" mapstructure:"development" json:"development"`
}

type SSLConfig struct {
	Cert string `yaml:"cert" mapstructure:"cert" json:"cert"`

	Key string `yaml:"key" mapstructure:"key" json:"key"`

	TLSMinVersion uint16 `yaml:"tls_min_version" mapstructure:"tls_min_version" json:"tls_min_version"`
}

// Enabled is true when both a certificate and key are set
func (s SSLConfig) Enabled() bool {
	return s.Cert != "" && s.Key != ""
}

type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		MaxAge:           c.MaxAge,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
	}
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{},
		AllowMethods:     append([]string(nil), DefaultCORSAllowMethods...),
		AllowHeaders:     append([]string(nil), DefaultCORSAllowHeaders...),
		ExposeHeaders:    append([]string(nil), DefaultCORSExposeHeaders...),
		MaxAge:           DefaultCORSMaxAge,
		AllowCredentials: DefaultAPICORSAllowCredentials,
	}
}

// SheetsConfig points at the worksheet used as the XP ledger.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id" json:"spreadsheet_id" binding:"required"`

	Worksheet string `yaml:"worksheet" mapstructure:"worksheet" json:"worksheet"`

	// CredentialsFile is a service account JSON key
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file" json:"credentials_file"`

	// Endpoint overrides the Sheets API base URL
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" json:"endpoint" binding:"omitempty,url"`

	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" json:"request_timeout"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// BloxlinkConfig configures the Discord-to-Roblox account linking API.
type BloxlinkConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url" binding:"url"`

	APIKey string `yaml:"api_key" mapstructure:"api_key" json:"api_key" log:"[redacted]"`

	// RequestsPerSecond limits outbound requests
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" json:"requests_per_second" binding:"gt=0"`

	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// RobloxConfig configures access to the Roblox users and groups APIs.
type RobloxConfig struct {
	UsersURL string `yaml:"users_url" mapstructure:"users_url" json:"users_url" binding:"url"`

	GroupsURL string `yaml:"groups_url" mapstructure:"groups_url" json:"groups_url" binding:"url"`

	// SecurityCookie is the .ROBLOSECURITY cookie of the account used to
	// change group roles
	SecurityCookie string `yaml:"security_cookie" mapstructure:"security_cookie" json:"security_cookie" log:"[redacted]"`

	GroupID string `yaml:"group_id" mapstructure:"group_id" json:"group_id"`

	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" json:"requests_per_second" binding:"gt=0"`

	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
}

// RedisConfig enables the quota leaderboard cache when URL is set.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url" json:"url" log:"[redacted]"`

	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" json:"ttl"`
}

// GuildConfig holds the server's channel and role IDs.
type GuildConfig struct {
	XPLogChannelID string `yaml:"xp_log_channel_id" mapstructure:"xp_log_channel_id" json:"xp_log_channel_id"`

	// NotificationChannelID is where attendees are pinged after an update
	NotificationChannelID string `yaml:"notification_channel_id" mapstructure:"notification_channel_id" json:"notification_channel_id"`

	PromotionChannelID string `yaml:"promotion_channel_id" mapstructure:"promotion_channel_id" json:"promotion_channel_id"`

	InactivityChannelID string `yaml:"inactivity_channel_id" mapstructure:"inactivity_channel_id" json:"inactivity_channel_id"`

	DischargeChannelID string `yaml:"discharge_channel_id" mapstructure:"discharge_channel_id" json:"discharge_channel_id"`

	// StartupChannelID receives the startup message
	StartupChannelID string `yaml:"startup_channel_id" mapstructure:"startup_channel_id" json:"startup_channel_id"`

	// OfficerRoleIDs may manage XP, statuses and ranks
	OfficerRoleIDs []string `yaml:"officer_role_ids" mapstructure:"officer_role_ids" json:"officer_role_ids"`

	// ReviewerRoleIDs may accept or deny requests
	ReviewerRoleIDs []string `yaml:"reviewer_role_ids" mapstructure:"reviewer_role_ids" json:"reviewer_role_ids"`

	InactivityRoleID string `yaml:"inactivity_role_id" mapstructure:"inactivity_role_id" json:"inactivity_role_id"`

	// OwnerIDs are user IDs that pass every permission check
	OwnerIDs []string `yaml:"owner_ids" mapstructure:"owner_ids" json:"owner_ids"`
}

func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}
	discordWebhookLogLevel := &slog.LevelVar{}
	sheetsLogLevel := &slog.LevelVar{}
	bloxlinkLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)
	discordWebhookLogLevel.Set(DefaultDiscordWebhookLogLevel)
	sheetsLogLevel.Set(DefaultSheetsLogLevel)
	bloxlinkLogLevel.Set(DefaultIdentityLogLevel)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		RuntimeConfigTTL:      DefaultRuntimeConfigTTL,
		ConfirmationTimeout:   DefaultConfirmationTimeout,
		EventTimezone:         DefaultEventTimezone,
		Discord: &DiscordConfig{
			WebhookServer: DiscordWebhookServerConfig{
				Listen:        DefaultDiscordWebhookServerListen,
				ListenNetwork: defaultListenNetwork,
				SSL: SSLConfig{
					TLSMinVersion: DefaultDiscordWebhookServerTLSminVersion,
				},
				LogLevel:          discordWebhookLogLevel,
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
				ReadTimeout:       DefaultReadTimeout,
				WriteTimeout:      DefaultWriteTimeout,
				IdleTimeout:       DefaultIdleTimeout,
			},
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			StartupMessage:    DefaultDiscordStartupMessage,
		},
		API: &APIConfig{
			Listen:        DefaultAPIListen,
			ListenNetwork: defaultListenNetwork,
			SSL: SSLConfig{
				TLSMinVersion: DefaultUITLSMinVersion,
			},
			LogLevel:          apiLogLevel,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ReadTimeout:       DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			SessionMaxAge:     DefaultAPISessionMaxAge,
			CORS:              DefaultCORSConfig(),
		},
		Sheets: &SheetsConfig{
			Worksheet:      DefaultSheetsWorksheet,
			RequestTimeout: DefaultSheetsRequestTimeout,
			LogLevel:       sheetsLogLevel,
		},
		Bloxlink: &BloxlinkConfig{
			BaseURL:           DefaultBloxlinkBaseURL,
			RequestsPerSecond: DefaultExternalRateLimit,
			Timeout:           DefaultExternalTimeout,
			LogLevel:          bloxlinkLogLevel,
		},
		Roblox: &RobloxConfig{
			UsersURL:          DefaultRobloxUsersURL,
			GroupsURL:         DefaultRobloxGroupsURL,
			RequestsPerSecond: DefaultExternalRateLimit,
			Timeout:           DefaultExternalTimeout,
		},
		Redis: &RedisConfig{
			TTL: DefaultRedisTTL,
		},
		Guild: &GuildConfig{},
	}
}
