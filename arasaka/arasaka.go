package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/rohitp30/ArasakaBot-P/arasaka.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// Bot is the ArasakaBot instance: the Discord session, the XP ledger,
// and the local database and HTTP servers supporting them.
type Bot struct {
	dbNotifier DBNotifier
	config     *Config

	// read connection
	db *gorm.DB

	// write connection. With sqlite, writes are serialized.
	writeDB DBI

	logger *slog.Logger

	// fs is used to read credential files
	fs afero.Fs

	discord *Discord

	// admin API
	api *API

	// Receives interactions by HTTP, when the gateway isn't used
	discordWebhookServer *DiscordWebhookServer

	webhookInteractionHandler func(c *gin.Context)

	// tracks interactions received by the webhook server, which can
	// outlive the request that delivered them
	webhookWG sync.WaitGroup

	ledger     Ledger
	identity   *IdentityResolver
	bloxlink   *BloxlinkClient
	roblox     *RobloxClient
	engine     *XPEngine
	calculator *Calculator
	hierarchy  Hierarchy
	events     *EventLog
	quota      *QuotaBoard
	permits    *Permits
	redis      *redis.Client

	// fuzzy match prompts waiting on a button press
	confirmations *pendingConfirmations

	// location is used to display event times, and find the start of
	// the quota week
	location *time.Location

	// signalStop enables an explicit stop signal to be sent to the bot,
	// such as by the `/api/quit` endpoint
	signalStop chan struct{}

	// signalReady has a value sent on it when Run finishes starting up
	signalReady chan struct{}

	// eventShutdown has a value sent on it when shutdown finishes
	eventShutdown chan struct{}

	runMu sync.Mutex

	// While paused, commands are only accepted from administrators
	paused atomic.Bool

	startedAt time.Time

	// pendingSetup is set until admin credentials exist
	pendingSetup atomic.Bool

	// servicesReady is set once the ledger and the services built on
	// it are available
	servicesReady atomic.Bool

	// getInteractionHandlerFunc returns the InteractionHandler to use for
	// an interaction received over the gateway. Commands are run the same
	// way regardless of how they were received.
	getInteractionHandlerFunc func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
	) InteractionHandler

	runtimeConfig *RuntimeConfig
	cfgMu         sync.RWMutex

	interactionsInProgress atomic.Int64
	xpUpdatesInProgress    atomic.Int64

	triggerRuntimeConfigRefreshCh chan bool
}

func (b *Bot) getLogger(ctx context.Context) (context.Context, *slog.Logger) {
	logger, ok := ContextLogger(ctx)
	if logger == nil || !ok {
		logger = b.logger
		ctx = WithLogger(ctx, logger)
	}
	return ctx, logger
}

func (b *Bot) RuntimeConfig() RuntimeConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	if b.runtimeConfig == nil {
		return DefaultRuntimeConfig()
	}
	return *b.runtimeConfig
}

// New creates a Bot from the given config. Connections aren't opened
// until Run is called.
func New(config *Config) (*Bot, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	location, err := time.LoadLocation(config.EventTimezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid event timezone: %w", err))
		location = time.UTC
	}

	b := &Bot{
		config:                        config,
		fs:                            afero.NewOsFs(),
		calculator:                    DefaultCalculator(),
		hierarchy:                     DefaultHierarchy(),
		confirmations:                 newPendingConfirmations(),
		location:                      location,
		signalReady:                   make(chan struct{}, 1),
		eventShutdown:                 make(chan struct{}, 1),
		triggerRuntimeConfigRefreshCh: make(chan bool, 1),
	}

	b.logger = slog.New(newHandler(defaultLogWriter, config.LogLevel))
	slog.SetDefault(b.logger)

	disc, err := newDiscord(config.Discord, config.HTTPClient)
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}
	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		newHandler(defaultLogWriter, config.Discord.DiscordGoLogLevel),
	)
	disc.logger = slog.New(
		newHandler(defaultLogWriter, config.Discord.LogLevel),
	).With(loggerNameKey, "discord")
	disc.bot = b
	b.discord = disc

	if config.Bloxlink.APIKey != "" {
		b.bloxlink = NewBloxlinkClient(
			config.Bloxlink,
			config.Discord.GuildID,
			nil,
			slog.New(newHandler(defaultLogWriter, config.Bloxlink.LogLevel)),
		)
	}
	b.roblox = NewRobloxClient(config.Roblox, nil, b.logger)

	redisClient, err := newRedisClient(config.Redis)
	errs = append(errs, err)
	b.redis = redisClient

	api, err := newAPI(b, config.API)
	errs = append(errs, err)
	b.api = api

	if config.Discord.WebhookServer.Enabled {
		webhookServer, e := newWebhookServer(b, config.Discord.WebhookServer)
		errs = append(errs, e)
		b.discordWebhookServer = webhookServer
	}

	return b, errors.Join(errs...)
}

func (b *Bot) ValidateConfig() error {
	return structValidator.Struct(b.config)
}

// RegisterCommands overwrites the guild's slash commands
func (b *Bot) RegisterCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	if b.discord.session == nil {
		session, err := b.discord.newSession()
		if err != nil {
			return nil, err
		}
		b.discord.session = session
	}
	return b.discord.registerCommands(options...)
}

// Run starts the bot, and blocks until ctx is canceled or a stop signal
// is received, then shuts down.
func (b *Bot) Run(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.signalStop = make(chan struct{}, 1)
	b.startedAt = time.Now()
	logger := b.logger

	if err := b.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	notifier, err := newDBNotifier(b)
	if err != nil {
		logger.Error("error creating db notifier", tint.Err(err))
		return err
	}
	b.dbNotifier = notifier

	ctx = WithLogger(ctx, logger)

	// tracks in-flight interactions and background loops
	runtimeWG := &sync.WaitGroup{}

	b.webhookInteractionHandler = webhookReceiveHandler(ctx, b)

	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", b.config))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.signalStop:
			b.logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			b.logger.Warn("context canceled")
		}
	}()

	go func() {
		httpErr := b.api.Serve(ctx)
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			b.logger.ErrorContext(ctx, "error serving api HTTP", tint.Err(httpErr))
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, b.config.StartupTimeout)
	defer startCancel()

	if err = b.initRun(startCtx, ctx); err != nil {
		logger.ErrorContext(ctx, "init error", tint.Err(err))
		if b.api != nil && b.api.listener != nil {
			_ = b.api.listener.Close()
		}
		return err
	}
	logger.InfoContext(ctx, "init complete")

	if setupErr := b.waitOnSetup(ctx, logger, runtimeWG); setupErr != nil {
		return setupErr
	}

	runtimeCfg := b.RuntimeConfig()

	if b.config.Discord.WebhookServer.Enabled {
		b.startWebhookServer(ctx, runtimeWG)
	} else if !runtimeCfg.DiscordGatewayEnabled {
		logger.WarnContext(ctx, "discord gateway and webhook server disabled")
	}

	if discErr := b.initDiscordSession(ctx, runtimeWG); discErr != nil {
		b.logger.ErrorContext(ctx, "error creating discord session", tint.Err(discErr))
		return discErr
	}

	if err = b.discordInit(ctx, runtimeCfg, logger); err != nil {
		return err
	}

	b.startRuntimeConfigRefresher(ctx, runtimeWG, logger)

	for _, channel := range []string{
		b.dbNotifier.RuntimeConfigChannelName(),
		b.dbNotifier.StopChannelName(),
	} {
		if channel == "" {
			continue
		}
		runtimeWG.Add(1)
		go func(ch string) {
			defer runtimeWG.Done()
			if e := b.dbNotifier.Listen(ctx, ch); e != nil {
				b.logger.ErrorContext(ctx, "error listening for notifications", "channel", ch, tint.Err(e))
			}
		}(channel)
	}

	b.signalReady <- struct{}{}
	b.logger.InfoContext(ctx, "sent ready signal")

	<-ctx.Done()
	return b.shutdown(ctx, runtimeWG)
}

// initRun opens the database and ledger, then loads the runtime config
// and builds the services that depend on them.
func (b *Bot) initRun(startCtx context.Context, ctx context.Context) error {
	g, gctx := errgroup.WithContext(startCtx)
	g.Go(
		func() error {
			if err := b.initDB(gctx); err != nil {
				return fmt.Errorf("error initializing database: %w", err)
			}
			return nil
		},
	)
	g.Go(
		func() error {
			// the sheets client holds on to its context for token
			// refreshes, so it gets the runtime context
			if err := b.initLedger(ctx); err != nil {
				return fmt.Errorf("error initializing ledger: %w", err)
			}
			return nil
		},
	)
	if err := g.Wait(); err != nil {
		return err
	}

	var botState RuntimeConfig
	getStateErr := b.db.WithContext(startCtx).Last(&botState).Error
	if getStateErr != nil {
		if !errors.Is(getStateErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error getting config: %w", getStateErr)
		}
		b.pendingSetup.Store(true)
		botState = DefaultRuntimeConfig()
		if _, err := b.writeDB.Create(startCtx, &botState); err != nil {
			return fmt.Errorf("error creating config: %w", err)
		}
	}
	if validationErr := structValidator.Struct(botState); validationErr != nil {
		return fmt.Errorf("invalid runtime config: %w", validationErr)
	}
	if botState.AdminUsername == "" || botState.AdminPassword == "" {
		b.pendingSetup.Store(true)
	}
	b.paused.Store(botState.Paused)
	b.setRuntimeLevels(botState)
	b.cfgMu.Lock()
	b.runtimeConfig = &botState
	b.cfgMu.Unlock()

	b.initServices()
	return nil
}

func (b *Bot) initDB(ctx context.Context) error {
	_, logger := b.getLogger(ctx)

	handler := newHandler(defaultLogWriter, b.config.DatabaseLogLevel)
	db, err := getDB(
		b.config.DatabaseType,
		b.config.Database,
		newGORMLogger(handler, b.config.DatabaseSlowThreshold),
	)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	b.db = db
	b.writeDB = NewDatabase(
		db,
		slog.New(handler).With(loggerNameKey, "database"),
		b.config.DatabaseType == dbTypePostgres,
	)

	logger.Debug("migrating database...")
	if err = migrate(ctx, db); err != nil {
		logger.Error("error migrating database", tint.Err(err))
		return fmt.Errorf("error migrating database: %w", err)
	}
	logger.Debug("finished migrating database")
	return nil
}

// initLedger connects to the spreadsheet, unless a ledger was already set
func (b *Bot) initLedger(ctx context.Context) error {
	if b.ledger != nil {
		return nil
	}
	ledger, err := NewSheetsLedger(
		ctx,
		b.fs,
		b.config.Sheets,
		nil,
		slog.New(newHandler(defaultLogWriter, b.config.Sheets.LogLevel)),
	)
	if err != nil {
		return err
	}
	b.ledger = ledger
	return nil
}

func (b *Bot) initServices() {
	b.events = NewEventLog(b.writeDB, b.logger)
	b.permits = NewPermits(b.writeDB, b.config.Guild.OwnerIDs, b.logger)
	b.identity = NewIdentityResolver(
		b.bloxlink,
		b.roblox,
		b.discord,
		b.ledger,
		b.writeDB,
		b.logger,
	)
	b.engine = NewXPEngine(b.ledger, b.identity, b.events, b.logger)
	b.quota = NewQuotaBoard(
		b.writeDB,
		b.events,
		b.redis,
		b.config.Redis.TTL,
		b.location,
		b.logger,
	)
	b.servicesReady.Store(true)
}

// waitOnSetup blocks until admin credentials have been set through the
// API, so the bot can't be used before it can be managed.
func (b *Bot) waitOnSetup(
	ctx context.Context,
	logger *slog.Logger,
	runtimeWG *sync.WaitGroup,
) error {
	if !b.pendingSetup.Load() {
		return nil
	}

	logger.WarnContext(
		ctx,
		fmt.Sprintf(
			"pending initial setup at: %s%s",
			b.api.listener.Addr().String(),
			apiPathSetup,
		),
	)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.WarnContext(ctx, "context cancelled waiting on setup, exiting")
			return b.shutdown(ctx, runtimeWG)
		case <-ticker.C:
			var state RuntimeConfig
			if err := b.db.WithContext(ctx).Last(&state).Error; err != nil {
				logger.ErrorContext(ctx, "error getting runtime config", tint.Err(err))
				continue
			}
			if state.AdminUsername != "" && state.AdminPassword != "" {
				b.pendingSetup.Store(false)
				return nil
			}
		}
	}
}

// discordInit opens the gateway connection, if enabled
func (b *Bot) discordInit(
	ctx context.Context,
	runtimeCfg RuntimeConfig,
	logger *slog.Logger,
) error {
	if !runtimeCfg.DiscordGatewayEnabled {
		return nil
	}
	logger.InfoContext(ctx, "connecting to discord")
	if err := b.discord.session.Open(); err != nil {
		logger.ErrorContext(ctx, "error connecting to discord!", tint.Err(err))
		return fmt.Errorf("error connecting to discord: %w", err)
	}
	return nil
}

func (b *Bot) startWebhookServer(ctx context.Context, runtimeWG *sync.WaitGroup) {
	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		httpErr := b.discordWebhookServer.Serve(ctx)
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			b.logger.ErrorContext(ctx, "error serving webhook HTTP", tint.Err(httpErr))
		}
	}()
}

func (b *Bot) initDiscordSession(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	logger := b.logger.With(loggerNameKey, "discord_session")

	if b.discord.session == nil {
		session, err := b.discord.newSession()
		if err != nil {
			return fmt.Errorf("error creating discord session: %w", err)
		}
		b.discord.session = session
	}

	ctx = WithLogger(ctx, logger)

	for _, h := range b.discord.removeHandlers {
		h()
	}

	b.discord.session.SetIdentify(
		discordgo.Identify{
			Intents:  b.config.Discord.GatewayIntents,
			Presence: getDiscordIdentifyPresence(b.RuntimeConfig()),
		},
	)

	if b.getInteractionHandlerFunc == nil {
		b.getInteractionHandlerFunc = func(
			_ context.Context,
			i *discordgo.InteractionCreate,
		) InteractionHandler {
			return GatewayHandler{
				session:     b.discord.session,
				interaction: i,
				logger: b.discord.logger.With(
					slog.Group("interaction", interactionLogAttrs(*i)...),
				),
			}
		}
	}

	b.discord.removeHandlers = []func(){
		b.discord.session.AddHandler(b.discord.handlerConnect()),
		b.discord.session.AddHandler(b.discord.handlerDisconnect()),
		b.discord.session.AddHandler(b.discord.handlerReady()),
		b.discord.session.AddHandler(
			func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
				handler := b.getInteractionHandlerFunc(ctx, i)
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					b.handleInteraction(ctx, handler)
				}()
			},
		),
	}
	return nil
}

func (b *Bot) startRuntimeConfigRefresher(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
	logger *slog.Logger,
) {
	if ttl := b.config.RuntimeConfigTTL; ttl > 0 {
		runtimeWG.Add(1)
		go func() {
			defer runtimeWG.Done()
			ticker := time.NewTicker(ttl)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case b.triggerRuntimeConfigRefreshCh <- false:
						logger.Debug("sent config refresh signal from ticker")
					case <-time.After(5 * time.Second):
						logger.Warn("timed out sending config refresh signal")
					}
				}
			}
		}()
	}

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case force := <-b.triggerRuntimeConfigRefreshCh:
				refreshCtx, refreshCancel := context.WithTimeout(ctx, 30*time.Second)
				b.refreshRuntimeConfig(refreshCtx, force)
				refreshCancel()
			}
		}
	}()
}

func (b *Bot) refreshRuntimeConfig(ctx context.Context, force bool) {
	b.cfgMu.Lock()
	defer b.cfgMu.Unlock()

	var latest RuntimeConfig
	if err := b.db.WithContext(ctx).Last(&latest).Error; err != nil {
		b.logger.ErrorContext(ctx, "error getting runtime config", tint.Err(err))
		return
	}

	lastUpdated := time.Since(time.UnixMilli(latest.UpdatedAt))
	if !force && lastUpdated > b.config.RuntimeConfigTTL {
		b.logger.DebugContext(ctx, "runtime config is up to date, skipping refresh")
		return
	}
	b.unsafeRefreshRuntimeConfig(b.runtimeConfig, &latest)
}

// unsafeRefreshRuntimeConfig swaps in the new runtime config, opening or
// closing the gateway connection and updating presence to match. The
// config mutex must be held.
func (b *Bot) unsafeRefreshRuntimeConfig(previous, latest *RuntimeConfig) {
	if previous == nil {
		previous = latest
	}
	session := b.discord.session
	switch {
	case session == nil:
		//
	case previous.DiscordGatewayEnabled && !latest.DiscordGatewayEnabled:
		if err := session.Close(); err != nil {
			b.logger.Error("error closing discord connection", tint.Err(err))
		}
	case previous.DiscordGatewayEnabled && latest.DiscordGatewayEnabled:
		if previous.Paused != latest.Paused ||
			previous.DiscordCustomStatus != latest.DiscordCustomStatus {
			if err := session.UpdateStatusComplex(getDiscordPresenceStatusUpdate(*latest)); err != nil {
				b.logger.Error("error updating discord status", tint.Err(err))
			}
		}
	case latest.DiscordGatewayEnabled:
		session.SetIdentify(
			discordgo.Identify{
				Intents:  b.config.Discord.GatewayIntents,
				Presence: getDiscordIdentifyPresence(*latest),
			},
		)
		if err := session.Open(); err != nil {
			b.logger.Error("error opening discord connection", tint.Err(err))
		}
	}

	b.runtimeConfig = latest
	b.paused.Store(latest.Paused)
	b.setRuntimeLevels(*latest)
	b.logger.Info("refreshed runtime config")
}

// UpdateRuntimeConfig validates and saves a runtime config change, then
// notifies every running instance to reload it. The names of the changed
// fields are returned.
func (b *Bot) UpdateRuntimeConfig(ctx context.Context, update RuntimeConfigUpdate) ([]string, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}
	current := b.RuntimeConfig()
	changed := update.apply(&current)
	if len(changed) == 0 {
		return nil, nil
	}
	if _, err := b.writeDB.Updates(ctx, &current, update.columns()); err != nil {
		return nil, fmt.Errorf("error saving runtime config: %w", err)
	}
	if b.dbNotifier != nil {
		b.dbNotifier.ReloadRuntimeConfig(ctx)
	}
	return changed, nil
}

func (b *Bot) setRuntimeLevels(state RuntimeConfig) {
	b.config.LogLevel.Set(state.LogLevel.Level())
	b.config.Discord.LogLevel.Set(state.DiscordLogLevel.Level())
	b.config.Discord.DiscordGoLogLevel.Set(state.DiscordGoLogLevel.Level())
	b.config.DatabaseLogLevel.Set(state.DatabaseLogLevel.Level())
	b.config.API.LogLevel.Set(state.APILogLevel.Level())
	b.config.Sheets.LogLevel.Set(state.SheetsLogLevel.Level())
}

// shutdown waits for in-flight interactions, then stops the servers and
// the discord session, up to the shutdown timeout.
func (b *Bot) shutdown(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	b.logger.WarnContext(ctx, "shutting down")
	defer func() {
		select {
		case b.eventShutdown <- struct{}{}:
		default:
		}
	}()

	shutdownStart := time.Now()
	shutdownDeadline := shutdownStart.Add(b.config.ShutdownTimeout)

	closeCtx, closeCancel := context.WithDeadline(context.Background(), shutdownDeadline)
	defer closeCancel()

	b.logger.InfoContext(
		ctx,
		"exiting!",
		"shutdown_timeout", b.config.ShutdownTimeout,
		"interactions_in_progress", b.interactionsInProgress.Load(),
		"pending_confirmations", b.confirmations.len(),
	)

	done := make(chan error, 1)
	go func() {
		runtimeWG.Wait()
		b.webhookWG.Wait()
		b.logger.InfoContext(ctx, "finished handling in-flight interactions")

		var g errgroup.Group
		if b.api != nil && b.api.httpServer != nil {
			g.Go(
				func() error {
					return b.api.httpServer.Shutdown(closeCtx)
				},
			)
		}
		if b.discordWebhookServer != nil {
			g.Go(
				func() error {
					return b.discordWebhookServer.httpServer.Shutdown(closeCtx)
				},
			)
		}
		if b.discord.session != nil {
			g.Go(
				func() error {
					err := b.discord.session.Close()
					for _, h := range b.discord.removeHandlers {
						h()
					}
					return err
				},
			)
		}
		if b.redis != nil {
			g.Go(b.redis.Close)
		}
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		b.logger.InfoContext(
			ctx,
			"shutdown complete",
			"shutdown_duration", time.Since(shutdownStart),
			tint.Err(err),
		)
		return nil
	case <-closeCtx.Done():
		b.logger.Warn("in-flight work did not stop in time, forcing close")
		if b.api != nil && b.api.httpServer != nil {
			_ = b.api.httpServer.Close()
		}
		if b.discordWebhookServer != nil {
			_ = b.discordWebhookServer.httpServer.Close()
		}
		return errors.New("shutdown timed out")
	}
}

func (*Bot) handleRecover(ctx context.Context, rc any) {
	logger, ok := ContextLogger(ctx)
	if logger == nil || !ok {
		logger = slog.Default()
	}
	stackTrace := string(debug.Stack())
	switch v := rc.(type) {
	case error:
		logger.ErrorContext(ctx, "recovered from panic", tint.Err(v), "stack_trace", stackTrace)
	case string:
		logger.ErrorContext(ctx, "recovered from panic", tint.Err(errors.New(v)), "stack_trace", stackTrace)
	default:
		logger.ErrorContext(ctx, "recovered from panic", "panic_arg", rc, "stack_trace", stackTrace)
	}
}

// BotStatus summarizes the running bot, for the health check.
type BotStatus struct {
	StartedAt              time.Time     `json:"started_at"`
	Uptime                 time.Duration `json:"uptime"`
	Paused                 bool          `json:"paused"`
	DiscordConnected       bool          `json:"discord_connected"`
	DiscordConnects        int64         `json:"discord_connects"`
	DiscordDisconnects     int64         `json:"discord_disconnects"`
	InteractionsInProgress int64         `json:"interactions_in_progress"`
	XPUpdatesInProgress    int64         `json:"xp_updates_in_progress"`
	PendingConfirmations   int           `json:"pending_confirmations"`
}

func (b *Bot) Status() BotStatus {
	return BotStatus{
		StartedAt:              b.startedAt,
		Uptime:                 time.Since(b.startedAt),
		Paused:                 b.paused.Load(),
		DiscordConnected:       b.discord.connected.Load(),
		DiscordConnects:        b.discord.metricConnects.Load(),
		DiscordDisconnects:     b.discord.metricDisconnects.Load(),
		InteractionsInProgress: b.interactionsInProgress.Load(),
		XPUpdatesInProgress:    b.xpUpdatesInProgress.Load(),
		PendingConfirmations:   b.confirmations.len(),
	}
}
