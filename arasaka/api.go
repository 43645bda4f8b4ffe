package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	ginPprof "github.com/gin-contrib/pprof"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

const (
	pprofPrefix             = "/debug"
	apiPrefix               = "/api"
	apiPathQuit             = "/quit"
	apiPathLogin            = "/login"
	apiPathLogout           = "/logout"
	apiPathRegisterCommands = "/discord/register_commands"
	apiPathLoggedIn         = "/logged_in"
	apiHealthCheck          = "/healthz"
	apiPathConfig           = "/config"
	apiPathSetup            = "/setup"
	apiPathSetupStatus      = "/setup/status"
	apiPathLedgerMember     = "/ledger/:username"
	apiPathEvents           = "/events"
	apiPathQuota            = "/quota"
	apiPathAdmins           = "/admins"
	apiPathInteractions     = "/interactions"
	apiPathMetrics          = "/metrics"
)

const (
	xRequestIDHeader = "X-Request-ID"
	sessionVarName   = "user"
	sessionVarField  = "username"
)

var (
	structValidator = validator.New()
)

type Sort string

var (
	Ascending  Sort = "asc"
	Descending Sort = "desc"
)

// API is the admin HTTP server. It handles first-time credential setup,
// runtime config changes, and read-only views of the ledger, events and
// interaction logs.
type API struct {
	config              *APIConfig
	httpServer          *http.Server
	listener            net.Listener
	engine              *gin.Engine
	store               CookieStore
	loginRequestLimiter *rate.Limiter
	requestMetrics      map[string]int
	requestMetricsMu    sync.Mutex
	logger              *slog.Logger

	handlers *APIHandlers
}

func newAPI(b *Bot, config *APIConfig) (*API, error) {
	logger := slog.New(newHandler(defaultLogWriter, config.LogLevel)).With(
		loggerNameKey, "api",
	)

	r := gin.New()

	api := &API{
		config:              config,
		engine:              r,
		requestMetrics:      map[string]int{},
		loginRequestLimiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:              logger,
	}
	handlers := NewAPIHandlers(b, api, logger)
	api.handlers = handlers
	api.store = handlers.store

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	if config.SSL.Enabled() {
		tlsCfg, e := tlsConfig(config.SSL.Cert, config.SSL.Key, config.SSL.TLSMinVersion)
		if e != nil {
			return nil, fmt.Errorf("error loading SSL certs: %w", e)
		}
		httpServer.TLSConfig = tlsCfg
	}
	api.httpServer = httpServer

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
		// wildcard origins can't be combined with credentials
		corsConfig.AllowCredentials = false
	}

	if !config.Development {
		r.Use(gin.Recovery())
	}
	r.Use(
		requestIDMiddleware(),
		ginLoggingMiddleware(),
		metricMiddleware(api),
		cors.New(corsConfig),
		sessions.Sessions(sessionVarName, handlers.store),
	)

	r.POST(apiPathLogin, handlers.loginHandler)
	r.GET(apiHealthCheck, handlers.healthCheck)
	r.POST(apiPathLogout, handlers.logoutHandler)
	r.POST(apiPathSetup, handlers.adminSetup)
	r.GET(apiPathSetupStatus, handlers.setupStatus)

	if config.Development {
		ginPprof.Register(r, pprofPrefix)
		runtime.SetMutexProfileFraction(1)
		runtime.SetBlockProfileRate(1)
	}

	r.NoRoute(
		func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusNotFound, httpError{Error: "not found"})
		},
	)

	protected := r.Group(apiPrefix)
	protected.Use(authMiddleware(b))

	protected.GET(apiPathLoggedIn, handlers.loggedIn)
	protected.GET(apiPathConfig, handlers.getConfig)
	protected.PATCH(apiPathConfig, handlers.updateRuntimeConfig)
	protected.POST(apiPathQuit, handlers.botQuit)
	protected.POST(apiPathRegisterCommands, handlers.discordRegisterCommands)
	protected.GET(apiPathMetrics, handlers.getMetrics)

	services := protected.Group("")
	services.Use(servicesReadyMiddleware(b))
	services.GET(apiPathLedgerMember, handlers.getLedgerMember)
	services.GET(apiPathEvents, handlers.getEvents)
	services.GET(apiPathQuota, handlers.getQuota)
	services.GET(apiPathAdmins, handlers.getAdmins)
	services.GET(apiPathInteractions, handlers.getInteractions)

	return api, nil
}

// Serve listens on the configured address and serves until the server
// is shut down.
func (a *API) Serve(ctx context.Context) error {
	if a.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, e := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
		if e != nil {
			return fmt.Errorf("error listening on %s: %w", a.config.Listen, e)
		}
		a.listener = ln
	}
	a.logger.InfoContext(ctx, "serving api", "addr", a.listener.Addr().String())
	if a.httpServer.TLSConfig == nil {
		return a.httpServer.Serve(a.listener)
	}
	return a.httpServer.ServeTLS(a.listener, "", "")
}

// CookieStore is a gin session store backed by gorilla's cookie store.
type CookieStore interface {
	sessions.Store
}

func NewCookieStore(keyPairs ...[]byte) CookieStore {
	return &cookieStore{gsessions.NewCookieStore(keyPairs...)}
}

type cookieStore struct {
	*gsessions.CookieStore
}

func (c *cookieStore) Options(options sessions.Options) {
	c.CookieStore.Options = options.ToGorillaOptions()
}

// APIHandlers contains the handlers for the admin API endpoints.
type APIHandlers struct {
	b      *Bot
	api    *API
	logger *slog.Logger
	store  CookieStore
}

func NewAPIHandlers(b *Bot, api *API, logger *slog.Logger) *APIHandlers {
	var secretKey []byte
	switch sk := api.config.Secret; {
	case sk == "":
		logger.Warn(
			"api secret not set, generating random secret " +
				"(sessions will not persist across restarts)",
		)
		secretKey = securecookie.GenerateRandomKey(64)
	default:
		secretKey = derive64ByteKey(sk)
	}

	store := NewCookieStore(secretKey)
	store.Options(sessionOptions(api.config))
	return &APIHandlers{b: b, api: api, logger: logger, store: store}
}

func sessionOptions(config *APIConfig) sessions.Options {
	sameSite := http.SameSiteStrictMode
	if config.Development {
		sameSite = http.SameSiteNoneMode
	}
	return sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		SameSite: sameSite,
	}
}

// setupStatus reports whether admin credentials still need to be set.
//
// Responses:
//   - 200 OK: {"required": bool}
func (h *APIHandlers) setupStatus(c *gin.Context) {
	c.JSON(http.StatusOK, setupResponse{Required: h.b.pendingSetup.Load()})
}

// adminSetup sets the admin credentials, only while setup is pending.
//
// Responses:
//   - 201 Created: If the admin credentials were set.
//   - 400 Bad Request: If the request payload is invalid.
//   - 403 Forbidden: If setup isn't pending.
//   - 500 Internal Server Error: If the credentials couldn't be saved.
func (h *APIHandlers) adminSetup(c *gin.Context) {
	b := h.b
	b.cfgMu.Lock()
	defer b.cfgMu.Unlock()

	if !b.pendingSetup.Load() || b.runtimeConfig == nil {
		c.JSON(http.StatusForbidden, httpError{Error: "Forbidden"})
		return
	}

	logger := ginContextLogger(c)
	logger.Info("first time admin setup")

	var payload adminSetupPayload
	if e := c.ShouldBindJSON(&payload); e != nil {
		logger.Error("bad payload", tint.Err(e))
		c.JSON(http.StatusBadRequest, httpError{Error: e.Error()})
		return
	}

	password, err := HashPassword(payload.Password)
	if err != nil {
		logger.Error("error hashing password", tint.Err(err))
		ginReplyError(c, "error setting admin credentials")
		return
	}

	current := *b.runtimeConfig
	if _, err = b.writeDB.Updates(
		c.Request.Context(),
		&current,
		map[string]any{
			columnRuntimeConfigAdminUsername: payload.Username,
			columnRuntimeConfigAdminPassword: password,
		},
	); err != nil {
		logger.Error("error updating admin credentials", tint.Err(err))
		ginReplyError(c, "error updating admin credentials")
		return
	}
	b.runtimeConfig = &current
	b.pendingSetup.Store(false)
	c.JSON(http.StatusCreated, httpReply{Message: "admin credentials set"})
}

// loginHandler checks the credentials against the stored admin
// credentials and starts a session. Attempts are rate limited.
//
// Responses:
//   - 200 OK: {"username": string}
//   - 400 Bad Request: If the request payload is invalid.
//   - 401 Unauthorized: If the credentials are wrong, or not set.
//   - 429 Too Many Requests: If login attempts are rate limited.
func (h *APIHandlers) loginHandler(c *gin.Context) {
	logger := ginContextLogger(c)
	if !h.api.loginRequestLimiter.Allow() {
		logger.Warn("login rate limited")
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	var login userLogin
	if err := c.ShouldBindJSON(&login); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	runtimeConfig := h.b.RuntimeConfig()
	if runtimeConfig.AdminUsername == "" || runtimeConfig.AdminPassword == "" {
		logger.Warn("admin username and password not set")
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}
	if login.Username != runtimeConfig.AdminUsername {
		logger.Warn("admin username incorrect", "username", login.Username)
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}
	valid, err := VerifyPassword(runtimeConfig.AdminPassword, login.Password)
	if err != nil {
		logger.Error("error verifying password", tint.Err(err))
		ginReplyError(c, "internal server error")
		return
	}
	if !valid {
		logger.Warn("invalid login attempt", "username", login.Username)
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}

	session := sessions.Default(c)
	session.Options(sessionOptions(h.api.config))
	session.Set(sessionVarField, login.Username)
	if err = session.Save(); err != nil {
		logger.Error("error saving session", tint.Err(err))
		ginReplyError(c, "internal server error")
		return
	}
	logger.Info("saved user session", "username", login.Username)
	c.JSON(http.StatusOK, loggedInResponse{Username: login.Username})
}

func (h *APIHandlers) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.b.Status())
}

func (h *APIHandlers) logoutHandler(c *gin.Context) {
	logger := ginContextLogger(c)
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		logger.Error("error saving cookie", tint.Err(err))
	}
	ginReplyMessage(c, "logged out")
}

func (h *APIHandlers) loggedIn(c *gin.Context) {
	username, _ := sessions.Default(c).Get(sessionVarField).(string)
	c.JSON(http.StatusOK, loggedInResponse{Username: username})
}

func (h *APIHandlers) discordRegisterCommands(c *gin.Context) {
	log := ginContextLogger(c)
	log.Info("registering commands")

	created, err := h.b.RegisterCommands()
	if err != nil {
		log.Error("error registering commands", tint.Err(err))
		ginReplyError(c, "error registering commands")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *APIHandlers) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.b.RuntimeConfig())
}

// updateRuntimeConfig applies a partial runtime config update. Running
// instances are notified to reload it.
//
// Responses:
//   - 200 OK: {"updated": [field names]}
//   - 400 Bad Request: If the request payload is invalid.
//   - 500 Internal Server Error: If the update couldn't be saved.
func (h *APIHandlers) updateRuntimeConfig(c *gin.Context) {
	logger := ginContextLogger(c)

	var update RuntimeConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.Error("bad payload", tint.Err(err))
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	changed, err := h.b.UpdateRuntimeConfig(c.Request.Context(), update)
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, httpError{Error: validationErrs.Error()})
		return
	case err != nil:
		logger.Error("error updating runtime config", tint.Err(err))
		ginReplyError(c, "error updating runtime config")
		return
	}
	logger.Info("updated runtime config", "changed", changed)
	c.JSON(http.StatusOK, runtimeConfigUpdateResponse{Updated: changed})
}

// botQuit signals every running instance to stop.
func (h *APIHandlers) botQuit(c *gin.Context) {
	log := ginContextLogger(c)
	log.Warn("sending stop signal")
	if h.b.dbNotifier == nil {
		c.JSON(http.StatusServiceUnavailable, httpError{Error: "not running"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		h.b.dbNotifier.Stop(ctx)
	}()
	select {
	case <-doneCh:
		ginReplyMessage(c, "quitting")
	case <-ctx.Done():
		log.Warn("timeout sending stop signal")
		c.JSON(http.StatusGatewayTimeout, httpError{Error: "timeout sending stop signal"})
	}
}

func (h *APIHandlers) getMetrics(c *gin.Context) {
	h.api.requestMetricsMu.Lock()
	metrics := make(map[string]int, len(h.api.requestMetrics))
	for k, v := range h.api.requestMetrics {
		metrics[k] = v
	}
	h.api.requestMetricsMu.Unlock()
	c.JSON(http.StatusOK, metrics)
}

// getLedgerMember returns a member's ledger row along with their rank
// progress.
//
// Responses:
//   - 200 OK: ledgerMemberResponse
//   - 404 Not Found: If no row matches the username.
//   - 502 Bad Gateway: If the ledger couldn't be read.
func (h *APIHandlers) getLedgerMember(c *gin.Context) {
	logger := ginContextLogger(c)
	username := strings.TrimSpace(c.Param("username"))

	row, err := h.b.ledger.Find(c.Request.Context(), username)
	switch {
	case errors.Is(err, ErrLedgerRowNotFound):
		c.JSON(http.StatusNotFound, httpError{Error: "member not found"})
		return
	case err != nil:
		logger.Error("error reading ledger", tint.Err(err))
		c.JSON(http.StatusBadGateway, httpError{Error: "error reading ledger"})
		return
	}
	c.JSON(
		http.StatusOK, ledgerMemberResponse{
			LedgerRow: row,
			WeeklyXP:  row.Weekly.String(),
			Progress:  h.b.calculator.ComputeProgress(row),
		},
	)
}

// getEvents lists the event records where the given username or
// Discord ID appears as the host or an attendee.
//
// Responses:
//   - 200 OK: eventsResponse
//   - 400 Bad Request: If neither username nor discord_id is set, or
//     pagination is invalid.
func (h *APIHandlers) getEvents(c *gin.Context) {
	var query getEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	if query.Username == "" && query.DiscordID == "" {
		c.JSON(http.StatusBadRequest, httpError{Error: "username or discord_id is required"})
		return
	}
	if query.Limit == 0 {
		query.Limit = 25
	}

	q := EventQuery{Limit: query.Limit, Offset: query.Offset}
	if query.Username != "" {
		q.Usernames = []string{query.Username}
	}
	if query.DiscordID != "" {
		q.DiscordIDs = []string{query.DiscordID}
	}
	records, total, err := h.b.events.Query(c.Request.Context(), q)
	if err != nil {
		ginContextLogger(c).Error("error getting events", tint.Err(err))
		ginReplyError(c, "error getting events")
		return
	}
	c.JSON(http.StatusOK, eventsResponse{Total: total, Events: records})
}

func (h *APIHandlers) getQuota(c *gin.Context) {
	standings, err := h.b.quota.Standings(c.Request.Context())
	if err != nil {
		ginContextLogger(c).Error("error getting quota standings", tint.Err(err))
		ginReplyError(c, "error getting quota standings")
		return
	}
	c.JSON(
		http.StatusOK, quotaResponse{
			WeekStart: h.b.quota.WeekStart(),
			Standings: standings,
		},
	)
}

func (h *APIHandlers) getAdmins(c *gin.Context) {
	admins, err := h.b.permits.Administrators(c.Request.Context())
	if err != nil {
		ginContextLogger(c).Error("error getting administrators", tint.Err(err))
		ginReplyError(c, "error getting administrators")
		return
	}
	c.JSON(http.StatusOK, admins)
}

// getInteractions lists received interactions, newest first unless
// order=asc.
func (h *APIHandlers) getInteractions(c *gin.Context) {
	var query getInteractionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: "invalid pagination"})
		return
	}
	if query.Limit == 0 {
		query.Limit = 25
	}

	db := h.b.db.WithContext(c.Request.Context()).
		Model(&InteractionLog{}).
		Limit(query.Limit).
		Offset(query.Offset)
	if query.UserID != "" {
		db = db.Where("user_id = ?", query.UserID)
	}
	switch query.Order {
	case Ascending:
		db = db.Order("created_at asc")
	default:
		db = db.Order("created_at desc")
	}

	var logs []InteractionLog
	if err := db.Find(&logs).Error; err != nil {
		ginContextLogger(c).Error("error getting interactions", tint.Err(err))
		ginReplyError(c, "error getting interactions")
		return
	}
	c.JSON(http.StatusOK, logs)
}

// Pagination represents the pagination parameters for API requests.
type Pagination struct {
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=100"`
	Order  Sort `form:"order" binding:"omitempty,oneof=asc desc"`
	Offset int  `form:"offset" binding:"omitempty,min=0"`
}

type getEventsQuery struct {
	Pagination
	Username  string `form:"username"`
	DiscordID string `form:"discord_id" binding:"omitempty,numeric"`
}

type getInteractionsQuery struct {
	Pagination
	UserID string `form:"user_id" binding:"omitempty,numeric"`
}

type ledgerMemberResponse struct {
	LedgerRow
	WeeklyXP string   `json:"weekly_xp"`
	Progress Progress `json:"progress"`
}

type eventsResponse struct {
	Total  int64         `json:"total"`
	Events []EventRecord `json:"events"`
}

type quotaResponse struct {
	WeekStart time.Time   `json:"week_start"`
	Standings []HostTally `json:"standings"`
}

type runtimeConfigUpdateResponse struct {
	Updated []string `json:"updated"`
}

type loggedInResponse struct {
	Username string `json:"username"`
}

type httpReply struct {
	Message string `json:"message"`
}

// httpError is an error message returned to the client
type httpError struct {
	Error string `json:"error"`
}

type userLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminSetupPayload struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// setupResponse tells the client whether admin credentials still need
// to be set.
type setupResponse struct {
	Required bool `json:"required"`
}

// authMiddleware aborts with 401 unless the session holds a username.
// While setup is pending, every request is rejected.
func authMiddleware(b *Bot) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ginContextLogger(c)
		if b.pendingSetup.Load() {
			logger.Warn("admin username and password not set")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
			return
		}

		username, _ := sessions.Default(c).Get(sessionVarField).(string)
		if username == "" {
			logger.Warn("username not found in session")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
			return
		}
		logger.Debug("got session", sessionVarField, username)
		c.Next()
	}
}

// servicesReadyMiddleware aborts with 503 until startup has connected
// the ledger.
func servicesReadyMiddleware(b *Bot) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.servicesReady.Load() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, httpError{Error: "starting up"})
			return
		}
		c.Next()
	}
}

// requestIDMiddleware assigns a unique ID to each request, set in the
// context and in the response's X-Request-ID header.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(xRequestIDHeader, id)
		c.Header(xRequestIDHeader, id)
		c.Next()
	}
}

// ginContextLogger returns the slog.Logger from the given gin context,
// or, if it doesn't exist, creates a logger with request details included,
// and sets the logger in the context so the next call to ginContextLogger
// will return the new logger.
func ginContextLogger(c *gin.Context) *slog.Logger {
	if logger, ok := c.Get(string(loggerContextKey)); ok {
		if requestLogger, isLogger := logger.(*slog.Logger); isLogger {
			return requestLogger
		}
	}
	requestID, _ := c.Get(xRequestIDHeader)
	path := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		path = path + "?" + raw
	}

	requestLogger := slog.Default().With(
		slog.Group(
			"request",
			"method", c.Request.Method,
			"path", path,
			"remote_ip", c.RemoteIP(),
			"user_agent", c.Request.UserAgent(),
		),
		slog.Any(xRequestIDHeader, requestID),
	)
	c.Set(string(loggerContextKey), requestLogger)
	return requestLogger
}

// ginLoggingMiddleware logs each request once it finishes, with its
// duration and any errors attached to the context.
func ginLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := ginContextLogger(c)
		c.Next()
		latency := time.Since(start)

		response := slog.Group(
			"response",
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
		)
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			requestLogger.Error(
				fmt.Sprintf("%s %s finished with errors", c.Request.Method, c.Request.URL.Path),
				"duration", latency,
				"errors", errs.Errors(),
				response,
			)
			return
		}
		requestLogger.Info(
			fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL.Path),
			"duration", latency,
			response,
		)
	}
}

// metricMiddleware counts requests by method and route.
func metricMiddleware(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		a.requestMetricsMu.Lock()
		a.requestMetrics[c.Request.Method+" "+route]++
		a.requestMetricsMu.Unlock()
		c.Next()
	}
}

// ginReplyMessage sends a 200 JSON response with a message
func ginReplyMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, httpReply{Message: message})
}

// ginReplyError aborts with a 500 JSON response
func ginReplyError(c *gin.Context, err string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, httpError{Error: err})
}

//nolint:gochecknoinits // gotta register the validators
func init() {
	structValidator.SetTagName("binding")
}
