package arasaka

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const apiDiscordInteractions = "/discord/interactions"

var errWebhookResponseClosed = errors.New("webhook request closed before response was sent")

// DiscordWebhookServer receives interactions as signed HTTP requests,
// as an alternative to the gateway.
type DiscordWebhookServer struct {
	config     DiscordWebhookServerConfig
	httpServer *http.Server
	listener   net.Listener
	engine     *gin.Engine
	logger     *slog.Logger
}

func (d *DiscordWebhookServer) Serve(ctx context.Context) error {
	if d.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(ctx, d.config.ListenNetwork, d.config.Listen)
		if err != nil {
			return fmt.Errorf("error listening on %s: %w", d.config.Listen, err)
		}
		d.listener = ln
	}
	d.logger.InfoContext(ctx, "serving discord webhook", "addr", d.listener.Addr().String())
	if d.httpServer.TLSConfig == nil {
		d.logger.Warn("starting server without TLS")
		return d.httpServer.Serve(d.listener)
	}
	return d.httpServer.ServeTLS(d.listener, "", "")
}

// newWebhookServer creates and returns a new [DiscordWebhookServer], and/or
// any errors that occurred during creation.
func newWebhookServer(
	b *Bot,
	config DiscordWebhookServerConfig,
) (*DiscordWebhookServer, error) {
	logger := slog.New(newHandler(defaultLogWriter, config.LogLevel)).With(
		loggerNameKey, "discord_webhook",
	)

	publicKey := b.discord.publicKey
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf(
			"invalid discord public key: expected %d bytes, got %d",
			ed25519.PublicKeySize,
			len(publicKey),
		)
	}

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	server := &DiscordWebhookServer{config: config, engine: r, logger: logger}

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	if config.SSL.Enabled() {
		tlsCfg, tlsErr := tlsConfig(config.SSL.Cert, config.SSL.Key, config.SSL.TLSMinVersion)
		if tlsErr != nil {
			return nil, fmt.Errorf("error loading SSL certs: %w", tlsErr)
		}
		httpServer.TLSConfig = tlsCfg
	}
	server.httpServer = httpServer

	r.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		ginLoggingMiddleware(),
		discordRequestAuthenticationMiddleware(publicKey),
	)
	r.POST(
		apiDiscordInteractions, func(c *gin.Context) {
			if h := b.webhookInteractionHandler; h != nil {
				h(c)
				return
			}
			c.JSON(http.StatusServiceUnavailable, httpError{Error: "not ready"})
		},
	)
	return server, nil
}

// webhookResponse carries the initial interaction response from the
// command goroutine back to the HTTP request that delivered the
// interaction.
type webhookResponse struct {
	sent      atomic.Bool
	responses chan *discordgo.InteractionResponse
	written   chan struct{}
	closed    chan struct{}
}

func newWebhookResponse() *webhookResponse {
	return &webhookResponse{
		responses: make(chan *discordgo.InteractionResponse),
		written:   make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

// WebhookHandler implements [InteractionHandler] for interactions
// received by HTTP. The initial response is written as the HTTP reply.
// Every later call goes through the REST API, the same as the gateway.
type WebhookHandler struct {
	InteractionHandler
	response *webhookResponse
}

func (WebhookHandler) InteractionReceiveMethod() DiscordInteractionReceiveMethod {
	return discordInteractionReceiveMethodWebhook
}

func (w WebhookHandler) Respond(
	ctx context.Context,
	response *discordgo.InteractionResponse,
) error {
	if !w.response.sent.CompareAndSwap(false, true) {
		return w.InteractionHandler.Respond(ctx, response)
	}
	select {
	case w.response.responses <- response:
	case <-w.response.closed:
		return errWebhookResponseClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-w.response.written:
		w.Logger().DebugContext(ctx, "responded to interaction")
		return nil
	case <-w.response.closed:
		return errWebhookResponseClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// webhookReceiveHandler decodes the interaction and runs it in its own
// goroutine. The request is held open until the first response is
// ready, so commands which run long after responding don't hold up
// the HTTP server.
func webhookReceiveHandler(ctx context.Context, b *Bot) func(c *gin.Context) {
	return func(c *gin.Context) {
		requestID, _ := c.Get(xRequestIDHeader)
		logger := ginContextLogger(c).With(
			slog.Group(
				"webhook_request",
				"remote_addr", c.Request.RemoteAddr,
				"remote_ip", c.RemoteIP(),
				xRequestIDHeader, requestID,
			),
		)

		defer func() {
			_ = c.Request.Body.Close()
		}()
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.ErrorContext(ctx, "error reading body", tint.Err(err))
			c.JSON(http.StatusInternalServerError, httpError{Error: "error reading body"})
			return
		}

		var interaction discordgo.InteractionCreate
		if e := json.Unmarshal(body, &interaction); e != nil {
			logger.ErrorContext(ctx, "error unmarshalling body", tint.Err(e))
			c.JSON(http.StatusBadRequest, httpError{Error: "error unmarshalling body"})
			return
		}
		if b.getInteractionHandlerFunc == nil {
			c.JSON(http.StatusServiceUnavailable, httpError{Error: "not ready"})
			return
		}

		i := &interaction
		resp := newWebhookResponse()
		handler := WebhookHandler{
			InteractionHandler: b.getInteractionHandlerFunc(ctx, i),
			response:           resp,
		}

		done := make(chan struct{})
		b.webhookWG.Add(1)
		go func() {
			defer b.webhookWG.Done()
			defer close(done)
			b.handleInteraction(WithLogger(ctx, logger), handler)
		}()

		select {
		case r := <-resp.responses:
			c.JSON(http.StatusOK, r)
			close(resp.written)
		case <-done:
			logger.WarnContext(ctx, "interaction finished without a response")
			close(resp.closed)
			c.Status(http.StatusNoContent)
		case <-c.Request.Context().Done():
			logger.WarnContext(ctx, "request closed before a response was sent")
			close(resp.closed)
		}
	}
}

// discordRequestAuthenticationMiddleware rejects requests without a valid
// Discord signature.
// See: https://discord.com/developers/docs/interactions/overview#setting-up-an-endpoint-validating-security-request-headers
//
//nolint:lll // can't split link
func discordRequestAuthenticationMiddleware(publicKey ed25519.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifyRequest(c.Request, publicKey) {
			ginContextLogger(c).WarnContext(c, "invalid signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "invalid signature"})
			return
		}
		c.Next()
	}
}

// verifyRequest checks the X-Signature-Ed25519 and X-Signature-Timestamp
// headers against the body, which is left readable for the next handler.
func verifyRequest(r *http.Request, key ed25519.PublicKey) bool {
	return discordgo.VerifyInteraction(r, key)
}
