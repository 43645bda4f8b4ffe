//nolint:lll // struct tags can't be split
package arasaka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// InteractionLog is a record of every interaction received.
type InteractionLog struct {
	ModelUintID
	Method        DiscordInteractionReceiveMethod `json:"method" gorm:"type:string"` // webhook or gateway
	InteractionID string                          `json:"interaction_id" gorm:"not null"`
	Type          string                          `json:"type" gorm:"type:string"`
	UserID        string                          `json:"user_id" gorm:"not null;index"`
	Username      string                          `json:"username" gorm:"type:string"`
	GuildID       string                          `json:"guild_id" gorm:"type:string"`
	ChannelID     string                          `json:"channel_id" gorm:"type:string"`
	Context       string                          `json:"context" gorm:"type:string"`
	Payload       string                          `json:"payload" gorm:"type:string"`
	CreatedAt     int64                           `gorm:"autoCreateTime:milli;index" json:"created_at,omitempty"`
}

func newInteractionLog(
	i *discordgo.InteractionCreate,
	u *discordgo.User,
	method DiscordInteractionReceiveMethod,
) (*InteractionLog, error) {
	p, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("error marshaling interaction: %w", err)
	}

	return &InteractionLog{
		InteractionID: i.ID,
		Type:          i.Type.String(),
		UserID:        u.ID,
		Username:      u.String(),
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
		Context:       interactionContextName(i.Context),
		Payload:       string(p),
		Method:        method,
	}, nil
}

// CommandAnalytics counts application command usage.
type CommandAnalytics struct {
	ModelUintID
	// Command is the full command path, ex: "xp-manage update"
	Command     string `json:"command" gorm:"index;not null"`
	CommandType string `json:"command_type" gorm:"type:string"`
	GuildID     string `json:"guild_id" gorm:"type:string"`
	UserID      string `json:"user_id" gorm:"index"`
	CreatedAt   int64  `gorm:"autoCreateTime:milli;index" json:"created_at,omitempty"`
}

func newCommandAnalytics(i *discordgo.InteractionCreate, userID string) *CommandAnalytics {
	data := i.ApplicationCommandData()
	path, _ := commandOptions(i)
	return &CommandAnalytics{
		Command:     strings.Join(append([]string{data.Name}, path...), " "),
		CommandType: applicationCommandTypeName(data.CommandType),
		GuildID:     i.GuildID,
		UserID:      userID,
	}
}

func interactionContextName(c discordgo.InteractionContextType) string {
	switch c {
	case discordgo.InteractionContextGuild:
		return "guild"
	case discordgo.InteractionContextBotDM:
		return "bot_dm"
	case discordgo.InteractionContextPrivateChannel:
		return "private_channel"
	default:
		return "unknown"
	}
}

func applicationCommandTypeName(t discordgo.ApplicationCommandType) string {
	switch t {
	case discordgo.ChatApplicationCommand:
		return "slash"
	case discordgo.UserApplicationCommand:
		return "user"
	case discordgo.MessageApplicationCommand:
		return "message"
	default:
		return "unknown"
	}
}

// InteractionHandler responds to a single Discord interaction, however
// it was received.
type InteractionHandler interface {
	// Respond sends the initial response to the interaction
	Respond(ctx context.Context, response *discordgo.InteractionResponse) error

	// Edit modifies the initial response
	Edit(
		ctx context.Context,
		e *discordgo.WebhookEdit,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// Followup sends a followup message
	Followup(
		ctx context.Context,
		params *discordgo.WebhookParams,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// FollowupEdit modifies a followup message
	FollowupEdit(
		ctx context.Context,
		messageID string,
		e *discordgo.WebhookEdit,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	GetInteraction() *discordgo.InteractionCreate

	InteractionReceiveMethod() DiscordInteractionReceiveMethod

	Logger() *slog.Logger
}

// GatewayHandler implements [InteractionHandler] for interactions
// received over the websocket gateway.
type GatewayHandler struct {
	session     DiscordSessionHandler
	interaction *discordgo.InteractionCreate
	logger      *slog.Logger
}

func (GatewayHandler) InteractionReceiveMethod() DiscordInteractionReceiveMethod {
	return discordInteractionReceiveMethodGateway
}

func (w GatewayHandler) Respond(
	ctx context.Context,
	response *discordgo.InteractionResponse,
) error {
	err := w.session.InteractionRespond(w.interaction.Interaction, response)
	if err != nil {
		w.logger.ErrorContext(ctx, "error responding to interaction", tint.Err(err))
	} else {
		w.logger.DebugContext(ctx, "responded to interaction")
	}
	return err
}

func (w GatewayHandler) Edit(
	ctx context.Context,
	wh *discordgo.WebhookEdit,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := w.session.InteractionResponseEdit(w.interaction.Interaction, wh, opts...)
	if err != nil {
		w.logger.ErrorContext(ctx, "error editing interaction response", tint.Err(err))
	}
	return msg, err
}

func (w GatewayHandler) Followup(
	ctx context.Context,
	params *discordgo.WebhookParams,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := w.session.FollowupMessageCreate(w.interaction.Interaction, true, params, opts...)
	if err != nil {
		w.logger.ErrorContext(ctx, "error sending followup", tint.Err(err))
	}
	return msg, err
}

func (w GatewayHandler) FollowupEdit(
	ctx context.Context,
	messageID string,
	e *discordgo.WebhookEdit,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := w.session.FollowupMessageEdit(w.interaction.Interaction, messageID, e, opts...)
	if err != nil {
		w.logger.ErrorContext(ctx, "error editing followup", tint.Err(err))
	}
	return msg, err
}

func (w GatewayHandler) GetInteraction() *discordgo.InteractionCreate {
	return w.interaction
}

func (w GatewayHandler) Logger() *slog.Logger {
	return w.logger
}

// ephemeralReply is an immediate, ephemeral message response
func ephemeralReply(content string, embeds ...*discordgo.MessageEmbed) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Embeds:  embeds,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// deferredReply acknowledges the interaction, to be edited later
func deferredReply(ephemeral bool) *discordgo.InteractionResponse {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{},
	}
	if ephemeral {
		resp.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	return resp
}

func embedReply(ephemeral bool, embeds ...*discordgo.MessageEmbed) *discordgo.InteractionResponse {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: embeds},
	}
	if ephemeral {
		resp.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	return resp
}
