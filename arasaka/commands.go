package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	colorBlurple = 0x5865F2
	colorGreen   = 0x57F287
	colorRed     = 0xED4245
	colorGold    = 0xFEE75C
	colorArasaka = 0xb3001b
)

const (
	commandXPManage  = "xp-manage"
	commandXP        = "xp"
	commandPermit    = "permit"
	commandBlacklist = "blacklist"
	commandRequest   = "request"
	commandPing      = "ping"
	commandHelp      = "help"

	subcommandUpdate          = "update"
	subcommandModifyStatus    = "modify-status"
	subcommandSetRank         = "set-rank"
	subcommandQuota           = "quota"
	subcommandView            = "view"
	subcommandLink            = "link"
	subcommandRankInformation = "rank-information"
	subcommandList            = "list"
	subcommandAdd             = "add"
	subcommandRemove          = "remove"
	subcommandPromotion       = "promotion"
	subcommandInactivity      = "inactivity"
	subcommandDischarge       = "discharge"

	optionUsernames       = "usernames"
	optionReason          = "reason"
	optionEventType       = "event_type"
	optionPingAttendees   = "ping_attendees"
	optionUsername        = "username"
	optionAction          = "action"
	optionTargetRank      = "target_rank"
	optionRobloxUsernames = "roblox_usernames"
	optionDiscordUser     = "discord_user"
	optionChannelID       = "channel_id"
	optionMessageID       = "message_id"
	optionTargetUser      = "target_user"
	optionRobloxUsername  = "roblox_username"
	optionCurrentXP       = "current_xp"
	optionUser            = "user"
	optionTier            = "tier"
	optionProof           = "proof"

	statusActionClear = "clear"
)

const (
	faqVerify    = "How do I verify?"
	faqClanCode  = "How do I join/get the clan code?"
	faqApps      = "How often are apps checked?"
	faqPromotion = "How do I get promoted?"
	faqOfficer   = "How do I become an officer?"
)

const (
	msgNoPermission = "You do not have permission to use this command."
	msgBlacklisted  = "You have been blacklisted from using commands!"
	msgPaused       = "ArasakaBot is currently paused. Please try again later."
	msgNotLinked    = "Your Discord account isn't linked to a Roblox account. Use `/xp link` to see how to link it."
)

// eventTypes are the choices for /xp-manage update's event_type option
var eventTypes = []string{
	"Spar",
	"Gamenight",
	"General Training",
	"Agent Rally",
	"Combat Training",
	"VBR GT",
	"Disciplinary Training",
}

var faqReplies = map[string]string{
	faqVerify: "To verify, run `/verify` and follow the prompts from Bloxlink to link " +
		"your Roblox account. Once you're verified, your roles will be updated automatically.",
	faqClanCode: "Join the Arasaka group on Roblox and submit an application. Once your " +
		"application is accepted, an officer will give you the clan code.",
	faqApps: "Applications are reviewed by officers every day. Please be patient, and don't " +
		"ping officers about your application.",
	faqPromotion: "Attend events to earn XP. Use `/xp view` to see how much XP you need for " +
		"your next rank, then use `/request promotion` once you're eligible.",
	faqOfficer: "Officer positions open when the board announces officer applications. Keep " +
		"meeting your weekly quota, and watch the announcements channel.",
}

type commandFunc func(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
)

// applicationCommands is the full set of commands registered to the guild
func applicationCommands() []*discordgo.ApplicationCommand {
	minXP := 0.0
	minToken := 1

	eventChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(eventTypes))
	for _, t := range eventTypes {
		eventChoices = append(
			eventChoices,
			&discordgo.ApplicationCommandOptionChoice{Name: t, Value: t},
		)
	}

	statusChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Recent Hire (RH)", Value: string(StatusRecentHire)},
		{Name: "Inactivity Notice (IN)", Value: string(StatusInactivityNotice)},
		{Name: "Exempt (EX)", Value: string(StatusExempt)},
		{Name: "Clear", Value: statusActionClear},
	}

	tierChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 4)
	for t := PermitBotManager; t <= PermitOwner; t++ {
		tierChoices = append(
			tierChoices,
			&discordgo.ApplicationCommandOptionChoice{
				Name:  fmt.Sprintf("%d - %s", t, t),
				Value: int(t),
			},
		)
	}

	userOption := func(description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        optionUser,
			Description: description,
			Required:    true,
		}
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        commandXPManage,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Manage member XP, statuses and ranks",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandUpdate,
					Description: "Add or remove XP for a list of members",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionUsernames,
							Description: "username:xp or username:weekly:total, separated by commas",
							Required:    true,
							MinLength:   &minToken,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionReason,
							Description: "Reason for the update",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionEventType,
							Description: "The type of event hosted",
							Required:    true,
							Choices:     eventChoices,
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        optionPingAttendees,
							Description: "Ping the attendees once their XP is updated (default: true)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandModifyStatus,
					Description: "Set or clear a member's quota status",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionUsername,
							Description: "Roblox username",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionAction,
							Description: "The status to set",
							Required:    true,
							Choices:     statusChoices,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandSetRank,
					Description: "Change the rank of members, or remove them from the group",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionReason,
							Description: "Reason for the rank change",
							Required:    true,
						},
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         optionTargetRank,
							Description:  "The rank to set",
							Required:     true,
							Autocomplete: true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionRobloxUsernames,
							Description: "Roblox usernames, separated by commas",
						},
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        optionDiscordUser,
							Description: "Discord user, resolved to their Roblox account",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandQuota,
					Description: "Post or refresh the weekly event quota",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionChannelID,
							Description: "Channel to post the quota in (default: this channel)",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionMessageID,
							Description: "Existing quota message to edit",
						},
					},
				},
			},
		},
		{
			Name:        commandXP,
			Type:        discordgo.ChatApplicationCommand,
			Description: "View XP and rank progress",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandView,
					Description: "View your XP, or another member's",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        optionTargetUser,
							Description: "Discord user",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionRobloxUsername,
							Description: "Roblox username",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandLink,
					Description: "Link your Discord account to your Roblox account",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionRobloxUsername,
							Description: "Your Roblox username, if Bloxlink can't find you",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandRankInformation,
					Description: "Show the XP required for each rank",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        optionCurrentXP,
							Description: "XP to compare against each rank",
							MinValue:    &minXP,
						},
					},
				},
			},
		},
		{
			Name:        commandPermit,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Manage bot administrators",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandList,
					Description: "List bot administrators",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandAdd,
					Description: "Add or update a bot administrator",
					Options: []*discordgo.ApplicationCommandOption{
						userOption("User to add"),
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        optionTier,
							Description: "Permit level",
							Required:    true,
							Choices:     tierChoices,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandRemove,
					Description: "Remove a bot administrator",
					Options:     []*discordgo.ApplicationCommandOption{userOption("User to remove")},
				},
			},
		},
		{
			Name:        commandBlacklist,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Block users from using commands",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandAdd,
					Description: "Blacklist a user",
					Options: []*discordgo.ApplicationCommandOption{
						userOption("User to blacklist"),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionReason,
							Description: "Reason for the blacklist",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandRemove,
					Description: "Remove a user from the blacklist",
					Options:     []*discordgo.ApplicationCommandOption{userOption("User to remove")},
				},
			},
		},
		{
			Name:        commandRequest,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Submit a request for review",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandPromotion,
					Description: "Request a promotion to your next rank",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionProof,
							Description: "Link to proof of your XP",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandInactivity,
					Description: "Submit an inactivity notice",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subcommandDischarge,
					Description: "Request a discharge from Arasaka",
				},
			},
		},
		{
			Name:        commandPing,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Show the bot's latency and uptime",
		},
		{
			Name:        commandHelp,
			Type:        discordgo.ChatApplicationCommand,
			Description: "List the bot's commands",
		},
	}

	for _, name := range []string{faqVerify, faqClanCode, faqApps, faqPromotion, faqOfficer} {
		commands = append(
			commands,
			&discordgo.ApplicationCommand{
				Name: name,
				Type: discordgo.MessageApplicationCommand,
			},
		)
	}
	return commands
}

// commandHandlers maps a full command path ("xp-manage update") to its
// handler. Officer-only commands are wrapped by officerOnly.
func (b *Bot) commandHandlers() map[string]commandFunc {
	return map[string]commandFunc{
		commandXPManage + " " + subcommandUpdate:       b.officerOnly(b.commandXPUpdate),
		commandXPManage + " " + subcommandModifyStatus: b.officerOnly(b.commandModifyStatus),
		commandXPManage + " " + subcommandSetRank:      b.officerOnly(b.commandSetRank),
		commandXPManage + " " + subcommandQuota:        b.officerOnly(b.commandQuota),
		commandXP + " " + subcommandView:               b.commandXPView,
		commandXP + " " + subcommandLink:               b.commandXPLink,
		commandXP + " " + subcommandRankInformation:    b.commandRankInformation,
		commandPermit + " " + subcommandList:           b.commandPermitList,
		commandPermit + " " + subcommandAdd:            b.commandPermitAdd,
		commandPermit + " " + subcommandRemove:         b.commandPermitRemove,
		commandBlacklist + " " + subcommandAdd:         b.commandBlacklistAdd,
		commandBlacklist + " " + subcommandRemove:      b.commandBlacklistRemove,
		commandRequest + " " + subcommandPromotion:     b.commandRequestPromotion,
		commandRequest + " " + subcommandInactivity:    b.commandRequestInactivity,
		commandRequest + " " + subcommandDischarge:     b.commandRequestDischarge,
		commandPing:                                    b.commandPing,
		commandHelp:                                    b.commandHelp,
	}
}

// handleInteraction is the entry point for every interaction, received
// by the gateway or the webhook server.
//
// The interaction is logged, then checked against the blacklist and the
// paused state, then dispatched by type. Nothing in here blocks other
// interactions: each one runs in its own goroutine.
func (b *Bot) handleInteraction(ctx context.Context, handler InteractionHandler) {
	b.interactionsInProgress.Add(1)
	defer b.interactionsInProgress.Add(-1)

	i := handler.GetInteraction()
	logger := handler.Logger()
	ctx = WithLogger(ctx, logger)

	if b.RuntimeConfig().RecoverPanic {
		defer func() {
			if rc := recover(); rc != nil {
				b.handleRecover(ctx, rc)
			}
		}()
	}

	if i.Type == discordgo.InteractionPing {
		_ = handler.Respond(ctx, &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
		return
	}

	u := interactionUser(i)
	if u == nil {
		logger.ErrorContext(ctx, "no user found in interaction")
		return
	}
	logger.InfoContext(ctx, "received new interaction", "user_id", u.ID, "username", u.Username)

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		interactionLog, err := newInteractionLog(i, u, handler.InteractionReceiveMethod())
		if err != nil {
			logger.ErrorContext(ctx, "error creating interaction log", tint.Err(err))
			return
		}
		if _, err = b.writeDB.Create(context.WithoutCancel(ctx), interactionLog); err != nil {
			logger.ErrorContext(ctx, "error logging interaction", tint.Err(err))
		}
	}()

	if u.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring")
		return
	}

	if reason := b.rejectReason(ctx, u.ID); reason != "" {
		logger.InfoContext(ctx, "rejecting interaction", "reason", reason)
		if i.Type == discordgo.InteractionApplicationCommandAutocomplete {
			_ = handler.Respond(ctx, autocompleteResponse(nil))
			return
		}
		_ = handler.Respond(ctx, ephemeralReply(reason))
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.writeDB.Create(
				context.WithoutCancel(ctx),
				newCommandAnalytics(i, u.ID),
			); err != nil {
				logger.ErrorContext(ctx, "error saving command analytics", tint.Err(err))
			}
		}()
		b.handleCommand(ctx, handler)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(ctx, handler)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, handler)
	case discordgo.InteractionModalSubmit:
		b.handleModalSubmit(ctx, handler)
	default:
		logger.WarnContext(ctx, "unhandled interaction type", "type", i.Type.String())
	}
}

// rejectReason returns the message sent to a user whose interactions
// aren't accepted, or "" if they are
func (b *Bot) rejectReason(ctx context.Context, userID string) string {
	if b.permits.IsBlacklisted(ctx, userID) {
		return msgBlacklisted
	}
	if b.paused.Load() && !b.permits.HasTier(ctx, userID, PermitBotManager) {
		return msgPaused
	}
	return ""
}

func (b *Bot) handleCommand(ctx context.Context, handler InteractionHandler) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	data := i.ApplicationCommandData()

	if data.CommandType == discordgo.MessageApplicationCommand {
		b.commandFAQ(ctx, handler)
		return
	}

	path, options := commandOptions(i)
	name := strings.Join(append([]string{data.Name}, path...), " ")
	f, ok := b.commandHandlers()[name]
	if !ok {
		logger.WarnContext(ctx, "unknown command", "command", name)
		_ = handler.Respond(ctx, ephemeralReply("Unknown command."))
		return
	}
	logger.InfoContext(ctx, "running command", logAttrsForCommand(name, options)...)
	f(ctx, handler, options)
}

func (b *Bot) handleAutocomplete(ctx context.Context, handler InteractionHandler) {
	i := handler.GetInteraction()
	path, options := commandOptions(i)
	if i.ApplicationCommandData().Name != commandXPManage ||
		!slices.Equal(path, []string{subcommandSetRank}) {
		_ = handler.Respond(ctx, autocompleteResponse(nil))
		return
	}

	var choices []string
	if b.isOfficer(i) {
		if actorRank, ok := b.actorRank(ctx, interactionUser(i).ID); ok {
			choices = b.hierarchy.Assignable(actorRank)
		}
	}

	focused := strings.ToLower(optionString(options, optionTargetRank))
	filtered := make([]string, 0, len(choices))
	for _, c := range choices {
		if focused == "" || strings.Contains(strings.ToLower(c), focused) {
			filtered = append(filtered, c)
		}
	}
	_ = handler.Respond(ctx, autocompleteResponse(filtered))
}

// autocompleteResponse returns up to 25 choices, each named and valued
// by the given string
func autocompleteResponse(values []string) *discordgo.InteractionResponse {
	if len(values) > 25 {
		values = values[:25]
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(values))
	for _, v := range values {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}
}

func (b *Bot) handleComponent(ctx context.Context, handler InteractionHandler) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	customID := i.MessageComponentData().CustomID

	if id, answer, ok := parseConfirmCustomID(customID); ok {
		if !b.confirmations.resolve(id, answer) {
			_ = handler.Respond(ctx, ephemeralReply("This confirmation has expired."))
			return
		}
		_ = handler.Respond(
			ctx,
			&discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate},
		)
		return
	}

	if action, kind, ok := parseRequestCustomID(customID); ok {
		b.handleRequestButton(ctx, handler, kind, action)
		return
	}

	logger.WarnContext(ctx, "unknown component", "custom_id", customID)
	_ = handler.Respond(ctx, ephemeralReply("This button is no longer active."))
}

// isOfficer is true for members with an officer role, and configured
// owners
func (b *Bot) isOfficer(i *discordgo.InteractionCreate) bool {
	u := interactionUser(i)
	if u != nil && slices.Contains(b.config.Guild.OwnerIDs, u.ID) {
		return true
	}
	return hasAnyRole(i, b.config.Guild.OfficerRoleIDs)
}

// isReviewer is true for members who may accept or deny requests
func (b *Bot) isReviewer(i *discordgo.InteractionCreate) bool {
	return b.isOfficer(i) || hasAnyRole(i, b.config.Guild.ReviewerRoleIDs)
}

func (b *Bot) officerOnly(f commandFunc) commandFunc {
	return func(
		ctx context.Context,
		handler InteractionHandler,
		options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	) {
		if !b.isOfficer(handler.GetInteraction()) {
			_ = handler.Respond(ctx, ephemeralReply(msgNoPermission))
			return
		}
		f(ctx, handler, options)
	}
}

// requirePermit responds with a permission error, and returns false, if
// the invoking user's permit tier is below minTier
func (b *Bot) requirePermit(
	ctx context.Context,
	handler InteractionHandler,
	minTier PermitTier,
) bool {
	u := interactionUser(handler.GetInteraction())
	if b.permits.HasTier(ctx, u.ID, minTier) {
		return true
	}
	_ = handler.Respond(
		ctx,
		ephemeralReply(
			fmt.Sprintf("%s (requires permit level %d, %s)", msgNoPermission, minTier, minTier),
		),
	)
	return false
}

// actorRank looks up the ledger rank of the given Discord user
func (b *Bot) actorRank(ctx context.Context, discordID string) (string, bool) {
	username, ok := b.identity.ResolveGameUsername(ctx, discordID)
	if !ok {
		return "", false
	}
	row, err := b.ledger.Find(ctx, username)
	if err != nil {
		return "", false
	}
	return row.Rank, true
}

// respondError replaces the deferred response with the configured error
// message
func (b *Bot) respondError(ctx context.Context, handler InteractionHandler, err error) {
	handler.Logger().ErrorContext(ctx, "command failed", tint.Err(err))
	content := b.RuntimeConfig().DiscordErrorMessage
	if _, editErr := handler.Edit(ctx, &discordgo.WebhookEdit{Content: &content}); editErr != nil {
		handler.Logger().ErrorContext(ctx, "error sending error response", tint.Err(editErr))
	}
}

// editEmbeds replaces the deferred response with the given embeds
func editEmbeds(ctx context.Context, handler InteractionHandler, embeds ...*discordgo.MessageEmbed) {
	if _, err := handler.Edit(ctx, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		handler.Logger().ErrorContext(ctx, "error editing response", tint.Err(err))
	}
}

func editContent(ctx context.Context, handler InteractionHandler, content string) {
	if _, err := handler.Edit(ctx, &discordgo.WebhookEdit{Content: &content}); err != nil {
		handler.Logger().ErrorContext(ctx, "error editing response", tint.Err(err))
	}
}

// editEmbedPages replaces the deferred response with the first page of
// embed, and sends any further pages as followups
func editEmbedPages(ctx context.Context, handler InteractionHandler, embed *discordgo.MessageEmbed) {
	pages := embedPages(embed)
	editEmbeds(ctx, handler, pages[0])
	for _, page := range pages[1:] {
		_, _ = handler.Followup(
			ctx,
			&discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{page}},
		)
	}
}

// sendLog posts embeds to a log channel, one message per embed page.
// Nothing is sent if the channel isn't configured.
func (b *Bot) sendLog(ctx context.Context, channelID string, embeds ...*discordgo.MessageEmbed) {
	if channelID == "" || b.discord.session == nil {
		return
	}
	for _, embed := range embeds {
		for _, page := range embedPages(embed) {
			_, err := b.discord.session.ChannelMessageSendComplex(
				channelID,
				&discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{page}},
				discordgo.WithContext(ctx),
			)
			if err != nil {
				_, logger := b.getLogger(ctx)
				logger.ErrorContext(ctx, "error sending log message", "channel_id", channelID, tint.Err(err))
				return
			}
		}
	}
}

// embedPages splits embed into pages that each fit in their own message,
// with at most discordEmbedFieldCountMax fields and discordEmbedTotalMax
// characters. Only the first page carries the description.
func embedPages(embed *discordgo.MessageEmbed) []*discordgo.MessageEmbed {
	footer := 0
	if embed.Footer != nil {
		footer = utf8.RuneCountInString(embed.Footer.Text)
	}
	first := *embed
	first.Fields = nil
	pages := []*discordgo.MessageEmbed{&first}
	page := &first
	size := utf8.RuneCountInString(first.Title) + utf8.RuneCountInString(first.Description) + footer

	for _, field := range embed.Fields {
		n := utf8.RuneCountInString(field.Name) + utf8.RuneCountInString(field.Value)
		if len(page.Fields) > 0 && (len(page.Fields) >= discordEmbedFieldCountMax || size+n > discordEmbedTotalMax) {
			page = &discordgo.MessageEmbed{
				Title:  embed.Title + " (continued)",
				Color:  embed.Color,
				Footer: embed.Footer,
			}
			pages = append(pages, page)
			size = utf8.RuneCountInString(page.Title) + footer
		}
		page.Fields = append(page.Fields, field)
		size += n
	}
	return pages
}

// consoleFields renders lines as one or more diff code block fields,
// each within the embed field length limit
func consoleFields(name string, lines []string) []*discordgo.MessageEmbedField {
	const fence = "```diff\n"
	chunks := splitLines(lines, discordEmbedFieldMax-len(fence)-len("```"))
	fields := make([]*discordgo.MessageEmbedField, 0, len(chunks))
	for n, chunk := range chunks {
		fieldName := name
		if n > 0 {
			fieldName = "\u200b"
		}
		fields = append(
			fields,
			&discordgo.MessageEmbedField{Name: fieldName, Value: fence + chunk + "```"},
		)
	}
	return fields
}

func (b *Bot) commandPing(
	ctx context.Context,
	handler InteractionHandler,
	_ map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	var latency time.Duration
	if b.discord.session != nil {
		latency = b.discord.session.HeartbeatLatency()
	}
	uptime := time.Since(b.startedAt).Round(time.Second)
	_ = handler.Respond(
		ctx,
		embedReply(
			false,
			&discordgo.MessageEmbed{
				Title: "Pong! ⌛",
				Color: colorArasaka,
				Description: fmt.Sprintf(
					"```diff\n+ Ping: %dms\n+ Uptime: %s```",
					latency.Milliseconds(),
					uptime,
				),
			},
		),
	)
}

func (b *Bot) commandHelp(
	ctx context.Context,
	handler InteractionHandler,
	_ map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	embed := &discordgo.MessageEmbed{
		Title: "ArasakaBot Commands",
		Color: colorArasaka,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "XP",
				Value: "`/xp view` View your XP and rank progress\n" +
					"`/xp link` Link your Roblox account\n" +
					"`/xp rank-information` XP required for each rank",
			},
			{
				Name: "Requests",
				Value: "`/request promotion` Request a promotion\n" +
					"`/request inactivity` Submit an inactivity notice\n" +
					"`/request discharge` Request a discharge",
			},
			{
				Name:  "Misc",
				Value: "`/ping` Latency and uptime\n`/help` This message",
			},
		},
	}
	if b.isOfficer(handler.GetInteraction()) {
		embed.Fields = append(
			embed.Fields,
			&discordgo.MessageEmbedField{
				Name: "Officers",
				Value: "`/xp-manage update` Add or remove XP\n" +
					"`/xp-manage modify-status` Set RH, IN or EX\n" +
					"`/xp-manage set-rank` Change ranks\n" +
					"`/xp-manage quota` Post the weekly event quota",
			},
			&discordgo.MessageEmbedField{
				Name: "Administrators",
				Value: "`/permit list|add|remove` Manage administrators\n" +
					"`/blacklist add|remove` Manage the blacklist",
			},
		)
	}
	_ = handler.Respond(ctx, embedReply(true, embed))
}

// commandFAQ answers a message context menu command by replying to the
// target message with a canned answer
func (b *Bot) commandFAQ(ctx context.Context, handler InteractionHandler) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	data := i.ApplicationCommandData()

	if !b.isOfficer(i) {
		_ = handler.Respond(ctx, ephemeralReply(msgNoPermission))
		return
	}
	reply, ok := faqReplies[data.Name]
	if !ok {
		logger.WarnContext(ctx, "unknown message command", "name", data.Name)
		_ = handler.Respond(ctx, ephemeralReply("Unknown command."))
		return
	}

	_, err := b.discord.session.ChannelMessageSendComplex(
		i.ChannelID,
		&discordgo.MessageSend{
			Content: reply,
			Reference: &discordgo.MessageReference{
				MessageID: data.TargetID,
				ChannelID: i.ChannelID,
				GuildID:   i.GuildID,
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error sending faq reply", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralReply(b.RuntimeConfig().DiscordErrorMessage))
		return
	}
	_ = handler.Respond(ctx, ephemeralReply("Sent!"))
}

// errorEmbed is sent to the invoking user for each rejected token
func formatErrorEmbed(err error) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "XP Update Error",
		Color:       colorRed,
		Description: err.Error(),
	}
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		embed.Fields = []*discordgo.MessageEmbedField{
			{
				Name:  "Need Help?",
				Value: "Remember that even your Supervisors and Co-Hosts need to be in this format.",
			},
		}
	}
	return embed
}

func logAttrsForCommand(name string, options map[string]*discordgo.ApplicationCommandInteractionDataOption) []any {
	attrs := []any{"command", name}
	for k, v := range options {
		attrs = append(attrs, slog.Any(k, v.Value))
	}
	return attrs
}
