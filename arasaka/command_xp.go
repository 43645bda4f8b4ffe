package arasaka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	consoleFieldName = "Console Output"
	pingBatchSize    = 50
)

// commandXPUpdate runs a bulk XP update, then reports it to the invoking
// officer and the XP log channel, pings the attendees and counts the
// event toward the host's quota.
func (b *Bot) commandXPUpdate(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	actor := interactionActor(i)
	eventType := optionString(options, optionEventType)

	if err := handler.Respond(ctx, deferredReply(false)); err != nil {
		return
	}

	b.xpUpdatesInProgress.Add(1)
	defer b.xpUpdatesInProgress.Add(-1)

	report := b.engine.ProcessUpdates(
		ctx,
		UpdateRequest{
			Tokens:    splitTokens(optionString(options, optionUsernames)),
			Reason:    optionString(options, optionReason),
			EventType: eventType,
			Actor:     actor,
			Confirmer: &ButtonConfirmer{
				handler: handler,
				pending: b.confirmations,
				timeout: b.config.ConfirmationTimeout,
			},
		},
	)

	for _, rejected := range report.Rejected {
		_, _ = handler.Followup(
			ctx,
			&discordgo.WebhookParams{
				Flags:  discordgo.MessageFlagsEphemeral,
				Embeds: []*discordgo.MessageEmbed{formatErrorEmbed(rejected)},
			},
		)
	}

	embed := updateReportEmbed(report)
	editEmbedPages(ctx, handler, embed)
	b.sendLog(ctx, b.config.Guild.XPLogChannelID, embed)

	if len(report.Updated) == 0 {
		return
	}

	if optionBool(options, optionPingAttendees, true) {
		b.pingAttendees(ctx, actor, report.Updated)
	}

	if err := b.quota.Record(
		ctx,
		&EventHosted{
			HostID:       actor.ID,
			HostUsername: actor.DisplayName,
			EventType:    eventType,
			Attendees:    len(report.Updated),
		},
	); err != nil {
		logger.ErrorContext(ctx, "error recording hosted event", tint.Err(err))
		return
	}
	if err := b.refreshQuotaEmbed(ctx); err != nil {
		logger.ErrorContext(ctx, "error refreshing quota embed", tint.Err(err))
	}
}

func updateReportEmbed(report *UpdateReport) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(report.Lines))
	for _, l := range report.Lines {
		lines = append(lines, l.String())
	}
	embed := &discordgo.MessageEmbed{
		Title:       report.Title(),
		Description: truncate(report.Description(), 4096),
		Color:       colorArasaka,
		Footer:      &discordgo.MessageEmbedFooter{Text: report.Footer()},
	}
	if len(lines) > 0 {
		embed.Fields = consoleFields(consoleFieldName, lines)
	}
	return embed
}

// pingAttendees mentions every updated member in the notification
// channel. Members without a resolved Discord ID are named instead.
func (b *Bot) pingAttendees(ctx context.Context, actor Actor, updated []UpdatedMember) {
	channelID := b.config.Guild.NotificationChannelID
	if channelID == "" {
		return
	}
	mentions := make([]string, 0, len(updated))
	for _, m := range updated {
		mentions = append(mentions, m.Mention())
	}
	for _, batch := range chunkItems(pingBatchSize, mentions...) {
		content := fmt.Sprintf(
			"%s\n\n**Your XP has been updated by %s!**",
			strings.Join(batch, " "),
			actor.Mention(),
		)
		if _, err := b.discord.session.ChannelMessageSend(
			channelID,
			truncate(content, discordMaxMessageLength),
			discordgo.WithContext(ctx),
		); err != nil {
			_, logger := b.getLogger(ctx)
			logger.ErrorContext(ctx, "error pinging attendees", tint.Err(err))
			return
		}
	}
}

// refreshQuotaEmbed edits the quota message with the current standings,
// if a quota channel has been set up
func (b *Bot) refreshQuotaEmbed(ctx context.Context) error {
	cfg := b.RuntimeConfig()
	if cfg.QuotaChannelID == "" {
		return nil
	}
	_, err := b.postQuota(ctx, cfg.QuotaChannelID, cfg.QuotaMessageID)
	return err
}

// postQuota edits the quota message, or sends a new one if messageID is
// empty or the edit fails. The channel and message IDs are saved to the
// runtime config when they change.
func (b *Bot) postQuota(ctx context.Context, channelID, messageID string) (string, error) {
	_, logger := b.getLogger(ctx)

	standings, err := b.quota.Standings(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting quota standings: %w", err)
	}
	embed := quotaEmbed(standings, b.quota.WeekStart())

	if messageID != "" {
		edit := discordgo.NewMessageEdit(channelID, messageID).SetEmbeds([]*discordgo.MessageEmbed{embed})
		_, err = b.discord.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
		if err == nil {
			return messageID, b.saveQuotaLocation(ctx, channelID, messageID)
		}
		logger.WarnContext(ctx, "error editing quota message, sending a new one", tint.Err(err))
	}

	msg, err := b.discord.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("error sending quota message: %w", err)
	}
	return msg.ID, b.saveQuotaLocation(ctx, channelID, msg.ID)
}

func (b *Bot) saveQuotaLocation(ctx context.Context, channelID, messageID string) error {
	_, err := b.UpdateRuntimeConfig(
		ctx,
		RuntimeConfigUpdate{QuotaChannelID: &channelID, QuotaMessageID: &messageID},
	)
	return err
}

func (b *Bot) commandQuota(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	i := handler.GetInteraction()
	channelID := optionString(options, optionChannelID)
	if channelID == "" {
		channelID = i.ChannelID
	}
	messageID := optionString(options, optionMessageID)

	if err := handler.Respond(ctx, deferredReply(true)); err != nil {
		return
	}
	msgID, err := b.postQuota(ctx, channelID, messageID)
	if err != nil {
		b.respondError(ctx, handler, err)
		return
	}
	editContent(
		ctx,
		handler,
		fmt.Sprintf("The event quota is posted: https://discord.com/channels/%s/%s/%s", i.GuildID, channelID, msgID),
	)
}

// commandModifyStatus writes a quota status (or clears it) in a
// member's weekly XP cell
func (b *Bot) commandModifyStatus(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	actor := interactionActor(handler.GetInteraction())
	username := optionString(options, optionUsername)
	action := optionString(options, optionAction)

	weekly := NumericWeekly(0)
	if action != statusActionClear {
		status, ok := ParseSpecialStatus(action)
		if !ok {
			_ = handler.Respond(ctx, ephemeralReply(fmt.Sprintf("`%s` is not a valid status.", action)))
			return
		}
		weekly = StatusWeekly(status)
	}

	if err := handler.Respond(ctx, deferredReply(false)); err != nil {
		return
	}

	var line string
	row, err := b.ledger.Find(ctx, username)
	switch {
	case errors.Is(err, ErrLedgerRowNotFound):
		line = fmt.Sprintf("- 1: Error: %s not found in spreadsheet.", username)
	case err != nil:
		b.respondError(ctx, handler, &RemoteError{Op: "read", Username: username, Err: err})
		return
	default:
		if err = b.ledger.WriteWeekly(ctx, row.Row, weekly); err != nil {
			b.respondError(ctx, handler, &RemoteError{Op: "write", Username: row.Username, Err: err})
			return
		}
		line = fmt.Sprintf("+ 1: Success: %s -> **(%s)** updated status!", row.Username, action)
	}

	embed := &discordgo.MessageEmbed{
		Title:  "XP Status Modification",
		Color:  colorArasaka,
		Fields: consoleFields(consoleFieldName, []string{line}),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Authorized by: %s | XP STATUS UPDATE", actor.DisplayName),
		},
	}
	editEmbeds(ctx, handler, embed)
	b.sendLog(ctx, b.config.Guild.XPLogChannelID, embed)
}

// commandSetRank changes the group role of each target member, or
// removes them from the group. The invoking officer must outrank both
// the new rank and each member's current rank.
func (b *Bot) commandSetRank(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	i := handler.GetInteraction()
	actor := interactionActor(i)
	reason := optionString(options, optionReason)
	label := optionString(options, optionTargetRank)

	if err := handler.Respond(ctx, deferredReply(false)); err != nil {
		return
	}

	actorRank, ok := b.actorRank(ctx, actor.ID)
	if !ok {
		editContent(
			ctx,
			handler,
			"Your rank couldn't be found. Make sure your account is linked, and that you're on the spreadsheet.",
		)
		return
	}

	kick := label == kickLabel
	var targetRank string
	if !kick {
		targetRank, ok = b.hierarchy.RankForLabel(label)
		if !ok {
			editContent(ctx, handler, fmt.Sprintf("`%s` is not a valid rank.", label))
			return
		}
		if err := b.hierarchy.CanAssign(actorRank, targetRank); err != nil {
			editContent(
				ctx,
				handler,
				fmt.Sprintf("You can't assign **%s**: %s.", b.hierarchy.LabelFor(targetRank), rankErrorText(err)),
			)
			return
		}
	}

	var lines []string
	usernames := splitTokens(optionString(options, optionRobloxUsernames))
	if du := optionUserValue(i, options, optionDiscordUser); du != nil {
		if name, linked := b.identity.ResolveGameUsername(ctx, du.ID); linked {
			usernames = append(usernames, name)
		} else {
			lines = append(lines, fmt.Sprintf("- Error: <@%s> isn't linked to a Roblox account.", du.ID))
		}
	}
	if len(usernames) == 0 && len(lines) == 0 {
		editContent(ctx, handler, "Provide at least one Roblox username or Discord user.")
		return
	}

	var logEmbeds []*discordgo.MessageEmbed
	for n, username := range usernames {
		name, err := b.setMemberRank(ctx, actorRank, username, targetRank, kick)
		if err != nil {
			handler.Logger().WarnContext(ctx, "rank change failed", "username", username, tint.Err(err))
			lines = append(lines, fmt.Sprintf("- %d: Error: %s", n+1, err))
			continue
		}
		var description, footer string
		if kick {
			description = fmt.Sprintf("Successfully kicked %s from the group.", name)
			footer = "GROUP REMOVAL"
		} else {
			description = fmt.Sprintf("Successfully changed %s to %s.", name, b.hierarchy.LabelFor(targetRank))
			footer = "RANK CHANGE"
		}
		lines = append(lines, fmt.Sprintf("+ %d: Success: %s", n+1, description))
		logEmbeds = append(
			logEmbeds,
			&discordgo.MessageEmbed{
				Title:       "Rank Change",
				Color:       colorArasaka,
				Description: description,
				Fields:      []*discordgo.MessageEmbedField{{Name: "Reason", Value: truncate(reason, 1024)}},
				Footer: &discordgo.MessageEmbedFooter{
					Text: fmt.Sprintf("Authorized by: %s | %s", actor.DisplayName, footer),
				},
			},
		)
	}

	editEmbedPages(
		ctx,
		handler,
		&discordgo.MessageEmbed{
			Title:       "Rank Change",
			Color:       colorArasaka,
			Description: truncate(fmt.Sprintf("**Reason:** %s", reason), 4096),
			Fields:      consoleFields(consoleFieldName, lines),
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Authorized by: %s", actor.DisplayName)},
		},
	)
	for _, e := range logEmbeds {
		b.sendLog(ctx, b.config.Guild.XPLogChannelID, e)
	}
}

// setMemberRank applies a rank change (or group removal) for one member,
// returning their username as written in the ledger when they're on it
func (b *Bot) setMemberRank(
	ctx context.Context,
	actorRank, username, targetRank string,
	kick bool,
) (string, error) {
	row, rowErr := b.ledger.Find(ctx, username)
	switch {
	case rowErr == nil:
		username = row.Username
		if err := b.hierarchy.CanAssign(actorRank, row.Rank); errors.Is(err, ErrRankUnauthorized) {
			return "", fmt.Errorf("%s is %s, which you don't outrank", username, b.hierarchy.LabelFor(row.Rank))
		}
	case !errors.Is(rowErr, ErrLedgerRowNotFound):
		return "", &RemoteError{Op: "read", Username: username, Err: rowErr}
	}

	userID, err := b.roblox.UserID(ctx, username)
	if err != nil {
		if errors.Is(err, ErrRobloxUserNotFound) {
			return "", fmt.Errorf("%s is not a Roblox user", username)
		}
		return "", &RemoteError{Op: "look up", Username: username, Err: err}
	}

	if kick {
		if err = b.roblox.Kick(ctx, userID); err != nil {
			return "", &RemoteError{Op: "kick", Username: username, Err: err}
		}
		if rowErr == nil {
			if err = b.ledger.Delete(ctx, row.Row); err != nil {
				return "", &RemoteError{Op: "remove", Username: username, Err: err}
			}
		}
		return username, nil
	}

	if err = b.roblox.SetRole(ctx, userID, b.hierarchy.LabelFor(targetRank)); err != nil {
		return "", &RemoteError{Op: "set role for", Username: username, Err: err}
	}
	if rowErr == nil {
		if err = b.ledger.WriteRank(ctx, row.Row, targetRank); err != nil {
			return "", &RemoteError{Op: "update rank for", Username: username, Err: err}
		}
	}
	return username, nil
}

func rankErrorText(err error) string {
	switch {
	case errors.Is(err, ErrRankUnauthorized):
		return "you can only assign ranks below your own"
	case errors.Is(err, ErrRankUnknown):
		return "the rank isn't in the hierarchy"
	case errors.Is(err, ErrRankTerminal):
		return "there is no further rank"
	default:
		return err.Error()
	}
}

// commandXPView shows a member's rank progress, quota and recent events.
// With no target, the invoking user is shown.
func (b *Bot) commandXPView(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	i := handler.GetInteraction()
	target := optionUserValue(i, options, optionTargetUser)
	robloxUsername := optionString(options, optionRobloxUsername)

	if target != nil && robloxUsername != "" {
		_ = handler.Respond(
			ctx,
			embedReply(
				true,
				&discordgo.MessageEmbed{
					Title:       "Too Many Arguments!",
					Color:       colorRed,
					Description: "Provide either a Discord user or a Roblox username, not both.",
				},
			),
		)
		return
	}

	if err := handler.Respond(ctx, deferredReply(false)); err != nil {
		return
	}

	username, discordID := b.viewTarget(ctx, i, target, robloxUsername)
	row, err := b.ledger.Find(ctx, username)
	switch {
	case errors.Is(err, ErrLedgerRowNotFound):
		editEmbeds(
			ctx,
			handler,
			&discordgo.MessageEmbed{
				Title:       "User Not Found",
				Color:       colorRed,
				Description: fmt.Sprintf("`%s` was not found in the spreadsheet.", username),
			},
		)
		return
	case err != nil:
		b.respondError(ctx, handler, &RemoteError{Op: "read", Username: username, Err: err})
		return
	}
	if discordID == "" {
		discordID, _ = row.DiscordID()
	}

	query := EventQuery{Usernames: []string{row.Username}}
	if discordID != "" {
		query.DiscordIDs = []string{discordID}
	}
	records, total, err := b.events.Recent(ctx, query)
	if err != nil {
		handler.Logger().ErrorContext(ctx, "error reading recent events", tint.Err(err))
	}

	editEmbeds(ctx, handler, b.progressEmbed(row, b.calculator.ComputeProgress(row), records, total))
}

// viewTarget resolves the username to show for /xp view, along with the
// Discord ID if known
func (b *Bot) viewTarget(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	target *discordgo.User,
	robloxUsername string,
) (username string, discordID string) {
	if robloxUsername != "" {
		return robloxUsername, ""
	}

	if target == nil {
		actor := interactionActor(i)
		if name, ok := b.identity.ResolveGameUsername(ctx, actor.ID); ok {
			return name, actor.ID
		}
		return actor.DisplayName, actor.ID
	}

	if name, ok := b.identity.ResolveGameUsername(ctx, target.ID); ok {
		return name, target.ID
	}
	data := i.ApplicationCommandData()
	if data.Resolved != nil {
		if m, ok := data.Resolved.Members[target.ID]; ok && m.Nick != "" {
			return m.Nick, target.ID
		}
	}
	if target.GlobalName != "" {
		return target.GlobalName, target.ID
	}
	return target.Username, target.ID
}

func (b *Bot) progressEmbed(
	row LedgerRow,
	progress Progress,
	records []EventRecord,
	total int64,
) *discordgo.MessageEmbed {
	nextRank := progress.NextRank
	var nextRankXP string
	switch {
	case progress.Locked:
		nextRank = "🔒 Rank Locked"
		nextRankXP = "🔒 Rank Locked"
	case progress.Eligible:
		nextRankXP = fmt.Sprintf("Promotion to %s pending!", progress.NextRank)
	default:
		nextRankXP = fmt.Sprintf("%s more XP needed for %s", formatXP(progress.XPRemaining), progress.NextRank)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Current Rank", Value: valueOr(row.Rank, "Unknown"), Inline: true},
		{Name: "Next Rank", Value: nextRank, Inline: true},
	}
	if row.Division != "" && !strings.EqualFold(row.Division, skipTokenMarker) {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Division", Value: row.Division, Inline: true})
	}
	fields = append(
		fields,
		&discordgo.MessageEmbedField{Name: "Progress", Value: progress.ProgressBar()},
		&discordgo.MessageEmbedField{Name: "Met Quota", Value: progress.QuotaText()},
		&discordgo.MessageEmbedField{Name: "XP for Next Rank", Value: nextRankXP},
		&discordgo.MessageEmbedField{
			Name:  "Recent Events",
			Value: truncate(formatRecentEvents(records, total, b.location), discordEmbedFieldMax),
		},
	)

	return &discordgo.MessageEmbed{
		Title:  fmt.Sprintf("%s's XP", row.Username),
		Color:  colorArasaka,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Total XP: %s XP | Weekly XP: %s WP", formatXP(row.Total), row.Weekly),
		},
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// commandXPLink explains how to link an account with Bloxlink. When a
// Roblox username is given, it's stored as the user's local link.
func (b *Bot) commandXPLink(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	i := handler.GetInteraction()
	robloxUsername := optionString(options, optionRobloxUsername)
	if robloxUsername == "" {
		_ = handler.Respond(
			ctx,
			embedReply(
				true,
				&discordgo.MessageEmbed{
					Title: "Link Your Account",
					Color: colorBlurple,
					Description: "ArasakaBot finds your Roblox account through Bloxlink.\n\n" +
						"1. Go to https://blox.link/ and sign in with Discord.\n" +
						"2. Verify your Roblox account.\n" +
						"3. Run `/xp view` to check that your XP shows up.\n\n" +
						"If Bloxlink can't find you, run `/xp link roblox_username:<name>`.",
				},
			),
		)
		return
	}

	if err := handler.Respond(ctx, deferredReply(true)); err != nil {
		return
	}
	userID, err := b.roblox.UserID(ctx, robloxUsername)
	switch {
	case errors.Is(err, ErrRobloxUserNotFound):
		editContent(ctx, handler, fmt.Sprintf("`%s` is not a Roblox user.", robloxUsername))
		return
	case err != nil:
		b.respondError(ctx, handler, &RemoteError{Op: "look up", Username: robloxUsername, Err: err})
		return
	}
	name, err := b.roblox.Username(ctx, userID)
	if err != nil {
		name = robloxUsername
	}
	if err = b.identity.Link(ctx, interactionUser(i).ID, name); err != nil {
		b.respondError(ctx, handler, err)
		return
	}
	editContent(ctx, handler, fmt.Sprintf("Linked your account to **%s**.", name))
}

// commandRankInformation lists each ladder rank's threshold, with
// progress toward it from the given XP (or the invoking user's total)
func (b *Bot) commandRankInformation(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	if err := handler.Respond(ctx, deferredReply(false)); err != nil {
		return
	}

	current, ok := optionFloat(options, optionCurrentXP)
	if !ok {
		actor := interactionActor(handler.GetInteraction())
		if name, linked := b.identity.ResolveGameUsername(ctx, actor.ID); linked {
			if row, err := b.ledger.Find(ctx, name); err == nil {
				current = row.Total
			}
		}
	}
	editEmbeds(ctx, handler, rankInformationEmbed(b.calculator.Ladder, current))
}

func rankInformationEmbed(ladder RankLadder, current float64) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(ladder))
	for _, r := range ladder {
		var value string
		if current >= r.Threshold {
			value = fmt.Sprintf("%s XP ✅", formatXP(r.Threshold))
		} else {
			value = fmt.Sprintf(
				"%s XP\n%s (%s XP remaining)",
				formatXP(r.Threshold),
				progressBar(current/r.Threshold),
				formatXP(r.Threshold-current),
			)
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: r.Name, Value: value})
	}
	return &discordgo.MessageEmbed{
		Title:  "Rank Information",
		Color:  colorArasaka,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Current XP: %s", formatXP(current))},
	}
}
