package arasaka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// requestKind is the type of a member request posted for review
type requestKind string

const (
	requestPromotion  requestKind = "promotion"
	requestInactivity requestKind = "inactivity"
	requestDischarge  requestKind = "discharge"

	requestCustomIDPrefix = "request:"
	requestAccept         = "accept"
	requestDecline        = "decline"

	modalInactivity    = "modal:inactivity"
	modalDischarge     = "modal:discharge"
	modalDeclinePrefix = "modal:decline:"

	inputUsername      = "username"
	inputStartDate     = "start_date"
	inputEndDate       = "end_date"
	inputRank          = "rank"
	inputReason        = "reason"
	inputDeclineReason = "decline_reason"

	fieldUsername      = "Username"
	fieldCurrentRank   = "Current Rank"
	fieldCurrentXP     = "Current XP"
	fieldRankRequested = "Rank Requested"
	fieldProof         = "Proof of XP"
	fieldStartDate     = "Starting Date"
	fieldEndDate       = "Ending Date"
	fieldRank          = "Rank"
	fieldReason        = "Reason"
)

func (k requestKind) title() string {
	switch k {
	case requestPromotion:
		return "Promotion Request"
	case requestInactivity:
		return "Inactivity Notice"
	case requestDischarge:
		return "Discharge Request"
	default:
		return "Request"
	}
}

func (b *Bot) requestChannel(k requestKind) string {
	switch k {
	case requestPromotion:
		return b.config.Guild.PromotionChannelID
	case requestInactivity:
		return b.config.Guild.InactivityChannelID
	case requestDischarge:
		return b.config.Guild.DischargeChannelID
	default:
		return ""
	}
}

// parseRequestCustomID returns the action and kind from a request
// button's custom ID, "request:{kind}:{action}"
func parseRequestCustomID(customID string) (action string, kind requestKind, ok bool) {
	rest, found := strings.CutPrefix(customID, requestCustomIDPrefix)
	if !found {
		return "", "", false
	}
	k, a, found := strings.Cut(rest, ":")
	if !found {
		return "", "", false
	}
	switch requestKind(k) {
	case requestPromotion, requestInactivity, requestDischarge:
	default:
		return "", "", false
	}
	if a != requestAccept && a != requestDecline {
		return "", "", false
	}
	return a, requestKind(k), true
}

func requestButtons(k requestKind) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Accept",
					Style:    discordgo.SuccessButton,
					CustomID: requestCustomIDPrefix + string(k) + ":" + requestAccept,
				},
				discordgo.Button{
					Label:    "Decline",
					Style:    discordgo.DangerButton,
					CustomID: requestCustomIDPrefix + string(k) + ":" + requestDecline,
				},
			},
		},
	}
}

// requestEmbed is the review message for a request. The footer holds
// the requester's user ID, which is needed when the request is
// accepted.
func requestEmbed(k requestKind, requester Actor, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       k.title(),
		Color:       colorGold,
		Description: fmt.Sprintf("Submitted by %s", requester.Mention()),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: requester.ID},
	}
}

func textInputRow(customID, label string, style discordgo.TextInputStyle, maxLength int) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  customID,
				Label:     label,
				Style:     style,
				Required:  true,
				MaxLength: maxLength,
			},
		},
	}
}

func modalResponse(customID, title string, rows ...discordgo.MessageComponent) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: rows,
		},
	}
}

// modalValues maps each text input's custom ID to its submitted value
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := map[string]string{}
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if input, isInput := rc.(*discordgo.TextInput); isInput {
				values[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return values
}

// embedFields maps field names to values
func embedFields(embed *discordgo.MessageEmbed) map[string]string {
	fields := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	return fields
}

// postRequest sends a request to its review channel, then tells the
// requester it was submitted
func (b *Bot) postRequest(
	ctx context.Context,
	handler InteractionHandler,
	k requestKind,
	embed *discordgo.MessageEmbed,
) {
	channelID := b.requestChannel(k)
	if channelID == "" {
		editContent(ctx, handler, fmt.Sprintf("%ss aren't set up yet.", k.title()))
		return
	}
	_, err := b.discord.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: requestButtons(k),
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		b.respondError(ctx, handler, fmt.Errorf("error posting request: %w", err))
		return
	}
	editContent(ctx, handler, fmt.Sprintf("Your %s has been submitted!", strings.ToLower(k.title())))
}

// commandRequestPromotion posts a promotion request, as long as the
// member has reached the XP for their next rank
func (b *Bot) commandRequestPromotion(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	actor := interactionActor(handler.GetInteraction())
	proof := optionString(options, optionProof)

	if err := handler.Respond(ctx, deferredReply(true)); err != nil {
		return
	}

	username, ok := b.identity.ResolveGameUsername(ctx, actor.ID)
	if !ok {
		editContent(ctx, handler, msgNotLinked)
		return
	}
	row, err := b.ledger.Find(ctx, username)
	switch {
	case errors.Is(err, ErrLedgerRowNotFound):
		editContent(ctx, handler, fmt.Sprintf("`%s` was not found in the spreadsheet.", username))
		return
	case err != nil:
		b.respondError(ctx, handler, &RemoteError{Op: "read", Username: username, Err: err})
		return
	}

	progress := b.calculator.ComputeProgress(row)
	switch {
	case progress.Locked:
		editContent(ctx, handler, "Your rank can't be reached by XP promotions. 🔒 Rank Locked")
		return
	case !progress.Eligible:
		editContent(
			ctx,
			handler,
			fmt.Sprintf(
				"You need %s more XP to be promoted to %s.",
				formatXP(progress.XPRemaining),
				progress.NextRank,
			),
		)
		return
	}

	b.postRequest(
		ctx,
		handler,
		requestPromotion,
		requestEmbed(
			requestPromotion,
			actor,
			[]*discordgo.MessageEmbedField{
				{Name: fieldUsername, Value: row.Username, Inline: true},
				{Name: fieldCurrentRank, Value: b.hierarchy.LabelFor(row.Rank), Inline: true},
				{Name: fieldCurrentXP, Value: formatXP(row.Total), Inline: true},
				{Name: fieldRankRequested, Value: b.hierarchy.LabelFor(progress.NextRank), Inline: true},
				{Name: fieldProof, Value: truncate(proof, discordEmbedFieldMax)},
			},
		),
	)
}

func (b *Bot) commandRequestInactivity(
	ctx context.Context,
	handler InteractionHandler,
	_ map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	_ = handler.Respond(
		ctx,
		modalResponse(
			modalInactivity,
			requestInactivity.title(),
			textInputRow(inputUsername, "Roblox Username", discordgo.TextInputShort, 50),
			textInputRow(inputStartDate, fieldStartDate, discordgo.TextInputShort, 50),
			textInputRow(inputEndDate, fieldEndDate, discordgo.TextInputShort, 50),
			textInputRow(inputReason, fieldReason, discordgo.TextInputParagraph, 1000),
		),
	)
}

func (b *Bot) commandRequestDischarge(
	ctx context.Context,
	handler InteractionHandler,
	_ map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	_ = handler.Respond(
		ctx,
		modalResponse(
			modalDischarge,
			requestDischarge.title(),
			textInputRow(inputUsername, "Roblox Username", discordgo.TextInputShort, 50),
			textInputRow(inputRank, fieldRank, discordgo.TextInputShort, 100),
			textInputRow(inputReason, fieldReason, discordgo.TextInputParagraph, 1000),
		),
	)
}

func (b *Bot) handleModalSubmit(ctx context.Context, handler InteractionHandler) {
	i := handler.GetInteraction()
	data := i.ModalSubmitData()
	values := modalValues(data)
	actor := interactionActor(i)

	switch {
	case data.CustomID == modalInactivity:
		if err := handler.Respond(ctx, deferredReply(true)); err != nil {
			return
		}
		b.postRequest(
			ctx,
			handler,
			requestInactivity,
			requestEmbed(
				requestInactivity,
				actor,
				[]*discordgo.MessageEmbedField{
					{Name: fieldUsername, Value: values[inputUsername]},
					{Name: fieldStartDate, Value: values[inputStartDate], Inline: true},
					{Name: fieldEndDate, Value: values[inputEndDate], Inline: true},
					{Name: fieldReason, Value: values[inputReason]},
				},
			),
		)
	case data.CustomID == modalDischarge:
		if err := handler.Respond(ctx, deferredReply(true)); err != nil {
			return
		}
		b.postRequest(
			ctx,
			handler,
			requestDischarge,
			requestEmbed(
				requestDischarge,
				actor,
				[]*discordgo.MessageEmbedField{
					{Name: fieldUsername, Value: values[inputUsername], Inline: true},
					{Name: fieldRank, Value: values[inputRank], Inline: true},
					{Name: fieldReason, Value: values[inputReason]},
				},
			),
		)
	case strings.HasPrefix(data.CustomID, modalDeclinePrefix):
		b.declineRequest(
			ctx,
			handler,
			requestKind(strings.TrimPrefix(data.CustomID, modalDeclinePrefix)),
			values[inputDeclineReason],
		)
	default:
		handler.Logger().WarnContext(ctx, "unknown modal", "custom_id", data.CustomID)
		_ = handler.Respond(ctx, ephemeralReply("This form is no longer active."))
	}
}

// handleRequestButton handles Accept and Decline on a request. Declining
// opens a modal asking for the reason.
func (b *Bot) handleRequestButton(
	ctx context.Context,
	handler InteractionHandler,
	k requestKind,
	action string,
) {
	i := handler.GetInteraction()
	if !b.isReviewer(i) {
		_ = handler.Respond(ctx, ephemeralReply(msgNoPermission))
		return
	}
	if i.Message == nil || len(i.Message.Embeds) == 0 {
		_ = handler.Respond(ctx, ephemeralReply("This request couldn't be found."))
		return
	}

	if action == requestDecline {
		_ = handler.Respond(
			ctx,
			modalResponse(
				modalDeclinePrefix+string(k),
				"Reason for Decline",
				textInputRow(inputDeclineReason, "Reason for Decline", discordgo.TextInputParagraph, 1000),
			),
		)
		return
	}
	b.acceptRequest(ctx, handler, k)
}

func (b *Bot) acceptRequest(ctx context.Context, handler InteractionHandler, k requestKind) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	reviewer := interactionActor(i)

	if err := handler.Respond(
		ctx,
		&discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate},
	); err != nil {
		return
	}

	embed := *i.Message.Embeds[0]
	fields := embedFields(&embed)
	var requesterID string
	if embed.Footer != nil {
		requesterID = embed.Footer.Text
	}

	var err error
	switch k {
	case requestPromotion:
		err = b.acceptPromotion(ctx, fields)
	case requestInactivity:
		err = b.acceptInactivity(ctx, fields, requesterID)
	case requestDischarge:
		err = b.acceptDischarge(ctx, fields)
	}
	if err != nil {
		logger.ErrorContext(ctx, "error accepting request", "kind", string(k), tint.Err(err))
		_, _ = handler.Followup(
			ctx,
			&discordgo.WebhookParams{
				Flags:   discordgo.MessageFlagsEphemeral,
				Content: fmt.Sprintf("Couldn't accept the request: %s", err),
			},
		)
		return
	}

	embed.Title += " - ACCEPTED"
	embed.Color = colorGreen
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Accepted by: %s", reviewer.DisplayName)}
	b.closeRequest(ctx, handler, &embed, fmt.Sprintf("**Reviewer:** %s", reviewer.Mention()))
}

func (b *Bot) declineRequest(ctx context.Context, handler InteractionHandler, k requestKind, reason string) {
	i := handler.GetInteraction()
	reviewer := interactionActor(i)
	if !b.isReviewer(i) {
		_ = handler.Respond(ctx, ephemeralReply(msgNoPermission))
		return
	}
	if i.Message == nil || len(i.Message.Embeds) == 0 {
		_ = handler.Respond(ctx, ephemeralReply("This request couldn't be found."))
		return
	}
	if err := handler.Respond(
		ctx,
		&discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate},
	); err != nil {
		return
	}

	embed := *i.Message.Embeds[0]
	embed.Title += " - DENIED"
	embed.Color = colorRed
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Denied by: %s", reviewer.DisplayName)}
	handler.Logger().InfoContext(ctx, "request declined", "kind", string(k))
	b.closeRequest(
		ctx,
		handler,
		&embed,
		fmt.Sprintf("**Reviewer:** %s\n> **Reason for Decline:** %s", reviewer.Mention(), reason),
	)
}

// closeRequest replaces the request message's embed and removes its
// buttons, then replies to it and copies it to the XP log channel
func (b *Bot) closeRequest(
	ctx context.Context,
	handler InteractionHandler,
	embed *discordgo.MessageEmbed,
	reply string,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	embeds := []*discordgo.MessageEmbed{embed}
	components := []discordgo.MessageComponent{}
	if _, err := handler.Edit(
		ctx,
		&discordgo.WebhookEdit{Embeds: &embeds, Components: &components},
	); err != nil {
		logger.ErrorContext(ctx, "error updating request message", tint.Err(err))
	}

	if _, err := b.discord.session.ChannelMessageSendComplex(
		i.Message.ChannelID,
		&discordgo.MessageSend{
			Content: reply,
			Reference: &discordgo.MessageReference{
				MessageID: i.Message.ID,
				ChannelID: i.Message.ChannelID,
				GuildID:   i.GuildID,
			},
		},
		discordgo.WithContext(ctx),
	); err != nil {
		logger.ErrorContext(ctx, "error replying to request", tint.Err(err))
	}
	b.sendLog(ctx, b.config.Guild.XPLogChannelID, embed)
}

func (b *Bot) acceptPromotion(ctx context.Context, fields map[string]string) error {
	username := fields[fieldUsername]
	label := fields[fieldRankRequested]
	rank, ok := b.hierarchy.RankForLabel(label)
	if !ok {
		return fmt.Errorf("%q is not a valid rank", label)
	}
	row, err := b.ledger.Find(ctx, username)
	if err != nil {
		return &RemoteError{Op: "read", Username: username, Err: err}
	}
	userID, err := b.roblox.UserID(ctx, row.Username)
	if err != nil {
		return &RemoteError{Op: "look up", Username: row.Username, Err: err}
	}
	if err = b.roblox.SetRole(ctx, userID, b.hierarchy.LabelFor(rank)); err != nil {
		return &RemoteError{Op: "set role for", Username: row.Username, Err: err}
	}
	if err = b.ledger.WriteRank(ctx, row.Row, rank); err != nil {
		return &RemoteError{Op: "update rank for", Username: row.Username, Err: err}
	}
	return nil
}

func (b *Bot) acceptInactivity(ctx context.Context, fields map[string]string, requesterID string) error {
	username := fields[fieldUsername]
	row, err := b.ledger.Find(ctx, username)
	if err != nil {
		return &RemoteError{Op: "read", Username: username, Err: err}
	}
	if err = b.ledger.WriteWeekly(ctx, row.Row, StatusWeekly(StatusInactivityNotice)); err != nil {
		return &RemoteError{Op: "update status for", Username: row.Username, Err: err}
	}
	roleID := b.config.Guild.InactivityRoleID
	if roleID == "" || requesterID == "" {
		return nil
	}
	if err = b.discord.session.GuildMemberRoleAdd(
		b.config.Discord.GuildID,
		requesterID,
		roleID,
		discordgo.WithContext(ctx),
	); err != nil {
		return fmt.Errorf("error adding inactivity role: %w", err)
	}
	return nil
}

func (b *Bot) acceptDischarge(ctx context.Context, fields map[string]string) error {
	username := fields[fieldUsername]
	row, err := b.ledger.Find(ctx, username)
	if err != nil {
		return &RemoteError{Op: "read", Username: username, Err: err}
	}
	if err = b.ledger.Delete(ctx, row.Row); err != nil {
		return &RemoteError{Op: "remove", Username: row.Username, Err: err}
	}
	userID, err := b.roblox.UserID(ctx, row.Username)
	if err != nil {
		return &RemoteError{Op: "look up", Username: row.Username, Err: err}
	}
	if err = b.roblox.SetRole(ctx, userID, b.hierarchy.LabelFor(RankCivilian)); err != nil {
		return &RemoteError{Op: "set role for", Username: row.Username, Err: err}
	}
	return nil
}
