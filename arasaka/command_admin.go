package arasaka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

func (b *Bot) commandPermitList(
	ctx context.Context,
	handler InteractionHandler,
	_ map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	if !b.requirePermit(ctx, handler, PermitBotManager) {
		return
	}
	admins, err := b.permits.Administrators(ctx)
	if err != nil {
		handler.Logger().ErrorContext(ctx, "error listing administrators", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralReply(b.RuntimeConfig().DiscordErrorMessage))
		return
	}

	embed := &discordgo.MessageEmbed{Title: "Bot Administrators", Color: colorArasaka}
	if len(admins) == 0 {
		embed.Description = "There are no bot administrators."
	} else {
		var sb strings.Builder
		for _, a := range admins {
			fmt.Fprintf(&sb, "<@%s> - %d (%s)\n", a.DiscordID, a.TierLevel, a.TierLevel)
		}
		embed.Description = truncate(sb.String(), 4096)
	}
	_ = handler.Respond(ctx, embedReply(true, embed))
}

func (b *Bot) commandPermitAdd(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	if !b.requirePermit(ctx, handler, PermitOwner) {
		return
	}
	i := handler.GetInteraction()
	target := optionUserValue(i, options, optionUser)
	tier, _ := optionInt(options, optionTier)

	err := b.permits.SetTier(ctx, interactionUser(i).ID, target.ID, PermitTier(tier))
	switch {
	case errors.Is(err, ErrInvalidPermitTier):
		_ = handler.Respond(ctx, ephemeralReply(err.Error()))
	case err != nil:
		handler.Logger().ErrorContext(ctx, "error adding administrator", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralReply(b.RuntimeConfig().DiscordErrorMessage))
	default:
		_ = handler.Respond(
			ctx,
			embedReply(
				true,
				&discordgo.MessageEmbed{
					Title:       "Permit Added",
					Color:       colorGreen,
					Description: fmt.Sprintf("<@%s> is now a %s (level %d).", target.ID, PermitTier(tier), tier),
				},
			),
		)
	}
}

func (b *Bot) commandPermitRemove(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	if !b.requirePermit(ctx, handler, PermitOwner) {
		return
	}
	i := handler.GetInteraction()
	target := optionUserValue(i, options, optionUser)

	err := b.permits.Remove(ctx, interactionUser(i).ID, target.ID)
	switch {
	case errors.Is(err, ErrAdminNotFound):
		_ = handler.Respond(ctx, ephemeralReply(fmt.Sprintf("<@%s> is not a bot administrator.", target.ID)))
	case err != nil:
		handler.Logger().ErrorContext(ctx, "error removing administrator", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralReply(b.RuntimeConfig().DiscordErrorMessage))
	default:
		_ = handler.Respond(
			ctx,
			embedReply(
				true,
				&discordgo.MessageEmbed{
					Title:       "Permit Removed",
					Color:       colorRed,
					Description: fmt.Sprintf("<@%s> is no longer a bot administrator.", target.ID),
				},
			),
		)
	}
}

func (b *Bot) commandBlacklistAdd(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	if !b.requirePermit(ctx, handler, PermitSudoAdmin) {
		return
	}
	i := handler.GetInteraction()
	target := optionUserValue(i, options, optionUser)
	reason := optionString(options, optionReason)

	err := b.permits.AddBlacklist(ctx, interactionUser(i).ID, target.ID, reason)
	switch {
	case errors.Is(err, ErrAlreadyBlacklisted):
		_ = handler.Respond(ctx, ephemeralReply(fmt.Sprintf("<@%s> is already blacklisted.", target.ID)))
	case err != nil:
		handler.Logger().ErrorContext(ctx, "error adding to blacklist", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralReply(b.RuntimeConfig().DiscordErrorMessage))
	default:
		if reason == "" {
			reason = blacklistDefaultReason
		}
		_ = handler.Respond(
			ctx,
			embedReply(
				true,
				&discordgo.MessageEmbed{
					Title:       "User Blacklisted",
					Color:       colorRed,
					Description: fmt.Sprintf("<@%s> has been blacklisted.\n**Reason:** %s", target.ID, reason),
				},
			),
		)
	}
}

func (b *Bot) commandBlacklistRemove(
	ctx context.Context,
	handler InteractionHandler,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) {
	if !b.requirePermit(ctx, handler, PermitSudoAdmin) {
		return
	}
	i := handler.GetInteraction()
	target := optionUserValue(i, options, optionUser)

	err := b.permits.RemoveBlacklist(ctx, interactionUser(i).ID, target.ID)
	switch {
	case errors.Is(err, ErrBlacklistNotFound):
		_ = handler.Respond(ctx, ephemeralReply(fmt.Sprintf("<@%s> is not blacklisted.", target.ID)))
	case err != nil:
		handler.Logger().ErrorContext(ctx, "error removing from blacklist", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralReply(b.RuntimeConfig().DiscordErrorMessage))
	default:
		_ = handler.Respond(
			ctx,
			embedReply(
				true,
				&discordgo.MessageEmbed{
					Title:       "User Removed from Blacklist",
					Color:       colorGreen,
					Description: fmt.Sprintf("<@%s> can use commands again.", target.ID),
				},
			),
		)
	}
}
