// Package arasaka implements ArasakaBot, a Discord bot that keeps a role-play
// group's XP ledger and rank progression.
//
// The ledger is a spreadsheet with one row per member, holding their rank,
// weekly XP (or a special status, like an inactivity notice) and total XP.
// Officers award XP after events, and the bot tracks each member's progress
// toward their next rank and weekly quota.
//
// Key components of the package include:
//
//   - Bot: Ties the Discord session, the ledger and the local database together.
//   - Ledger: The remote record store, backed by Google Sheets.
//   - XPEngine: Parses and applies batched XP updates, with fuzzy username
//     matching confirmed by the invoking officer.
//   - Calculator and Hierarchy: Rank thresholds, quotas and assignment rules.
//   - IdentityResolver: Maps Discord accounts to in-game usernames, by way of
//     Bloxlink, the Roblox API, or a locally stored link.
//   - QuotaBoard: Weekly hosted-event standings, cached in redis when configured.
//   - Permits: Bot administrator tiers and the command blacklist.
//   - API: The admin HTTP API, for setup, runtime config and read-only views.
//
// The bot supports these commands:
//
//   - /xp-manage: update, modify-status, set-rank and quota (officers only).
//   - /xp: view, link and rank-information.
//   - /request: promotion, inactivity and discharge requests, reviewed by button.
//   - /permit and /blacklist: bot administration.
//   - /ping and /help.
//
// Interactions can be received over the gateway or by HTTP webhook, and are
// handled the same way either way.
package arasaka
