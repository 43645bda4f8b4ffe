package arasaka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermits(t *testing.T) {
	ctx := context.Background()
	db := testDBI(t)
	permits := NewPermits(db, []string{"owner"}, testLogger())

	tier, err := permits.Tier(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, PermitOwner, tier)

	tier, err = permits.Tier(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, PermitNone, tier)
	assert.False(t, permits.HasTier(ctx, "nobody", PermitBotManager))

	require.NoError(t, permits.SetTier(ctx, "owner", "100", PermitAdmin))
	assert.True(t, permits.HasTier(ctx, "100", PermitAdmin))
	assert.False(t, permits.HasTier(ctx, "100", PermitSudoAdmin))

	t.Run(
		"updating a tier", func(t *testing.T) {
			require.NoError(t, permits.SetTier(ctx, "owner", "100", PermitSudoAdmin))
			require.NoError(t, permits.SetTier(ctx, "owner", "200", PermitBotManager))

			admins, e := permits.Administrators(ctx)
			require.NoError(t, e)
			require.Len(t, admins, 2)
			assert.Equal(t, "100", admins[0].DiscordID)
			assert.Equal(t, PermitSudoAdmin, admins[0].TierLevel)
			assert.Equal(t, "200", admins[1].DiscordID)
		},
	)

	t.Run(
		"invalid tier", func(t *testing.T) {
			assert.ErrorIs(t, permits.SetTier(ctx, "owner", "300", PermitTier(5)), ErrInvalidPermitTier)
			assert.ErrorIs(t, permits.SetTier(ctx, "owner", "300", PermitNone), ErrInvalidPermitTier)
		},
	)

	t.Run(
		"remove", func(t *testing.T) {
			require.NoError(t, permits.Remove(ctx, "owner", "200"))
			assert.ErrorIs(t, permits.Remove(ctx, "owner", "200"), ErrAdminNotFound)
			tier, e := permits.Tier(ctx, "200")
			require.NoError(t, e)
			assert.Equal(t, PermitNone, tier)
		},
	)

	t.Run(
		"actions are logged", func(t *testing.T) {
			var logs []AdminLog
			require.NoError(t, db.DB().Order("id").Find(&logs).Error)
			require.Len(t, logs, 4)
			assert.Equal(t, "permit_add", logs[0].Action)
			assert.Equal(t, "100 -> 2", logs[0].Content)
			assert.Equal(t, "permit_remove", logs[3].Action)
			assert.Equal(t, "owner", logs[3].DiscordID)
		},
	)

	assert.Equal(t, "Sudo Administrator", PermitSudoAdmin.String())
	assert.Equal(t, "None", PermitTier(9).String())
}

func TestPermits_Blacklist(t *testing.T) {
	ctx := context.Background()
	permits := NewPermits(testDBI(t), nil, testLogger())

	assert.False(t, permits.IsBlacklisted(ctx, "100"))
	require.NoError(t, permits.AddBlacklist(ctx, "owner", "100", ""))
	assert.True(t, permits.IsBlacklisted(ctx, "100"))
	assert.ErrorIs(t, permits.AddBlacklist(ctx, "owner", "100", "again"), ErrAlreadyBlacklisted)

	var entry Blacklist
	require.NoError(t, permits.db.DB().Where("discord_id = ?", "100").Take(&entry).Error)
	assert.Equal(t, blacklistDefaultReason, entry.Reason)
	assert.Equal(t, "owner", entry.AddedBy)

	require.NoError(t, permits.RemoveBlacklist(ctx, "owner", "100"))
	assert.False(t, permits.IsBlacklisted(ctx, "100"))
	assert.ErrorIs(t, permits.RemoveBlacklist(ctx, "owner", "100"), ErrBlacklistNotFound)
}
