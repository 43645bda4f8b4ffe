package arasaka

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{"shorter", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"longer", "abcdef", 3, "abc"},
		{"multibyte", "пароль", 3, "пар"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, truncate(tt.input, tt.n))
			},
		)
	}
}

func TestSplitTokens(t *testing.T) {
	assert.Equal(
		t,
		[]string{"alice:5", "bob:2:3", "N/A"},
		splitTokens(" alice:5 ,bob:2:3,, N/A ,"),
	)
	assert.Nil(t, splitTokens(" , "))
}

func TestHashPasswordAndVerify(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		password string
	}{
		{"Simple password", "password123"},
		{"Complex password", "C0mpl3x!P@ssw0rd"},
		{"Empty password", ""},
		{"Unicode password", "пароль123"},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				hash, err := HashPassword(tc.password)
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m="), hash)

				valid, err := VerifyPassword(hash, tc.password)
				require.NoError(t, err)
				assert.True(t, valid)

				valid, err = VerifyPassword(hash, tc.password+"wrong")
				require.NoError(t, err)
				assert.False(t, valid)
			},
		)
	}
}

func TestVerifyPassword_InvalidHash(t *testing.T) {
	invalidHashes := []string{
		"not a valid hash",
		"$argon2id$v=19$m=65536,t=1,p=4$invalidbase64!$invalidbase64",
		"$argon2id$v=19$m=invalid,t=1,p=4$c29tZXNhbHQ$c29tZWhhc2g",
	}
	for _, invalidHash := range invalidHashes {
		t.Run(
			invalidHash, func(t *testing.T) {
				_, err := VerifyPassword(invalidHash, "anypassword")
				assert.Error(t, err)
			},
		)
	}
}

func TestHashPassword_Uniqueness(t *testing.T) {
	hash1, err := HashPassword("samepassword")
	require.NoError(t, err)
	hash2, err := HashPassword("samepassword")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2)
}

func TestChunkItems(t *testing.T) {
	tests := []struct {
		name         string
		maxRowLength int
		items        []int
		expected     [][]int
	}{
		{
			name:         "exactly divisible",
			maxRowLength: 3,
			items:        []int{1, 2, 3, 4, 5, 6},
			expected:     [][]int{{1, 2, 3}, {4, 5, 6}},
		},
		{
			name:         "not exactly divisible",
			maxRowLength: 4,
			items:        []int{1, 2, 3, 4, 5, 6, 7},
			expected:     [][]int{{1, 2, 3, 4}, {5, 6, 7}},
		},
		{
			name:         "max row length greater than items",
			maxRowLength: 50,
			items:        []int{1, 2, 3},
			expected:     [][]int{{1, 2, 3}},
		},
		{
			name:         "no items",
			maxRowLength: 3,
			expected:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, chunkItems(tt.maxRowLength, tt.items...))
			},
		)
	}
}

func TestCommandOptions(t *testing.T) {
	i := slashCommand(
		officer(),
		commandXPManage,
		subcommandUpdate,
		stringOption(optionUsernames, " alice:1 "),
		boolOption(optionPingAttendees, false),
		intOption(optionTier, 3),
	)
	path, options := commandOptions(i)
	assert.Equal(t, []string{subcommandUpdate}, path)
	assert.Equal(t, "alice:1", optionString(options, optionUsernames))
	assert.Empty(t, optionString(options, optionReason))
	assert.False(t, optionBool(options, optionPingAttendees, true))
	assert.True(t, optionBool(options, optionAction, true))

	tier, ok := optionInt(options, optionTier)
	assert.True(t, ok)
	assert.Equal(t, int64(3), tier)
	_, ok = optionInt(options, optionCurrentXP)
	assert.False(t, ok)

	t.Run(
		"resolved users", func(t *testing.T) {
			cmd := slashCommand(officer(), commandPermit, subcommandRemove, userOption(optionUser, "admin-1"))
			data := cmd.ApplicationCommandData()
			data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{
				Users: map[string]*discordgo.User{"admin-1": {ID: "admin-1", Username: "admin"}},
			}
			cmd.Data = data

			_, opts := commandOptions(cmd)
			u := optionUserValue(cmd, opts, optionUser)
			require.NotNil(t, u)
			assert.Equal(t, "admin", u.Username)
			assert.Nil(t, optionUserValue(cmd, opts, optionTargetUser))
		},
	)
}

func TestContextLogger(t *testing.T) {
	_, ok := ContextLogger(context.Background())
	assert.False(t, ok)

	logger := testLogger()
	got, ok := ContextLogger(WithLogger(context.Background(), logger))
	assert.True(t, ok)
	assert.Same(t, logger, got)

	got, ok = ContextLogger(WithLogger(context.Background(), nil))
	assert.True(t, ok)
	assert.Same(t, slog.Default(), got)
}

func TestStructToSlogValue(t *testing.T) {
	type credentials struct {
		Username string `json:"username"`
		Password string `json:"password" log:"[redacted]"`
		Empty    string `json:"empty"`
		Skipped  string `json:"-"`
	}
	value := structToSlogValue(&credentials{Username: "admin", Password: "hunter2", Skipped: "x"})
	require.Equal(t, slog.KindGroup, value.Kind())

	attrs := map[string]string{}
	for _, a := range value.Group() {
		attrs[a.Key] = a.Value.String()
	}
	assert.Equal(t, map[string]string{"username": "admin", "password": "[redacted]"}, attrs)

	var nilCreds *credentials
	assert.Equal(t, slog.KindAny, structToSlogValue(nilCreds).Kind())
}
