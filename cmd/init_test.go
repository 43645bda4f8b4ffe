package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rohitp30/ArasakaBot-P/arasaka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestInitCommand(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	t.Setenv("ARASAKA_DATABASE_TYPE", "sqlite")
	t.Setenv("ARASAKA_DATABASE", dbPath)

	// the first pair doesn't match, so the prompt should repeat
	passwords := []string{"testpassword", "wrong", "testpassword", "testpassword"}
	passwordIndex := 0

	customPasswordReader = func() ([]byte, error) {
		if passwordIndex >= len(passwords) {
			return nil, fmt.Errorf("no more passwords")
		}
		password := passwords[passwordIndex]
		passwordIndex++
		return []byte(password), nil
	}
	t.Cleanup(
		func() {
			customPasswordReader = nil
		},
	)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader("testadmin\n"))
	t.Cleanup(
		func() {
			rootCmd.SetOut(nil)
			rootCmd.SetErr(nil)
			rootCmd.SetIn(nil)
		},
	)

	rootCmd.SetArgs([]string{"init"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, dbPath)

	output := out.String()
	t.Logf("output: %s", output)
	assert.Contains(t, output, "Admin credentials are not set. Let's set them up.")
	assert.Contains(t, output, "Enter admin username:")
	assert.Contains(t, output, "Passwords do not match")
	assert.Contains(t, output, "Admin credentials set successfully")
	assert.Contains(t, output, "Initialization complete")

	db, err := gorm.Open(sqlite.Open(dbPath))
	require.NoError(t, err)
	t.Cleanup(
		func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)

	var config arasaka.RuntimeConfig
	require.NoError(t, db.First(&config).Error)

	assert.Equal(t, "testadmin", config.AdminUsername)
	assert.NotEqual(t, "testpassword", config.AdminPassword)

	valid, err := arasaka.VerifyPassword(config.AdminPassword, "testpassword")
	require.NoError(t, err)
	assert.True(t, valid)

	mg := db.Migrator()
	for _, model := range []any{
		&arasaka.RuntimeConfig{},
		&arasaka.InteractionLog{},
		&arasaka.CommandAnalytics{},
		&arasaka.EventRecord{},
		&arasaka.EventHosted{},
		&arasaka.DiscordToRoblox{},
		&arasaka.Administrator{},
		&arasaka.AdminLog{},
		&arasaka.Blacklist{},
	} {
		assert.Truef(t, mg.HasTable(model), "missing table for %T", model)
	}

	t.Run(
		"already set", func(t *testing.T) {
			out.Reset()
			rootCmd.SetArgs([]string{"init"})
			require.NoError(t, rootCmd.Execute())
			assert.Contains(t, out.String(), "Admin credentials are already set.")
		},
	)
}
