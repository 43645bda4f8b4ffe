package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rohitp30/ArasakaBot-P/arasaka"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// passwordReader is a function type for reading passwords. It's really only
// here to make testing easier.
type passwordReader func() ([]byte, error)

var customPasswordReader passwordReader

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and set admin credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			return errors.New(
				"ARASAKA_DATABASE_TYPE not set (must be one of: sqlite, postgres)",
			)
		}
		if cfg.Database == "" {
			return errors.New(
				"ARASAKA_DATABASE not set (must be a valid database " +
					"connection string or sqlite file path)",
			)
		}

		db, err := arasaka.CreateDB(ctx, cfg.DatabaseType, cfg.Database)
		if err != nil {
			return fmt.Errorf("error creating database: %w", err)
		}

		var runtimeConfig arasaka.RuntimeConfig
		if rv := db.Last(&runtimeConfig); rv.Error != nil {
			if !errors.Is(rv.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("error retrieving runtime config: %w", rv.Error)
			}
			runtimeConfig = arasaka.DefaultRuntimeConfig()
			if err = db.Create(&runtimeConfig).Error; err != nil {
				return fmt.Errorf("error creating runtime config: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		success := color.New(color.FgGreen)
		warn := color.New(color.FgYellow)

		if runtimeConfig.AdminUsername != "" && runtimeConfig.AdminPassword != "" {
			warn.Fprintln(out, "Admin credentials are already set.")
		} else {
			fmt.Fprintln(out, "Admin credentials are not set. Let's set them up.")
			username, password, promptErr := promptCredentials(out, cmd.InOrStdin())
			if promptErr != nil {
				return promptErr
			}

			hashedPassword, hashErr := arasaka.HashPassword(password)
			if hashErr != nil {
				return fmt.Errorf("error hashing password: %w", hashErr)
			}

			if err = db.Model(&runtimeConfig).Updates(
				map[string]any{
					"admin_username": username,
					"admin_password": hashedPassword,
				},
			).Error; err != nil {
				return fmt.Errorf("error updating admin credentials: %w", err)
			}
			success.Fprintln(out, "Admin credentials set successfully.")
		}

		fmt.Fprintln(
			out,
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
		return nil
	},
}

// promptCredentials reads a username from in, then a password (twice)
// from the terminal, until the passwords match
func promptCredentials(out io.Writer, in io.Reader) (string, string, error) {
	reader := bufio.NewReader(in)
	problem := color.New(color.FgRed)

	var username string
	for username == "" {
		fmt.Fprint(out, "Enter admin username: ")
		line, err := reader.ReadString('\n')
		username = strings.TrimSpace(line)
		if err != nil && username == "" {
			return "", "", fmt.Errorf("error reading username: %w", err)
		}
	}

	readPassword := customPasswordReader
	if readPassword == nil {
		readPassword = func() ([]byte, error) {
			return term.ReadPassword(int(syscall.Stdin))
		}
	}

	for {
		fmt.Fprint(out, "Enter admin password: ")
		passwordBytes, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return "", "", fmt.Errorf("error reading password: %w", err)
		}

		fmt.Fprint(out, "Confirm admin password: ")
		confirmBytes, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return "", "", fmt.Errorf("error reading password: %w", err)
		}

		switch password := string(passwordBytes); {
		case password == "":
			problem.Fprintln(out, "Password can't be empty. Please try again.")
		case password != string(confirmBytes):
			problem.Fprintln(out, "Passwords do not match. Please try again.")
		default:
			return username, password, nil
		}
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
