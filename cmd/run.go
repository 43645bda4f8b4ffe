package cmd

import (
	"log"

	"github.com/rohitp30/ArasakaBot-P/arasaka"
	"github.com/spf13/cobra"
)

var (
	registerCommands bool

	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the bot, the admin API and (optionally) the webhook server",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			bot, err := arasaka.New(cfg)
			if err != nil {
				log.Fatalf("error creating bot: %s", err.Error())
			}

			if registerCommands {
				if _, err = bot.RegisterCommands(); err != nil {
					log.Fatalf("error registering commands: %s", err.Error())
				}
			}

			if err = bot.Run(ctx); err != nil {
				log.Fatalf("error running bot: %s", err.Error())
			}
		},
	}
)

//goland:noinspection GoLinter
func init() {
	runCmd.Flags().BoolVar(
		&registerCommands,
		"register-commands",
		false,
		"Overwrite the guild's slash commands before starting",
	)
	rootCmd.AddCommand(runCmd)
}
