package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seshat-labs/seshat/internal/memory"
)

var (
	flagSearchApp  string
	flagSearchUser string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored conversation text for a substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := setupEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		svc, err := memory.New(env.pool, env.dbCfg, env.logger)
		if err != nil {
			return err
		}

		entries, err := svc.Search(ctx, flagSearchApp, flagSearchUser, args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, entry := range entries {
			text := ""
			if len(entry.Content.Parts) > 0 && entry.Content.Parts[0].Text != nil {
				text = *entry.Content.Parts[0].Text
			}
			fmt.Printf("%s  %s  %s\n", entry.Timestamp, entry.Author, text)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchApp, "app", "", "application name (required)")
	searchCmd.Flags().StringVar(&flagSearchUser, "user", "", "user id (required)")
	_ = searchCmd.MarkFlagRequired("app")
	_ = searchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(searchCmd)
}
