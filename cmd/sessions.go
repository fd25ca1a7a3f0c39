package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seshat-labs/seshat/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage the local current-session pointer",
}

var sessionsCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the current session id",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := session.LoadCurrentSessionID()
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Println("no current session")
			return nil
		}
		fmt.Println(id)
		return nil
	},
}

var sessionsUseCmd = &cobra.Command{
	Use:   "use <session-id>",
	Short: "Mark a session as current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session.SaveCurrentSessionID(args[0])
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current session pointer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return session.ClearCurrentSessionID()
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsCurrentCmd, sessionsUseCmd, sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}
