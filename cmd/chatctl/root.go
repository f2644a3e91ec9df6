package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Terminal client for the chat backend",
		Long: `chatctl signs in to a chat backend, lists and creates conversations,
and exchanges messages with the assistant.

The backend address comes from CHAT_API_URL (or --api-url). The access token is
kept in the store selected by CHAT_TOKEN_STORE (file, sqlite or memory).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "backend base URL (overrides CHAT_API_URL)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(flags),
		newRegisterCmd(flags),
		newLogoutCmd(flags),
		newStatusCmd(flags),
		newChatsCmd(flags),
		newChatCmd(flags),
	)
	return root
}
