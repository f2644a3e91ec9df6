package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

const previewWidth = 40

func newChatsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List or create conversations",
	}
	cmd.AddCommand(newChatsListCmd(flags), newChatsCreateCmd(flags))
	return cmd
}

func newChatsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your conversations",
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			chats, err := a.api.ListChats(cmd.Context())
			if err != nil {
				return describe("list chats", err)
			}
			if len(chats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet. Create one with `chatctl chats create <title>`.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tLAST MESSAGE")
			for _, c := range chats {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Title, len(c.Messages), lastPreview(c))
			}
			return tw.Flush()
		}),
	}
}

func newChatsCreateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create a conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			conv, err := a.api.CreateChat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return describe("create chat", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", conv.ID, conv.Title)
			return nil
		}),
	}
}

func lastPreview(c chat.Conversation) string {
	last, ok := c.LastMessage()
	if !ok {
		return "-"
	}
	return truncate(strings.Join(strings.Fields(last.Content), " "), previewWidth)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}
