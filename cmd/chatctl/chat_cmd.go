package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/chatdesk/internal/conversation"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Read and write messages in one conversation",
	}
	cmd.AddCommand(newChatShowCmd(flags), newChatSendCmd(flags), newChatOpenCmd(flags))
	return cmd
}

func newChatShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			view, err := openView(cmd.Context(), a, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer view.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", view.Title())
			for _, m := range view.Messages() {
				printMessage(out, m)
			}
			return nil
		}),
	}
}

func newChatSendCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <chat-id> <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			view, err := openView(cmd.Context(), a, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer view.Close()

			before := len(view.Messages())
			if !view.Send(strings.Join(args[1:], " ")) {
				return fmt.Errorf("nothing to send")
			}
			if err := view.Wait(cmd.Context()); err != nil {
				return err
			}
			for _, m := range view.Messages()[before:] {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		}),
	}
}

func newChatOpenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open <chat-id>",
		Short: "Chat interactively (type /quit to leave)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			view, err := openView(cmd.Context(), a, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer view.Close()

			return runInteractive(cmd.Context(), view, cmd.InOrStdin(), cmd.OutOrStdout())
		}),
	}
}

// openView loads the conversation named by id into a new View. A failed load
// leaves the view empty; the failure is reported on warn as a warning only.
func openView(ctx context.Context, a *app, id string, warn io.Writer) (*conversation.View, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	view := conversation.New(ctx, chat.ID(id), a.api, conversation.WithLogger(a.logger))
	if err := view.Load(ctx); err != nil {
		if errors.Is(err, conversation.ErrClosed) || ctx.Err() != nil {
			view.Close()
			return nil, err
		}
		fmt.Fprintf(warn, "warning: %v\n", describe("could not load chat", err))
	}
	return view, nil
}

// transcriptPrinter prints each message of a View exactly once as snapshots arrive.
type transcriptPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
	version uint64
}

func (p *transcriptPrinter) update(snap conversation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.Version <= p.version {
		return
	}
	p.version = snap.Version
	for p.printed < len(snap.Messages) {
		m := snap.Messages[p.printed]
		if m.Role == chat.RoleAssistant {
			printMessage(p.out, m)
		}
		p.printed++
	}
}

func runInteractive(ctx context.Context, view *conversation.View, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "# %s\n", view.Title())
	for _, m := range view.Messages() {
		printMessage(out, m)
	}

	printer := &transcriptPrinter{out: out, printed: len(view.Messages()), version: view.Snapshot().Version}
	unsubscribe := view.Subscribe(printer.update)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return view.Wait(ctx)
			}
			text := strings.TrimSpace(line)
			if text == "/quit" || text == "/exit" {
				return nil
			}
			if !view.Send(text) {
				if view.State() == conversation.Sending {
					fmt.Fprintln(out, "(still waiting for the previous reply)")
				}
				continue
			}
			if err := view.Wait(ctx); err != nil {
				return nil
			}
		}
	}
}

func printMessage(out io.Writer, m chat.Message) {
	who := "you"
	if m.Role == chat.RoleAssistant {
		who = "assistant"
	}
	stamp := "--:--"
	if !m.CreatedAt.IsZero() {
		stamp = m.CreatedAt.Local().Format("15:04")
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", stamp, who, m.Content)
}
