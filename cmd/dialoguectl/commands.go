package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/session"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func printState(w io.Writer, label string, s session.State, ok bool) error {
	if !ok {
		_, err := fmt.Fprintf(w, "%s: no dialogue\n", label)
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s:\n%s\n", label, b)
	return err
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <chat-id>",
		Short: "Print the stored dialogue of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			s, ok, err := a.store.GetDialogue(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), "current", s, ok)
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <chat-id> <json>",
		Short: "Replace the dialogue of a chat with the given JSON state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			var s session.State
			if err := json.Unmarshal([]byte(args[1]), &s); err != nil {
				return fmt.Errorf("parse state: %w", err)
			}
			prev, existed, err := a.store.UpdateDialogue(cmd.Context(), id, s)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), "previous", prev, existed)
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <chat-id>",
		Aliases: []string{"remove"},
		Short:   "Remove the dialogue of a chat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			prev, existed, err := a.store.RemoveDialogue(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), "removed", prev, existed)
		},
	}
}

func newSayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "say <chat-id> <role> <text...>",
		Short: "Append a message to a chat's history",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			role := args[1]
			if role != session.RoleUser && role != session.RoleAssistant {
				return fmt.Errorf("role must be %q or %q", session.RoleUser, session.RoleAssistant)
			}

			ctx := cmd.Context()
			d := dialogue.NewDialogue(a.store, id)
			state, err := d.GetOr(ctx, session.State{Step: "chat"})
			if err != nil {
				return err
			}

			state = state.AddMessage(role, strings.Join(args[2:], " ")).
				Truncate(a.cfg.History.TokenLimit, a.cfg.History.MessageLimit)
			if err := d.Update(ctx, state); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "chat %d: %d messages, ~%d tokens\n",
				id, len(state.History), state.TotalTokens())
			return err
		},
	}
}
