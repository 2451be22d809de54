// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Offline operations on persisted chat sessions.
//
// These commands read and write the stored collection directly. Do not run
// them while "brainchat serve" or another chat is writing the same data.

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/session"
	"github.com/jeranaias/brainchat/internal/storage"
	"github.com/jeranaias/brainchat/internal/util"
)

var (
	sessionsJSONFlag   bool
	sessionsOutputFlag string
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage saved chat sessions",
	Long: `List, delete, pin and export saved chat sessions. Sessions are
addressed by their number in "sessions list" or by an id prefix.

Examples:
  brainchat sessions list
  brainchat sessions pin 2
  brainchat sessions delete 3
  brainchat sessions export 1 -o chat.md`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, st *offlineSessions) error {
			sessions := st.store.Snapshot().Sessions
			if sessionsJSONFlag {
				if sessions == nil {
					sessions = []model.ChatSession{}
				}
				return NewJSONResponse("sessions list", sessions).Print(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), storage.FormatSessionList(sessions))
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <n|id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, st *offlineSessions) error {
			s, err := st.resolve(args[0])
			if err != nil {
				return err
			}
			st.store.DeleteSession(s.ID)
			if err := st.save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", WarningStyle.Render("Deleted"), s.Title)
			return nil
		})
	},
}

var sessionsPinCmd = &cobra.Command{
	Use:   "pin <n|id>",
	Short: "Pin or unpin a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, st *offlineSessions) error {
			s, err := st.resolve(args[0])
			if err != nil {
				return err
			}
			st.store.TogglePin(s.ID)
			if err := st.save(ctx); err != nil {
				return err
			}
			verb := "Pinned"
			if s.IsPinned {
				verb = "Unpinned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", PinStyle.Render(verb), s.Title)
			return nil
		})
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <n|id>",
	Short: "Export a session as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, st *offlineSessions) error {
			s, err := st.resolve(args[0])
			if err != nil {
				return err
			}
			md := s.ExportMarkdown()
			if sessionsOutputFlag != "" {
				if err := util.AtomicWriteFile(sessionsOutputFlag, []byte(md), 0600); err != nil {
					return fmt.Errorf("failed to write %s: %w", sessionsOutputFlag, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Exported to"), sessionsOutputFlag)
				return nil
			}
			if IsStdoutTTY() {
				md = newMarkdownRenderer(GetTerminalWidth()).Render(md)
			}
			fmt.Fprintln(cmd.OutOrStdout(), md)
			return nil
		})
	},
}

func init() {
	sessionsListCmd.Flags().BoolVar(&sessionsJSONFlag, "json", false, "Output as JSON")
	sessionsExportCmd.Flags().StringVarP(&sessionsOutputFlag, "output", "o", "", "Write Markdown to a file")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsPinCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
}

// =============================================================================
// OFFLINE STORE
// =============================================================================

// offlineSessions is the persisted collection loaded into a store.
type offlineSessions struct {
	adapter *storage.Adapter
	store   *session.Store
}

// loadOfflineSessions reads the persisted collection. Missing data yields an
// empty store. Unreadable data is an error so it is never overwritten.
func loadOfflineSessions(ctx context.Context, adapter *storage.Adapter) (*offlineSessions, error) {
	sessions, _, err := adapter.Load(ctx)
	if err != nil {
		return nil, err
	}
	store := session.NewStore()
	if len(sessions) > 0 {
		store.Install(sessions)
	}
	return &offlineSessions{adapter: adapter, store: store}, nil
}

func (o *offlineSessions) resolve(selector string) (model.ChatSession, error) {
	snap := o.store.Snapshot()
	return resolveSession(selector, snap.Sessions, snap.ActiveID)
}

func (o *offlineSessions) save(ctx context.Context) error {
	return o.adapter.Save(ctx, o.store.Snapshot().Sessions)
}

// withSessions opens storage from config, runs fn and closes storage.
func withSessions(cmd *cobra.Command, fn func(ctx context.Context, st *offlineSessions) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, _, err := newLogger(cfg, defaultLogFile())
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	adapter, err := openAdapter(cfg, logger)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := loadOfflineSessions(ctx, adapter)
	if err != nil {
		return err
	}
	return fn(ctx, st)
}
