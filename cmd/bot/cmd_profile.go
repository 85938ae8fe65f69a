package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xaenox/hopeconnect/internal/bot"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/profile"
	"github.com/xaenox/hopeconnect/internal/storage"
	"go.uber.org/zap"
)

var chatID int64

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or delete a stored profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfile(cmd, func(ctx context.Context, store *profile.Store) error {
			return printProfile(cmd.OutOrStdout(), store.Current())
		})
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfile(cmd, func(ctx context.Context, store *profile.Store) error {
			if err := store.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Your profile has been deleted.")
			return nil
		})
	},
}

var moodCmd = &cobra.Command{
	Use:       "mood <status>",
	Short:     "Check in with how you feel",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"Great", "Good", "Okay", "Struggling", "Crisis"},
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := models.ParseCheckIn(args[0])
		if !ok {
			return fmt.Errorf("unknown status %q: pick one of Great, Good, Okay, Struggling, Crisis", args[0])
		}
		return withProfile(cmd, func(ctx context.Context, store *profile.Store) error {
			if err := store.SetStatus(ctx, status); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bot.DashboardText(store.Current()))
			if status == models.StatusCrisis {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), bot.EmergencyText(store.Current()))
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{profileCmd, moodCmd} {
		cmd.PersistentFlags().Int64Var(&chatID, "chat", 0, "Telegram chat id (default: the terminal profile)")
	}
	profileCmd.AddCommand(profileShowCmd, profileResetCmd)
}

// profilePrefix picks the namespace of the terminal profile or of one
// Telegram chat.
func profilePrefix(chatID int64) string {
	if chatID == 0 {
		return localPrefix
	}
	return bot.ChatPrefix(chatID)
}

func withProfile(cmd *cobra.Command, fn func(ctx context.Context, store *profile.Store) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	prefix := profilePrefix(chatID)
	store := profile.NewStore(ctx, storage.WithPrefix(a.storage, prefix), a.logger)
	if err := fn(ctx, store); err != nil {
		a.logger.Error("Profile command failed", zap.String("prefix", prefix), zap.Error(err))
		return err
	}
	return nil
}

func printProfile(w io.Writer, p models.UserProfile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
