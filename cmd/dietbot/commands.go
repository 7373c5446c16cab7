package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dietbot/internal/access"
	"dietbot/internal/store"
	"dietbot/internal/types"
)

// withGate opens the store and runs an admin operation against the
// access gate. Used by the offline management subcommands, which talk
// to the database directly instead of going through Telegram.
func withGate(fn func(ctx context.Context, gate *access.Gate) error) error {
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	return fn(context.Background(), access.NewGate(st, cfg.AdminID, logger))
}

func parseUserIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

var grantCmd = &cobra.Command{
	Use:   "grant [user-id]",
	Short: "Grant bot access to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserIDArg(args[0])
		if err != nil {
			return err
		}
		return withGate(func(ctx context.Context, gate *access.Gate) error {
			if err := gate.Grant(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Access granted to user %d\n", id)
			return nil
		})
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke [user-id]",
	Short: "Revoke bot access from a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserIDArg(args[0])
		if err != nil {
			return err
		}
		return withGate(func(ctx context.Context, gate *access.Gate) error {
			if err := gate.Revoke(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Access revoked from user %d\n", id)
			return nil
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users and their access status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGate(func(ctx context.Context, gate *access.Gate) error {
			approved, err := gate.Approved(ctx)
			if err != nil {
				return err
			}
			pending, err := gate.Pending(ctx)
			if err != nil {
				return err
			}

			printUsers("Approved", approved)
			printUsers("Pending", pending)
			return nil
		})
	},
}

func printUsers(header string, users []types.User) {
	fmt.Printf("%s (%d):\n", header, len(users))
	if len(users) == 0 {
		fmt.Println("  none")
		return
	}
	for _, u := range users {
		fmt.Printf("  %d  %s  registered %s\n", u.ID, u.DisplayName(), u.CreatedAt.Format("2006-01-02"))
	}
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGate(func(ctx context.Context, gate *access.Gate) error {
			stats, err := gate.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Total users:       %d\n", stats.TotalUsers)
			fmt.Printf("Approved users:    %d\n", stats.ApprovedUsers)
			fmt.Printf("Pending users:     %d\n", stats.PendingUsers)
			fmt.Printf("Advisory requests: %d\n", stats.TotalAIRequests)
			return nil
		})
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", configPath)
		return nil
	},
}
