package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/extension"
)

func openStore(state *rootState) (*db.Store, error) {
	_, cfg, err := loadConfig(state)
	if err != nil {
		return nil, err
	}
	return db.Open(cfg.DataDir)
}

func buildUserCommands(state *rootState) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "User management"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(state)
			if err != nil {
				return err
			}
			defer store.Close()
			users, err := store.ListUsers()
			if err != nil {
				return err
			}
			for _, u := range users {
				status := "active"
				if u.Disabled {
					status = "disabled"
				}
				theme, err := store.GetDeskTheme(u.ID)
				if err != nil {
					theme = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", u.Username, u.Role, status, theme)
			}
			return nil
		},
	}

	setDisabled := func(use, short string, disabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <username>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(state)
				if err != nil {
					return err
				}
				defer store.Close()
				return store.SetUserDisabled(args[0], disabled)
			},
		}
	}

	userCmd.AddCommand(listCmd, setDisabled("disable", "Disable a user", true), setDisabled("enable", "Enable a user", false))
	return userCmd
}

func buildKeyCommands(state *rootState) *cobra.Command {
	keyCmd := &cobra.Command{Use: "key", Short: "API key management"}
	role := auth.RoleUser
	prompt := false

	addCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Issue an API key, creating the user when needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(state)
			if err != nil {
				return err
			}
			defer store.Close()
			secret := ""
			if prompt {
				secret, err = promptSecretTwice(cmd.OutOrStdout(), "API secret")
				if err != nil {
					return err
				}
			}
			if role != auth.RoleAdmin {
				role = auth.RoleUser
			}
			creds, err := extension.IssueKey(store, strings.TrimSpace(args[0]), role, secret)
			if err != nil {
				return err
			}
			printCredentials(cmd.OutOrStdout(), creds)
			return nil
		},
	}
	addCmd.Flags().StringVar(&role, "role", auth.RoleUser, "role: user|admin")
	addCmd.Flags().BoolVar(&prompt, "prompt-secret", false, "choose the secret instead of generating one")

	listCmd := &cobra.Command{
		Use:   "list <username>",
		Short: "List a user's API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(state)
			if err != nil {
				return err
			}
			defer store.Close()
			u, err := store.GetUserByUsername(args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}
			keys, err := store.ListAPIKeys(u.ID)
			if err != nil {
				return err
			}
			for _, k := range keys {
				used := "never"
				if k.LastUsedAt != nil {
					used = k.LastUsedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", k.Key, k.CreatedAt.Format("2006-01-02 15:04"), used)
			}
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(state)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteAPIKey(args[0])
		},
	}

	keyCmd.AddCommand(addCmd, listCmd, revokeCmd)
	return keyCmd
}
