package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/extension"
	"github.com/matthewsawatzky/themeswitch/internal/preview"
)

func buildThemeCommands(state *rootState) *cobra.Command {
	themeCmd := &cobra.Command{Use: "theme", Short: "Theme selection and installation"}
	showPreview := false

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openShell(cmd, state)
			if err != nil {
				return err
			}
			defer done()
			st, err := s.Engine.Open(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range st.Catalog.All() {
				marker := " "
				if d.ID == st.Current {
					marker = "*"
				}
				line := fmt.Sprintf("%s %s\t%s\t%s", marker, d.ID, d.Label, d.Kind)
				if showPreview {
					line += "\t" + preview.Swatch(st.Previews[d.ID])
				}
				fmt.Fprintln(tw, line)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().BoolVar(&showPreview, "preview", false, "render a color swatch per theme")

	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Show the active theme and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openShell(cmd, state)
			if err != nil {
				return err
			}
			defer done()
			st, err := s.Engine.Open(cmd.Context())
			if err != nil {
				return err
			}
			source := string(st.Source)
			if source == "" {
				source = "default"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", st.Current, st.Appearance, source)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Apply and persist a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openShell(cmd, state)
			if err != nil {
				return err
			}
			defer done()
			if _, err := s.Engine.Open(cmd.Context()); err != nil {
				return err
			}
			if err := s.Select(cmd.Context(), strings.TrimSpace(args[0]), nil, "cli"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Engine.State().Current)
			return nil
		},
	}

	stepCmd := func(use, short string, delta int) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, done, err := openShell(cmd, state)
				if err != nil {
					return err
				}
				defer done()
				if _, err := s.Engine.Open(cmd.Context()); err != nil {
					return err
				}
				d, err := s.Step(cmd.Context(), delta, nil, "cli")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), d.ID)
				return nil
			},
		}
	}

	limit := 20
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent theme switches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(state)
			if err != nil {
				return err
			}
			store, err := db.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			logs, err := store.ListAudit(db.ActionThemeSelect, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, l := range logs {
				who := "-"
				if l.Username != nil {
					who = *l.Username
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.CreatedAt.Format("2006-01-02 15:04:05"), l.Target, who, l.Metadata)
			}
			return tw.Flush()
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "number of entries")

	installCmd := &cobra.Command{
		Use:   "install <dir>",
		Short: "Copy theme folders from dir into the themes directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(state)
			if err != nil {
				return err
			}
			installed, err := extension.Install(args[0], cfg.ThemesDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range installed {
				fmt.Fprintf(out, "installed %s\n", name)
			}
			themes, err := extension.LoadThemes(cfg.ThemesDir)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			fmt.Fprintf(out, "%d themes available in %s\n", len(themes), cfg.ThemesDir)
			return nil
		},
	}

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Print the desk document with the active theme applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openShell(cmd, state)
			if err != nil {
				return err
			}
			defer done()
			if _, err := s.Engine.Open(cmd.Context()); err != nil {
				return err
			}
			return s.Document.Render(cmd.OutOrStdout())
		},
	}

	themeCmd.AddCommand(listCmd, currentCmd, setCmd,
		stepCmd("next", "Switch to the next theme", 1),
		stepCmd("prev", "Switch to the previous theme", -1),
		historyCmd, installCmd, renderCmd)
	return themeCmd
}
