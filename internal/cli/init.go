package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/config"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/extension"
)

func runInit(cmd *cobra.Command, state *rootState) error {
	cfgPath := strings.TrimSpace(state.configPath)
	if cfgPath == "" {
		p, err := config.ConfigPathFromEnv()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath, state.dataDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := bufio.NewReader(cmd.InOrStdin())
	fmt.Fprintln(out, "themeswitch first-run setup")
	cfg.DataDir = askWithDefault(out, r, "Data directory", cfg.DataDir)
	cfg.Bind = askWithDefault(out, r, "Bind address", cfg.Bind)
	cfg.Port = askIntWithDefault(out, r, "Port", cfg.Port)
	cfg.BasePath = config.NormalizeBasePath(askWithDefault(out, r, "Base path", cfg.BasePath))
	cfg.ProviderURL = askWithDefault(out, r, "Remote desk URL (empty for built-in themes)", cfg.ProviderURL)
	if cfg.ProviderURL == "" {
		cfg.ExtensionEnabled = true
		cfg.ThemesDir = askWithDefault(out, r, "Themes directory", cfg.ThemesDir)
	} else {
		cfg.ExtensionEnabled = askBoolWithDefault(out, r, "Also serve built-in themes", cfg.ExtensionEnabled)
	}
	cfg.ColorScheme = strings.ToLower(askWithDefault(out, r, "Automatic theme appearance (empty, light or dark)", cfg.ColorScheme))

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	store, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	admins, err := store.AdminCount()
	if err != nil {
		return err
	}
	if admins == 0 && askBoolWithDefault(out, r, "Issue an admin API key", true) {
		username := strings.ToLower(strings.TrimSpace(askWithDefault(out, r, "Admin username", "admin")))
		if username == "" {
			username = "admin"
		}
		creds, err := extension.IssueKey(store, username, auth.RoleAdmin, "")
		if err != nil {
			return err
		}
		printCredentials(out, creds)
	}

	fmt.Fprintf(out, "Config saved to %s\n", cfgPath)
	fmt.Fprintln(out, "Run `themeswitch` to start serving the desk.")
	return nil
}

func printCredentials(out io.Writer, c extension.Credentials) {
	fmt.Fprintf(out, "User:       %s\n", c.Username)
	fmt.Fprintf(out, "API key:    %s\n", c.Key)
	fmt.Fprintf(out, "API secret: %s\n", c.Secret)
	fmt.Fprintf(out, "The secret is not stored; export %s and %s to use it.\n", config.EnvAPIKey, config.EnvAPISecret)
}

func askWithDefault(out io.Writer, r *bufio.Reader, label, def string) string {
	fmt.Fprintf(out, "%s [%s]: ", label, def)
	text, _ := r.ReadString('\n')
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	return text
}

func askIntWithDefault(out io.Writer, r *bufio.Reader, label string, def int) int {
	for {
		value := askWithDefault(out, r, label, strconv.Itoa(def))
		n, err := strconv.Atoi(value)
		if err == nil && n > 0 {
			return n
		}
		fmt.Fprintln(out, "Please enter a positive integer.")
	}
}

func askBoolWithDefault(out io.Writer, r *bufio.Reader, label string, def bool) bool {
	defaultStr := "n"
	if def {
		defaultStr = "y"
	}
	for {
		v := strings.ToLower(askWithDefault(out, r, label+" (y/n)", defaultStr))
		switch v {
		case "y", "yes", "true", "1":
			return true
		case "n", "no", "false", "0":
			return false
		default:
			fmt.Fprintln(out, "Enter y or n.")
		}
	}
}

func promptSecret(out io.Writer, prompt string) (string, error) {
	fmt.Fprintf(out, "%s: ", prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		return string(b), err
	}
	reader := bufio.NewReader(os.Stdin)
	text, err := reader.ReadString('\n')
	return strings.TrimSpace(text), err
}

func promptSecretTwice(out io.Writer, label string) (string, error) {
	first, err := promptSecret(out, label)
	if err != nil {
		return "", err
	}
	second, err := promptSecret(out, label+" (confirm)")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("secrets do not match")
	}
	if strings.TrimSpace(first) == "" {
		return "", errors.New("secret cannot be empty")
	}
	return first, nil
}
