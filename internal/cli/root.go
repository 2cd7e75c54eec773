package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewsawatzky/themeswitch/internal/config"
	"github.com/matthewsawatzky/themeswitch/internal/logging"
	"github.com/matthewsawatzky/themeswitch/internal/server"
	"github.com/matthewsawatzky/themeswitch/internal/shell"
	"github.com/matthewsawatzky/themeswitch/internal/util"
)

type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

type rootState struct {
	configPath string
	dataDir    string
	logLevel   string
}

type serveFlags struct {
	host        string
	port        int
	bind        string
	basePath    string
	https       bool
	cert        string
	key         string
	providerURL string
	colorScheme string
}

func NewRootCmd(v VersionInfo) *cobra.Command {
	state := &rootState{}
	serve := &serveFlags{}

	cmd := &cobra.Command{
		Use:          "themeswitch",
		Short:        "Switch desk themes, built-in or provided by installed apps",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, state, serve, v)
		},
	}
	cmd.PersistentFlags().StringVar(&state.configPath, "config", "", "config path (default: platform user config)")
	cmd.PersistentFlags().StringVar(&state.dataDir, "data-dir", "", "data directory for the SQLite store and themes")
	cmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level: debug|info|warn|error")
	addServeFlags(cmd, serve)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the desk and its theme API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, state, serve, v)
		},
	}
	addServeFlags(serveCmd, serve)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive first-run setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, state)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print config location and effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, cfg, err := loadConfig(state)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", cfgPath)
			fmt.Fprintf(out, "Data dir: %s\n", cfg.DataDir)
			fmt.Fprintf(out, "Candidates: %s\n", strings.Join(cfg.Apps(), ", "))
			if cfg.APIKey != "" {
				fmt.Fprintf(out, "API key: %s\n", cfg.APIKey)
			}
			b, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Fprintln(out, string(b))
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "themeswitch %s\ncommit: %s\nbuilt: %s\n", v.Version, v.Commit, v.Date)
		},
	}

	cmd.AddCommand(serveCmd, initCmd, configCmd, buildThemeCommands(state), buildUserCommands(state), buildKeyCommands(state), versionCmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command, f *serveFlags) {
	cmd.Flags().StringVar(&f.host, "host", "", "advertised host override for printed links")
	cmd.Flags().IntVar(&f.port, "port", 0, "server port")
	cmd.Flags().StringVar(&f.bind, "bind", "", "bind address (default from config, typically 0.0.0.0)")
	cmd.Flags().StringVar(&f.basePath, "basepath", "", "base URL path for reverse proxy (e.g. /desk)")
	cmd.Flags().BoolVar(&f.https, "https", false, "enable HTTPS")
	cmd.Flags().StringVar(&f.cert, "cert", "", "TLS certificate path")
	cmd.Flags().StringVar(&f.key, "key", "", "TLS key path")
	cmd.Flags().StringVar(&f.providerURL, "provider-url", "", "remote desk that answers theme provider calls")
	cmd.Flags().StringVar(&f.colorScheme, "color-scheme", "", "force the automatic theme: light|dark")
}

func loadConfig(state *rootState) (string, config.Config, error) {
	cfgPath := strings.TrimSpace(state.configPath)
	if cfgPath == "" {
		p, err := config.ConfigPathFromEnv()
		if err != nil {
			return "", config.Config{}, err
		}
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath, state.dataDir)
	if err != nil {
		return "", config.Config{}, err
	}
	if state.logLevel != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(state.logLevel))
	}
	return cfgPath, cfg, nil
}

func mergeServeFlags(cmd *cobra.Command, cfg config.Config, f *serveFlags) config.Config {
	if cmd.Flags().Changed("host") {
		cfg.Host = f.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = f.port
	}
	if cmd.Flags().Changed("bind") {
		cfg.Bind = f.bind
	}
	if cmd.Flags().Changed("basepath") {
		cfg.BasePath = config.NormalizeBasePath(f.basePath)
	}
	if cmd.Flags().Changed("https") {
		cfg.HTTPS = f.https
	}
	if cmd.Flags().Changed("cert") {
		cfg.CertFile = f.cert
	}
	if cmd.Flags().Changed("key") {
		cfg.KeyFile = f.key
	}
	if cmd.Flags().Changed("provider-url") {
		cfg.ProviderURL = strings.TrimSpace(f.providerURL)
	}
	if cmd.Flags().Changed("color-scheme") {
		cfg.ColorScheme = strings.ToLower(strings.TrimSpace(f.colorScheme))
	}
	return cfg
}

// openShell loads the config and assembles a shell for one-shot commands.
// These log at warn unless --log-level says otherwise.
func openShell(cmd *cobra.Command, state *rootState) (*shell.Shell, func(), error) {
	_, cfg, err := loadConfig(state)
	if err != nil {
		return nil, nil, err
	}
	level := "warn"
	if state.logLevel != "" {
		level = cfg.LogLevel
	}
	logger, closer := logging.New(logging.Options{Level: level, File: cfg.LogFile, Out: cmd.ErrOrStderr()})
	s, err := shell.New(cfg, shell.Options{Logger: logger, Terminal: true})
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return s, func() {
		_ = s.Close()
		_ = closer.Close()
	}, nil
}

func runServe(cmd *cobra.Command, state *rootState, flags *serveFlags, v VersionInfo) error {
	cfgPath, cfg, err := loadConfig(state)
	if err != nil {
		return err
	}
	cfg = mergeServeFlags(cmd, cfg, flags)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()
	slog.SetDefault(logger)

	s, err := shell.New(cfg, shell.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	urls := util.DiscoverURLs(cfg.Bind, cfg.Port, cfg.HTTPS, cfg.BasePath)
	if cfg.Host != "" {
		urls = append([]string{advertisedURL(cfg)}, urls...)
	}
	fmt.Fprintf(out, "Config:    %s\n", cfgPath)
	fmt.Fprintf(out, "Data:      %s\n", cfg.DataDir)
	fmt.Fprintf(out, "Provider:  %s\n", providerLabel(cfg))
	fmt.Fprintf(out, "Themes:    %s\n", cfg.ThemesDir)
	fmt.Fprintln(out, "URLs:")
	for _, u := range urls {
		fmt.Fprintf(out, "  - %s\n", u)
	}
	if target := qrTarget(urls); target != "" {
		fmt.Fprintln(out, "QR (scan from phone on same LAN):")
		util.PrintTerminalQR(out, target)
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return server.Run(ctx, server.Options{
		Shell:    s,
		Logger:   logger,
		Bind:     cfg.Bind,
		Port:     cfg.Port,
		BasePath: cfg.BasePath,
		HTTPS:    cfg.HTTPS,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
		Version:  v.Version,
	})
}

func advertisedURL(cfg config.Config) string {
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Host, cfg.Port, cfg.BasePath)
}

func providerLabel(cfg config.Config) string {
	switch {
	case cfg.ProviderURL != "":
		return cfg.ProviderURL
	case cfg.ExtensionEnabled:
		return "built-in (" + cfg.ExtensionApp + ")"
	}
	return "none"
}

// qrTarget prefers an address reachable from other machines.
func qrTarget(urls []string) string {
	for _, u := range urls {
		if !strings.Contains(u, "127.0.0.1") && !strings.Contains(u, "localhost") {
			return u
		}
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

func Execute(ctx context.Context, v VersionInfo, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCmd(v)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
