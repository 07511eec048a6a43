package main

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"marketlive/internal/adapter/rest"
	"marketlive/internal/infrastructure/auth"
	"marketlive/internal/infrastructure/push"
	"marketlive/internal/usecase"
	"marketlive/pkg/config"
)

// Profile is the CLI configuration stored in ~/.marketlive/config.toml.
type Profile struct {
	Default ProfileDefault `toml:"default"`
}

type ProfileDefault struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url"`
	Token   string `toml:"token"`
}

var (
	flagBaseURL string
	flagWSURL   string
	flagToken   string
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:          "marketlive",
	Short:        "Marketplace conversation and unread sync client",
	Long:         "marketlive follows marketplace conversations in real time, sends messages\nand keeps per-conversation unread counts in sync.",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "backend base URL")
	rootCmd.PersistentFlags().StringVar(&flagWSURL, "ws-url", "", "push channel base URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "session bearer token")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "profile file (default ~/.marketlive/config.toml)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func profilePath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".marketlive", "config.toml"), nil
}

// loadProfile reads the TOML profile. A missing file yields a zero profile.
func loadProfile() (*Profile, error) {
	path, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("cannot read profile: %w", err)
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cannot parse profile: %w", err)
	}
	return &p, nil
}

// engine bundles the composed services the commands work with. This is the
// application's composition root: the unread aggregator is built once here
// and injected, never reached through ambient globals.
type engine struct {
	cfg       *config.Config
	session   *auth.Session
	rest      *rest.Client
	transport *push.Manager
	unread    *usecase.UnreadAggregator
}

func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	profile, err := loadProfile()
	if err != nil {
		return nil, err
	}

	// Flags override the profile; the profile overrides env and defaults.
	baseURL := firstNonEmpty(flagBaseURL, profile.Default.BaseURL, cfg.BaseURL)
	wsURL := firstNonEmpty(flagWSURL, profile.Default.WSURL, cfg.WSBaseURL)
	token := firstNonEmpty(flagToken, profile.Default.Token, cfg.Token)

	session, err := auth.NewSession(token)
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:       cfg,
		session:   session,
		rest:      rest.NewClient(baseURL, session),
		transport: push.NewManager(wsURL, session.Token()),
		unread:    usecase.NewUnreadAggregator(session.UserID()),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
