package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Rrens/apex-chat/internal/config"
	"github.com/Rrens/apex-chat/internal/logging"
	"github.com/Rrens/apex-chat/internal/restclient"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	baseURL    string

	cfg       *config.Config
	logCloser io.Closer
)

var errNotSignedIn = errors.New("not authenticated, run: apexchat login")

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	aiStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apexchat",
	Short: "Terminal client for the Apex chat backend",
	Long: `A terminal client for the Apex chat backend.

Sign in once, then chat with the assistant across several sessions.
Replies arrive over a live channel and land in the session they belong to,
even when another session is open.

Quick Start:
  apexchat login --email you@example.com   # prints a session token
  export APEX_CLIENT_AUTH_TOKEN=<token>
  apexchat sessions                        # list your chats
  apexchat chat                            # interactive chat`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if baseURL != "" {
			cfg.Client.BaseURL = baseURL
		}

		logCfg := cfg.Logging
		if verbose {
			logCfg.Level = "debug"
		} else if strings.EqualFold(logCfg.Level, "info") {
			// keep the terminal quiet unless asked
			logCfg.Level = "warn"
		}
		logCloser, err = logging.Setup(logCfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "", "Backend base URL (overrides client.base_url)")
}

func newRESTClient() (*restclient.Client, error) {
	c, err := restclient.New(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
