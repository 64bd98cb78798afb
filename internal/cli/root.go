package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/questline/internal/api"
	"github.com/yolodolo42/questline/internal/config"
	"golang.org/x/term"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File

	rootCmd = &cobra.Command{
		Use:   "questline",
		Short: "Terminal client for AI-narrated text adventures",
		Long: `questline connects to a game server, lets you create a character and
plays the story in your terminal. Narration streams in live, and the game
master's tool calls and observations are shown inline.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != nil {
				_ = logFile.Close()
			}
		},
		RunE: runPlay,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.questline/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "game server URL")
	rootCmd.PersistentFlags().String("cookie", "", "cookie header sent with every request")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("cookie", rootCmd.PersistentFlags().Lookup("cookie"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	dir, err := config.DataDir()
	if err != nil {
		return err
	}
	l, f, err := openLogger(dir, c.LogLevel)
	if err != nil {
		// Logging is best effort; the command still runs.
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
		return nil
	}
	logger, logFile = l, f
	slog.SetDefault(logger)
	return nil
}

// openLogger writes logs to <dataDir>/questline.log so the terminal UI is
// never overwritten.
func openLogger(dataDir, level string) (*slog.Logger, *os.File, error) {
	if dataDir == "" {
		return nil, nil, fmt.Errorf("no data directory")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "questline.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h), f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newAPIClient() *api.Client {
	return api.NewClient(api.Options{
		BaseURL: cfg.ServerURL,
		Cookie:  sessionCookie(),
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
}

// isInteractive returns true if running in a terminal
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func termWidth(fd int) (int, bool) {
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 0, false
	}
	return w, true
}
