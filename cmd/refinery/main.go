package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"refinery/internal/api"
	"refinery/internal/config"
	"refinery/internal/logging"
)

var (
	// Global flags
	cfgPath string
	apiURL  string
	userID  string
	verbose bool
	timeout time.Duration

	appCfg *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "Prompt Refinery - turn lazy prompts into production-ready ones",
	Long: `Prompt Refinery rewrites short, vague requests into structured prompts
(persona, objective, constraints, format) and keeps every refinement as a
conversation you can continue later.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		appCfg = c

		if err := logging.Initialize(c.Logging); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		// The interactive chat owns the terminal; it only logs to files.
		if cmd == cmd.Root() {
			logger = logging.Get(logging.CategoryUI)
			return nil
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runInteractiveChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.refinery/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (or set REFINERY_API_URL)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id sent as X-User-ID (or set REFINERY_USER_ID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Backend request timeout (default: client.timeout)")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env, the config file and the flag overrides. A generated
// user id is persisted so conversations survive restarts.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if apiURL != "" {
		c.Client.BaseURL = apiURL
	}
	if userID != "" {
		c.Client.UserID = userID
	}
	if timeout > 0 {
		c.Client.Timeout = timeout.String()
	}

	if c.EnsureUserID() {
		if err := config.PersistUserID(path, c.Client.UserID); err != nil {
			return nil, fmt.Errorf("failed to persist user id: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// newClient builds the backend client from the loaded config.
func newClient() (*api.Client, error) {
	return api.NewClient(api.Config{
		BaseURL: appCfg.Client.BaseURL,
		Timeout: appCfg.GetClientTimeout(),
		Logger:  logging.Get(logging.CategoryAPI),
	})
}
