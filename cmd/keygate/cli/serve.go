package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keygatehq/keygate/internal/server"
)

const banner = `
 _  __ _____ __   __ ____     _    _____ _____
| |/ /| ____|\ \ / // ___|   / \  |_   _| ____|
| ' / |  _|   \ V /| |  _   / _ \   | | |  _|
| . \ | |___   | | | |_| | / ___ \  | | | |___
|_|\_\|_____|  |_|  \____|/_/   \_\ |_| |_____|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Keygate portal server",
		Long:  "Start the HTTP server that activates keys, verifies identity locks, and delivers the script payload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	logger.Info("key store initialized", "backend", cfg.Store.Backend)

	if cfg.Auth.AdminSecret == "" {
		logger.Warn("no admin secret configured - admin endpoints are disabled")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("no JWT secret configured, using insecure development default")
		cfg.Auth.JWTSecret = "keygate-dev-secret-change-me"
	}
	if _, err := os.Stat(cfg.Payload.Path); err != nil {
		logger.Warn("payload script not found, delivery will fail until it exists", "path", cfg.Payload.Path)
	}

	srv := server.New(cfg, st, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Payload:  http://%s:%d/payload?key=...\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
