package cli

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/keygatehq/keygate/internal/config"
	"github.com/keygatehq/keygate/internal/store"
)

// loadConfig builds the effective configuration from keygate.yaml and
// KEYGATE_* environment variables over the defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// openStore opens the key store selected by the configuration. The backend
// is chosen once here and injected everywhere else; no business logic
// branches on the backend kind.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		return store.NewFileStore(cfg.Store.Path)
	case "sqlite", "postgres", "mysql":
		return store.NewSQLStore(cfg.Store.Backend, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
