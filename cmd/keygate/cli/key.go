package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage access keys",
		Long:  "Issue, list, and delete access keys directly against the configured store.",
	}

	cmd.AddCommand(newKeyIssueCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyDeleteCmd())
	cmd.AddCommand(newKeyStatsCmd())

	return cmd
}

// ---------- key issue ----------

func newKeyIssueCmd() *cobra.Command {
	var (
		tier  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue new access keys",
		Long:  "Generate one or more keys for a tier. Keys are stored unactivated; the expiry clock starts on first use.",
		Example: `  keygate key issue --tier 7day
  keygate key issue --tier lifetime --count 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyIssue(tier, count)
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Tier to issue under (required)")
	cmd.Flags().IntVar(&count, "count", 1, "Number of keys to issue")
	cmd.MarkFlagRequired("tier")

	return cmd
}

func runKeyIssue(tierID string, count int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	issuer := service.NewIssuer(st, cfg.Issuer.Prefix)

	tokens, err := issuer.Issue(context.Background(), tierID, count)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTier):
			return fmt.Errorf("unknown tier %q (run 'keygate key issue --help' for the tier list)", tierID)
		case errors.Is(err, service.ErrInvalidCount):
			return fmt.Errorf("count must be between 1 and %d", service.MaxBatchSize)
		default:
			return fmt.Errorf("issue keys: %w", err)
		}
	}

	tier, _ := model.TierByID(tierID)
	fmt.Printf("Issued %d %s key(s):\n\n", len(tokens), tier.Label)
	for _, t := range tokens {
		fmt.Printf("  %s\n", t)
	}
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all access keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	admin := service.NewAdminService(st)

	rows, err := admin.ListWithStatus(context.Background(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No keys in store. Use 'keygate key issue' to create some.")
		return nil
	}

	fmt.Printf("%-24s %-12s %-10s %-22s %s\n", "TOKEN", "TIER", "STATUS", "EXPIRES", "LOCKED TO")
	fmt.Printf("%-24s %-12s %-10s %-22s %s\n", "-----", "----", "------", "-------", "---------")
	for _, r := range rows {
		expires := "-"
		if r.ExpiresAt != nil {
			expires = r.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")
		}
		locked := "-"
		if r.LockedIdentity != nil {
			locked = *r.LockedIdentity
		}
		fmt.Printf("%-24s %-12s %-10s %-22s %s\n", r.Token, r.TierLabel, r.Status, expires, locked)
	}

	return nil
}

// ---------- key delete ----------

func newKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <token>",
		Aliases: []string{"rm"},
		Short:   "Delete an access key",
		Long:    "Remove a key from the store. Any client holding the key loses access immediately.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyDelete(args[0])
		},
	}

	return cmd
}

func runKeyDelete(token string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Delete(context.Background(), token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("key %q not found", token)
		}
		return fmt.Errorf("delete key: %w", err)
	}

	fmt.Printf("Deleted key %q\n", token)
	return nil
}

// ---------- key stats ----------

func newKeyStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate key counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyStats(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyStats(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	admin := service.NewAdminService(st)

	stats, err := admin.Stats(context.Background(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Total:   %d\n", stats.Total)
	fmt.Printf("Active:  %d\n", stats.Active)
	fmt.Printf("Unused:  %d\n", stats.Unused)
	fmt.Printf("Expired: %d\n", stats.Expired)
	return nil
}
