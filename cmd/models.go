package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/samsaffron/vibe-llm/internal/cache"
	"github.com/samsaffron/vibe-llm/internal/llm"
	"github.com/samsaffron/vibe-llm/internal/signal"
)

var modelsRefresh bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured provider offers",
	Long: `List model IDs for the active provider. Results are cached for 30 minutes.

Examples:
  vibe-llm models
  vibe-llm models --provider openrouter --refresh`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsRefresh, "refresh", false, "Ignore the cache")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	cfg, closer, err := setup("")
	if err != nil {
		return err
	}
	defer closer.Close()

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return err
	}
	lister, ok := provider.(llm.ModelLister)
	if !ok {
		return fmt.Errorf("%s does not support listing models", provider.Name())
	}

	store, err := cache.NewModelStore("")
	if err != nil {
		return err
	}
	models, err := store.Get(cfg.Provider, cache.DefaultTTL, modelsRefresh, func() ([]string, error) {
		infos, err := lister.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(infos))
		for _, info := range infos {
			ids = append(ids, info.ID)
		}
		sort.Strings(ids)
		return ids, nil
	})
	if err != nil {
		if models == nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (showing cached list from %s)\n", err, models.FetchedAt.Format("2006-01-02 15:04"))
	}

	out := cmd.OutOrStdout()
	for _, id := range models.IDs {
		fmt.Fprintln(out, id)
	}
	return nil
}
