package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"venuerag/internal/config"
	"venuerag/internal/domain"
	"venuerag/internal/logging"
	"venuerag/internal/service"
	"venuerag/internal/validation"
)

// app carries state shared by the subcommands once the root command has
// loaded the configuration.
type app struct {
	cfgPath string
	cfg     *config.AppConfig
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "venuerag",
		Short: "Filter and rank venue records from a knowledge base",
		Long: `venuerag loads destination venue records, indexes their descriptions
and answers structured plus free-text queries over them.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "",
		"path to YAML config file (defaults to ./config.yaml, then ~/.config/venuerag/config.yaml)")

	root.AddCommand(
		newChunkCmd(a),
		newRetrieveCmd(a),
		newServeCmd(a),
		newTUICmd(a),
	)
	return root
}

func (a *app) setup(*cobra.Command, []string) error {
	var err error
	if a.cfgPath == "" {
		a.cfg, _, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(a.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.logger, err = logging.New(a.cfg.Log.Level, a.cfg.Log.Format)
	if err != nil {
		return err
	}
	return nil
}

func (a *app) service() (*service.Service, error) {
	return service.FromConfig(a.cfg, a.logger)
}

// filterFlags binds the structured filter shared by retrieve and tui.
type filterFlags struct {
	destination string
	budget      string
	interests   []string
	topK        int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.destination, "destination", "d", "", "destination to match (case-insensitive substring)")
	cmd.Flags().StringVarP(&f.budget, "budget", "b", "", "budget tier to match (case-insensitive substring)")
	cmd.Flags().StringSliceVarP(&f.interests, "interest", "i", nil, "interest matched against tags and suitable_for; repeatable")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "maximum number of ranked results (0 uses the configured default)")
}

func (f *filterFlags) filter() (domain.Filter, error) {
	filter := domain.Filter{
		Destination: f.destination,
		Budget:      f.budget,
		Interests:   f.interests,
	}
	if err := validation.Struct(filter); err != nil {
		return domain.Filter{}, err
	}
	if f.topK < 0 {
		return domain.Filter{}, fmt.Errorf("%w: top-k must not be negative", domain.ErrConfiguration)
	}
	return filter, nil
}
