package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/circuitbreaker"
	"github.com/kjstillabower/ambient-temp-service/internal/client"
	"github.com/kjstillabower/ambient-temp-service/internal/config"
	"github.com/kjstillabower/ambient-temp-service/internal/equipment"
	"github.com/kjstillabower/ambient-temp-service/internal/llm"
	"github.com/kjstillabower/ambient-temp-service/internal/location"
	"github.com/kjstillabower/ambient-temp-service/internal/observability"
	"github.com/kjstillabower/ambient-temp-service/internal/service"
	"github.com/kjstillabower/ambient-temp-service/internal/validation"
	"github.com/kjstillabower/ambient-temp-service/internal/weather"
)

var (
	// Global flags
	verbose     bool
	datasetPath string

	// run flags
	listOnly bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ambienttemp",
	Short: "Report the ambient temperature around industrial equipment",
	Long: `ambienttemp resolves where a piece of equipment is from its metadata,
looks up the current weather there and reports it in one sentence.

Configuration is read from config/{ENV_NAME}.yaml, config/secrets.yaml and the
environment. WEATHER_API_KEY and one generation provider key are required for
run and serve.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := os.Getenv("LOG_LEVEL")
		switch {
		case verbose:
			level = "DEBUG"
		case level == "" && cmd.Name() != "serve":
			level = "WARN"
		}
		var err error
		logger, err = observability.NewLoggerWithLevel(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:     "run [equipment-id]",
	Short:   "Report the ambient temperature for one piece of equipment",
	Example: "  ambienttemp run " + config.DefaultTestEquipmentID + "\n  ambienttemp run --list",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runAmbient,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known equipment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [equipment-id]",
	Short: "Show the stored metadata summary for one piece of equipment",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&datasetPath, "dataset", "", "equipment dataset JSON (default: EQUIPMENT_DATASET or the built-in dataset)")
	runCmd.Flags().BoolVar(&listOnly, "list", false, "list known equipment instead of running")

	rootCmd.AddCommand(runCmd, listCmd, infoCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		if config.IsConfigurationError(err) {
			fmt.Fprintln(os.Stderr, configHelp)
		}
		os.Exit(1)
	}
}

const configHelp = `
This might be due to missing configuration. Please check:
1. WEATHER_API_KEY is set in your environment
2. OPENAI_API_KEY, Azure OpenAI or GEMINI_API_KEY credentials are configured
3. Run 'ambienttemp list' to see available equipment`

var errUsage = errors.New("an equipment ID is required (or use --list)")

func runAmbient(cmd *cobra.Command, args []string) error {
	if listOnly {
		return runList(cmd)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w\nExample: ambienttemp run %s\n\n%s", errUsage, exampleEquipmentID(), cmd.UsageString())
	}
	id, err := validation.ValidateEquipmentID(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Analyzing equipment: %s\n", id)
	}
	writeReport(cmd.OutOrStdout(), p.svc.GetAmbientTemperature(ctx, id))
	return nil
}

// exampleEquipmentID is the identifier shown in usage errors: TEST_EQUIPMENT_ID or
// equipment.test_id when configured.
func exampleEquipmentID() string {
	cfg, err := config.LoadSettings()
	if err != nil || cfg.TestEquipmentID == "" {
		return config.DefaultTestEquipmentID
	}
	return cfg.TestEquipmentID
}

func runList(cmd *cobra.Command) error {
	store, err := loadStore()
	if err != nil {
		return fmt.Errorf("load equipment list: %w", err)
	}
	writeEquipmentList(cmd.OutOrStdout(), store)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	id, err := validation.ValidateEquipmentID(args[0])
	if err != nil {
		return err
	}
	store, err := loadStore()
	if err != nil {
		return err
	}
	md, err := store.Lookup(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, store.Info(id))
	fmt.Fprintf(out, "Location fields: %s\n", md.LocationSummary())
	return nil
}

// loadStore resolves the dataset from --dataset, then EQUIPMENT_DATASET / config, then the
// built-in dataset. Credentials are not required.
func loadStore() (*equipment.Store, error) {
	path := datasetPath
	if path == "" {
		cfg, err := config.LoadSettings()
		if err != nil {
			return nil, err
		}
		path = cfg.EquipmentDataset
	}
	store, err := equipment.Load(path)
	if err != nil {
		return nil, err
	}
	warnRejected(store)
	return store, nil
}

func warnRejected(store *equipment.Store) {
	if rejected := store.Rejected(); len(rejected) > 0 && logger != nil {
		logger.Warn("equipment records skipped: identifier not queryable",
			zap.Strings("equipment_ids", rejected))
	}
}

// pipeline is the wired request path plus the collaborators serve needs directly.
type pipeline struct {
	svc     *service.AmbientService
	store   *equipment.Store
	weather client.WeatherClient
}

// buildPipeline wires store, generation provider, resolver, weather client and fetcher.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	if datasetPath != "" {
		cfg.EquipmentDataset = datasetPath
	}
	store, err := equipment.Load(cfg.EquipmentDataset)
	if err != nil {
		return nil, err
	}
	warnRejected(store)

	completer, err := llm.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("generation provider selected", zap.String("provider", completer.Provider()))
	resolver := location.NewResolver(
		llm.NewLocationGenerator(completer, cfg.LocationAgentTemperature, logger),
		cfg.MinLocationConfidence,
		logger,
	)

	wc, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	var provider client.WeatherClient = wc
	if cfg.CircuitBreaker.Enabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
			Timeout:          cfg.CircuitBreaker.Timeout,
			Component:        "weather_api",
			IsFailure:        client.CountsAsFailure,
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.CircuitBreakerState.WithLabelValues(component).Set(float64(to))
				logger.Warn("circuit breaker state change",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(float64(circuitbreaker.StateClosed))
		provider = client.NewBreakerClient(wc, cb)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreaker.FailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreaker.Timeout))
	}

	fetcher := weather.NewFetcher(provider, nil, logger)
	return &pipeline{
		svc:     service.NewAmbientService(store, resolver, fetcher, logger),
		store:   store,
		weather: provider,
	}, nil
}
