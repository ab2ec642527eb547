// Command houseprice trains the house price model, serves it over HTTP and
// runs one-off predictions against a saved artifact.
package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/houseprice/artifact"
	"github.com/YuminosukeSato/houseprice/config"
	"github.com/YuminosukeSato/houseprice/dataset"
	"github.com/YuminosukeSato/houseprice/housing"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/serving"
	"github.com/YuminosukeSato/houseprice/training"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.GetLoggerWithName("cmd").Error("command failed", err, log.ErrorCodeKey, errorCode(err))
		os.Exit(1)
	}
}

// errorCode classifies err for the error.code log attribute. Empty data is
// reported ahead of the fit failure that wraps it.
func errorCode(err error) string {
	var (
		corrupt   *errors.CorruptArtifactError
		notFitted *errors.NotFittedError
		fit       *errors.FitFailureError
	)
	switch {
	case errors.As(err, &corrupt):
		return log.ErrorCorruptArtifact
	case errors.Is(err, errors.ErrEmptyData):
		return log.ErrorEmptyData
	case errors.As(err, &notFitted):
		return log.ErrorNotFitted
	case errors.As(err, &fit):
		return log.ErrorFitFailure
	}
	return log.ErrorUnknown
}

func rootCmd() *cobra.Command {
	var configPath string
	cfg := new(config.Config)

	root := &cobra.Command{
		Use:           "houseprice",
		Short:         "train and serve the house price model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			*cfg = *loaded
			return log.SetupLogger(cfg.LogLevel, os.Stderr)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration")

	root.AddCommand(trainCmd(cfg), serveCmd(cfg), predictCmd(cfg))
	return root
}

func trainCmd(cfg *config.Config) *cobra.Command {
	var dataPath, outputPath, plotPath, foldsPath string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "cross-validate, fit and save the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataPath != "" {
				cfg.DataPath = dataPath
			}
			if outputPath != "" {
				cfg.ArtifactPath = outputPath
			}
			if plotPath != "" {
				cfg.Training.PlotPath = plotPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTrain(ctx, cfg, foldsPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "training CSV (overrides data_path)")
	cmd.Flags().StringVar(&outputPath, "output", "", "artifact path (overrides artifact_path)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a fold MSE chart to this file")
	cmd.Flags().StringVar(&foldsPath, "folds-csv", "", "write per-fold scores to this CSV file")
	return cmd
}

func runTrain(ctx context.Context, cfg *config.Config, foldsPath string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	schema := housing.Schema()
	records, prices, err := dataset.Load(cfg.DataPath, schema, cfg.Target)
	if err != nil {
		return err
	}

	trainer := training.NewTrainer(training.Config{
		Schema:        schema,
		ModelParams:   cfg.Training.ModelParams,
		NSplits:       cfg.Training.NSplits,
		TestSize:      cfg.Training.TestSize,
		RandomSeed:    cfg.Training.RandomSeed,
		ParallelFolds: bool(cfg.Training.ParallelFolds),
		ArtifactPath:  cfg.ArtifactPath,
		PlotPath:      cfg.Training.PlotPath,
		FoldsCSVPath:  foldsPath,
	})
	report, err := trainer.Run(ctx, records, prices)
	if err != nil {
		return err
	}
	return report.Print(out)
}

func serveCmd(cfg *config.Config) *cobra.Command {
	var addr, artifactPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				cfg.Serving.Addr = addr
			}
			if artifactPath != "" {
				cfg.ArtifactPath = artifactPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides serving.addr)")
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "artifact path (overrides artifact_path)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := log.GetLoggerWithName("serving")

	a, err := artifact.Load(cfg.ArtifactPath, housing.Schema())
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Serving.Addr,
		Handler:           handlers.CombinedLoggingHandler(os.Stdout, serving.New(a, logger).Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Serving.Addr, log.RunIDKey, a.Meta.RunID.String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Serving.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}

func predictCmd(cfg *config.Config) *cobra.Command {
	var artifactPath string

	cmd := &cobra.Command{
		Use:   "predict HOUSE_JSON",
		Short: "predict the price of one house described by a JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifactPath != "" {
				cfg.ArtifactPath = artifactPath
			}
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to open %s", args[0])
				}
				defer f.Close()
				in = f
			}
			return runPredict(cfg.ArtifactPath, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "artifact path (overrides artifact_path)")
	return cmd
}

func runPredict(artifactPath string, in io.Reader, out io.Writer) error {
	a, err := artifact.Load(artifactPath, housing.Schema())
	if err != nil {
		return err
	}
	house, err := serving.DecodeHouse(in)
	if err != nil {
		return err
	}
	price, err := serving.New(a, nil).Predict(house)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(out).Encode(serving.PredictResponse{HousePrice: price}); err != nil {
		return errors.Wrap(err, "failed to write prediction")
	}
	return nil
}
