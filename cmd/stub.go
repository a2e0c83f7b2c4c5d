package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ai"
	"github.com/spigell/atsctl/internal/ai/gemini"
	"github.com/spigell/atsctl/internal/logger"
	"github.com/spigell/atsctl/internal/secrets"
	"github.com/spigell/atsctl/internal/stubserver"
)

const shutdownTimeout = 5 * time.Second

var stubCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "Run a local backend that speaks the ATS API",
	Long: `Run a local backend that speaks the ATS API. Uploaded files go through
OCR, structuring, embedding and storage in memory. Structuring uses Gemini when
stub.gemini.enabled is set and falls back to a heuristic parser otherwise.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		config, err := getConfig(viper.GetViper())
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}
		if config.Stub == nil {
			logger.Fatal("stub section of the config is empty")
		}

		structurer, err := newStructurer(ctx, config.Stub.Gemini, logger)
		if err != nil {
			logger.Fatal("creating a structurer", zap.Error(err))
		}

		server := stubserver.New(stubserver.Options{
			Logger:         logger,
			Structurer:     structurer,
			DisabledStages: config.Stub.DisabledStages,
		})
		for _, stage := range server.Stages() {
			logger.Info("pipeline stage",
				zap.String("stage", stage.Name),
				zap.Bool("enabled", stage.Enabled),
				zap.String("reason", stage.Reason),
				zap.Any("details", stage.Details),
			)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Listen(config.Stub.Listen)
		}()
		logger.Info("stub server is listening", zap.String("addr", config.Stub.Listen), zap.String("version", version))

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("stub server stopped", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown", zap.Error(err))
			}
		}
	},
}

// newStructurer returns nil when Gemini is off so the server uses its
// heuristic parser.
func newStructurer(ctx context.Context, config *GeminiConfig, logger *zap.Logger) (ai.Structurer, error) {
	if config == nil || !config.Enabled {
		return nil, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Model, config.MaxRetries, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("structuring with gemini", zap.String("model", generator.Model()))
	return gemini.NewStructurer(generator, config.MaxLogLength, logger), nil
}

func init() {
	rootCmd.AddCommand(stubCmd)

	stubCmd.Flags().String("listen", "", "address to listen on (default from stub.listen)")
	stubCmd.Flags().StringSlice("disable-stage", nil, "pipeline stages to skip, e.g. LLM")

	viper.BindPFlag("stub.listen", stubCmd.Flags().Lookup("listen"))
	viper.BindPFlag("stub.disabled-stages", stubCmd.Flags().Lookup("disable-stage"))
}
