package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Load and inspect the sample data set",
}

var demoLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Ingest the sample CVs and print what each pipeline stage did",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		usePDFs, _ := cmd.Flags().GetBool("use-pdfs")

		report, err := s.client.LoadSamples(ctx, usePDFs)
		if errors.Is(err, ats.ErrBootstrapInFlight) {
			s.logger.Fatal("demo data is already loading")
		}
		if err != nil {
			s.logger.Fatal("loading demo data", zap.String("reason", ats.Message(err, "Could not load demo data")))
		}

		// Partial failure is still a loaded demo.
		if failures := report.Failures(); failures != nil {
			s.logger.Warn("some samples failed", zap.Error(failures))
		}

		if err := s.out.bootstrap(report); err != nil {
			s.logger.Fatal("printing results", zap.Error(err))
		}
	},
}

var demoStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many sample CVs are loaded",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		status, err := s.client.DemoStatus(ctx)
		if err != nil {
			s.logger.Fatal("getting demo status", zap.String("reason", ats.Message(err, "Could not get demo status")))
		}

		if ok, err := s.out.value(status); ok {
			if err != nil {
				s.logger.Fatal("printing results", zap.Error(err))
			}
			return
		}
		s.out.line("%d demo CVs loaded, %d CVs in total", status.DemoCount, status.Total)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.AddCommand(demoLoadCmd, demoStatusCmd)

	demoLoadCmd.Flags().Bool("use-pdfs", true, "send the samples as generated PDFs so OCR runs")
}
