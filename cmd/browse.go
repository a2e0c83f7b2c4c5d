package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/cache"
)

const (
	PromptList     = "List CVs"
	PromptByOffer  = "Search by job offer"
	PromptByText   = "Search by description"
	PromptLoadDemo = "Load demo data"
	PromptExit     = "Exit"

	browseLimit = 20
)

var errExit = errors.New("exit requested")

var browsePrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptList, PromptByOffer, PromptByText, PromptLoadDemo, PromptExit},
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactive candidate browser",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		// Repeated listings in one session are served from memory.
		if s.client.Cache == nil {
			s.client.Cache = cache.NewMemory()
		}

		search := ats.NewSearchSession(s.client)
		for {
			err := browseStep(ctx, s, search)
			if errors.Is(err, errExit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			if err != nil {
				s.logger.Error("browse", zap.String("reason", ats.Message(err, "Something went wrong")))
			}
		}
	},
}

func browseStep(ctx context.Context, s *session, search *ats.SearchSession) error {
	_, choice, err := browsePrompt.Run()
	if err != nil {
		return err
	}

	switch choice {
	case PromptList:
		page, err := s.client.List(ctx, 1, browseLimit)
		if err != nil {
			return err
		}
		return s.out.views(ats.NormalizeAll(page.Results), page.Total)

	case PromptByOffer:
		offers, err := s.client.JobOffers(ctx)
		if err != nil {
			return err
		}
		offer, err := pickOffer(offers)
		if err != nil {
			return err
		}
		outcome, err := search.Run(ctx, ats.SearchRequest{
			JobDescription: offer.Query(),
			TopN:           ats.DefaultTopN,
			RequiredSkills: offer.RequiredSkills,
		})
		if err != nil {
			return err
		}
		return s.out.matches(outcome)

	case PromptByText:
		textPrompt := promptui.Prompt{Label: "Job description"}
		text, err := textPrompt.Run()
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return s.out.matches(nil)
		}
		outcome, err := search.Run(ctx, ats.SearchRequest{JobDescription: text, TopN: ats.DefaultTopN})
		if err != nil {
			return err
		}
		return s.out.matches(outcome)

	case PromptLoadDemo:
		report, err := s.client.LoadSamples(ctx, true)
		if err != nil {
			return err
		}
		if failures := report.Failures(); failures != nil {
			s.logger.Warn("some samples failed", zap.Error(failures))
		}
		return s.out.bootstrap(report)

	case PromptExit:
		return errExit
	}

	return nil
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
