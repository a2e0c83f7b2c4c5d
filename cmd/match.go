package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank CVs against a job description",
	Long: `Rank CVs against a job description. The description comes from --text,
--file, a job offer (--offer ID) or an interactive offer picker (--pick).`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		req, err := matchRequest(ctx, cmd, s.client)
		if err != nil {
			s.logger.Fatal("preparing the search", zap.Error(err))
		}

		session := ats.NewSearchSession(s.client)
		outcome, err := session.Run(ctx, req)
		var validation *ats.ValidationError
		if errors.As(err, &validation) && validation.Kind == ats.EmptyQuery {
			outcome, err = nil, nil
		}
		if err != nil {
			s.logger.Fatal("search failed", zap.String("reason", ats.Message(err, "Search failed")))
		}

		if err := s.out.matches(outcome); err != nil {
			s.logger.Fatal("printing results", zap.Error(err))
		}
	},
}

func matchRequest(ctx context.Context, cmd *cobra.Command, client *ats.Client) (ats.SearchRequest, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")
	offerID, _ := cmd.Flags().GetString("offer")
	pick, _ := cmd.Flags().GetBool("pick")
	skills, _ := cmd.Flags().GetStringSlice("skills")
	topN, _ := cmd.Flags().GetInt("top-n")

	req := ats.SearchRequest{JobDescription: text, TopN: topN, RequiredSkills: skills}

	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return req, fmt.Errorf("reading job description: %w", err)
		}
		req.JobDescription = string(data)
	case offerID != "" || pick:
		offers, err := client.JobOffers(ctx)
		if err != nil {
			return req, fmt.Errorf("getting job offers: %s", ats.Message(err, "Could not load job offers"))
		}

		var offer *ats.JobOffer
		if pick {
			offer, err = pickOffer(offers)
			if err != nil {
				return req, err
			}
		} else if offer = ats.FindJobOffer(offers, offerID); offer == nil {
			return req, fmt.Errorf("there is no job offer with id %s", offerID)
		}

		req.JobDescription = offer.Query()
		if len(req.RequiredSkills) == 0 {
			req.RequiredSkills = offer.RequiredSkills
		}
	}

	return req, nil
}

func pickOffer(offers []ats.JobOffer) (*ats.JobOffer, error) {
	if len(offers) == 0 {
		return nil, fmt.Errorf("no job offers available")
	}

	items := make([]string, 0, len(offers))
	for _, o := range offers {
		items = append(items, fmt.Sprintf("%s %s / %s", o.ID, o.Title, orDash(o.Location)))
	}

	offerPrompt := promptui.Select{
		Label: "Choose a job offer and press ENTER",
		Items: items,
		Size:  10,
	}

	i, _, err := offerPrompt.Run()
	if err != nil {
		return nil, err
	}
	return &offers[i], nil
}

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "List job offers that can pre-fill a search",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		offers, err := s.client.JobOffers(ctx)
		if err != nil {
			s.logger.Fatal("getting job offers", zap.String("reason", ats.Message(err, "Could not load job offers")))
		}

		if err := s.out.offers(offers); err != nil {
			s.logger.Fatal("printing results", zap.Error(err))
		}
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score ID...",
	Short: "Score candidates on skills, experience, education and quality",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		jobID, _ := cmd.Flags().GetString("job-id")
		raw, _ := cmd.Flags().GetStringToString("weight")

		criteria, err := parseWeights(raw)
		if err != nil {
			s.logger.Fatal("parsing weights", zap.Error(err))
		}

		scores, err := s.client.ScoreCandidates(ctx, ats.ScoreRequest{CVIDs: args, JobID: jobID, Criteria: criteria})
		if err != nil {
			s.logger.Fatal("scoring candidates", zap.String("reason", ats.Message(err, "Scoring failed")))
		}

		if err := s.out.scores(scores); err != nil {
			s.logger.Fatal("printing results", zap.Error(err))
		}
	},
}

var weightKeys = []string{"skills", "experience", "education", "quality"}

func parseWeights(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	weights := make(map[string]float64, len(raw))
	for key, value := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		known := false
		for _, k := range weightKeys {
			known = known || k == key
		}
		if !known {
			return nil, fmt.Errorf("unknown weight %q, expected one of %s", key, strings.Join(weightKeys, ", "))
		}

		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("weight %s must be a non-negative number, got %q", key, value)
		}
		weights[key] = w
	}
	return weights, nil
}

func init() {
	rootCmd.AddCommand(matchCmd, offersCmd, scoreCmd)

	matchCmd.Flags().StringP("text", "t", "", "job description text")
	matchCmd.Flags().StringP("file", "f", "", "read the job description from a file")
	matchCmd.Flags().String("offer", "", "use the job offer with this id")
	matchCmd.Flags().Bool("pick", false, "choose a job offer interactively")
	matchCmd.Flags().StringSlice("skills", nil, "required skills, comma separated")
	matchCmd.Flags().IntP("top-n", "n", ats.DefaultTopN, "how many candidates to return (1-100)")
	matchCmd.MarkFlagsMutuallyExclusive("text", "file", "offer", "pick")

	scoreCmd.Flags().String("job-id", "", "job offer the candidates are scored for")
	scoreCmd.Flags().StringToString("weight", nil, "criteria weights, e.g. skills=0.5,quality=0.2")
}
