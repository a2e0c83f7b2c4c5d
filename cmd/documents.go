package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload résumé files (PDF, JPEG, PNG or DOCX, up to 10 MB)",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		consent, _ := cmd.Flags().GetBool("consent")
		source, _ := cmd.Flags().GetString("source")

		failed := 0
		results := make([]*ats.IngestResult, 0, len(args))
		for _, path := range args {
			result, err := upload(ctx, s.client, path, source, consent)
			if err != nil {
				failed++
				s.logger.Error("upload failed", zap.String("file", path), zap.String("reason", ats.Message(err, "Upload failed")))
				continue
			}
			results = append(results, result)
		}

		if ok, err := s.out.value(results); ok {
			if err != nil {
				s.logger.Fatal("printing results", zap.Error(err))
			}
		} else {
			for _, r := range results {
				s.out.line("%s\t%s\t%s", r.CVID, orDash(r.Status), orDash(r.Message))
			}
		}

		if failed > 0 {
			s.logger.Fatal("some files were not uploaded", zap.Int("failed", failed), zap.Int("uploaded", len(results)))
		}
	},
}

func upload(ctx context.Context, client *ats.Client, path, source string, consent bool) (*ats.IngestResult, error) {
	u, closer, err := ats.OpenUpload(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	u.Source = source
	return client.Submit(ctx, u, consent)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded CVs, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")
		query, _ := cmd.Flags().GetString("query")

		var (
			result *ats.DocumentPage
			err    error
		)
		if all {
			result, err = s.client.ListAll(ctx, limit)
		} else {
			result, err = s.client.ListWith(ctx, ats.ListQuery{Page: page, Limit: limit, Q: query})
		}
		if err != nil {
			s.logger.Fatal("listing CVs", zap.String("reason", ats.Message(err, "Could not load CVs")))
		}

		if err := s.out.views(ats.NormalizeAll(result.Results), result.Total); err != nil {
			s.logger.Fatal("printing results", zap.Error(err))
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one CV with its structured data",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		doc, err := s.client.Get(ctx, args[0])
		if err != nil {
			s.logger.Fatal("getting CV", zap.String("id", args[0]), zap.String("reason", ats.Message(err, "Could not load CV")))
		}

		if err := s.out.view(ats.Normalize(doc)); err != nil {
			s.logger.Fatal("printing result", zap.Error(err))
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete CVs",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s := newSession(ctx, cmd)

		for _, id := range args {
			result, err := s.client.Delete(ctx, id)
			if err != nil {
				s.logger.Fatal("deleting CV", zap.String("id", id), zap.String("reason", ats.Message(err, "Could not delete CV")))
			}
			s.out.line("%s\t%s", result.CVID, result.Status)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd, listCmd, showCmd, deleteCmd)

	uploadCmd.Flags().Bool("consent", false, "the candidate agreed to processing of personal data")
	uploadCmd.Flags().String("source", "upload", "where the files come from")

	listCmd.Flags().Int("page", 1, "page number, starting at 1")
	listCmd.Flags().Int("limit", 20, "CVs per page (1-100)")
	listCmd.Flags().Bool("all", false, "walk every page, limit CVs per request")
	listCmd.Flags().StringP("query", "q", "", "free-text query; lists the closest CVs first")
	listCmd.MarkFlagsMutuallyExclusive("all", "query")
}
