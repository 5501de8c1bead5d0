package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/review"
	"github.com/spigell/interview-assistant/internal/roster"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect the candidate roster",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		reviewList(cmd)
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <candidate-id>",
	Short: "Print a candidate's transcript and summary",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reviewShow(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd, reviewShowCmd)

	reviewListCmd.Flags().StringP("search", "s", "", "only candidates whose name contains this text")
	reviewListCmd.Flags().String("sort", string(roster.SortScore), "order by score, created or name")
	reviewListCmd.Flags().String("status", "", "only candidates in this status")
	reviewListCmd.Flags().Int("min-score", 0, "only candidates with at least this score")
}

func reviewList(cmd *cobra.Command) {
	ctx := cmd.Context()
	rt := newRuntime(ctx)
	defer rt.close()

	flags := cmd.Flags()
	search, _ := flags.GetString("search")
	rawSort, _ := flags.GetString("sort")
	status, _ := flags.GetString("status")
	minScore, _ := flags.GetInt("min-score")

	sortBy, err := roster.ParseSort(rawSort)
	if err != nil {
		rt.logger.Fatal("parsing flags", zap.Error(err))
	}

	cs, err := review.List(ctx, rt.store, review.Query{
		Search:   search,
		Status:   roster.Status(status),
		MinScore: minScore,
		Sort:     sortBy,
	}, rt.logger)
	if err != nil {
		rt.logger.Fatal("listing candidates", zap.Error(err))
	}

	if err := review.RenderList(os.Stdout, review.Items(cs, rt.store.ActiveID())); err != nil {
		rt.logger.Fatal("printing candidates", zap.Error(err))
	}
}

func reviewShow(ctx context.Context, id string) {
	rt := newRuntime(ctx)
	defer rt.close()

	c, err := rt.store.Get(id)
	if err != nil {
		rt.logger.Fatal("finding the candidate", zap.Error(err), zap.String("candidate_id", id))
	}

	if err := review.RenderCandidate(os.Stdout, c); err != nil {
		rt.logger.Fatal("printing the candidate", zap.Error(err))
	}
}
