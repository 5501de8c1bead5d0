package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/session"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [candidate-id]",
	Short: "Continue the active (or given) interview",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		resume(cmd.Context(), id)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func resume(ctx context.Context, id string) {
	rt := newRuntime(ctx)
	defer rt.close()

	engine := rt.newEngine(ctx)
	defer engine.Close()

	logger := rt.logger

	if id == "" {
		id = rt.store.ActiveID()
	}
	if id == "" {
		logger.Info("exiting", zap.String("reason", "there is no active candidate"))
		return
	}

	c, err := rt.store.Get(id)
	if err != nil {
		logger.Fatal("finding the candidate", zap.Error(err), zap.String("candidate_id", id))
	}

	switch c.Status {
	case roster.StatusAwaitingMissingFields:
		if err := rt.store.SetActive(ctx, id); err != nil {
			logger.Fatal("activating the candidate", zap.Error(err))
		}
		err = proceed(ctx, rt, engine, c)
	case roster.StatusInProgress:
		err = offerResume(ctx, rt, engine, id)
	default:
		logger.Info("exiting",
			zap.String("reason", "interview cannot be resumed"),
			zap.String("candidate_id", id),
			zap.String("status", string(c.Status)),
		)
		return
	}

	if err != nil && !errors.Is(err, errPaused) && !errors.Is(err, errDeclined) {
		logger.Fatal("resuming the interview", zap.Error(err), zap.String("candidate_id", id))
	}
}

var errDeclined = errors.New("resume declined")

func offerResume(ctx context.Context, rt *runtime, engine *session.Engine, id string) error {
	offer, err := engine.Resume(ctx, id)
	if err != nil {
		return err
	}

	c := offer.Candidate
	fmt.Fprintf(os.Stdout, "%s answered %d of %d questions (score %d).\nNext: %s\n",
		c.Identity.DisplayName(), offer.Index, len(c.Questions), c.TotalScore(), offer.Question.Label(offer.Index))

	ok, err := confirm("Resume the interview? The question restarts with its full time")
	if err != nil {
		return err
	}
	if !ok {
		if err := engine.DeclineResume(ctx, id); err != nil {
			return err
		}
		rt.logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errDeclined
	}

	if _, err := engine.ConfirmResume(ctx, id); err != nil {
		return err
	}
	return runQuestions(ctx, engine, rt.store, id, rt.logger)
}
