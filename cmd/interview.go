package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/document"
	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/session"
)

var interviewCmd = &cobra.Command{
	Use:   "interview <resume-file>",
	Short: "Start an interview from a resume (pdf, docx or plain text)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		interview(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)
}

func interview(ctx context.Context, path string) {
	rt := newRuntime(ctx)
	defer rt.close()

	engine := rt.newEngine(ctx)
	defer engine.Close()

	logger := rt.logger
	logger.Info("starting the interview-assistant", zap.String("version", version))

	c, err := intakeFile(ctx, engine, path)
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err), zap.String("file", path))
	}

	logger.Info("candidate created",
		zap.String("candidate_id", c.ID),
		zap.String("candidate_name", c.Identity.DisplayName()),
		zap.String("status", string(c.Status)),
	)

	if err := proceed(ctx, rt, engine, c); err != nil && !errors.Is(err, errPaused) {
		logger.Fatal("interview failed", zap.Error(err), zap.String("candidate_id", c.ID))
	}
}

// intakeFile hands plain text straight to the extractor and everything else
// to the document reader.
func intakeFile(ctx context.Context, engine *session.Engine, path string) (*roster.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mimeType := document.DetectMIME(data)
	if strings.HasPrefix(mimeType, "text/") {
		return engine.Intake(ctx, string(data))
	}
	return engine.IntakeDocument(ctx, data, mimeType)
}

// proceed collects missing fields when needed and then runs the questions.
func proceed(ctx context.Context, rt *runtime, engine *session.Engine, c *roster.Candidate) error {
	if c.Status == roster.StatusAwaitingMissingFields {
		fmt.Fprintf(os.Stdout, "Some details could not be found in the resume: %s\n", strings.Join(c.Identity.MissingFields(), ", "))

		values, err := askMissingFields(c)
		if err != nil {
			return fmt.Errorf("collecting missing fields: %w", err)
		}

		c, err = engine.ResolveMissingFields(ctx, c.ID, values)
		if err != nil {
			return err
		}
	}

	if c.Status != roster.StatusInProgress {
		return fmt.Errorf("candidate %s is %s, nothing to ask", c.ID, c.Status)
	}

	return runQuestions(ctx, engine, rt.store, c.ID, rt.logger)
}
