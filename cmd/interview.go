package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/resume"
)

const (
	PromptFinishEarly = "Finish now and score the answers so far"
	PromptQuit        = "Quit without a report"
	PromptContinue    = "Continue the interview"

	finishCommand = "/finish"
)

var errQuit = errors.New("quit requested")

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run an interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().StringP("job-title", "t", "", "job title of the posting")
	interviewCmd.Flags().String("job-description", "", "job description text")
	interviewCmd.Flags().String("job-description-file", "", "file with the job description")
	interviewCmd.Flags().StringP("resume", "r", "", "resume file (.pdf or .txt)")
	interviewCmd.Flags().BoolP("simulate", "s", false, "let the model answer as the candidate")

	interviewCmd.MarkFlagRequired("job-title")
	interviewCmd.MarkFlagRequired("resume")
}

func runInterview(cmd *cobra.Command) {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	posting, err := readPostingFlags(cmd)
	if err != nil {
		logger.Fatal("reading the posting", zap.Error(err))
	}

	svc, closeStore, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the interview service", zap.Error(err))
	}
	defer closeStore()

	session, step, err := svc.CreateSession(ctx, posting)
	if err != nil {
		logger.Fatal("starting the interview", zap.Error(err))
	}
	fmt.Fprintf(out, "%s\nSession: %s\n", step.Message, session.ID)

	simulate, _ := cmd.Flags().GetBool("simulate")
	if err := askAll(ctx, out, svc, step, simulate); err != nil {
		if errors.Is(err, errQuit) {
			logger.Info("exiting", zap.String("reason", "quit requested"), zap.String("session_id", session.ID))
			return
		}
		logger.Fatal("running the interview", zap.Error(err))
	}

	res, err := svc.Finish(ctx, session.ID)
	if err != nil {
		logger.Fatal("finishing the interview", zap.Error(err))
	}

	fmt.Fprintln(out, res.ReportText)
	logger.Info("interview finished",
		zap.String("session_id", res.SessionID),
		zap.Int("evaluations", len(res.Evaluations)),
		zap.Bool("partial", res.Partial),
	)
}

// askAll walks the interview until it is complete or the candidate stops early.
func askAll(ctx context.Context, out io.Writer, svc *interview.Service, step interview.Step, simulate bool) error {
	for !step.InterviewComplete {
		fmt.Fprintf(out, "\n[%d/%d] %s\n%s\n", step.QuestionNumber, step.TotalQuestions, step.Message, step.Question.Text)

		if simulate {
			answer, next, err := svc.SimulateAnswer(ctx, step.SessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "> %s\n", answer)
			step = next
			continue
		}

		answer, err := askAnswer(step.Question)
		if errors.Is(err, promptui.ErrInterrupt) || answer == finishCommand {
			stop, err := askStop()
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}

		next, err := svc.SubmitAnswer(ctx, step.SessionID, step.Question.ID, answer)
		if err != nil {
			return err
		}
		step = next
	}

	fmt.Fprintf(out, "\n%s\n", step.Message)
	return nil
}

func askAnswer(q interview.Question) (string, error) {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Answer %s (%s to stop)", q.ID, finishCommand),
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("answer must not be empty")
			}
			return nil
		},
	}
	answer, err := prompt.Run()
	return strings.TrimSpace(answer), err
}

// askStop reports whether the interview should be finished early.
func askStop() (bool, error) {
	prompt := promptui.Select{
		Label: "Stop the interview?",
		Items: []string{PromptContinue, PromptFinishEarly, PromptQuit},
	}
	_, action, err := prompt.Run()
	if err != nil {
		return false, err
	}

	switch action {
	case PromptFinishEarly:
		return true, nil
	case PromptQuit:
		return false, errQuit
	default:
		return false, nil
	}
}

func readPostingFlags(cmd *cobra.Command) (ai.Posting, error) {
	title, _ := cmd.Flags().GetString("job-title")
	description, _ := cmd.Flags().GetString("job-description")
	descriptionFile, _ := cmd.Flags().GetString("job-description-file")
	resumeFile, _ := cmd.Flags().GetString("resume")

	if descriptionFile != "" {
		data, err := os.ReadFile(descriptionFile)
		if err != nil {
			return ai.Posting{}, fmt.Errorf("read job description: %w", err)
		}
		description = string(data)
	}
	if strings.TrimSpace(description) == "" {
		return ai.Posting{}, errors.New("job description is required (--job-description or --job-description-file)")
	}

	data, err := os.ReadFile(resumeFile)
	if err != nil {
		return ai.Posting{}, fmt.Errorf("read resume: %w", err)
	}
	text, err := resume.Extract(resumeFile, data)
	if err != nil {
		return ai.Posting{}, fmt.Errorf("extract resume %s: %w", resumeFile, err)
	}

	return ai.Posting{
		JobTitle:       strings.TrimSpace(title),
		JobDescription: strings.TrimSpace(description),
		ResumeText:     text,
	}, nil
}
