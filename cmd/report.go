package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"
)

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Print the report of a finished interview",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printReport(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func printReport(cmd *cobra.Command, id string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	sessions, closeStore, err := newStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening the session store", zap.Error(err))
	}
	defer closeStore()

	session, err := sessions.Get(ctx, id)
	if err != nil {
		logger.Fatal("loading the session", zap.String("session_id", id), zap.Error(err))
	}
	if !session.Finished() {
		logger.Fatal("loading the report", zap.String("session_id", id), zap.Error(interview.ErrReportNotReady),
			zap.String("hint", "finish the interview first"))
	}

	fmt.Fprintln(cmd.OutOrStdout(), session.Report)
}
