package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interview HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default 8080)")
	serveCmd.Flags().String("base-url", "", "public base url used in report links")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.base-url", serveCmd.Flags().Lookup("base-url"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interviewer api", zap.String("version", version))

	svc, closeStore, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the interview service", zap.Error(err))
	}
	defer closeStore()

	if err := server.New(svc, config.Server, logger).Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
