package main

import (
	"os"

	"github.com/DRSN-tech/visual-search/internal/app"
	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "visual-search",
		Short:         "Search catalog products by photo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		NewServeCmd(),
		NewBuildIndexCmd(),
		NewVerifyIndexCmd(),
	)

	return cmd
}

// bootstrapLogger нужен до загрузки конфигурации, поэтому читает окружение сам.
func bootstrapLogger() (logger.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "visual-search"
	}

	return logger.NewZapLogger(level, service)
}

func newApp(cmd *cobra.Command) (*app.App, logger.Logger, error) {
	log, err := bootstrapLogger()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		return nil, log, err
	}

	application, err := app.NewApp(cmd.Context(), cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		return nil, log, err
	}

	return application, log, nil
}
