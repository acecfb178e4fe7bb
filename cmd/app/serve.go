package main

import (
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search service",
		Long:  `Load the latest index build and serve HTTP (and gRPC, when GRPC_PORT is set) until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := newApp(cmd)
			if err != nil {
				return err
			}

			return application.Serve(cmd.Context())
		},
	}
}
