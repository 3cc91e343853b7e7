package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/server"
)

func newServeCmd(opts *options) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the TCP listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			eng, fc, err := opts.buildEngine(log)
			if err != nil {
				return err
			}
			if address == "" {
				address = fc.Address
			}
			if address == "" {
				address = fmt.Sprintf(":%d", server.DefaultPort)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv := server.New(server.Config{Address: address, Logger: log}, eng)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address (default :5433)")
	return cmd
}
