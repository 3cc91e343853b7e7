package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/engine"
)

func newExecCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "run one statement in batch mode and exit with a status code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			log.SetLevel(logrus.WarnLevel)
			eng, _, err := opts.buildEngine(log)
			if err != nil {
				return err
			}

			res := eng.Query(cmd.Context(), args[0])
			out := map[string]any{
				"success": res.Success,
				"message": res.Message,
				"data":    res.Data,
			}
			enc := json.NewEncoder(os.Stdout)
			if err := enc.Encode(out); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			os.Exit(engine.ExitCode(res))
			return nil
		},
	}
	return cmd
}
