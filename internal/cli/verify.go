package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vitalvas/routeprobe/internal/manifest"
	"github.com/vitalvas/routeprobe/pipeline"
)

func newVerifyCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the cases of a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.verify(cmd, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file")
	_ = cmd.MarkFlagRequired("file")

	cmd.Flags().Bool("fail-fast", false, "stop at the first failing case")
	cmd.Flags().Duration("timeout", 0, "limit for the whole run (0 means none)")
	a.bind("verify.fail_fast", cmd.Flags().Lookup("fail-fast"))
	a.bind("verify.timeout", cmd.Flags().Lookup("timeout"))

	return cmd
}

func (a *app) verify(cmd *cobra.Command, file string) error {
	m, err := manifest.Load(file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if a.cfg.Verify.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Verify.Timeout)
		defer cancel()
	}

	table, err := m.Build(ctx, pipeline.WithLogger(a.log))
	if err != nil {
		return err
	}

	results := m.Run(ctx, table, a.cfg.Verify.FailFast)

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range results {
		a.log.WithFields(logrus.Fields{
			"case":    res.Case,
			"passed":  res.Passed,
			"handler": res.Call.Handler().String(),
		}).Debug("case verified")

		if res.Passed {
			fmt.Fprintf(out, "PASS %s\n", res.Case)
			continue
		}
		failed++
		fmt.Fprintf(out, "FAIL %s: %s\n", res.Case, res.Message)
	}

	skipped := len(m.Cases) - len(results)
	fmt.Fprintf(out, "\n%d passed, %d failed, %d skipped\n", len(results)-failed, failed, skipped)

	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(m.Cases))
	}
	return nil
}
