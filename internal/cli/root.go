// Package cli implements the routeprobe command line.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vitalvas/routeprobe/internal/config"
	"github.com/vitalvas/routeprobe/internal/logging"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

type app struct {
	v       *viper.Viper
	cfgFile string

	cfg *config.Config
	log *logrus.Logger
}

// NewRootCommand returns the routeprobe command with all subcommands.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "routeprobe",
		Short: "Verify which handler a request dispatches to",
		Long: `routeprobe assembles a route table from a manifest of inline routes,
OpenAPI documents and filter middleware, then checks that requests resolve
to the expected handler with the expected arguments, without starting a
server.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./routeprobe.yaml)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	a.bind("log.level", flags.Lookup("log-level"))
	a.bind("log.format", flags.Lookup("log-format"))

	cmd.AddCommand(
		newVerifyCommand(a),
		newRoutesCommand(a),
		newVersionCommand(),
	)

	return cmd
}

// Execute runs the root command with the process arguments.
func Execute() error {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("cli: binding flag %s: %v", flag.Name, err))
	}
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}
