package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/logging"
	_ "github.com/anushkapunekar/agentops/internal/provider/init"
	_ "github.com/anushkapunekar/agentops/internal/vcs/init"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// hostName is the source host every command talks to.
const hostName = "gitlab"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentops",
	Short: "AI code review for GitLab merge requests.",
	Long: `Receives merge request webhooks, asks a review model about the diff,
posts the feedback as a merge request comment and triggers a pipeline.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/agentops/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
}

// loadConfig builds the Config once from defaults, the environment, the
// config file and the given flags. bindings maps config keys to flag names;
// a flag only wins when it was set on the command line.
func loadConfig(flags *pflag.FlagSet, bindings map[string]string) (config.Config, error) {
	v := config.NewViper()
	if _, err := config.ReadFile(v, cfgFile); err != nil {
		return config.Config{}, err
	}

	all := map[string]string{
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
	}
	for key, name := range bindings {
		all[key] = name
	}
	for key, name := range all {
		if f := flags.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	return config.Load(v)
}

func newLogger(w io.Writer, conf config.Config) *slog.Logger {
	return logging.New(w, conf.LogLevel, conf.LogFormat)
}
