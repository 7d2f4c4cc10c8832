package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/printers"
	"github.com/anushkapunekar/agentops/internal/provider"
	"github.com/anushkapunekar/agentops/internal/vcs"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage agentops configuration",
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	rootCmd.AddCommand(configCmd)
}

// question is one interactive config init prompt.
type question struct {
	key    string
	label  string
	secret bool
}

var initQuestions = []question{
	{key: config.KeyBaseURL, label: "GitLab API base URL"},
	{key: config.KeyHostToken, label: "GitLab access token", secret: true},
	{key: config.KeyModel, label: "Review model"},
	{key: config.KeyHostedAPIKey, label: "OpenAI API key (empty for local only)", secret: true},
	{key: config.KeyWebhookSecret, label: "Webhook secret (empty to disable)", secret: true},
}

func newConfigInitCmd() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file at ~/.config/agentops/config.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := cfgFile
			if cfgPath == "" {
				p, err := config.DefaultConfigFilePath()
				if err != nil {
					return err
				}
				cfgPath = p
			}

			if _, err := os.Stat(cfgPath); err == nil && !force {
				if !interactive || !printers.Confirm(fmt.Sprintf("%s exists, overwrite?", cfgPath)) {
					fmt.Fprintf(cmd.OutOrStdout(), "Config file already exists at %s\n", cfgPath)
					return nil
				}
			}

			content := config.SampleConfigYAML()
			if interactive {
				answers, err := askInitQuestions(printers.NewPrinters())
				if err != nil {
					return err
				}
				if content, err = setYAMLValues(content, answers); err != nil {
					return err
				}
			}

			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			// The file may hold tokens.
			if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", cfgPath)
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for the main settings")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return initCmd
}

func askInitQuestions(p printers.IPrinters) (map[string]string, error) {
	defaults := config.NewDefaultConfig()
	suggested := map[string]string{
		config.KeyBaseURL: "https://gitlab.com/api/v4",
		config.KeyModel:   defaults.Model,
	}

	answers := make(map[string]string, len(initQuestions))
	for _, q := range initQuestions {
		v, err := p.Ask(q.label, suggested[q.key], q.secret)
		if err != nil {
			return nil, err
		}
		if v != "" {
			answers[q.key] = v
		}
	}
	return answers, nil
}

// setYAMLValues replaces top-level scalar values in doc, keeping its
// comments and key order.
func setYAMLValues(doc string, values map[string]string) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		return "", err
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return "", errors.New("config: sample is not a YAML mapping")
	}

	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		v, ok := values[m.Content[i].Value]
		if !ok {
			continue
		}
		node := m.Content[i+1]
		node.Kind = yaml.ScalarNode
		node.Tag = "!!str"
		node.Style = yaml.DoubleQuotedStyle
		node.Value = v
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags(), nil)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(conf.Redacted())
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}

			w := cmd.OutOrStdout()
			if conf.ConfigFile != "" {
				fmt.Fprintf(w, "# Config file: %s\n", conf.ConfigFile)
			} else {
				fmt.Fprintln(w, "# No config file, using defaults and environment")
			}
			_, err = w.Write(out)
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and the source host credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags(), nil)
			if err != nil {
				return err
			}

			problems := configProblems(cmd.Context(), conf)
			w := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(w, "Configuration is valid.")
				return nil
			}
			fmt.Fprintln(w, "Configuration is invalid:")
			for _, p := range problems {
				fmt.Fprintf(w, "- %s\n", p)
			}
			return errors.New("invalid configuration")
		},
	}
}

// configProblems checks the settings, the source host credentials and,
// when the hosted backend would be selected, its API key.
func configProblems(ctx context.Context, conf config.Config) []string {
	var problems []string
	if err := conf.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	host, err := vcs.Get(hostName, conf)
	if err != nil {
		problems = append(problems, err.Error())
	} else if err := host.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if conf.HostedAPIKey != "" && provider.IsHostedModel(conf.Model) {
		if err := validateBackend(ctx, provider.KindHosted, conf); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

func validateBackend(ctx context.Context, kind provider.Kind, conf config.Config) error {
	b, err := provider.Get(string(kind), conf)
	if err != nil {
		return err
	}
	v, ok := b.(provider.Validator)
	if !ok {
		return nil
	}
	return v.Validate(ctx)
}
