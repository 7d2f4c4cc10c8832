package cmd

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generate the agentops man page.",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := buildManPage(rootCmd)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), page)
		return err
	},
}

func buildManPage(root *cobra.Command) (string, error) {
	manPage, err := mcobra.NewManPage(1, root)
	if err != nil {
		return "", err
	}
	manPage = manPage.WithSection("Environment",
		"Every setting can be given through the environment using the upper-case\n"+
			"key name, for example BASE_URL, GITLAB_TOKEN, AI_MODEL and OPENAI_API_KEY.")
	return manPage.Build(roff.NewDocument()), nil
}

func init() {
	rootCmd.AddCommand(manCmd)
}
