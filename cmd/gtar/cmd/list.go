package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:     "list [members...]",
	Aliases: []string{"t"},
	Short:   "List the members of an archive",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		_, err = newOperations().List(cmd.Context(), opts)

		return err
	},
}

func init() {
	addCommonFlags(listCmd)

	viper.AutomaticEnv()

	rootCmd.AddCommand(listCmd)
}
