package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var concatenateCmd = &cobra.Command{
	Use:     "concatenate [archives...]",
	Aliases: []string{"A", "catenate"},
	Short:   "Append other archives onto an uncompressed archive",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		return newOperations().Concatenate(cmd.Context(), opts)
	},
}

func init() {
	addCommonFlags(concatenateCmd)

	viper.AutomaticEnv()

	rootCmd.AddCommand(concatenateCmd)
}
