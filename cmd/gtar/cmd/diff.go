package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var diffCmd = &cobra.Command{
	Use:     "diff [members...]",
	Aliases: []string{"d", "compare"},
	Short:   "Compare archive members against the filesystem",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		differences, err := newOperations().Diff(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if differences > 0 {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			return errDifferencesFound
		}

		return nil
	},
}

func init() {
	addCommonFlags(diffCmd)

	viper.AutomaticEnv()

	rootCmd.AddCommand(diffCmd)
}
