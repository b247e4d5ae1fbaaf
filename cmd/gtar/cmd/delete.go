package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [members...]",
	Short: "Delete members from an uncompressed archive",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		return newOperations().Delete(cmd.Context(), opts)
	},
}

func init() {
	addCommonFlags(deleteCmd)

	viper.AutomaticEnv()

	rootCmd.AddCommand(deleteCmd)
}
