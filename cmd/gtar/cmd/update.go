package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var updateCmd = &cobra.Command{
	Use:     "update [paths...]",
	Aliases: []string{"u"},
	Short:   "Append files newer than their archived copies",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		return newOperations().Update(cmd.Context(), opts)
	},
}

func init() {
	addCommonFlags(updateCmd)

	updateCmd.PersistentFlags().String(formatFlag, "gnu", "Archive format for the appended entries")
	updateCmd.PersistentFlags().Bool(dereferenceFlag, false, "Follow symlinks and archive what they point to")
	updateCmd.PersistentFlags().BoolP(sparseFlag, "S", false, "Detect and store holes in sparse files")
	updateCmd.PersistentFlags().Bool(oneFileSystemFlag, false, "Stay on the file system of each starting path")

	viper.AutomaticEnv()

	rootCmd.AddCommand(updateCmd)
}
