package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var appendCmd = &cobra.Command{
	Use:     "append [paths...]",
	Aliases: []string{"r"},
	Short:   "Append files to an existing uncompressed archive",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		return newOperations().Append(cmd.Context(), opts)
	},
}

func init() {
	addCommonFlags(appendCmd)

	appendCmd.PersistentFlags().String(formatFlag, "gnu", "Archive format for the appended entries")
	appendCmd.PersistentFlags().Bool(dereferenceFlag, false, "Follow symlinks and archive what they point to")
	appendCmd.PersistentFlags().BoolP(sparseFlag, "S", false, "Detect and store holes in sparse files")
	appendCmd.PersistentFlags().Bool(oneFileSystemFlag, false, "Stay on the file system of each starting path")
	appendCmd.PersistentFlags().StringP(listedIncrementalFlag, "g", "", "Snapshot database for incremental archiving")

	viper.AutomaticEnv()

	rootCmd.AddCommand(appendCmd)
}
