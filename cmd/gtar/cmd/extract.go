package cmd

import (
	"fmt"

	"github.com/pojntfx/gtar/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var extractCmd = &cobra.Command{
	Use:     "extract [members...]",
	Aliases: []string{"x"},
	Short:   "Extract members from an archive",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		return newOperations().Extract(cmd.Context(), opts)
	},
}

func init() {
	addCommonFlags(extractCmd)

	extractCmd.PersistentFlags().Uint32(stripComponentsFlag, 0, "Strip this many leading path components")
	extractCmd.PersistentFlags().BoolP(preservePermsFlag, "p", false, "Restore modes and ownership exactly")
	extractCmd.PersistentFlags().String(overwriteModeFlag, config.OverwriteModeOverwriteKey, fmt.Sprintf("Behavior for existing files (one of %v)", config.KnownOverwriteModes))
	extractCmd.PersistentFlags().BoolP(toStdoutFlag, "O", false, "Write member contents to stdout instead of files")
	extractCmd.PersistentFlags().BoolP(touchFlag, "m", false, "Do not restore modification times")

	viper.AutomaticEnv()

	rootCmd.AddCommand(extractCmd)
}
