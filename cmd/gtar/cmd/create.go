package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var createCmd = &cobra.Command{
	Use:     "create [paths...]",
	Aliases: []string{"c"},
	Short:   "Create an archive from files and directories",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindAndCheck(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(args)
		if err != nil {
			return err
		}

		return newOperations().Create(cmd.Context(), opts)
	},
}

func init() {
	addCommonFlags(createCmd)

	createCmd.PersistentFlags().String(formatFlag, "gnu", "Archive format (one of [v7 ustar oldgnu gnu pax])")
	createCmd.PersistentFlags().Bool(dereferenceFlag, false, "Follow symlinks and archive what they point to")
	createCmd.PersistentFlags().BoolP(sparseFlag, "S", false, "Detect and store holes in sparse files")
	createCmd.PersistentFlags().Bool(oneFileSystemFlag, false, "Stay on the file system of each starting path")
	createCmd.PersistentFlags().String(newerMTimeFlag, "", "Only archive files modified after this RFC 3339 time")
	createCmd.PersistentFlags().Bool(removeFilesFlag, false, "Remove files after adding them to the archive")
	createCmd.PersistentFlags().BoolP(verifyFlag, "W", false, "Compare the archive against the sources after writing")
	createCmd.PersistentFlags().Uint32(checkpointFlag, 0, "Log a checkpoint every N headers")
	createCmd.PersistentFlags().StringP(listedIncrementalFlag, "g", "", "Snapshot database for incremental archiving")
	createCmd.PersistentFlags().Bool(totalsFlag, false, "Log total bytes written")
	createCmd.PersistentFlags().Bool(xattrsFlag, false, "Carry extended attributes in PAX records")
	createCmd.PersistentFlags().Bool(aclsFlag, false, "Carry POSIX ACLs in PAX records")
	createCmd.PersistentFlags().Bool(selinuxFlag, false, "Carry SELinux contexts in PAX records")

	viper.AutomaticEnv()

	rootCmd.AddCommand(createCmd)
}
