package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/fsys"
	"github.com/pojntfx/gtar/pkg/logging"
	"github.com/pojntfx/gtar/pkg/operations"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	archiveFlag           = "file"
	directoryFlag         = "directory"
	compressionFlag       = "compression"
	compressionLevelFlag  = "compression-level"
	formatFlag            = "format"
	verboseFlag           = "verbose"
	quietFlag             = "quiet"
	stripComponentsFlag   = "strip-components"
	preservePermsFlag     = "preserve-permissions"
	dereferenceFlag       = "dereference"
	overwriteModeFlag     = "overwrite-mode"
	toStdoutFlag          = "to-stdout"
	excludeFlag           = "exclude"
	filesFromFlag         = "files-from"
	excludeFromFlag       = "exclude-from"
	nullFlag              = "null"
	absoluteNamesFlag     = "absolute-names"
	touchFlag             = "touch"
	numericOwnerFlag      = "numeric-owner"
	ignoreZerosFlag       = "ignore-zeros"
	sparseFlag            = "sparse"
	transformFlag         = "transform"
	blockingFactorFlag    = "blocking-factor"
	oneFileSystemFlag     = "one-file-system"
	newerMTimeFlag        = "newer-mtime"
	removeFilesFlag       = "remove-files"
	verifyFlag            = "verify"
	checkpointFlag        = "checkpoint"
	listedIncrementalFlag = "listed-incremental"
	totalsFlag            = "totals"
	xattrsFlag            = "xattrs"
	aclsFlag              = "acls"
	selinuxFlag           = "selinux"
)

var errBadTransform = errors.New("transform must have the form s/old/new/")

var rootCmd = &cobra.Command{
	Use:   "gtar",
	Short: "GNU-tar-compatible archiver",
	Long: `gtar creates, lists, and extracts GNU-tar-compatible archives
across the v7, ustar, oldgnu, gnu, and pax dialects.

Find more information at:
https://github.com/pojntfx/gtar`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("gtar")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := exitCodes[err]; ok {
			os.Exit(code)
		}

		fmt.Fprintf(os.Stderr, "gtar: %v\n", err)

		os.Exit(2)
	}
}

// errDifferencesFound carries diff's exit-code-1 result out of cobra.
var errDifferencesFound = errors.New("differences found")

var exitCodes = map[error]int{
	errDifferencesFound:          1,
	config.ErrVerificationFailed: 1,
}

func newOperations() *operations.Operations {
	return operations.NewOperations(
		fsys.NewLocal(),
		logging.LineLogger{
			Verbose: viper.GetBool(verboseFlag),
			Quiet:   viper.GetBool(quietFlag),
		},
		os.Stdout,
		os.Stdout,
	)
}

// optionsFromFlags maps the bound viper flags onto the operation
// configuration bundle.
func optionsFromFlags(args []string) (config.Options, error) {
	opts := config.Options{
		ArchivePath: viper.GetString(archiveFlag),
		FileList:    args,
		Directory:   viper.GetString(directoryFlag),

		Compression:      viper.GetString(compressionFlag),
		CompressionLevel: viper.GetString(compressionLevelFlag),
		Format:           viper.GetString(formatFlag),

		StripComponents: viper.GetUint32(stripComponentsFlag),

		PreservePermissions: viper.GetBool(preservePermsFlag),
		Dereference:         viper.GetBool(dereferenceFlag),
		OverwriteMode:       viper.GetString(overwriteModeFlag),
		ToStdout:            viper.GetBool(toStdoutFlag),

		ExcludePatterns: viper.GetStringSlice(excludeFlag),
		FilesFrom:       viper.GetString(filesFromFlag),
		ExcludeFrom:     viper.GetString(excludeFromFlag),
		NullTerminated:  viper.GetBool(nullFlag),

		AbsoluteNames: viper.GetBool(absoluteNamesFlag),
		Touch:         viper.GetBool(touchFlag),
		NumericOwner:  viper.GetBool(numericOwnerFlag),
		IgnoreZeros:   viper.GetBool(ignoreZerosFlag),
		Sparse:        viper.GetBool(sparseFlag),

		BlockingFactor: viper.GetUint32(blockingFactorFlag),

		OneFileSystem: viper.GetBool(oneFileSystemFlag),

		RemoveFiles: viper.GetBool(removeFilesFlag),
		Verify:      viper.GetBool(verifyFlag),

		ListedIncremental: viper.GetString(listedIncrementalFlag),

		XAttrs:  viper.GetBool(xattrsFlag),
		ACLs:    viper.GetBool(aclsFlag),
		SELinux: viper.GetBool(selinuxFlag),

		Totals: viper.GetBool(totalsFlag),
	}

	switch {
	case viper.GetBool(quietFlag):
		opts.Verbosity = config.VerbosityQuietKey
	case viper.GetBool(verboseFlag):
		opts.Verbosity = config.VerbosityVerboseKey
	}

	if newer := viper.GetString(newerMTimeFlag); newer != "" {
		threshold, err := time.Parse(time.RFC3339, newer)
		if err != nil {
			return opts, fmt.Errorf("newer-mtime: %w", err)
		}

		opts.NewerMTime = &threshold
	}

	if checkpoint := viper.GetUint32(checkpointFlag); checkpoint > 0 {
		opts.Checkpoint = &checkpoint
	}

	for _, transform := range viper.GetStringSlice(transformFlag) {
		compiled, err := compileTransform(transform)
		if err != nil {
			return opts, err
		}

		opts.Transforms = append(opts.Transforms, compiled)
	}

	return opts, nil
}

// compileTransform turns an s/old/new/ expression into a replace
// hook. Only literal replacement is supported.
func compileTransform(expr string) (func(string) string, error) {
	if !strings.HasPrefix(expr, "s") || len(expr) < 4 {
		return nil, errBadTransform
	}

	sep := string(expr[1])
	parts := strings.Split(expr[2:], sep)
	if len(parts) != 3 || parts[2] != "" || parts[0] == "" {
		return nil, errBadTransform
	}

	from, to := parts[0], parts[1]

	return func(name string) string {
		return strings.Replace(name, from, to, 1)
	}, nil
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(archiveFlag, "f", "", "Archive file to operate on (empty means stdin/stdout)")
	cmd.PersistentFlags().StringP(directoryFlag, "C", "", "Change to directory before operating")
	cmd.PersistentFlags().StringP(compressionFlag, "z", config.CompressionFormatAutoKey, fmt.Sprintf("Compression type (one of %v)", config.KnownCompressionFormats))
	cmd.PersistentFlags().String(compressionLevelFlag, config.CompressionLevelBalancedKey, fmt.Sprintf("Compression level (one of %v)", config.KnownCompressionLevels))
	cmd.PersistentFlags().BoolP(verboseFlag, "v", false, "List members as they are processed")
	cmd.PersistentFlags().Bool(quietFlag, false, "Suppress informational output")
	cmd.PersistentFlags().StringSlice(excludeFlag, nil, "Exclude members matching pattern (repeatable)")
	cmd.PersistentFlags().StringP(filesFromFlag, "T", "", "Read member names from file")
	cmd.PersistentFlags().StringP(excludeFromFlag, "X", "", "Read exclude patterns from file")
	cmd.PersistentFlags().Bool(nullFlag, false, "List files are NUL-terminated")
	cmd.PersistentFlags().Bool(numericOwnerFlag, false, "Use numeric uid/gid instead of names")
	cmd.PersistentFlags().BoolP(ignoreZerosFlag, "i", false, "Ignore zero blocks inside the archive")
	cmd.PersistentFlags().IntP(blockingFactorFlag, "b", config.DefaultBlockingFactor, "Blocks per record for archive IO")
	cmd.PersistentFlags().StringSlice(transformFlag, nil, "Transform member names with s/old/new/ (repeatable)")
	cmd.PersistentFlags().BoolP(absoluteNamesFlag, "P", false, "Keep leading slashes in member names")
}

func bindAndCheck(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return err
	}

	viper.AutomaticEnv()

	return nil
}
