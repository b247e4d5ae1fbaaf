package config

import "time"

// Options is the full configuration bundle for one archive operation.
// Zero values select the GNU tar defaults.
type Options struct {
	ArchivePath string
	FileList    []string

	// Directory is chdir'd to (logically, via path joining) before the
	// operation touches the filesystem.
	Directory string

	Compression      string
	CompressionLevel string
	Format           string

	Verbosity string

	StripComponents uint32

	PreservePermissions bool
	Dereference         bool
	OverwriteMode       string
	ToStdout            bool

	ExcludePatterns []string
	FilesFrom       string
	ExcludeFrom     string
	NullTerminated  bool

	AbsoluteNames bool
	Touch         bool
	NumericOwner  bool
	IgnoreZeros   bool
	Sparse        bool

	// Transforms are applied to every member name, in order. The CLI
	// compiles its s/old/new/ expressions into these.
	Transforms []func(string) string

	BlockingFactor uint32

	OneFileSystem bool
	NewerMTime    *time.Time

	RemoveFiles bool
	Verify      bool

	// Checkpoint logs a checkpoint event every N headers when non-nil.
	Checkpoint *uint32

	ListedIncremental string

	MultiVolume bool
	TapeLength  *int64

	XAttrs  bool
	ACLs    bool
	SELinux bool

	Totals bool
}

// WithDefaults fills the unset enum and numeric fields.
func (o Options) WithDefaults() Options {
	if o.Compression == "" {
		o.Compression = CompressionFormatAutoKey
	}
	if o.CompressionLevel == "" {
		o.CompressionLevel = CompressionLevelBalancedKey
	}
	if o.Format == "" {
		o.Format = FormatGNUKey
	}
	if o.Verbosity == "" {
		o.Verbosity = VerbosityNormalKey
	}
	if o.OverwriteMode == "" {
		o.OverwriteMode = OverwriteModeOverwriteKey
	}
	if o.BlockingFactor == 0 {
		o.BlockingFactor = DefaultBlockingFactor
	}
	return o
}

// Check validates the enum fields and the unsupported-feature knobs.
// An empty ArchivePath is allowed: the block stream reads stdin and
// writes stdout then. Seek-based operations reject it when they open
// the archive.
func (o Options) Check() error {
	if !contains(KnownCompressionFormats, o.Compression) {
		return ErrCompressionFormatUnsupported
	}

	if !contains(KnownCompressionLevels, o.CompressionLevel) {
		return ErrCompressionLevelUnsupported
	}

	if !contains(KnownFormats, o.Format) {
		return ErrFormatUnsupported
	}

	if !contains(KnownOverwriteModes, o.OverwriteMode) {
		return ErrOverwriteModeUnsupported
	}

	if !contains(KnownVerbosities, o.Verbosity) {
		return ErrVerbosityUnsupported
	}

	if o.MultiVolume || o.TapeLength != nil {
		return ErrMultiVolumeUnsupported
	}

	return nil
}

func contains(candidates []string, value string) bool {
	for _, candidate := range candidates {
		if candidate == value {
			return true
		}
	}

	return false
}
