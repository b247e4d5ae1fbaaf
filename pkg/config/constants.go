package config

const (
	NoneKey = ""

	CompressionFormatGZipKey      = "gzip"
	CompressionFormatBzip2Key     = "bzip2"
	CompressionFormatXZKey        = "xz"
	CompressionFormatZStandardKey = "zstandard"
	CompressionFormatLZ4Key       = "lz4"
	CompressionFormatBrotliKey    = "brotli"
	CompressionFormatAutoKey      = "auto"

	CompressionLevelFastestKey  = "fastest"
	CompressionLevelBalancedKey = "balanced"
	CompressionLevelSmallestKey = "smallest"

	FormatV7Key     = "v7"
	FormatUSTARKey  = "ustar"
	FormatOldGNUKey = "oldgnu"
	FormatGNUKey    = "gnu"
	FormatPAXKey    = "pax"

	OverwriteModeOverwriteKey   = "overwrite"
	OverwriteModeKeepOldKey     = "keep-old"
	OverwriteModeKeepNewerKey   = "keep-newer"
	OverwriteModeSkipOldKey     = "skip-old"
	OverwriteModeUnlinkFirstKey = "unlink-first"

	VerbosityQuietKey       = "quiet"
	VerbosityNormalKey      = "normal"
	VerbosityVerboseKey     = "verbose"
	VerbosityVeryVerboseKey = "very-verbose"

	BlockSize             = 512
	DefaultBlockingFactor = 20
)

var (
	KnownCompressionFormats = []string{NoneKey, CompressionFormatGZipKey, CompressionFormatBzip2Key, CompressionFormatXZKey, CompressionFormatZStandardKey, CompressionFormatLZ4Key, CompressionFormatBrotliKey, CompressionFormatAutoKey}

	KnownCompressionLevels = []string{CompressionLevelFastestKey, CompressionLevelBalancedKey, CompressionLevelSmallestKey}

	KnownFormats = []string{FormatV7Key, FormatUSTARKey, FormatOldGNUKey, FormatGNUKey, FormatPAXKey}

	KnownOverwriteModes = []string{OverwriteModeOverwriteKey, OverwriteModeKeepOldKey, OverwriteModeKeepNewerKey, OverwriteModeSkipOldKey, OverwriteModeUnlinkFirstKey}

	KnownVerbosities = []string{VerbosityQuietKey, VerbosityNormalKey, VerbosityVerboseKey, VerbosityVeryVerboseKey}
)
