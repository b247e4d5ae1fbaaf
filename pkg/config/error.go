package config

import "errors"

var (
	ErrMissingArchive = errors.New("no archive path given")

	ErrInvalidArchive   = errors.New("invalid or truncated archive")
	ErrChecksumMismatch = errors.New("header checksum mismatch")

	ErrCompressionFormatUnsupported = errors.New("unsupported compression format")
	ErrCompressionLevelUnsupported  = errors.New("unsupported compression level")
	ErrCompressedArchiveNotSeekable = errors.New("operation requires an uncompressed, seekable archive")

	ErrFormatUnsupported        = errors.New("unsupported archive format")
	ErrNameTooLong              = errors.New("file name too long for archive format")
	ErrFieldTooLong             = errors.New("field value too large for archive format")
	ErrOverwriteRefused         = errors.New("existing file refused to be overwritten")
	ErrOverwriteModeUnsupported = errors.New("unsupported overwrite mode")
	ErrVerbosityUnsupported     = errors.New("unsupported verbosity")

	ErrMultiVolumeUnsupported = errors.New("multi-volume archives are not supported")

	ErrVerificationFailed = errors.New("archive verification found differences")

	ErrCancelled = errors.New("operation cancelled")
)
