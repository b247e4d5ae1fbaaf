package sparse

import (
	"io"

	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// detectChunkSize is the granularity of hole detection. A chunk is a
// hole iff every byte in it is zero, so sub-chunk holes are kept as
// data; that loses compression but never correctness.
const detectChunkSize = 64 * 1024

// Detect scans a file for data regions. The returned regions are
// ordered and non-adjacent; gaps between them are holes.
func Detect(f io.Reader, size int64) ([]tarfmt.SparseRegion, error) {
	var (
		regions []tarfmt.SparseRegion
		start   int64
		offset  int64
		inData  bool
	)

	buf := make([]byte, detectChunkSize)
	for offset < size {
		n, err := io.ReadFull(f, buf[:chunkLen(size-offset)])
		if err != nil && err != io.ErrUnexpectedEOF {
			if err == io.EOF {
				break
			}

			return nil, err
		}

		hole := allZero(buf[:n])
		switch {
		case !hole && !inData:
			start = offset
			inData = true
		case hole && inData:
			regions = append(regions, tarfmt.SparseRegion{Offset: start, Length: offset - start})
			inData = false
		}

		offset += int64(n)
		if err == io.ErrUnexpectedEOF {
			break
		}
	}

	if inData {
		regions = append(regions, tarfmt.SparseRegion{Offset: start, Length: offset - start})
	}

	return regions, nil
}

func chunkLen(remaining int64) int64 {
	if remaining < detectChunkSize {
		return remaining
	}

	return detectChunkSize
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}

	return true
}

// IsWorthy reports whether sparse encoding pays off: meaningful
// savings or more than one region.
func IsWorthy(regions []tarfmt.SparseRegion, logicalSize int64) bool {
	if logicalSize == 0 {
		return false
	}

	physical := tarfmt.PhysicalSize(regions)

	return physical*10 < logicalSize*9 || len(regions) > 1
}

// WriteData streams the data regions of src back to back into w. The
// caller pads the total to the block boundary via the tar writer.
func WriteData(w io.Writer, src io.ReadSeeker, regions []tarfmt.SparseRegion) error {
	for _, region := range regions {
		if _, err := src.Seek(region.Offset, io.SeekStart); err != nil {
			return err
		}

		if _, err := io.CopyN(w, src, region.Length); err != nil {
			return err
		}
	}

	return nil
}

// SeekWriter is the file side of sparse extraction.
type SeekWriter interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
}

// Extract materializes a sparse entry: the file is sized to the
// logical length so unwritten ranges become holes, then each region
// is seeked to and filled from the archive stream.
func Extract(dst SeekWriter, src io.Reader, regions []tarfmt.SparseRegion, logicalSize int64) error {
	if err := dst.Truncate(logicalSize); err != nil {
		// No sparse support: fall back to a dense zero-filled file.
		return ExtractDense(dst, src, regions, logicalSize)
	}

	for _, region := range regions {
		if _, err := dst.Seek(region.Offset, io.SeekStart); err != nil {
			return err
		}

		if _, err := io.CopyN(dst, src, region.Length); err != nil {
			return err
		}
	}

	return nil
}

// ExtractDense writes explicit zeros over the hole ranges.
func ExtractDense(dst io.Writer, src io.Reader, regions []tarfmt.SparseRegion, logicalSize int64) error {
	var offset int64
	zeros := make([]byte, detectChunkSize)

	writeZeros := func(n int64) error {
		for n > 0 {
			chunk := n
			if chunk > detectChunkSize {
				chunk = detectChunkSize
			}

			if _, err := dst.Write(zeros[:chunk]); err != nil {
				return err
			}
			n -= chunk
		}

		return nil
	}

	for _, region := range regions {
		if err := writeZeros(region.Offset - offset); err != nil {
			return err
		}

		if _, err := io.CopyN(dst, src, region.Length); err != nil {
			return err
		}
		offset = region.Offset + region.Length
	}

	return writeZeros(logicalSize - offset)
}
