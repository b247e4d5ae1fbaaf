package ioext

import "io"

type CounterReader struct {
	Reader io.Reader

	BytesRead int64
}

func (r *CounterReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)

	r.BytesRead += int64(n)

	return n, err
}

type CounterWriter struct {
	Writer io.Writer

	BytesWritten int64
}

func (w *CounterWriter) Write(p []byte) (n int, err error) {
	n, err = w.Writer.Write(p)

	w.BytesWritten += int64(n)

	return n, err
}
