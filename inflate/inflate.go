// Copyright 2025 Nonvolatile Inc. d/b/a Confident Security

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     https://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inflate decompresses a gzip byte stream fed in arbitrary chunks
// into a caller-leased output buffer of the declared decompressed size,
// without ever buffering the whole compressed input.
package inflate

import (
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrShortStream reports a compressed stream that ended before the
	// declared output length was produced.
	ErrShortStream = errors.New("inflate: stream ended before declared length")
	// ErrOverflow reports a compressed stream that decompresses past the
	// declared output length.
	ErrOverflow = errors.New("inflate: stream exceeds declared length")

	errCancelled = errors.New("inflate: cancelled")
)

// Stream is a streaming gzip decompressor. Chunks of compressed input go in
// through Feed; decompressed bytes land directly in the output buffer leased
// to New. Partially consumed input is carried across calls, never dropped.
//
// A Stream is not safe for concurrent use; the caller serializes Feed,
// Finish and Cancel. Cancel may be called at any point to release the
// decompressor.
type Stream struct {
	pw   *io.PipeWriter
	done chan struct{}

	// written by the run goroutine before done is closed
	err      error
	produced int
}

// New leases dst to a new decompression stream. The stream is complete only
// when the compressed input ends exactly at len(dst) produced bytes.
func New(dst []byte) *Stream {
	pr, pw := io.Pipe()
	s := &Stream{
		pw:   pw,
		done: make(chan struct{}),
	}
	go s.run(pr, dst)
	return s
}

func (s *Stream) run(pr *io.PipeReader, dst []byte) {
	defer close(s.done)

	fail := func(err error) {
		s.err = err
		pr.CloseWithError(err)
	}

	zr, err := gzip.NewReader(pr)
	if err != nil {
		fail(coerceShort(err))
		return
	}
	// a second concatenated member past the declared length is an error,
	// not a continuation
	zr.Multistream(false)

	n, err := io.ReadFull(zr, dst)
	s.produced = n
	if err != nil {
		fail(coerceShort(err))
		return
	}

	// the stream must end exactly here
	var tail [1]byte
	switch m, err := io.ReadFull(zr, tail[:]); {
	case m > 0:
		fail(ErrOverflow)
	case err == io.EOF:
		pr.Close()
	default:
		fail(err)
	}
}

func coerceShort(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortStream
	}
	return err
}

// Feed consumes one compressed chunk. A nil return means the stream needs
// more input (or just completed); an error means the stream is unusable and
// the exchange must be abandoned.
func (s *Stream) Feed(p []byte) error {
	_, err := s.pw.Write(p)
	return err
}

// Finish signals the end of the compressed input and reports the stream's
// outcome: nil if it completed with the output fully produced, ErrShortStream
// or ErrOverflow otherwise.
func (s *Stream) Finish() error {
	s.pw.Close()
	<-s.done
	return s.err
}

// Produced reports how many output bytes the stream had produced by the time
// it stopped. Valid after Finish or Cancel.
func (s *Stream) Produced() int {
	select {
	case <-s.done:
		return s.produced
	default:
		return 0
	}
}

// Cancel abandons the stream and releases the decompressor. Safe to call
// more than once and after Finish.
func (s *Stream) Cancel() {
	s.pw.CloseWithError(errCancelled)
	<-s.done
}
