// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
)

// ProgressCallback is called for each progress line of a pull.
type ProgressCallback func(p PullProgress)

// StreamReader handles line-by-line JSON parsing of streamed pull responses.
type StreamReader struct {
	reader *bufio.Reader
	last   PullProgress
	lines  int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
	}
}

// Process reads the stream and calls the callback for each progress line.
// Blocks until the stream ends, the server reports an error, or the context
// is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback ProgressCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if p == nil {
			continue
		}

		if p.Error != "" {
			return invalid(p.Error, nil)
		}
		if callback != nil {
			callback(*p)
		}
		if p.Status == "success" {
			return nil
		}
	}
}

// readLine reads and parses a single line. Blank and malformed lines yield nil.
func (s *StreamReader) readLine() (*PullProgress, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var p PullProgress
	if jsonErr := json.Unmarshal(line, &p); jsonErr != nil {
		// Skip malformed lines
		return nil, nil
	}

	s.last = p
	s.lines++
	return &p, nil
}

// Last returns the most recent progress line.
func (s *StreamReader) Last() PullProgress {
	return s.last
}

// Lines returns the number of progress lines parsed.
func (s *StreamReader) Lines() int {
	return s.lines
}
