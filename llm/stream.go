// Pull-based streaming for chat completions.
//
// Stream is the single iterator type all providers return. Each provider
// supplies a pull function; Stream enforces the iteration contract:
// - Next returns one text delta at a time
// - io.EOF marks normal exhaustion
// - any other error is terminal
// - once a terminal result is seen, Next returns io.EOF forever
// - Close releases the underlying connection early

package llm

import "io"

// Stream is a lazy, finite, non-restartable sequence of text deltas.
// Not safe for concurrent use; it is pulled by a single consumer.
type Stream struct {
	pull    func() (string, error)
	release func() error
	done    bool
}

// NewStream wraps a provider's pull and release functions.
// release may be nil when there is nothing to clean up.
func NewStream(pull func() (string, error), release func() error) *Stream {
	return &Stream{pull: pull, release: release}
}

// Next returns the next text delta. It returns io.EOF when the stream is
// exhausted, and a terminal error if the stream fails mid-flight. After
// either, all subsequent calls return io.EOF.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	delta, err := s.pull()
	if err != nil {
		s.done = true
		if s.release != nil {
			_ = s.release()
		}
		return "", err
	}
	return delta, nil
}

// Close abandons the stream, releasing the underlying connection.
// Safe to call more than once and after exhaustion.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.release != nil {
		return s.release()
	}
	return nil
}
