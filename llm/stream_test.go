package llm

import (
	"errors"
	"io"
	"testing"
)

func scripted(deltas []string, terminal error) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i < len(deltas) {
			d := deltas[i]
			i++
			return d, nil
		}
		if terminal != nil {
			return "", terminal
		}
		return "", io.EOF
	}
}

func TestStreamPullsDeltasInOrder(t *testing.T) {
	stream := NewStream(scripted([]string{"a", "b", "c"}, nil), nil)

	for _, want := range []string{"a", "b", "c"} {
		got, err := stream.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}

	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after exhaustion, got %v", err)
	}
}

func TestStreamEOFIsSticky(t *testing.T) {
	stream := NewStream(scripted(nil, nil), nil)

	for i := 0; i < 3; i++ {
		if _, err := stream.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("call %d: expected io.EOF, got %v", i, err)
		}
	}
}

func TestStreamTerminalErrorThenEOF(t *testing.T) {
	boom := errors.New("upstream hiccup")
	stream := NewStream(scripted([]string{"a"}, boom), nil)

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if _, err := stream.Next(); !errors.Is(err, boom) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after terminal error, got %v", err)
	}
}

func TestStreamCloseReleasesOnce(t *testing.T) {
	released := 0
	stream := NewStream(scripted([]string{"a"}, nil), func() error {
		released++
		return nil
	})

	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if released != 1 {
		t.Errorf("expected 1 release, got %d", released)
	}

	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after Close, got %v", err)
	}
}

func TestStreamReleasesOnTerminalError(t *testing.T) {
	released := 0
	stream := NewStream(scripted(nil, errors.New("boom")), func() error {
		released++
		return nil
	})

	if _, err := stream.Next(); err == nil {
		t.Fatal("expected terminal error")
	}
	if released != 1 {
		t.Errorf("expected release on terminal error, got %d releases", released)
	}
}
