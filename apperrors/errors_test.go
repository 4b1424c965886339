package apperrors

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("compare: %w", DurationExceeded("reference is %.0fs", 700.0))
	if !errors.Is(err, ErrDurationExceeded) {
		t.Fatalf("expected wrapped error to match ErrDurationExceeded")
	}
	if errors.Is(err, ErrEmptyContour) {
		t.Fatalf("did not expect match against ErrEmptyContour")
	}
	if got := KindOf(err); got != KindDurationExceeded {
		t.Fatalf("expected kind %q, got %q", KindDurationExceeded, got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	err := Wrap(KindDecodeFailed, io.ErrUnexpectedEOF, "reading header")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to be reachable")
	}
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected decode sentinel match")
	}
	want := "decode_failed: reading header: unexpected EOF"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestKindOfPlainError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind, got %q", got)
	}
}
