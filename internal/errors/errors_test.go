package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"
)

func TestUasError_Error(t *testing.T) {
	err := &UasError{
		Code:    ErrSlotOccupied,
		Message: "slot 2 is already occupied",
	}

	expected := "SLOT_OCCUPIED: slot 2 is already occupied"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewNoSnapshotFound(t *testing.T) {
	err := NewNoSnapshotFound("/tmp/saves")

	if err.Code != ErrNoSnapshotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNoSnapshotFound)
	}
	if err.Details["dir"] != "/tmp/saves" {
		t.Errorf("Details[dir] = %v, want %q", err.Details["dir"], "/tmp/saves")
	}
}

func TestNewCorruptSnapshot(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := NewCorruptSnapshot("20240101000000.UAS", cause)

	if err.Code != ErrCorruptSnapshot {
		t.Errorf("Code = %q, want %q", err.Code, ErrCorruptSnapshot)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
	if err.Details["snapshot"] != "20240101000000.UAS" {
		t.Errorf("Details[snapshot] = %v", err.Details["snapshot"])
	}
}

func TestNewCorruptSnapshot_NilCause(t *testing.T) {
	err := NewCorruptSnapshot("1.UAS", nil)
	if err.Message != "snapshot 1.UAS is corrupt" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewSlotOccupied(t *testing.T) {
	err := NewSlotOccupied(6)

	if err.Code != ErrSlotOccupied {
		t.Errorf("Code = %q, want %q", err.Code, ErrSlotOccupied)
	}
	if err.Details["position"] != 6 {
		t.Errorf("Details[position] = %v, want 6", err.Details["position"])
	}
}

func TestNewInputClosed(t *testing.T) {
	err := NewInputClosed(io.EOF)

	if err.Code != ErrInputClosed {
		t.Errorf("Code = %q, want %q", err.Code, ErrInputClosed)
	}
	if !stderrors.Is(err, io.EOF) {
		t.Error("expected io.EOF in chain")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}

	err = NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewSlotOccupied(1), ErrSlotOccupied, true},
		{"different code", NewSlotOccupied(1), ErrInternal, false},
		{"wrapped", fmt.Errorf("load: %w", NewNoSnapshotFound("x")), ErrNoSnapshotFound, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("wrap: %w", NewConflict("x"))); got != ErrConflict {
		t.Errorf("CodeOf() = %q, want %q", got, ErrConflict)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf() = %q, want empty", got)
	}
}
