package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(TranscriptionUnavailable, "model not loaded")
	if !strings.Contains(err.Error(), "TRANSCRIPTION_UNAVAILABLE") {
		t.Errorf("error string missing code: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error string missing message: %s", err.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, DiarizationUnavailable, "diarize call failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error string missing cause: %s", err.Error())
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(ProcessingFailed, "chunk failed").WithMetadata("chunk", "3")
	if err.Metadata["chunk"] != "3" {
		t.Errorf("metadata = %v, want chunk=3", err.Metadata)
	}
	if !strings.Contains(err.Error(), "chunk:3") {
		t.Errorf("error string missing metadata: %s", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := New(AudioFormatInvalid, "stereo input")
	if !IsCode(err, AudioFormatInvalid) {
		t.Error("IsCode should match AudioFormatInvalid")
	}
	if IsCode(err, Timeout) {
		t.Error("IsCode should not match Timeout")
	}
	if IsCode(stderrors.New("plain"), Timeout) {
		t.Error("IsCode should be false for foreign errors")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{TranscriptionUnavailable, true},
		{DiarizationUnavailable, true},
		{Timeout, true},
		{AudioFormatInvalid, false},
		{ProcessingFailed, false},
		{ConfigInvalid, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(New(tc.code, "x")); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("foreign errors should not be retryable")
	}
}
