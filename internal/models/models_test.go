package models

import (
	"errors"
	"testing"
)

func TestEventValidate(t *testing.T) {
	cases := []struct {
		name    string
		event   Event
		wantErr error
	}{
		{"valid text", Event{UserID: "u1", Kind: EventText, Text: "hello"}, nil},
		{"valid selection", Event{UserID: "u1", Kind: EventSelection, Selection: "region_bali"}, nil},
		{"valid photo", Event{UserID: "u1", Kind: EventPhoto, Photo: []byte{0xff, 0xd8}}, nil},
		{"missing user", Event{Kind: EventText, Text: "hi"}, ErrEmptyUserID},
		{"empty text", Event{UserID: "u1", Kind: EventText}, ErrEmptyPayload},
		{"empty selection", Event{UserID: "u1", Kind: EventSelection}, ErrEmptyPayload},
		{"empty photo", Event{UserID: "u1", Kind: EventPhoto}, ErrEmptyPayload},
		{"bad kind", Event{UserID: "u1", Kind: "sticker"}, ErrInvalidKind},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestEventValidateOversized(t *testing.T) {
	long := make([]byte, MaxTextLength+1)
	for i := range long {
		long[i] = 'a'
	}
	e := Event{UserID: "u1", Kind: EventText, Text: string(long)}
	if err := e.Validate(); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}

	p := Event{UserID: "u1", Kind: EventPhoto, Photo: make([]byte, MaxPhotoBytes+1)}
	if err := p.Validate(); !errors.Is(err, ErrPhotoTooLarge) {
		t.Errorf("expected ErrPhotoTooLarge, got %v", err)
	}
}

func TestCanonicalOrderMatchesHeader(t *testing.T) {
	// Header carries one extra column for the photo link.
	if len(CanonicalHeader) != len(CanonicalFieldOrder)+1 {
		t.Fatalf("header has %d columns, want %d", len(CanonicalHeader), len(CanonicalFieldOrder)+1)
	}
	if CanonicalHeader[len(CanonicalHeader)-1] != "Evidence Photo Link" {
		t.Errorf("last header column = %q, want Evidence Photo Link", CanonicalHeader[len(CanonicalHeader)-1])
	}
}

func TestSubmissionRecordValidate(t *testing.T) {
	values := make([]string, len(CanonicalFieldOrder))
	for i := range values {
		values[i] = "v"
	}
	rec := SubmissionRecord{UserID: "u1", Values: values, Image: []byte{1}}
	if err := rec.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	short := SubmissionRecord{UserID: "u1", Values: values[:10], Image: []byte{1}}
	if err := short.Validate(); !errors.Is(err, ErrRecordIncomplete) {
		t.Errorf("expected ErrRecordIncomplete, got %v", err)
	}

	noImage := SubmissionRecord{UserID: "u1", Values: values}
	if err := noImage.Validate(); !errors.Is(err, ErrRecordIncomplete) {
		t.Errorf("expected ErrRecordIncomplete for missing image, got %v", err)
	}
}

func TestSubmissionRecordValue(t *testing.T) {
	values := make([]string, len(CanonicalFieldOrder))
	for i := range values {
		values[i] = "v"
	}
	values[0] = "SA001"
	rec := SubmissionRecord{Values: values}
	if got := rec.Value(FieldCode); got != "SA001" {
		t.Errorf("Value(code) = %q, want SA001", got)
	}
	if got := rec.Value("nonexistent"); got != Placeholder {
		t.Errorf("Value(nonexistent) = %q, want placeholder", got)
	}
}
