package id_test

import (
	"strings"
	"testing"

	"github.com/slotline/slotline/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SlotID", id.NewSlotID, "slot_"},
		{"ListenerID", id.NewListenerID, "lsn_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixSlot)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixSlot {
		t.Errorf("expected prefix %q, got %q", id.PrefixSlot, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"SlotID", id.NewSlotID, id.ParseSlotID},
		{"ListenerID", id.NewListenerID, id.ParseListenerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	if _, err := id.ParseSlotID(id.NewListenerID().String()); err == nil {
		t.Error("expected error parsing lsn_ ID as slot ID, got nil")
	}
	if _, err := id.ParseListenerID(id.NewSlotID().String()); err == nil {
		t.Error("expected error parsing slot_ ID as listener ID, got nil")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"", "not-a-typeid", "slot_!!!"}

	for _, input := range tests {
		if _, err := id.Parse(input); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", input)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID String() = %q, want empty", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("nil ID Prefix() = %q, want empty", i.Prefix())
	}
}

func TestTextMarshalRoundTrip(t *testing.T) {
	original := id.NewSlotID()

	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", decoded.String(), original.String())
	}

	// Empty text decodes to the nil ID.
	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil ID from empty text")
	}
}
