package id

import (
	"testing"
)

func TestNewAndParse(t *testing.T) {
	tests := []struct {
		name   string
		prefix Prefix
	}{
		{"stream", PrefixStream},
		{"receipt", PrefixReceipt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generated := New(tt.prefix)
			if generated.IsNil() {
				t.Fatal("New returned nil ID")
			}
			if generated.Prefix() != tt.prefix {
				t.Errorf("Prefix = %q, want %q", generated.Prefix(), tt.prefix)
			}

			parsed, err := Parse(generated.String())
			if err != nil {
				t.Fatalf("Parse(%q): %v", generated.String(), err)
			}
			if parsed.String() != generated.String() {
				t.Errorf("round trip = %q, want %q", parsed.String(), generated.String())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "!!!"},
		{"bad suffix", "strm_notavalidsuffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Errorf("Parse(%q): expected error", tt.input)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	streamID := NewStreamID()

	if _, err := ParseStreamID(streamID.String()); err != nil {
		t.Errorf("ParseStreamID: %v", err)
	}
	if _, err := ParseReceiptID(streamID.String()); err == nil {
		t.Error("ParseReceiptID accepted a stream ID")
	}
}

func TestNilID(t *testing.T) {
	if !Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", Nil.String())
	}

	data, err := Nil.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("Nil.MarshalText() = %q, want empty", data)
	}
}

func TestTextRoundTrip(t *testing.T) {
	orig := NewReceiptID()

	data, err := orig.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var parsed ID
	if err := parsed.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", parsed.String(), orig.String())
	}
}

func TestScanAndValue(t *testing.T) {
	orig := NewStreamID()

	v, err := orig.Value()
	if err != nil {
		t.Fatal(err)
	}

	var scanned ID
	if err := scanned.Scan(v); err != nil {
		t.Fatal(err)
	}
	if scanned.String() != orig.String() {
		t.Errorf("scan round trip = %q, want %q", scanned.String(), orig.String())
	}

	var fromNil ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if !fromNil.IsNil() {
		t.Error("Scan(nil) produced non-nil ID")
	}

	if err := scanned.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}
