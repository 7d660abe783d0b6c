package spool

import (
	"errors"
	"testing"

	"github.com/bft-labs/shardspool/internal/domain"
)

func TestDescriptorRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		d    Descriptor
	}{
		{"single", Descriptor{TotalRows: 10, TotalBytes: 1000, Files: []string{"/spool/1.bin"}}},
		{"zero totals", Descriptor{TotalRows: 0, TotalBytes: 0, Files: []string{"/spool/1.bin"}}},
		{"ordered", Descriptor{
			TotalRows:  42,
			TotalBytes: 9001,
			Files:      []string{"/spool/3.bin", "/spool/1.bin", "/spool/2.bin"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UnmarshalDescriptor(MarshalDescriptor(tc.d))
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.TotalRows != tc.d.TotalRows || got.TotalBytes != tc.d.TotalBytes {
				t.Fatalf("totals (%d,%d), want (%d,%d)", got.TotalRows, got.TotalBytes, tc.d.TotalRows, tc.d.TotalBytes)
			}
			if len(got.Files) != len(tc.d.Files) {
				t.Fatalf("got %d files, want %d", len(got.Files), len(tc.d.Files))
			}
			for i := range got.Files {
				if got.Files[i] != tc.d.Files[i] {
					t.Fatalf("file %d = %q, want %q", i, got.Files[i], tc.d.Files[i])
				}
			}
		})
	}
}

func TestMarshalDescriptorDeterministic(t *testing.T) {
	d := Descriptor{TotalRows: 7, TotalBytes: 512, Files: []string{"/spool/a", "/spool/b"}}
	a := MarshalDescriptor(d)
	b := MarshalDescriptor(d)
	if string(a) != string(b) {
		t.Fatalf("encoding not byte-stable: %q vs %q", a, b)
	}
	if string(a) != "7\n512\n/spool/a\n/spool/b\n" {
		t.Fatalf("unexpected layout: %q", a)
	}
}

func TestUnmarshalDescriptorMalformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty file", ""},
		{"missing byte header", "10\n"},
		{"non-integer rows", "ten\n100\n/spool/a\n"},
		{"non-integer bytes", "10\nlots\n/spool/a\n"},
		{"negative rows", "-1\n100\n/spool/a\n"},
		{"truncated last path", "10\n100\n/spool/a\n/spool/b"},
		{"truncated header", "10"},
		{"header without file list", "10\n100\n"},
		{"blank member line", "10\n100\n\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalDescriptor([]byte(tc.data))
			if !errors.Is(err, domain.ErrMalformedDescriptor) {
				t.Fatalf("got %v, want ErrMalformedDescriptor", err)
			}
		})
	}
}

// A truncated descriptor must never decode as a valid empty batch.
func TestUnmarshalDescriptorTruncationIsNotEmpty(t *testing.T) {
	full := MarshalDescriptor(Descriptor{TotalRows: 5, TotalBytes: 100, Files: []string{"/spool/a"}})
	for cut := 1; cut < len(full); cut++ {
		if _, err := UnmarshalDescriptor(full[:len(full)-cut]); !errors.Is(err, domain.ErrMalformedDescriptor) {
			t.Fatalf("truncation at -%d decoded without error", cut)
		}
	}
}
