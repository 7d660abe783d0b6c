package spool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/shardspool/internal/domain"
)

// DescriptorFileName is the bookkeeping file holding the in-flight batch for
// a spool directory. Its presence means a batch was committed to disk but not
// yet confirmed delivered.
const DescriptorFileName = "current_batch.txt"

// Descriptor is the persisted form of a batch: aggregate totals plus the
// ordered list of member file paths.
//
// On-disk layout, one record per line:
//
//	line 1:    total rows
//	line 2:    total bytes
//	line 3..N: absolute member path, in send order
type Descriptor struct {
	TotalRows  uint64
	TotalBytes uint64
	Files      []string
}

// MarshalDescriptor encodes a descriptor into its on-disk form. The encoding
// is deterministic: the same descriptor always produces the same bytes.
func MarshalDescriptor(d Descriptor) []byte {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(d.TotalRows, 10))
	b.WriteByte('\n')
	b.WriteString(strconv.FormatUint(d.TotalBytes, 10))
	b.WriteByte('\n')
	for _, f := range d.Files {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// UnmarshalDescriptor decodes an on-disk descriptor. It returns
// domain.ErrMalformedDescriptor when the header fields are not unsigned
// integers or when the record is truncated. Every record, including the last
// member path, must be newline-terminated; a missing terminator means the
// write did not complete and the batch must not be trusted.
func UnmarshalDescriptor(data []byte) (Descriptor, error) {
	if len(data) == 0 {
		return Descriptor{}, fmt.Errorf("%w: empty file", domain.ErrMalformedDescriptor)
	}
	if data[len(data)-1] != '\n' {
		return Descriptor{}, fmt.Errorf("%w: truncated record", domain.ErrMalformedDescriptor)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) < 2 {
		return Descriptor{}, fmt.Errorf("%w: missing header", domain.ErrMalformedDescriptor)
	}

	rows, err := strconv.ParseUint(lines[0], 10, 64)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: total rows %q", domain.ErrMalformedDescriptor, lines[0])
	}
	bytes, err := strconv.ParseUint(lines[1], 10, 64)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: total bytes %q", domain.ErrMalformedDescriptor, lines[1])
	}

	d := Descriptor{TotalRows: rows, TotalBytes: bytes}
	for _, line := range lines[2:] {
		if line == "" {
			return Descriptor{}, fmt.Errorf("%w: empty member path", domain.ErrMalformedDescriptor)
		}
		d.Files = append(d.Files, line)
	}
	// A descriptor is only ever written for a non-empty batch. A header with
	// no member paths means the file list was cut off mid-write.
	if len(d.Files) == 0 {
		return Descriptor{}, fmt.Errorf("%w: no member files", domain.ErrMalformedDescriptor)
	}
	return d, nil
}
