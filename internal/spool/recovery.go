package spool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/shardspool/internal/domain"
	"github.com/bft-labs/shardspool/pkg/log"
)

// Recover inspects dir for a leftover batch descriptor and reconstructs the
// in-flight batch it describes.
//
// It returns (nil, nil) when there is nothing to resume: either no descriptor
// exists, or the descriptor is malformed or stale, in which case it is
// discarded and the remaining spool files become ordinary pending files for
// the next scan. A descriptor whose members are all gone means the previous
// process crashed between deleting the members and deleting the descriptor —
// the batch was already delivered, and there is nothing to resend.
//
// A non-nil batch enters the lifecycle at Persisted with recovered set: the
// caller proceeds directly to Send, skipping accumulation. Totals are taken
// from the descriptor verbatim — it is the commit record of record — and are
// never recomputed from the files.
func Recover(dir string, limits Limits, opts Options, logger log.Logger) (*Batch, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	path := filepath.Join(dir, DescriptorFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	d, err := UnmarshalDescriptor(data)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedDescriptor) {
			return nil, err
		}
		logger.Warn("discarding malformed batch descriptor",
			log.String("dir", dir),
			log.Err(err),
		)
		if err := removeFile(path, opts.DirFsync); err != nil {
			return nil, err
		}
		return nil, nil
	}

	b := NewBatch(dir, limits, opts)
	b.totalRows = d.TotalRows
	b.totalBytes = d.TotalBytes
	for _, p := range d.Files {
		f := domain.PendingFile{Path: p}
		if fi, err := os.Stat(p); err == nil {
			f.Bytes = uint64(fi.Size())
		}
		b.files = append(b.files, f)
	}
	b.recovered = true
	b.persisted = true

	if !b.Valid() {
		logger.Warn("discarding stale batch descriptor",
			log.String("dir", dir),
			log.Int("files", len(b.files)),
			log.Err(domain.ErrStaleDescriptor),
		)
		if err := removeFile(path, opts.DirFsync); err != nil {
			return nil, err
		}
		return nil, nil
	}

	logger.Info("recovered in-flight batch",
		log.String("dir", dir),
		log.Int("files", len(b.files)),
		log.Uint64("rows", b.totalRows),
		log.Uint64("bytes", b.totalBytes),
	)
	return b, nil
}
