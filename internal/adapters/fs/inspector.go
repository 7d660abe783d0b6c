// Package fs provides filesystem adapters for the batching core.
package fs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bft-labs/shardspool/internal/domain"
)

// HeaderInspector reads insert metadata from a spooled file. The upstream
// writer prepends a single header line of the form "rows <n>"; everything
// after it is the opaque insert payload. The byte size is the full file size
// as observed on disk.
type HeaderInspector struct{}

// NewHeaderInspector creates a spool file inspector.
func NewHeaderInspector() *HeaderInspector {
	return &HeaderInspector{}
}

// Inspect reads the row count header and stats the file size.
// An error means the file is not a readable spooled insert.
func (HeaderInspector) Inspect(path string) (domain.PendingFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.PendingFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		return domain.PendingFile{}, fmt.Errorf("read header of %s: %w", path, err)
	}
	count, ok := strings.CutPrefix(strings.TrimSuffix(line, "\n"), "rows ")
	if !ok {
		return domain.PendingFile{}, fmt.Errorf("%s: missing rows header", path)
	}
	rows, err := strconv.ParseUint(count, 10, 64)
	if err != nil {
		return domain.PendingFile{}, fmt.Errorf("%s: bad rows header %q: %w", path, count, err)
	}

	fi, err := f.Stat()
	if err != nil {
		return domain.PendingFile{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return domain.PendingFile{Path: path, Bytes: uint64(fi.Size()), Rows: rows}, nil
}
