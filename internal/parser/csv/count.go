package csv

import (
	"fmt"
	"io"
	"os"
)

// countBufSize is the fixed read buffer of CountRows; memory use does not
// grow with file size.
const countBufSize = 256 << 10

// CountRows returns the number of data rows in the CSV file at path, header
// excluded, in one forward pass over the bytes.
func CountRows(path string, comma rune) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	defer f.Close()

	adviseSequential(f)

	n, err := countRows(f, comma)
	if err != nil {
		return 0, fmt.Errorf("count rows %s: %w", path, err)
	}
	return n, nil
}

func countRows(r io.Reader, comma rune) (int64, error) {
	s := newRowScanner(comma)
	buf := make([]byte, countBufSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, rows := s.scan(buf[:n], -1)
			total += rows
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	total += s.finish()
	if total == 0 {
		return 0, nil
	}
	return total - 1, nil
}
