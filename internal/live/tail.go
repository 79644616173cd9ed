package live

import (
	"bufio"
	"os"
)

const (
	scanBufSize = 64 * 1024
	maxLineSize = 2 * 1024 * 1024
)

// readLastLines returns up to n trailing lines of the file at path.
// It scans forward keeping a sliding window of the last n lines, so
// memory stays bounded by n regardless of file size. The scan still
// walks the whole file on every call; for very large hot files that
// is a known cost, not a correctness issue.
func readLastLines(path string, n int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	window := NewRing[[]byte](n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, scanBufSize), maxLineSize)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		window.Push(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return window.Items(), nil
}
