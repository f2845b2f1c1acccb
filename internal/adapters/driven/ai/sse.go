package ai

import (
	"bufio"
	"bytes"
	"io"
)

// maxSSELine bounds a single server-sent event line.
const maxSSELine = 1 << 20

// readSSE calls fn with the payload of every "data:" line until the stream
// ends, fn returns an error, or the "[DONE]" sentinel is seen.
func readSSE(r io.Reader, fn func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return scanner.Err()
}
