package mcpserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxMessageBytes bounds a single framed payload.
const maxMessageBytes = 4 << 20

var errMissingContentLength = errors.New("missing Content-Length header")

// readMessage reads one request. Input is either Content-Length framed or a
// bare JSON document terminated by a newline; the bool reports the latter.
func readMessage(r *bufio.Reader) ([]byte, bool, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return nil, false, io.EOF
		}
		return nil, false, err
	}

	// Blank lines between messages are tolerated.
	for strings.TrimSpace(line) == "" {
		if line, err = r.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
				return nil, false, io.EOF
			}
			return nil, false, err
		}
	}

	if looksLikeJSON(line) {
		payload, err := readJSONLine(r, line)
		return payload, true, err
	}

	length, err := readHeaders(r, line)
	if err != nil {
		return nil, false, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, err
	}
	return payload, false, nil
}

func looksLikeJSON(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// readHeaders consumes header lines up to the blank separator, starting with first.
func readHeaders(r *bufio.Reader, first string) (int, error) {
	length := -1
	line := first
	for {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		if key, value, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			parsed, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return 0, fmt.Errorf("invalid Content-Length: %w", err)
			}
			if parsed < 0 || parsed > maxMessageBytes {
				return 0, fmt.Errorf("invalid Content-Length: %d", parsed)
			}
			length = parsed
		}

		var err error
		if line, err = r.ReadString('\n'); err != nil {
			return 0, err
		}
	}
	if length < 0 {
		return 0, errMissingContentLength
	}
	return length, nil
}

// readJSONLine accumulates lines until they form one valid JSON document.
func readJSONLine(r *bufio.Reader, first string) ([]byte, error) {
	buf := bytes.NewBufferString(first)
	for {
		candidate := bytes.TrimSpace(buf.Bytes())
		if json.Valid(candidate) {
			return candidate, nil
		}
		if buf.Len() > maxMessageBytes {
			return nil, fmt.Errorf("json message exceeds %d bytes", maxMessageBytes)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
	}
}

func writeFramedMessage(w *bufio.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeJSONLineMessage(w *bufio.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
