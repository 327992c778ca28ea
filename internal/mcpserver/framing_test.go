package mcpserver

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReadMessageFramedAndJSONLine(t *testing.T) {
	input := "Content-Length: 2\r\nContent-Type: application/json\r\n\r\n{}" +
		"\n\n" +
		"{\"id\":\n1}\n"
	r := bufio.NewReader(strings.NewReader(input))

	payload, jsonLine, err := readMessage(r)
	if err != nil || jsonLine || string(payload) != "{}" {
		t.Fatalf("framed: payload=%q jsonLine=%v err=%v", payload, jsonLine, err)
	}

	payload, jsonLine, err = readMessage(r)
	if err != nil || !jsonLine || string(payload) != "{\"id\":\n1}" {
		t.Fatalf("json line: payload=%q jsonLine=%v err=%v", payload, jsonLine, err)
	}

	if _, _, err = readMessage(r); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReadMessageRejectsBadHeaders(t *testing.T) {
	cases := map[string]string{
		"missing length": "X-Other: 1\r\n\r\n{}",
		"bad length":     "Content-Length: abc\r\n\r\n{}",
		"too large":      "Content-Length: 99999999999\r\n\r\n{}",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := readMessage(bufio.NewReader(strings.NewReader(input))); err == nil || err == io.EOF {
				t.Fatalf("expected header error, got %v", err)
			}
		})
	}
}

func TestWriteMessages(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	if err := writeFramedMessage(w, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("write framed: %v", err)
	}
	if err := writeJSONLineMessage(w, []byte(`{"b":2}`)); err != nil {
		t.Fatalf("write json line: %v", err)
	}
	want := "Content-Length: 7\r\n\r\n{\"a\":1}{\"b\":2}\n"
	if out.String() != want {
		t.Fatalf("unexpected output %q", out.String())
	}
}
