package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// HTTPLog mirrors every outbound request and inbound response (or error) to
// an append-only file, to aid debugging opaque provider errors. It is a side
// channel: logging failures are swallowed and never alter the call result.
// A nil *HTTPLog is valid and logs nothing.
type HTTPLog struct {
	mu   sync.Mutex
	path string
}

func NewHTTPLog(path string) (*HTTPLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &HTTPLog{path: path}, nil
}

// Path returns the log file location.
func (l *HTTPLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *HTTPLog) Request(method, url string, header http.Header, body []byte) {
	l.append(fmt.Sprintf("[%s] REQUEST\nURL: %s\nMethod: %s\nHeaders: %s\nBodyLen: %d\nBody: %s\n",
		timestamp(), url, method, headerJSON(header), len(body), body))
}

func (l *HTTPLog) Response(status int, header http.Header, body []byte) {
	l.append(fmt.Sprintf("[%s] RESPONSE\nStatus: %d\nHeaders: %s\nBodyLen: %d\nBody: %s\n\n",
		timestamp(), status, headerJSON(header), len(body), body))
}

func (l *HTTPLog) Error(err error) {
	l.append(fmt.Sprintf("[%s] EXCEPTION\n%v\n\n", timestamp(), err))
}

func (l *HTTPLog) append(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString(entry)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func headerJSON(h http.Header) string {
	if h == nil {
		return "{}"
	}
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	return string(b)
}
