package sandbox

import (
	"bytes"
	"regexp"
	"strconv"
	"sync"
)

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	urlPattern  = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1?\]|[A-Za-z0-9.-]+):(\d{2,5})[^\s]*`)
)

// readyDetector scans process output line by line for the first URL announced on each port.
type readyDetector struct {
	mu      sync.Mutex
	partial []byte
	notify  func(port int, url string)
}

func newReadyDetector(notify func(port int, url string)) *readyDetector {
	return &readyDetector{notify: notify}
}

func (d *readyDetector) Write(p []byte) (int, error) {
	d.mu.Lock()
	d.partial = append(d.partial, p...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(d.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, append([]byte(nil), d.partial[:i]...))
		d.partial = d.partial[i+1:]
	}

	// keep memory bounded on output without line breaks
	if len(d.partial) > 64*1024 {
		d.partial = d.partial[len(d.partial)-4096:]
	}

	d.mu.Unlock()

	for _, line := range lines {
		d.scan(line)
	}

	return len(p), nil
}

// Flush scans the remaining unterminated line.
func (d *readyDetector) Flush() {
	d.mu.Lock()
	line := d.partial
	d.partial = nil
	d.mu.Unlock()

	if len(line) > 0 {
		d.scan(line)
	}
}

func (d *readyDetector) scan(line []byte) {
	clean := ansiPattern.ReplaceAll(line, nil)

	match := urlPattern.FindSubmatch(clean)
	if match == nil {
		return
	}

	port, err := strconv.Atoi(string(match[1]))
	if err != nil || port <= 0 || port > 65535 {
		return
	}

	d.notify(port, string(bytes.TrimRight(match[0], ".,;)")))
}
