package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/notargets/gosubsurface/types"
)

type lineReader struct {
	scanner *bufio.Scanner
	lineNum int
	format  string
}

func newLineReader(r io.Reader, format string) (lr *lineReader) {
	lr = &lineReader{
		scanner: bufio.NewScanner(r),
		format:  format,
	}
	lr.scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return
}

func (lr *lineReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s line %d: %s", types.ErrInvalidInput, lr.format, lr.lineNum,
		fmt.Sprintf(format, args...))
}

// next returns the following line with surrounding blanks removed, ok is false at the
// end of the input
func (lr *lineReader) next() (line string, ok bool) {
	if !lr.scanner.Scan() {
		return
	}
	lr.lineNum++
	return strings.TrimSpace(lr.scanner.Text()), true
}

func (lr *lineReader) getLine() (line string, err error) {
	var ok bool
	if line, ok = lr.next(); !ok {
		if err = lr.scanner.Err(); err != nil {
			return "", err
		}
		return "", lr.errorf("early end of file")
	}
	return
}

func (lr *lineReader) skipLines(n int) (err error) {
	for i := 0; i < n; i++ {
		if _, err = lr.getLine(); err != nil {
			return
		}
	}
	return
}

// skipTo advances past the line equal to marker
func (lr *lineReader) skipTo(marker string) (err error) {
	for {
		var line string
		if line, err = lr.getLine(); err != nil {
			return
		}
		if line == marker {
			return
		}
	}
}

// fields splits the next line and checks it holds at least n fields
func (lr *lineReader) fields(n int) (f []string, err error) {
	var line string
	if line, err = lr.getLine(); err != nil {
		return
	}
	if f = strings.Fields(line); len(f) < n {
		return nil, lr.errorf("read %d fields, need %d, line: %s", len(f), n, line)
	}
	return
}

func (lr *lineReader) atoi(s string) (v int, err error) {
	if v, err = strconv.Atoi(s); err != nil {
		return 0, lr.errorf("bad integer %q", s)
	}
	return
}

func (lr *lineReader) atof(s string) (v float64, err error) {
	if v, err = strconv.ParseFloat(s, 64); err != nil {
		return 0, lr.errorf("bad number %q", s)
	}
	return
}

// markerSet numbers boundary labels 1..n in order of first appearance
type markerSet struct {
	ids    map[string]int
	labels map[int]string
	edges  map[int][][2]int
}

func newMarkerSet() *markerSet {
	return &markerSet{
		ids:    make(map[string]int),
		labels: make(map[int]string),
		edges:  make(map[int][][2]int),
	}
}

func (ms *markerSet) add(label string, e [2]int) {
	id, ok := ms.ids[label]
	if !ok {
		id = len(ms.ids) + 1
		ms.ids[label] = id
		ms.labels[id] = label
	}
	ms.edges[id] = append(ms.edges[id], e)
}
