// Package results reads benchmark reports back from captured output,
// archives them and renders them as charts.
package results

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/colorfulnotion/femtobench/bench"
)

// Row is one parsed measurement line.
type Row = bench.Record

// Report is the content found between the benchmark markers.
type Report struct {
	Rows []Row
	// Complete is set when the end marker was seen.
	Complete bool
	// Truncated is set when the last row stops after load_program_us,
	// the trace left by a run that died while executing.
	Truncated bool
}

var (
	ErrNoBenchmark = errors.New("no benchmark begin marker in input")
	ErrNoHeader    = errors.New("no header line after begin marker")

	// Serial consoles prefix lines with a timestamp and "# ".
	timestampPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3} # `)
)

func clean(line string) string {
	line = strings.TrimRight(line, "\r\n")
	line = timestampPrefix.ReplaceAllString(line, "")
	if strings.HasPrefix(line, "#") {
		line = strings.TrimSpace(line[1:])
	}
	return line
}

// Parse scans r for the first benchmark report. Lines outside the markers
// and lines without a field separator are ignored. A report cut short by a
// crash is returned with Complete unset.
func Parse(r io.Reader) (*Report, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var (
		in     bool
		header []string
		rep    Report
	)
	for n := 1; sc.Scan(); n++ {
		line := clean(sc.Text())
		switch {
		case !in:
			in = line == bench.BeginMarker
		case line == bench.EndMarker:
			rep.Complete = true
			if header == nil {
				return nil, ErrNoHeader
			}
			return &rep, nil
		case header == nil && strings.Contains(strings.ToLower(line), "iteration"):
			header = strings.Split(line, ";")
		case header != nil && isOpenRow(header, line):
			rep.Truncated = true
		case header != nil && strings.Contains(line, ";"):
			if rep.Truncated {
				return nil, fmt.Errorf("line %d: row after a truncated row", n)
			}
			row, err := parseRow(header, line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			rep.Rows = append(rep.Rows, row)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !in {
		return nil, ErrNoBenchmark
	}
	if header == nil {
		return nil, ErrNoHeader
	}
	return &rep, nil
}

// isOpenRow reports whether line is a row cut short after its separator.
func isOpenRow(header []string, line string) bool {
	return strings.HasSuffix(line, ";") && strings.Count(line, ";") < len(header)
}

func parseRow(header []string, line string) (Row, error) {
	fields := strings.Split(line, ";")
	if len(fields) != len(header) {
		return Row{}, fmt.Errorf("%d fields, header has %d", len(fields), len(header))
	}
	var row Row
	for i, name := range header {
		v := strings.TrimSpace(fields[i])
		var err error
		switch strings.TrimSpace(name) {
		case "iteration":
			var n uint64
			n, err = strconv.ParseUint(v, 10, 32)
			row.Iteration = uint32(n)
		case "init_runtime_us":
			row.InitRuntimeUs, err = strconv.ParseUint(v, 10, 64)
		case "load_program_us":
			row.LoadProgramUs, err = strconv.ParseUint(v, 10, 64)
		case "execution_time_us":
			row.ExecutionUs, err = strconv.ParseUint(v, 10, 64)
		case "correct":
			row.Correct, err = strconv.ParseBool(v)
		}
		if err != nil {
			return Row{}, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return row, nil
}
