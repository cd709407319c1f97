package expand

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidTemplate means the template has no {start..end} token.
	ErrInvalidTemplate = errors.New("template must contain a {start..end} range, e.g. {1..10}")
	// ErrInvalidRange means the range start is greater than its end.
	ErrInvalidRange = errors.New("range start cannot be greater than range end")
)

var rangeTokenRegex = regexp.MustCompile(`\{(\d+)\.\.(\d+)\}`)

// Target is one concrete URL produced from a wildcard template.
type Target struct {
	URL      string
	Filename string
}

// Expand turns a URL template like "https://ex.com/file_{1..3}.csv" into the
// ordered list of concrete targets. When the start literal has a leading zero
// (and more than one digit), generated numbers are zero-padded to its width:
// {001..003} yields 001, 002, 003 while {8..12} yields 8 through 12 unpadded.
func Expand(template string) ([]Target, error) {
	loc := rangeTokenRegex.FindStringSubmatchIndex(template)
	if loc == nil {
		return nil, ErrInvalidTemplate
	}
	startStr := template[loc[2]:loc[3]]
	endStr := template[loc[4]:loc[5]]
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, fmt.Errorf("parsing range start %q: %w", startStr, err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, fmt.Errorf("parsing range end %q: %w", endStr, err)
	}
	if start > end {
		return nil, ErrInvalidRange
	}
	width := 0
	if strings.HasPrefix(startStr, "0") && len(startStr) > 1 {
		width = len(startStr)
	}
	prefix := template[:loc[0]]
	suffix := template[loc[1]:]
	targets := make([]Target, 0, end-start+1)
	for i := start; i <= end; i++ {
		number := strconv.Itoa(i)
		if width > 0 {
			number = fmt.Sprintf("%0*d", width, i)
		}
		url := prefix + number + suffix
		targets = append(targets, Target{URL: url, Filename: filenameFromURL(url)})
	}
	return targets, nil
}

// filenameFromURL returns the last path segment of a URL, ignoring any query
// string or fragment.
func filenameFromURL(url string) string {
	name := url
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
