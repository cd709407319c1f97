package engine

import (
	"net/http"

	"github.com/tkarev/bracedl/internal/utils"
)

const unknownSize = int64(-1)

// probeResult is what a HEAD probe learned about a target. Size is
// unknownSize when the server gave no usable Content-Length.
type probeResult struct {
	size          int64
	acceptsRanges bool
}

// probeTarget issues a metadata-only HEAD request. Probe failure never fails
// the transfer; it downgrades to unknown size with no range support, which
// in turn disables resume. An unknown size also disables resume even when
// Accept-Ranges is advertised, because detecting an already-complete local
// file requires knowing the target size.
func probeTarget(client utils.HTTPDoer, url string) probeResult {
	unknown := probeResult{size: unknownSize, acceptsRanges: false}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return unknown
	}
	resp, err := client.Do(req)
	if err != nil {
		return unknown
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unknown
	}
	result := probeResult{size: unknownSize}
	if resp.ContentLength > 0 {
		result.size = resp.ContentLength
		result.acceptsRanges = resp.Header.Get("Accept-Ranges") == "bytes"
	}
	return result
}
