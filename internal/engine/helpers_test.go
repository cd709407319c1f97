package engine

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tkarev/bracedl/internal/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger(false)
	utils.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// eventRecorder collects event callbacks from concurrent transfer units.
type eventRecorder struct {
	mu        sync.Mutex
	starts    []string
	progress  map[string][]int64 // downloaded values per file, in order
	totals    map[string][]int64
	completes map[string][]completion
}

type completion struct {
	success bool
	message string
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{
		progress:  make(map[string][]int64),
		totals:    make(map[string][]int64),
		completes: make(map[string][]completion),
	}
}

func (r *eventRecorder) events() Events {
	return Events{
		OnStart: func(filename string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.starts = append(r.starts, filename)
		},
		OnProgress: func(filename string, downloaded, total int64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress[filename] = append(r.progress[filename], downloaded)
			r.totals[filename] = append(r.totals[filename], total)
		},
		OnComplete: func(filename string, success bool, message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes[filename] = append(r.completes[filename], completion{success: success, message: message})
		},
	}
}

func (r *eventRecorder) completionsFor(filename string) []completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]completion(nil), r.completes[filename]...)
}

func (r *eventRecorder) progressFor(filename string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.progress[filename]...)
}

// rangeServerOptions tweaks the behavior of the test file server.
type rangeServerOptions struct {
	noHead   bool // reject HEAD probes
	noRanges bool // do not advertise or honor Range headers
}

// newRangeServer serves each request path from the files map with HEAD and
// byte-range support, mimicking a plain static file host.
func newRangeServer(files map[string][]byte, opts rangeServerOptions) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodHead {
			if opts.noHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			if !opts.noRanges {
				w.Header().Set("Accept-Ranges", "bytes")
			}
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" || opts.noRanges {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
		start, _ := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(rangeHeader, "bytes="), "-"), 10, 64)
		if start >= int64(len(data)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		body := data[start:]
		w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.Itoa(len(data)-1)+"/"+strconv.Itoa(len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body)
	}))
}

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func testSpec(serverURL, pattern, outputDir string) DownloadSpec {
	return DownloadSpec{
		URLTemplate:   serverURL + pattern,
		OutputDir:     outputDir,
		MaxConcurrent: 4,
		ChunkSize:     1024,
		Timeout:       10 * time.Second,
		ResumeEnabled: true,
	}
}
