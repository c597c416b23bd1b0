package output

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/vpncfg"
)

// Options carries per-run emission settings.
type Options struct {
	// IncludeHandshake adds the Handshake column to the CSV.
	IncludeHandshake bool
	// AppTestNames adds one <Name>_OK column per app test to the CSV.
	AppTestNames []string
	// RunID and SourceCount feed the generation report.
	RunID       string
	SourceCount int
}

// Summary reports what a Write call produced.
type Summary struct {
	// Written lists the artifact paths in emission order.
	Written []string
	// Failed records non-fatal per-format failures.
	Failed map[Format]error
}

// Formatter writes subscription artifacts into the output directory.
// A single mutex serializes all access to the directory; every file
// write is atomic. UTF-8 with LF line endings throughout.
type Formatter struct {
	cfg    *config.OutputConfig
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFormatter creates a formatter over the configured output directory.
func NewFormatter(cfg *config.OutputConfig, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		cfg:    cfg,
		logger: logger.With("component", "output"),
	}
}

// Write emits the selected artifacts for a run. A raw output failure is
// fatal and returned; any other format failure is logged, recorded in
// the summary, and does not abort the remaining formats. On success,
// stale temp files from earlier crashed runs are swept.
func (f *Formatter) Write(results []*vpncfg.ConfigResult, formats []Format, opts Options) (Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := Summary{Failed: make(map[Format]error)}

	if err := os.MkdirAll(f.cfg.Dir, 0o755); err != nil {
		return summary, &IOError{Path: f.cfg.Dir, Err: err}
	}

	rawBytes := rawContent(results)

	for _, format := range formats {
		path := f.path(format)
		var err error

		switch format {
		case FormatRaw:
			err = atomicWrite(path, rawBytes)
			if err != nil {
				// The raw artifact is the contract; without it the run
				// failed.
				return summary, err
			}
		case FormatBase64:
			encoded := base64.StdEncoding.EncodeToString(rawBytes)
			err = atomicWrite(path, []byte(encoded))
		case FormatCSV:
			err = atomicWrite(path, csvContent(results, opts))
		case FormatSingbox:
			var data []byte
			data, err = singboxContent(results)
			if err == nil {
				err = atomicWrite(path, data)
			}
		case FormatClash:
			var data []byte
			data, err = clashContent(results, false)
			if err == nil {
				err = atomicWrite(path, data)
			}
		case FormatClashProxies:
			var data []byte
			data, err = clashContent(results, true)
			if err == nil {
				err = atomicWrite(path, data)
			}
		case FormatSurge:
			err = atomicWrite(path, surgeContent(results))
		case FormatQX:
			err = atomicWrite(path, qxContent(results))
		case FormatXYZ:
			err = atomicWrite(path, xyzContent(results))
		case FormatReport:
			var data []byte
			data, err = f.reportContent(results, summary.Written, opts)
			if err == nil {
				err = atomicWrite(path, data)
			}
		}

		if err != nil {
			f.logger.Error("artifact write failed", "format", format, "error", err)
			summary.Failed[format] = err
			continue
		}
		summary.Written = append(summary.Written, path)
	}

	cleanupStaleTemps(f.cfg.Dir, time.Minute)
	return summary, nil
}

// Path returns the artifact path a format would be written to.
func (f *Formatter) Path(format Format) string {
	return f.path(format)
}

// path resolves a format's artifact path, honoring file overrides.
func (f *Formatter) path(format Format) string {
	name := defaultFiles[format]
	if override, ok := f.cfg.Files[string(format)]; ok && override != "" {
		name = override
	}
	return filepath.Join(f.cfg.Dir, name)
}

// rawContent renders one config per line.
func rawContent(results []*vpncfg.ConfigResult) []byte {
	var b strings.Builder
	for i, result := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(result.RawConfig)
	}
	return []byte(b.String())
}
