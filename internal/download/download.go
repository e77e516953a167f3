package download

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/KaramelBytes/cleanloom-cli/internal/log"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/utils"
)

// Format is an export format offered by the service.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
	SQL  Format = "sql"
)

// Formats lists every supported export format in display order.
var Formats = []Format{CSV, XLSX, JSON, SQL}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want csv, xlsx, json or sql)", s)
}

func (f Format) String() string { return string(f) }

// DefaultFilename is used when the response names no file.
func DefaultFilename(f Format) string {
	return "cleaned_data." + string(f)
}

// RE2 has no backreferences, so each quoting style is its own alternative.
var dispositionRE = regexp.MustCompile(`filename[^;=\n]*=(?:"([^"]*)"|'([^']*)'|([^;\n]*))`)

var quoteStripper = strings.NewReplacer(`"`, "", "'", "")

// FilenameFromDisposition extracts the file name from a Content-Disposition
// header. An RFC 5987 charset prefix and every quote character are removed
// and directory components dropped. Anything unusable yields DefaultFilename(f).
func FilenameFromDisposition(header string, f Format) string {
	m := dispositionRE.FindStringSubmatch(header)
	if m == nil {
		return DefaultFilename(f)
	}
	name := m[1] + m[2] + strings.TrimSpace(m[3])
	if i := strings.Index(name, "''"); i >= 0 {
		name = name[i+2:]
		if dec, err := url.PathUnescape(name); err == nil {
			name = dec
		}
	}
	name = quoteStripper.Replace(name)
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return DefaultFilename(f)
	}
	return name
}

// Fetcher retrieves an export from the service.
type Fetcher interface {
	Download(ctx context.Context, fileID, format string) (*remote.Export, error)
}

// Saver hands finished bytes to the host and reports where they went.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// DirSaver writes into Dir without ever replacing an existing file: a taken
// name gets a __2, __3, ... suffix before the extension.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(name string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	p, err := utils.UniquePath(dir, name)
	if err != nil {
		return "", err
	}
	if err := utils.SafeWriteFile(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// Coordinator fetches an export, names it and saves it. Nothing is retried.
type Coordinator struct {
	fetcher Fetcher
	saver   Saver
}

func NewCoordinator(f Fetcher, s Saver) *Coordinator {
	return &Coordinator{fetcher: f, saver: s}
}

// Download returns the path the export was saved to.
func (c *Coordinator) Download(ctx context.Context, fileID string, f Format) (string, error) {
	exp, err := c.fetcher.Download(ctx, fileID, string(f))
	if err != nil {
		return "", err
	}
	name := FilenameFromDisposition(exp.ContentDisposition, f)
	p, err := c.saver.Save(name, exp.Body)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	log.WithComponent("download").Info("export saved", "file_id", fileID, "format", string(f), "path", p, "bytes", len(exp.Body))
	return p, nil
}
