// Package tasklist reads download task lists from JSON or YAML files.
package tasklist

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

const maxNameLength = 200

type entryMetadata struct {
	URL         string `json:"url" yaml:"url"`
	DownloadURL string `json:"download_url" yaml:"download_url"`
	Link        string `json:"link" yaml:"link"`
	Source      string `json:"source" yaml:"source"`
}

type entry struct {
	URL         string              `json:"url" yaml:"url"`
	DownloadURL string              `json:"download_url" yaml:"download_url"`
	Link        string              `json:"link" yaml:"link"`
	Source      string              `json:"source" yaml:"source"`
	Name        string              `json:"name" yaml:"name"`
	Filename    string              `json:"filename" yaml:"filename"`
	Destination string              `json:"destination" yaml:"destination"`
	Hint        domain.ContentClass `json:"hint" yaml:"hint"`
	Folder      string              `json:"folder" yaml:"folder"`
	Metadata    *entryMetadata      `json:"metadata" yaml:"metadata"`
}

type document struct {
	Tasks   []entry `json:"tasks" yaml:"tasks"`
	Missing []entry `json:"missing" yaml:"missing"`
}

// Load reads the task list at path. Accepted shapes are a top-level list of
// entries, an object with a "tasks" list, or a download queue with a
// "missing" list. Tasks without a destination are placed under
// downloadDir/source/folder/name; relative destinations are joined to
// downloadDir. Destinations are always absolute. Entries are not validated
// here.
func Load(path, downloadDir string) ([]domain.DownloadTask, error) {
	root, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve download directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task list: %w", err)
	}

	var unmarshal func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("unsupported task list format: %q", filepath.Ext(path))
	}

	entries, err := decode(data, unmarshal)
	if err != nil {
		return nil, fmt.Errorf("parse task list %s: %w", path, err)
	}

	defaultSource := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tasks := make([]domain.DownloadTask, 0, len(entries))
	for _, e := range entries {
		tasks = append(tasks, e.toTask(root, defaultSource))
	}
	return tasks, nil
}

func decode(data []byte, unmarshal func([]byte, any) error) ([]entry, error) {
	var list []entry
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc document
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return append(doc.Tasks, doc.Missing...), nil
}

func (e entry) toTask(downloadDir, defaultSource string) domain.DownloadTask {
	rawURL := firstNonEmpty(e.URL, e.DownloadURL, e.Link)
	source := e.Source
	if e.Metadata != nil {
		rawURL = firstNonEmpty(rawURL, e.Metadata.URL, e.Metadata.DownloadURL, e.Metadata.Link)
		source = firstNonEmpty(source, e.Metadata.Source)
	}
	source = SanitizeName(firstNonEmpty(source, defaultSource))

	name := firstNonEmpty(e.Name, e.Filename, nameFromURL(rawURL))
	name = SanitizeName(name)

	dest := e.Destination
	switch {
	case dest == "":
		parts := []string{downloadDir, source}
		for _, seg := range strings.FieldsFunc(e.Folder, func(r rune) bool { return r == '/' || r == '\\' }) {
			if seg == "." || seg == ".." {
				continue
			}
			parts = append(parts, SanitizeName(seg))
		}
		dest = filepath.Join(append(parts, name)...)
	case !filepath.IsAbs(dest):
		dest = filepath.Join(downloadDir, dest)
	}

	return domain.DownloadTask{
		URL:         strings.TrimSpace(rawURL),
		Destination: dest,
		Source:      source,
		Name:        name,
		Hint:        e.Hint,
	}
}

var (
	reIllegal     = regexp.MustCompile(`[<>:"/\\|?*]`)
	reWhitespace  = regexp.MustCompile(`\s+`)
	reUnderscores = regexp.MustCompile(`_{2,}`)
	reNonWord     = regexp.MustCompile(`[^\w\-.]`)
)

// SanitizeName makes name safe to use as a single path element.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = reIllegal.ReplaceAllString(name, "_")
	name = reWhitespace.ReplaceAllString(name, "_")
	name = reUnderscores.ReplaceAllString(name, "_")
	name = reNonWord.ReplaceAllString(name, "_")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "." || name == ".." {
		name = strings.Repeat("_", len(name))
	}
	return name
}

func nameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
