// Package problemarchive expands a zip-packaged problem (metadata plus test
// data) into the Problem configuration fragment the judge consumes, so
// problems are not hand-written JSON only.
package problemarchive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxArchiveEntries   = 2000
	maxArchiveTotalSize = 64 * 1024 * 1024
	maxArchiveFileSize  = 16 * 1024 * 1024
)

// Problem mirrors core.Problem's JSON shape without importing core, so this
// package stays usable from a standalone CLI without pulling in the judge's
// runtime dependencies.
type Problem struct {
	ID    int             `yaml:"-" json:"id"`
	Name  string          `yaml:"-" json:"name"`
	Type  string          `yaml:"-" json:"type"`
	Misc  map[string]any  `yaml:"-" json:"misc,omitempty"`
	Cases []ProblemCase   `yaml:"-" json:"cases"`
}

type ProblemCase struct {
	Score       float64 `json:"score"`
	InputFile   string  `json:"input_file"`
	AnswerFile  string  `json:"answer_file"`
	TimeLimit   int64   `json:"time_limit"`
	MemoryLimit int64   `json:"memory_limit"`
}

// manifest is the problem.yaml document shape.
type manifest struct {
	ID    int            `yaml:"id"`
	Name  string         `yaml:"name"`
	Type  string         `yaml:"type"`
	Misc  map[string]any `yaml:"misc"`
	Cases []struct {
		Score       float64 `yaml:"score"`
		TimeLimit   int64   `yaml:"time_limit"`
		MemoryLimit int64   `yaml:"memory_limit"`
	} `yaml:"cases"`
}

// Import expands a zip archive's bytes into destDir/<problem.id>/ (input and
// answer files data/secret/<n>.in and data/secret/<n>.ans, n counted from 1
// in manifest.Cases order; other entries such as data/sample are not
// used) and returns the Problem fragment with input_file/
// answer_file pointing at the expanded paths, ready to append to a running
// configuration file.
func Import(data []byte, destDir string) (Problem, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{'P', 'K', 0x03, 0x04}) {
		return Problem{}, errors.New("archive is not a zip file")
	}

	files, root, err := collectFromZip(data)
	if err != nil {
		return Problem{}, err
	}
	if root == "" {
		return Problem{}, errors.New("archive needs a single top-level folder")
	}

	rawManifest, ok := files["problem.yaml"]
	if !ok {
		return Problem{}, errors.New("problem.yaml not found in archive")
	}
	var doc manifest
	if err := yaml.Unmarshal(rawManifest, &doc); err != nil {
		return Problem{}, fmt.Errorf("parsing problem.yaml: %w", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return Problem{}, errors.New("problem.yaml: name is required")
	}
	if doc.Type == "" {
		doc.Type = "standard"
	}
	if len(doc.Cases) == 0 {
		return Problem{}, errors.New("problem.yaml: cases is required")
	}

	problemDir := filepath.Join(destDir, fmt.Sprintf("%d", doc.ID))
	if err := os.MkdirAll(problemDir, 0o755); err != nil {
		return Problem{}, fmt.Errorf("creating problem dir: %w", err)
	}

	cases := make([]ProblemCase, 0, len(doc.Cases))
	for i, c := range doc.Cases {
		num := i + 1
		inName := fmt.Sprintf("data/secret/%d.in", num)
		ansName := fmt.Sprintf("data/secret/%d.ans", num)
		in, ok := files[inName]
		if !ok {
			return Problem{}, fmt.Errorf("missing %s", inName)
		}
		ans, ok := files[ansName]
		if !ok {
			return Problem{}, fmt.Errorf("missing %s", ansName)
		}

		inPath := filepath.Join(problemDir, fmt.Sprintf("%d.in", num))
		ansPath := filepath.Join(problemDir, fmt.Sprintf("%d.ans", num))
		if err := os.WriteFile(inPath, in, 0o644); err != nil {
			return Problem{}, fmt.Errorf("writing %s: %w", inPath, err)
		}
		if err := os.WriteFile(ansPath, ans, 0o644); err != nil {
			return Problem{}, fmt.Errorf("writing %s: %w", ansPath, err)
		}

		cases = append(cases, ProblemCase{
			Score:       c.Score,
			InputFile:   inPath,
			AnswerFile:  ansPath,
			TimeLimit:   c.TimeLimit,
			MemoryLimit: c.MemoryLimit,
		})
	}

	return Problem{
		ID:    doc.ID,
		Name:  strings.TrimSpace(doc.Name),
		Type:  doc.Type,
		Misc:  doc.Misc,
		Cases: cases,
	}, nil
}

// collectFromZip reads every file entry in the archive into memory, applying
// entry/size limits, a single top-level folder requirement, and a
// path-traversal guard.
func collectFromZip(data []byte) (map[string][]byte, string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("opening zip: %w", err)
	}

	type entry struct {
		name    string
		content []byte
	}
	var entries []entry
	var total int64
	roots := map[string]struct{}{}
	hasRootLevel := false

	for i, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if i+1 > maxArchiveEntries {
			return nil, "", errors.New("too many entries in archive")
		}
		norm := normalizePath(f.Name)
		if strings.HasPrefix(norm, "/") || strings.Contains(norm, "../") {
			return nil, "", errors.New("archive contains an unsafe path")
		}
		if f.UncompressedSize64 > maxArchiveFileSize {
			return nil, "", fmt.Errorf("file %s exceeds the per-file size limit", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("opening %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveFileSize))
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", f.Name, err)
		}
		total += int64(len(content))
		if total > maxArchiveTotalSize {
			return nil, "", errors.New("archive exceeds the total size limit")
		}
		entries = append(entries, entry{name: norm, content: content})

		parts := strings.SplitN(norm, "/", 2)
		if len(parts) == 1 {
			hasRootLevel = true
		} else {
			roots[parts[0]] = struct{}{}
		}
	}
	if hasRootLevel {
		return nil, "", errors.New("archive needs a single top-level folder")
	}
	if len(roots) != 1 {
		return nil, "", errors.New("archive must contain exactly one top-level folder")
	}
	var root string
	for r := range roots {
		root = r
	}

	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		name := strings.TrimPrefix(e.name, root+"/")
		if name == "" {
			continue
		}
		files[name] = e.content
	}
	return files, root, nil
}

func normalizePath(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "./")
	return strings.TrimPrefix(cleaned, "/")
}
