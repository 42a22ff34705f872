package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/roach88/wfkeeper/internal/workflow"
)

const (
	// IndexFile holds the fingerprint ledger.
	IndexFile = ".workflow_hashes.json"
	// ArchiveFile holds the redacted document ledger.
	ArchiveFile = ".workflow_data.json"
	// WorkflowDir is the subdirectory holding one file per workflow.
	WorkflowDir = "workflows"

	fallbackName = "unnamed_workflow"
	maxNameRunes = 100
)

// Index maps workflow id to the fingerprint of the last fetched content.
type Index map[string]workflow.Fingerprint

// Archive maps workflow id to the last persisted (redacted) document.
type Archive map[string]*workflow.Document

// Store reads and writes snapshot files below Root.
type Store struct {
	Root string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{Root: dir}
}

// Load reads the index and archive. A missing file yields an empty map.
func (s *Store) Load() (Index, Archive, error) {
	index := Index{}
	if err := readJSON(filepath.Join(s.Root, IndexFile), &index); err != nil {
		return nil, nil, fmt.Errorf("load index: %w", err)
	}
	archive := Archive{}
	if err := readJSON(filepath.Join(s.Root, ArchiveFile), &archive); err != nil {
		return nil, nil, fmt.Errorf("load archive: %w", err)
	}
	for id, doc := range archive {
		if doc == nil {
			delete(archive, id)
		}
	}
	return index, archive, nil
}

// Save overwrites the index and then the archive.
func (s *Store) Save(index Index, archive Archive) error {
	idx := make(workflow.Object, len(index))
	for id, fp := range index {
		idx[id] = workflow.String(fp)
	}
	data, err := workflow.MarshalIndentValue(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.Root, IndexFile), data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	arc := make(workflow.Object, len(archive))
	for id, doc := range archive {
		if doc == nil {
			continue
		}
		arc[id] = doc.Object()
	}
	data, err = workflow.MarshalIndentValue(arc)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.Root, ArchiveFile), data); err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

// WriteWorkflow persists doc under the workflow directory and returns the
// path written. The caller is expected to pass an already redacted document.
func (s *Store) WriteWorkflow(doc *workflow.Document) (string, error) {
	if doc == nil {
		return "", errors.New("write workflow: nil document")
	}
	data, err := doc.MarshalIndent()
	if err != nil {
		return "", fmt.Errorf("encode workflow %s: %w", doc.ID, err)
	}
	name := FileName(doc.ID, doc.Name)
	path := filepath.Join(s.Root, WorkflowDir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write workflow %s: %w", doc.ID, err)
	}
	if err := s.removeStale(doc.ID, name); err != nil {
		return "", fmt.Errorf("write workflow %s: %w", doc.ID, err)
	}
	return path, nil
}

// removeStale deletes files left under a previous name of the same workflow.
// Sanitized ids never contain '_', so the prefix cannot match another id.
func (s *Store) removeStale(id, keep string) error {
	dir := filepath.Join(s.Root, WorkflowDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}
	prefix := safeID(id) + "_"
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || n == keep || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, n)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", n, err)
		}
	}
	return nil
}

// File describes one persisted workflow file.
type File struct {
	Name string
	Size int64
}

// Files lists the persisted workflow files sorted by name. A missing
// workflow directory yields an empty list.
func (s *Store) Files() ([]File, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, WorkflowDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, File{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// FileName builds the on-disk name for a workflow: the id, an underscore and
// the sanitized name. Sanitizing keeps letters, digits, spaces, '-' and '_',
// trims surrounding spaces and truncates to 100 runes. An empty result falls
// back to "unnamed_workflow". In the id every rune other than a letter, a
// digit or '-' becomes '-', so ids cannot leave the workflow directory.
func FileName(id, name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		safe = fallbackName
	}
	if runes := []rune(safe); len(runes) > maxNameRunes {
		safe = string(runes[:maxNameRunes])
	}
	return safeID(id) + "_" + safe + ".json"
}

func safeID(id string) string {
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			return r
		}
		return '-'
	}, id)
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the destination directory and
// renames it over path, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("finalize temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
