package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"linklog/pkg/linklog"
)

const (
	currentFileName  = "current.json"
	manifestFileName = "backlog.manifest"
	dayFormat        = "2006-01-02"
)

// BacklogRecord is one append-only manifest line mapping an archived day
// to its document file.
type BacklogRecord struct {
	// Date is the archived day in 2006-01-02 form.
	Date string `json:"date"`
	// File is the archive file name relative to the store directory.
	File string `json:"file"`
}

// logDocument is the on-disk form of one day's entry log.
type logDocument struct {
	Day     string          `json:"day"`
	Entries []linklog.Entry `json:"entries"`
}

func (s *Store) currentPath() string {
	return filepath.Join(s.dir, currentFileName)
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, manifestFileName)
}

// loadCurrent reads the current document. A missing file is not an
// error; it yields an empty log with a zero day.
func (s *Store) loadCurrent() (time.Time, []linklog.Entry, error) {
	data, err := os.ReadFile(s.currentPath())
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil, nil
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("read current document: %w", err)
	}

	var document logDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return time.Time{}, nil, fmt.Errorf("parse current document: %w", err)
	}

	day := time.Time{}
	if document.Day != "" {
		parsed, err := time.ParseInLocation(dayFormat, document.Day, time.Local)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("parse current document day %q: %w", document.Day, err)
		}
		day = parsed
	}

	return day, document.Entries, nil
}

// saveCurrent writes the current document atomically: the document is
// written to a temporary file in the store directory and renamed over the
// live file, so a crash mid-write never corrupts it.
func (s *Store) saveCurrent() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	document := logDocument{
		Day:     dateOf(s.day).Format(dayFormat),
		Entries: s.entries,
	}

	return writeDocument(s.currentPath(), document)
}

// archiveLocked writes the current entries to a dated archive document
// and appends its manifest record.
func (s *Store) archiveLocked() (BacklogRecord, error) {
	day := dateOf(s.day).Format(dayFormat)
	fileName := fmt.Sprintf("log-%s.json", day)
	document := logDocument{Day: day, Entries: s.entries}

	if err := writeDocument(filepath.Join(s.dir, fileName), document); err != nil {
		return BacklogRecord{}, fmt.Errorf("write archive %s: %w", fileName, err)
	}

	record := BacklogRecord{Date: day, File: fileName}
	if err := s.appendManifest(record); err != nil {
		return BacklogRecord{}, err
	}

	return record, nil
}

// appendManifest appends one record line to the backlog manifest. The
// manifest is append-only; existing lines are never rewritten.
func (s *Store) appendManifest(record BacklogRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode manifest record: %w", err)
	}

	file, err := os.OpenFile(s.manifestPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append manifest record: %w", err)
	}

	return nil
}

// loadBacklog reads all manifest records in append order. A missing
// manifest yields an empty backlog.
func (s *Store) loadBacklog() ([]BacklogRecord, error) {
	file, err := os.Open(s.manifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	var records []BacklogRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record BacklogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse manifest line %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return records, nil
}

// writeDocument writes data to path through a temporary file and rename.
func writeDocument(path string, document logDocument) error {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(path)
	temp, err := os.CreateTemp(dir, ".document-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tempName := temp.Name()

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("replace document %s: %w", path, err)
	}

	return nil
}
