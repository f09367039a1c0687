package logstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

//go:embed record-schema.json
var recordSchema []byte

// ErrInvalidRecords indicates a record file that does not match the record schema.
var ErrInvalidRecords = errors.New("invalid record file")

// FileStore reads records from a JSON or YAML file holding an array of records.
// The file is validated against an embedded JSON schema before decoding.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the record file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Records implements [Store]. Records carrying a dbname other than session are
// skipped; records without a dbname always belong to the session.
func (s *FileStore) Records(_ context.Context, session string) ([]outcome.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	records, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQuery, s.path, err)
	}

	if session == "" {
		return records, nil
	}

	filtered := records[:0]

	for _, rec := range records {
		if rec.DBName == "" || rec.DBName == session {
			filtered = append(filtered, rec)
		}
	}

	return filtered, nil
}

// DecodeRecords validates and decodes a JSON or YAML record array.
func DecodeRecords(data []byte) ([]outcome.Record, error) {
	var raw any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}

	if raw == nil {
		raw = []any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(recordSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validate records: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, verr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidRecords, strings.Join(problems, "; "))
	}

	var entries []fileRecord

	err = yaml.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]outcome.Record, 0, len(entries))

	for i, entry := range entries {
		rec, convErr := entry.record()
		if convErr != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidRecords, i, convErr)
		}

		records = append(records, rec)
	}

	return records, nil
}

// timeLayouts are accepted for the time field; the last one is the server's
// own database timestamp format.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999", "2006-01-02 15:04:05"}

type fileRecord struct {
	Time    string `yaml:"time"`
	Level   string `yaml:"level"`
	Name    string `yaml:"name"`
	Message string `yaml:"message"`
	DBName  string `yaml:"dbname"`
	Type    string `yaml:"type"`
	Path    string `yaml:"path"`
	Func    string `yaml:"func"`
	ID      int64  `yaml:"id"`
	Line    int    `yaml:"line"`
}

func (f fileRecord) record() (outcome.Record, error) {
	rec := outcome.Record{
		Level:   f.Level,
		Name:    f.Name,
		Message: f.Message,
		DBName:  f.DBName,
		Type:    f.Type,
		Path:    f.Path,
		Func:    f.Func,
		ID:      f.ID,
		Line:    f.Line,
	}

	if f.Time == "" {
		return rec, nil
	}

	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, f.Time)
		if err == nil {
			rec.Time = ts

			return rec, nil
		}
	}

	return outcome.Record{}, fmt.Errorf("unparseable time %q", f.Time)
}
