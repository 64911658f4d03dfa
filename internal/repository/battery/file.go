package battery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/pump-monitor/internal/config"
)

// Document keys.
const (
	levelKey     = "level"
	timestampKey = "timestamp"
)

// Record is one persisted battery level.
type Record struct {
	// Level is the battery level in percent.
	Level float64
	// Timestamp is when the level was recorded.
	Timestamp time.Time
}

// Repository defines persistence operations for the battery level.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// FileRepository persists the battery level to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the battery file does not exist yet.
	ErrNotFound = errors.New("battery level not found")
	// errLevelMissing is returned for a document without a level.
	errLevelMissing = errors.New("battery file has no level")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the battery level from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read battery file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode battery file: %w", err)
	}

	return fromStruct(&doc)
}

// Save writes the battery level to disk.
func (r *FileRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toStruct(record)
	if err != nil {
		return fmt.Errorf("encode battery level: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode battery level: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write battery file: %w", err)
	}

	return nil
}

// fromStruct converts the stored document into a Record.
func fromStruct(doc *structpb.Struct) (*Record, error) {
	fields := doc.GetFields()

	level, ok := fields[levelKey]
	if !ok {
		return nil, errLevelMissing
	}

	record := &Record{
		Level: level.GetNumberValue(),
	}

	if ts := fields[timestampKey].GetStringValue(); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse battery timestamp: %w", err)
		}

		record.Timestamp = parsed
	}

	return record, nil
}

// toStruct converts a Record into its stored document.
func toStruct(record *Record) (*structpb.Struct, error) {
	fields := map[string]any{
		levelKey: record.Level,
	}

	if !record.Timestamp.IsZero() {
		fields[timestampKey] = record.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(fields)
}
