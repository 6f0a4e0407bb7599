package alarms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/sayit-alarm/internal/config"
	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
	"github.com/oshokin/sayit-alarm/internal/logger"
	store "github.com/oshokin/sayit-alarm/internal/repository/alarms"
)

// Document is the YAML layout shared by import and list.
type Document struct {
	// Alarms are the alarm definitions.
	Alarms []*domain.Alarm `yaml:"alarms"`
}

// Options controls the alarms subcommands.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Database overrides the SQLite alarm store path.
	Database string
	// File is the YAML document to import.
	File string
	// Prune deletes stored alarms missing from the imported document.
	Prune bool
}

// errDuplicateID is returned when a document defines the same id twice.
var errDuplicateID = errors.New("duplicate alarm id")

// Repository is the part of the alarm store the subcommands use.
type Repository interface {
	List(ctx context.Context) ([]*domain.Alarm, error)
	Put(ctx context.Context, alarm *domain.Alarm) error
	Delete(ctx context.Context, id int64) error
}

// RunImport loads opts.File into the alarm store.
func RunImport(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarms-import")

	document, err := ReadDocument(opts.File)
	if err != nil {
		return err
	}

	return withStore(ctx, opts, func(repo *store.SQLiteRepository) error {
		imported, pruned, importErr := Import(ctx, repo, document, opts.Prune)
		if importErr != nil {
			return importErr
		}

		logger.InfoKV(ctx, "Alarms imported", "file", opts.File, "imported", imported, "pruned", pruned)

		return nil
	})
}

// RunList writes the stored alarms to w as a YAML document.
func RunList(ctx context.Context, opts *Options, w io.Writer) error {
	ctx = logger.WithName(ctx, "alarms-list")

	return withStore(ctx, opts, func(repo *store.SQLiteRepository) error {
		return List(ctx, repo, w)
	})
}

// ReadDocument reads and validates an alarm document.
func ReadDocument(path string) (*Document, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read alarms: %w", err)
	}

	var document Document
	if err = yaml.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("unmarshal alarms: %w", err)
	}

	seen := make(map[int64]struct{}, len(document.Alarms))

	for i, alarm := range document.Alarms {
		if err = alarm.Validate(); err != nil {
			return nil, fmt.Errorf("alarm #%d: %w", i+1, err)
		}

		if _, ok := seen[alarm.ID]; ok {
			return nil, fmt.Errorf("alarm #%d: %w %d", i+1, errDuplicateID, alarm.ID)
		}

		seen[alarm.ID] = struct{}{}
	}

	return &document, nil
}

// Import stores every alarm of document. With prune, stored alarms the document
// does not mention are deleted.
func Import(ctx context.Context, repo Repository, document *Document, prune bool) (imported, pruned int, err error) {
	keep := make(map[int64]struct{}, len(document.Alarms))

	for _, alarm := range document.Alarms {
		if err = repo.Put(ctx, alarm); err != nil {
			return imported, pruned, fmt.Errorf("put alarm %d: %w", alarm.ID, err)
		}

		keep[alarm.ID] = struct{}{}
		imported++
	}

	if !prune {
		return imported, pruned, nil
	}

	stored, err := repo.List(ctx)
	if err != nil {
		return imported, pruned, fmt.Errorf("list alarms: %w", err)
	}

	for _, alarm := range stored {
		if _, ok := keep[alarm.ID]; ok {
			continue
		}

		if err = repo.Delete(ctx, alarm.ID); err != nil {
			return imported, pruned, fmt.Errorf("delete alarm %d: %w", alarm.ID, err)
		}

		pruned++
	}

	return imported, pruned, nil
}

// List encodes every stored alarm to w.
func List(ctx context.Context, repo Repository, w io.Writer) error {
	stored, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2) //nolint:mnd // Two spaces match the settings file.

	if err = encoder.Encode(Document{Alarms: stored}); err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	return encoder.Close()
}

// withStore opens the configured alarm store for the duration of fn.
func withStore(ctx context.Context, opts *Options, fn func(*store.SQLiteRepository) error) error {
	database := opts.Database
	if database == "" {
		settings, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		database = settings.Database
	}

	repo, err := store.Open(ctx, database)
	if err != nil {
		return fmt.Errorf("open alarm store: %w", err)
	}

	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Close alarm store failed", "error", closeErr)
		}
	}()

	return fn(repo)
}
