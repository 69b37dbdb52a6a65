package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	manifestFileName = "catalog.json"
	manifestVersion  = "1.0.0"
)

// manifest indexes the documents held by a FileStore.
type manifest struct {
	Version   string           `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Documents []*manifestEntry `json:"documents"`
}

// manifestEntry is the per-document summary kept in the manifest.
type manifestEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status,omitempty"`
	Format     string    `json:"format,omitempty"`
	Stub       bool      `json:"stub"`
	Provisions int       `json:"provisions"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FileStore persists documents under a directory: a catalog.json manifest
// plus one <id>.json file per document.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	manifest *manifest
}

// OpenFileStore opens the store at the given directory, creating the
// directory and an empty manifest when absent.
func OpenFileStore(storePath string) (*FileStore, error) {
	if err := os.MkdirAll(storePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fileStore := &FileStore{path: storePath}

	manifestPath := filepath.Join(storePath, manifestFileName)
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		fileStore.manifest = &manifest{
			Version:   manifestVersion,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
			Documents: []*manifestEntry{},
		}
		if err := fileStore.saveManifestUnsafe(); err != nil {
			return nil, err
		}
		return fileStore, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store manifest: %w", err)
	}

	var loaded manifest
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse store manifest: %w", err)
	}
	fileStore.manifest = &loaded
	return fileStore, nil
}

// Save upserts a document and its manifest entry.
func (fileStore *FileStore) Save(_ context.Context, document *Document) error {
	if document == nil || document.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	// Document files share the directory with the manifest, so the
	// manifest's base name is reserved.
	if document.ID+".json" == manifestFileName {
		return fmt.Errorf("document ID %s is reserved for the store manifest", document.ID)
	}

	fileStore.mu.Lock()
	defer fileStore.mu.Unlock()

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", document.ID, err)
	}
	if err := os.WriteFile(fileStore.documentPath(document.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write document %s: %w", document.ID, err)
	}

	fileStore.upsertEntryUnsafe(&manifestEntry{
		ID:         document.ID,
		Title:      document.Title,
		Status:     document.Status,
		Format:     document.Format,
		Stub:       document.Stub,
		Provisions: len(document.Provisions),
		UpdatedAt:  time.Now().UTC(),
	})

	return fileStore.saveManifestUnsafe()
}

// Get loads one document by ID.
func (fileStore *FileStore) Get(_ context.Context, documentID string) (*Document, error) {
	fileStore.mu.RLock()
	defer fileStore.mu.RUnlock()

	if fileStore.findEntryUnsafe(documentID) == nil {
		return nil, &ErrNotFound{ID: documentID}
	}

	data, err := os.ReadFile(fileStore.documentPath(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", documentID, err)
	}

	var document Document
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse document %s: %w", documentID, err)
	}
	return &document, nil
}

// List returns all stored documents, sorted by ID.
func (fileStore *FileStore) List(ctx context.Context) ([]*Document, error) {
	fileStore.mu.RLock()
	identifiers := make([]string, 0, len(fileStore.manifest.Documents))
	for _, entry := range fileStore.manifest.Documents {
		identifiers = append(identifiers, entry.ID)
	}
	fileStore.mu.RUnlock()

	sort.Strings(identifiers)

	documents := make([]*Document, 0, len(identifiers))
	for _, documentID := range identifiers {
		document, err := fileStore.Get(ctx, documentID)
		if err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}
	return documents, nil
}

// Close is a no-op provided for interface consistency.
func (fileStore *FileStore) Close(_ context.Context) error {
	return nil
}

// Path returns the store's root directory.
func (fileStore *FileStore) Path() string {
	return fileStore.path
}

func (fileStore *FileStore) documentPath(documentID string) string {
	return filepath.Join(fileStore.path, documentID+".json")
}

func (fileStore *FileStore) findEntryUnsafe(documentID string) *manifestEntry {
	for _, entry := range fileStore.manifest.Documents {
		if entry.ID == documentID {
			return entry
		}
	}
	return nil
}

func (fileStore *FileStore) upsertEntryUnsafe(entry *manifestEntry) {
	for index, existing := range fileStore.manifest.Documents {
		if existing.ID == entry.ID {
			fileStore.manifest.Documents[index] = entry
			fileStore.manifest.UpdatedAt = time.Now().UTC()
			return
		}
	}
	fileStore.manifest.Documents = append(fileStore.manifest.Documents, entry)
	fileStore.manifest.UpdatedAt = time.Now().UTC()
}

func (fileStore *FileStore) saveManifestUnsafe() error {
	data, err := json.MarshalIndent(fileStore.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(fileStore.path, manifestFileName)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
