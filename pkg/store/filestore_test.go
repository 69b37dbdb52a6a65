package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcoria/leyesmx/pkg/extract"
)

var _ Store = (*FileStore)(nil)
var _ Store = (*MongoStore)(nil)

func sampleDocument() *Document {
	return &Document{
		ID:         "lftaip",
		Title:      "Ley Federal de Transparencia y Acceso a la Información Pública",
		ShortTitle: "LFTAIP",
		Status:     "vigente",
		Published:  "2016-05-09",
		SourceURL:  "https://www.diputados.gob.mx/LeyesBiblio/ref/lftaip.htm",
		FetchedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Format:     "markup",
		Provisions: []extract.Provision{
			{Key: "art1", Label: "1o", Content: "La presente Ley es de orden público."},
			{Key: "trans1", Label: "PRIMERO", Chapter: "TRANSITORIOS", Content: "Entrará en vigor al día siguiente."},
		},
		Definitions: []extract.Definition{
			{Term: "Sujeto obligado", Meaning: "toda autoridad federal", Key: "art3"},
		},
	}
}

func TestFileStoreSaveAndGet(t *testing.T) {
	fileStore, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	document := sampleDocument()
	if err := fileStore.Save(context.Background(), document); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := fileStore.Get(context.Background(), "lftaip")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.Title != document.Title {
		t.Errorf("Title mismatch: got %q, want %q", loaded.Title, document.Title)
	}
	if len(loaded.Provisions) != 2 {
		t.Errorf("Expected 2 provisions, got %d", len(loaded.Provisions))
	}
	if len(loaded.Definitions) != 1 {
		t.Errorf("Expected 1 definition, got %d", len(loaded.Definitions))
	}
	if provision := loaded.ProvisionByKey("art1"); provision == nil {
		t.Error("Expected provision art1 to be retrievable by key")
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	fileStore, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	_, err = fileStore.Get(context.Background(), "no-such-law")
	if err == nil {
		t.Fatal("Expected error for missing document")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestFileStoreSaveUpserts(t *testing.T) {
	fileStore, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	document := sampleDocument()
	if err := fileStore.Save(context.Background(), document); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	document.Status = "abrogada"
	if err := fileStore.Save(context.Background(), document); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	documents, err := fileStore.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(documents) != 1 {
		t.Fatalf("Expected 1 document after upsert, got %d", len(documents))
	}
	if documents[0].Status != "abrogada" {
		t.Errorf("Expected updated status, got %q", documents[0].Status)
	}
}

func TestFileStoreListSorted(t *testing.T) {
	fileStore, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	for _, documentID := range []string{"lgtaip", "cpeum", "lftaip"} {
		document := sampleDocument()
		document.ID = documentID
		if err := fileStore.Save(context.Background(), document); err != nil {
			t.Fatalf("Save %s failed: %v", documentID, err)
		}
	}

	documents, err := fileStore.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(documents) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(documents))
	}

	want := []string{"cpeum", "lftaip", "lgtaip"}
	for index, documentID := range want {
		if documents[index].ID != documentID {
			t.Errorf("Position %d: got %q, want %q", index, documents[index].ID, documentID)
		}
	}
}

func TestFileStoreReopenKeepsDocuments(t *testing.T) {
	directory := t.TempDir()

	fileStore, err := OpenFileStore(directory)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}
	if err := fileStore.Save(context.Background(), sampleDocument()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := fileStore.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenFileStore(directory)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	loaded, err := reopened.Get(context.Background(), "lftaip")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if loaded.ID != "lftaip" {
		t.Errorf("Expected lftaip after reopen, got %q", loaded.ID)
	}
}

func TestFileStoreStubRoundTrip(t *testing.T) {
	fileStore, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	stub := &Document{
		ID:        "lmd",
		Title:     "Ley de Montes y Deslindes",
		Status:    "abrogada",
		FetchedAt: time.Now().UTC(),
		Stub:      true,
		Provisions: []extract.Provision{
			{Key: "doc", Label: "Ley de Montes y Deslindes", Content: "Documento no disponible en el archivo."},
		},
	}
	if err := fileStore.Save(context.Background(), stub); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := fileStore.Get(context.Background(), "lmd")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !loaded.Stub {
		t.Error("Expected stub flag to survive the round trip")
	}
	if len(loaded.Provisions) != 1 || loaded.Provisions[0].Key != "doc" {
		t.Errorf("Expected single stub provision keyed doc, got %+v", loaded.Provisions)
	}
}

func TestFileStoreRejectsEmptyID(t *testing.T) {
	fileStore, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	if err := fileStore.Save(context.Background(), &Document{}); err == nil {
		t.Error("Expected error for empty document ID")
	}
}

func TestFileStoreRejectsManifestCollidingID(t *testing.T) {
	directory := t.TempDir()

	fileStore, err := OpenFileStore(directory)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}
	if err := fileStore.Save(context.Background(), sampleDocument()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	colliding := sampleDocument()
	colliding.ID = "catalog"
	if err := fileStore.Save(context.Background(), colliding); err == nil {
		t.Fatal("Expected error for document ID colliding with the manifest file")
	}

	reopened, err := OpenFileStore(directory)
	if err != nil {
		t.Fatalf("Reopen after rejected save failed: %v", err)
	}
	documents, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List after rejected save failed: %v", err)
	}
	if len(documents) != 1 || documents[0].ID != "lftaip" {
		t.Errorf("Expected the manifest to survive intact with 1 document, got %d", len(documents))
	}
}
