package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcoria/leyesmx/pkg/catalog"
	"github.com/rcoria/leyesmx/pkg/convert"
	"github.com/rcoria/leyesmx/pkg/extract"
	"github.com/rcoria/leyesmx/pkg/fetch"
	"github.com/rcoria/leyesmx/pkg/store"
)

const statuteHTML = `<html><head><meta charset="utf-8"><title>LFTAIP</title></head><body>
<h1>LEY FEDERAL DE TRANSPARENCIA Y ACCESO A LA INFORMACIÓN PÚBLICA</h1>
<p>Artículo 1o.- La presente Ley es de orden público y tiene por objeto garantizar el derecho de acceso a la información pública en posesión de cualquier autoridad federal de los sujetos obligados.</p>
<p>Artículo 2o.- Son objetivos de esta Ley proveer lo necesario para que todo interesado pueda tener acceso a la información mediante procedimientos sencillos y expeditos ante los sujetos obligados.</p>
<p>Artículo 3o.- Para el ejercicio del derecho de acceso a la información la Federación contará con los órganos garantes previstos en la Constitución Política de los Estados Unidos Mexicanos.</p>
</body></html>`

const statutePlainText = `Artículo 1o.- La presente Ley es de orden público y de observancia general en toda la República Mexicana conforme a las bases constitucionales aplicables.

Artículo 2o.- La aplicación de esta Ley corresponde al Ejecutivo Federal por conducto de la Secretaría competente conforme a su reglamento interior.`

// archiveHandler serves a fixed path→response map, answering 404 for
// anything else and recording every requested path.
type archiveHandler struct {
	mu        sync.Mutex
	responses map[string]archiveResponse
	requested []string
}

type archiveResponse struct {
	status      int
	contentType string
	body        string
}

func (handler *archiveHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	handler.mu.Lock()
	handler.requested = append(handler.requested, request.URL.Path)
	response, found := handler.responses[request.URL.Path]
	handler.mu.Unlock()

	if !found {
		http.NotFound(writer, request)
		return
	}
	writer.Header().Set("Content-Type", response.contentType)
	writer.WriteHeader(response.status)
	writer.Write([]byte(response.body))
}

// writeFakeTool installs a shell script that emits the named argument,
// standing in for antiword or pdftotext.
func writeFakeTool(t *testing.T, name string, script string) string {
	t.Helper()
	toolPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("Failed to write fake tool: %v", err)
	}
	return toolPath
}

// newTestPipeline assembles a pipeline against the handler's server with a
// file store in a temp directory.
func newTestPipeline(t *testing.T, handler *archiveHandler, workers int) (*Pipeline, *store.FileStore, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clientConfig := fetch.DefaultClientConfig()
	clientConfig.MaxRetries = 0
	clientConfig.RetryBaseDelay = time.Millisecond
	client := fetch.NewClient(clientConfig, fetch.NewGate(2, 0))

	fallbackConfig := fetch.FallbackConfig{
		BaseURL:      server.URL + "/LeyesBiblio",
		MinHTMLBytes: 32,
	}
	fallback := fetch.NewFallback(client, fallbackConfig)

	convertConfig := convert.DefaultConvertConfig()
	convertConfig.WordCommand = writeFakeTool(t, "fakeword", `cat "$3"`)
	convertConfig.PDFCommand = writeFakeTool(t, "fakepdf", `cat "$4"`)
	converter := convert.NewExecConverter(convertConfig)

	fileStore, err := store.OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	pipeline := NewPipeline(fallback, converter, extract.NewExtractor(extract.DefaultExtractConfig()), fileStore, PipelineConfig{Workers: workers})
	return pipeline, fileStore, server
}

func testDescriptor() catalog.Descriptor {
	return catalog.Descriptor{
		ID:          "lftaip",
		Title:       "Ley Federal de Transparencia y Acceso a la Información Pública",
		ShortTitle:  "LFTAIP",
		Status:      catalog.StatusVigente,
		Published:   "09-05-2016",
		Description: "Garantiza el derecho de acceso a la información pública federal.",
	}
}

func TestIngestDocumentMarkupWins(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{
		"/LeyesBiblio/ref/lftaip.htm": {status: 200, contentType: "text/html; charset=utf-8", body: statuteHTML},
	}}
	pipeline, fileStore, _ := newTestPipeline(t, handler, 1)

	report, err := pipeline.IngestDocument(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	if report.Status != StatusIngested {
		t.Errorf("Expected status %q, got %q (err: %s)", StatusIngested, report.Status, report.Err)
	}
	if report.FormatUsed != "markup" {
		t.Errorf("Expected markup format, got %q", report.FormatUsed)
	}
	if report.Provisions < 2 {
		t.Errorf("Expected at least 2 provisions, got %d", report.Provisions)
	}

	document, err := fileStore.Get(context.Background(), "lftaip")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if document.Stub {
		t.Error("Expected a real document, got a stub")
	}
	if document.ProvisionByKey("art1") == nil {
		t.Error("Expected provision art1 in the stored document")
	}
	if !strings.Contains(document.SourceURL, "/ref/lftaip.htm") {
		t.Errorf("Expected markup source URL, got %q", document.SourceURL)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{
		"/LeyesBiblio/ref/lftaip.htm": {status: 200, contentType: "text/html; charset=utf-8", body: statuteHTML},
	}}
	pipeline, fileStore, _ := newTestPipeline(t, handler, 1)

	document, report, err := pipeline.Preview(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}

	if report.Status != StatusIngested {
		t.Errorf("Expected status %q, got %q (err: %s)", StatusIngested, report.Status, report.Err)
	}
	if document == nil || len(document.Provisions) == 0 {
		t.Fatal("Expected a document with provisions from Preview")
	}

	if _, err := fileStore.Get(context.Background(), "lftaip"); !store.IsNotFound(err) {
		t.Errorf("Expected nothing persisted after Preview, got %v", err)
	}
}

func TestIngestDocumentFallsBackToWord(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{
		"/LeyesBiblio/doc/lftaip.doc": {status: 200, contentType: "application/msword", body: statutePlainText},
	}}
	pipeline, fileStore, _ := newTestPipeline(t, handler, 1)

	report, err := pipeline.IngestDocument(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	if report.Status != StatusIngested {
		t.Errorf("Expected status %q, got %q (err: %s)", StatusIngested, report.Status, report.Err)
	}
	if report.FormatUsed != "word" {
		t.Errorf("Expected word format, got %q", report.FormatUsed)
	}
	if report.Provisions != 2 {
		t.Errorf("Expected 2 provisions, got %d", report.Provisions)
	}

	document, err := fileStore.Get(context.Background(), "lftaip")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.Contains(document.SourceURL, "/doc/lftaip.doc") {
		t.Errorf("Expected word source URL, got %q", document.SourceURL)
	}
}

func TestIngestDocumentSkipsUselessMarkup(t *testing.T) {
	uselessPage := "<html><body><p>" + strings.Repeat("Página de presentación del archivo sin articulado. ", 20) + "</p></body></html>"
	handler := &archiveHandler{responses: map[string]archiveResponse{
		"/LeyesBiblio/ref/lftaip.htm": {status: 200, contentType: "text/html; charset=utf-8", body: uselessPage},
		"/LeyesBiblio/doc/lftaip.doc": {status: 200, contentType: "application/msword", body: statutePlainText},
	}}
	pipeline, _, _ := newTestPipeline(t, handler, 1)

	report, err := pipeline.IngestDocument(context.Background(), testDescriptor())
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	if report.FormatUsed != "word" {
		t.Errorf("Expected fallback to word after empty markup extraction, got %q", report.FormatUsed)
	}
	if report.Err != "" {
		t.Errorf("Expected clean report after fallback success, got error %q", report.Err)
	}
}

func TestIngestDocumentStubWhenAllFormatsFail(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{}}
	pipeline, fileStore, _ := newTestPipeline(t, handler, 1)

	descriptor := testDescriptor()
	report, err := pipeline.IngestDocument(context.Background(), descriptor)
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	if report.Status != StatusStub {
		t.Errorf("Expected status %q, got %q", StatusStub, report.Status)
	}
	if !report.Stub {
		t.Error("Expected stub flag set")
	}
	if report.Provisions != 1 {
		t.Errorf("Expected exactly one stub provision, got %d", report.Provisions)
	}
	if report.Err == "" {
		t.Error("Expected failure notes on the stub report")
	}

	document, err := fileStore.Get(context.Background(), "lftaip")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !document.Stub {
		t.Error("Expected stored document marked as stub")
	}
	if len(document.Provisions) != 1 {
		t.Fatalf("Expected exactly one provision, got %d", len(document.Provisions))
	}
	provision := document.Provisions[0]
	if provision.Key != StubKey {
		t.Errorf("Expected stub provision key %q, got %q", StubKey, provision.Key)
	}
	if provision.Label != descriptor.Title {
		t.Errorf("Expected stub label to carry the title, got %q", provision.Label)
	}
	if !strings.Contains(provision.Content, descriptor.Description) {
		t.Errorf("Expected stub content to carry the description, got %q", provision.Content)
	}
	if !strings.Contains(provision.Content, "Fuente: ") {
		t.Errorf("Expected stub content to name its source, got %q", provision.Content)
	}
}

func TestIngestDocumentWordOverrideURL(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{
		"/LeyesBiblio/doc/lftaip_230421.doc": {status: 200, contentType: "application/msword", body: statutePlainText},
	}}
	pipeline, _, server := newTestPipeline(t, handler, 1)

	descriptor := testDescriptor()
	descriptor.WordURLs = []string{server.URL + "/LeyesBiblio/doc/lftaip_230421.doc"}

	report, err := pipeline.IngestDocument(context.Background(), descriptor)
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if report.FormatUsed != "word" {
		t.Errorf("Expected word format via override URL, got %q", report.FormatUsed)
	}
}

func TestIngestAllIsolatesFailures(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{
		"/LeyesBiblio/doc/lftaip.doc": {status: 200, contentType: "application/msword", body: statutePlainText},
	}}
	pipeline, fileStore, _ := newTestPipeline(t, handler, 2)

	missing := testDescriptor()
	missing.ID = "lmd"
	missing.Title = "Ley de Montes y Deslindes"

	var progressMu sync.Mutex
	var progressed []string
	pipeline.SetProgressCallback(func(completed int, total int, documentID string) {
		progressMu.Lock()
		progressed = append(progressed, documentID)
		progressMu.Unlock()
	})

	batch := pipeline.IngestAll(context.Background(), []catalog.Descriptor{testDescriptor(), missing})

	if batch.TotalAttempted != 2 {
		t.Fatalf("Expected 2 attempts, got %d", batch.TotalAttempted)
	}
	if batch.Succeeded != 1 || batch.Stubbed != 1 || batch.Failed != 0 {
		t.Errorf("Expected 1 ingested and 1 stub, got succeeded=%d stubbed=%d failed=%d",
			batch.Succeeded, batch.Stubbed, batch.Failed)
	}
	if batch.Reports[0].DocumentID != "lftaip" || batch.Reports[1].DocumentID != "lmd" {
		t.Errorf("Expected descriptor order preserved, got %q then %q",
			batch.Reports[0].DocumentID, batch.Reports[1].DocumentID)
	}
	if len(progressed) != 2 {
		t.Errorf("Expected 2 progress updates, got %d", len(progressed))
	}

	if _, err := fileStore.Get(context.Background(), "lmd"); err != nil {
		t.Errorf("Expected stub document persisted for lmd: %v", err)
	}
}

func TestIngestAllHonorsCancellation(t *testing.T) {
	handler := &archiveHandler{responses: map[string]archiveResponse{}}
	pipeline, _, _ := newTestPipeline(t, handler, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := pipeline.IngestAll(ctx, []catalog.Descriptor{testDescriptor()})

	if batch.Failed != 1 {
		t.Errorf("Expected 1 failed report under canceled context, got %d", batch.Failed)
	}
}

func TestFormatBatchReport(t *testing.T) {
	batch := &BatchReport{StartedAt: time.Now(), FinishedAt: time.Now()}
	batch.Add(&Report{DocumentID: "lftaip", Status: StatusIngested, FormatUsed: "markup", Provisions: 12, Definitions: 3})
	batch.Add(&Report{DocumentID: "lmd", Status: StatusStub, Stub: true, Provisions: 1, Err: "markup: status 404"})

	rendered := FormatBatchReport(batch)

	if !strings.Contains(rendered, "[OK]") || !strings.Contains(rendered, "[STUB]") {
		t.Errorf("Expected status markers in report, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Attempted: 2 | Ingested: 1 | Stubs: 1 | Failed: 0") {
		t.Errorf("Expected summary line, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "12 provisions") {
		t.Errorf("Expected provision count, got:\n%s", rendered)
	}
}
