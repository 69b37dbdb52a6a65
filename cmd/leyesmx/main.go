package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcoria/leyesmx/pkg/catalog"
	"github.com/rcoria/leyesmx/pkg/config"
	"github.com/rcoria/leyesmx/pkg/convert"
	"github.com/rcoria/leyesmx/pkg/extract"
	"github.com/rcoria/leyesmx/pkg/fetch"
	"github.com/rcoria/leyesmx/pkg/ingest"
	"github.com/rcoria/leyesmx/pkg/store"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "leyesmx",
		Short: "Mexican federal statute ingester",
		Long: `Leyesmx ingests Mexican federal statutes from the LeyesBiblio archive
of the Cámara de Diputados.

For every document in the catalog it fetches the best available
publication (structured HTML, word-processor export, or PDF), extracts
the articles and transitory provisions, and stores structured documents
for downstream use.`,
		Version: version,
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Initialize an ingestion workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}

			dataDir := filepath.Join(projectDir, "data")
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dataDir, err)
			}

			configPath := filepath.Join(projectDir, "config.yaml")
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.WriteExample(configPath); err != nil {
					return err
				}
				fmt.Printf("Created: %s\n", configPath)
			} else {
				fmt.Printf("Kept existing: %s\n", configPath)
			}

			catalogPath := filepath.Join(projectDir, "catalog.yaml")
			if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
				if err := catalog.WriteExample(catalogPath); err != nil {
					return err
				}
				fmt.Printf("Created: %s\n", catalogPath)
			} else {
				fmt.Printf("Kept existing: %s\n", catalogPath)
			}

			fmt.Printf("\nNext steps:\n")
			fmt.Printf("  1. Review the document registry in %s\n", catalogPath)
			fmt.Printf("  2. Run: leyesmx ingest --config %s\n", configPath)
			fmt.Printf("  3. Run: leyesmx list --config %s\n", configPath)
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [document-id ...]",
		Short: "Fetch, extract, and store statutes from the archive",
		Long: `Ingest statutes from the LeyesBiblio archive into the document store.

Without arguments, every document in the catalog is ingested. With
document IDs, only those documents are ingested. Each document is
fetched in its best available format (HTML, then word export, then
PDF); when no format yields a usable extraction, a stub record is
stored so the failure is visible downstream.

Examples:
  leyesmx ingest
  leyesmx ingest lftaip cpeum
  leyesmx ingest --workers 4 --format json
  leyesmx ingest --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cat, err := openCatalog(cfg)
			if err != nil {
				return err
			}

			descriptors, err := selectDescriptors(cat, args)
			if err != nil {
				return err
			}
			if len(descriptors) == 0 {
				fmt.Println("Catalog is empty; nothing to ingest.")
				return nil
			}

			if dryRun {
				fmt.Printf("Would ingest %d document(s) from %s:\n\n", len(descriptors), cfg.Archive.BaseURL)
				for _, descriptor := range descriptors {
					markupURL := descriptor.MarkupURL
					if markupURL == "" {
						markupURL = fmt.Sprintf("%s/ref/%s.htm (and casing variants)", cfg.Archive.BaseURL, descriptor.ID)
					}
					fmt.Printf("  %-16s %s\n", descriptor.ID, markupURL)
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			documents, err := cfg.OpenStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open document store: %w", err)
			}
			defer documents.Close(context.Background())

			pipeline, err := buildPipeline(cfg, documents)
			if err != nil {
				return err
			}

			fmt.Printf("Ingesting %d document(s) from %s\n", len(descriptors), cfg.Archive.BaseURL)

			pipeline.SetProgressCallback(func(completed, total int, documentID string) {
				fmt.Printf("\r  Progress: %d/%d  %-16s", completed, total, documentID)
			})

			batch := pipeline.IngestAll(ctx, descriptors)
			fmt.Printf("\r%s\r", strings.Repeat(" ", 60))

			if formatStr == "json" {
				fmt.Println(ingest.FormatBatchReportJSON(batch))
			} else {
				fmt.Print(ingest.FormatBatchReport(batch))
			}

			if batch.Failed > 0 {
				return fmt.Errorf("%d of %d document(s) failed", batch.Failed, batch.TotalAttempted)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("catalog", "", "Catalog registry path (overrides config)")
	cmd.Flags().String("store", "", "Store backend: file or mongo (overrides config)")
	cmd.Flags().String("store-path", "", "File store directory (overrides config)")
	cmd.Flags().String("mongo-uri", "", "MongoDB connection URI (overrides config)")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent document ingestions (overrides config)")
	cmd.Flags().String("cache-dir", "", "Directory for caching fetched pages (overrides config)")
	cmd.Flags().StringP("format", "f", "text", "Report format (text, json)")
	cmd.Flags().Bool("dry-run", false, "List what would be ingested without fetching")

	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <document-id>",
		Short: "Fetch and extract one statute without storing it",
		Long: `Fetch one catalog document, extract its provisions, and print the
result without writing to the document store. Useful for checking what
an ingest run would produce for a document.

Examples:
  leyesmx fetch lftaip
  leyesmx fetch cpeum --full
  leyesmx fetch lftaip --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			showFull, _ := cmd.Flags().GetBool("full")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cat, err := openCatalog(cfg)
			if err != nil {
				return err
			}

			descriptor, ok := cat.Get(args[0])
			if !ok {
				return fmt.Errorf("document %s not in catalog (run 'leyesmx catalog list' to see known documents)", args[0])
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			pipeline, err := buildPipeline(cfg, nil)
			if err != nil {
				return err
			}

			fmt.Printf("Fetching %s from %s\n", descriptor.ID, cfg.Archive.BaseURL)
			startTime := time.Now()

			document, report, err := pipeline.Preview(ctx, descriptor)
			if err != nil {
				return err
			}
			elapsed := time.Since(startTime)

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(document)
			}

			fmt.Println()
			printDocumentSummary(document)
			if report.Err != "" {
				fmt.Printf("Notes:       %s\n", report.Err)
			}
			fmt.Printf("Elapsed:     %v\n", elapsed.Round(time.Millisecond))

			if showFull {
				for _, provision := range document.Provisions {
					fmt.Printf("\n%s\n%s\n%s\n", provision.Key, strings.Repeat("-", 60), provision.Content)
				}
			} else {
				printProvisionTable(document)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("catalog", "", "Catalog registry path (overrides config)")
	cmd.Flags().String("cache-dir", "", "Directory for caching fetched pages (overrides config)")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().Bool("full", false, "Print full provision contents instead of a summary table")

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the document registry",
		Long: `Manage the YAML registry of statutes to ingest.

The registry lists every document the pipeline may fetch; nothing is
discovered by crawling. Each entry carries the archive identifier,
official title, status, and optional per-format URL overrides.

Examples:
  leyesmx catalog init
  leyesmx catalog list
  leyesmx catalog validate`,
	}

	cmd.AddCommand(catalogInitCmd())
	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogValidateCmd())

	return cmd
}

func catalogInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example document registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")

			if err := catalog.WriteExample(path); err != nil {
				return err
			}

			fmt.Printf("Example catalog written to: %s\n", path)
			fmt.Println("\nNext steps:")
			fmt.Println("  leyesmx catalog list")
			fmt.Println("  leyesmx ingest")
			return nil
		},
	}

	cmd.Flags().String("path", "catalog.yaml", "Catalog registry path")

	return cmd
}

func catalogListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cat, err := openCatalog(cfg)
			if err != nil {
				return err
			}

			descriptors := cat.All()

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(descriptors)
			}

			if len(descriptors) == 0 {
				fmt.Println("Catalog is empty. Edit the registry or run 'leyesmx catalog init'.")
				return nil
			}

			fmt.Printf("%-16s %-10s %-10s %-12s %s\n", "ID", "SHORT", "STATUS", "PUBLISHED", "TITLE")
			fmt.Println(strings.Repeat("-", 100))
			for _, descriptor := range descriptors {
				fmt.Printf("%-16s %-10s %-10s %-12s %s\n",
					truncateString(descriptor.ID, 16),
					truncateString(descriptor.ShortTitle, 10),
					descriptor.Status,
					descriptor.Published,
					truncateString(descriptor.Title, 46))
			}
			fmt.Printf("\nTotal: %d documents\n", len(descriptors))
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("catalog", "", "Catalog registry path (overrides config)")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func catalogValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the document registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			vigente := 0
			abrogada := 0
			unmarked := 0
			missingTitles := 0
			for _, descriptor := range cat.All() {
				switch descriptor.Status {
				case catalog.StatusVigente:
					vigente++
				case catalog.StatusAbrogada:
					abrogada++
				default:
					unmarked++
				}
				if descriptor.Title == "" {
					missingTitles++
					fmt.Printf("  WARN: %s has no title\n", descriptor.ID)
				}
			}

			fmt.Printf("Catalog OK: %d documents (%d vigente, %d abrogada, %d unmarked)\n",
				cat.Len(), vigente, abrogada, unmarked)
			if missingTitles > 0 {
				fmt.Printf("%d document(s) missing titles\n", missingTitles)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("catalog", "", "Catalog registry path (overrides config)")

	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			documents, err := cfg.OpenStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open document store: %w", err)
			}
			defer documents.Close(ctx)

			stored, err := documents.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(stored)
			}

			if len(stored) == 0 {
				fmt.Println("Store is empty. Run 'leyesmx ingest' to fetch documents.")
				return nil
			}

			fmt.Printf("%-16s %-36s %-9s %-7s %6s  %s\n", "ID", "TITLE", "STATUS", "FORMAT", "PROVS", "FETCHED")
			fmt.Println(strings.Repeat("-", 100))
			for _, document := range stored {
				format := document.Format
				if document.Stub {
					format = "stub"
				}
				fmt.Printf("%-16s %-36s %-9s %-7s %6d  %s\n",
					truncateString(document.ID, 16),
					truncateString(document.Title, 36),
					document.Status,
					format,
					len(document.Provisions),
					document.FetchedAt.Format("2006-01-02 15:04"))
			}
			fmt.Printf("\nTotal: %d documents\n", len(stored))
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("store", "", "Store backend: file or mongo (overrides config)")
	cmd.Flags().String("store-path", "", "File store directory (overrides config)")
	cmd.Flags().String("mongo-uri", "", "MongoDB connection URI (overrides config)")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <document-id>",
		Short: "Show one stored document",
		Long: `Show a stored document: its metadata and provision index, a single
provision's text, or its extracted definitions.

Examples:
  leyesmx show lftaip
  leyesmx show lftaip --provision art6
  leyesmx show lftaip --definitions
  leyesmx show lftaip --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			provisionKey, _ := cmd.Flags().GetString("provision")
			showDefinitions, _ := cmd.Flags().GetBool("definitions")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			documents, err := cfg.OpenStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open document store: %w", err)
			}
			defer documents.Close(ctx)

			document, err := documents.Get(ctx, args[0])
			if store.IsNotFound(err) {
				return fmt.Errorf("document %s not in store (run 'leyesmx ingest %s' first)", args[0], args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to load document: %w", err)
			}

			if formatStr == "json" {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(document)
			}

			if provisionKey != "" {
				provision := document.ProvisionByKey(provisionKey)
				if provision == nil {
					provision = document.ProvisionByKey(extract.ReferenceKey(provisionKey))
				}
				if provision == nil {
					return fmt.Errorf("provision %s not found in %s", provisionKey, document.ID)
				}
				if provision.Chapter != "" {
					fmt.Printf("%s\n", provision.Chapter)
				}
				fmt.Printf("Artículo %s\n%s\n%s\n", provision.Label, strings.Repeat("-", 60), provision.Content)
				return nil
			}

			if showDefinitions {
				if len(document.Definitions) == 0 {
					fmt.Printf("No definitions extracted from %s.\n", document.ID)
					return nil
				}
				for _, definition := range document.Definitions {
					fmt.Printf("%s (%s)\n  %s\n\n", definition.Term, definition.Key, definition.Meaning)
				}
				return nil
			}

			printDocumentSummary(document)
			printProvisionTable(document)
			return nil
		},
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("store", "", "Store backend: file or mongo (overrides config)")
	cmd.Flags().String("store-path", "", "File store directory (overrides config)")
	cmd.Flags().String("mongo-uri", "", "MongoDB connection URI (overrides config)")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().StringP("provision", "p", "", "Print one provision by reference key (e.g. art6, trans1)")
	cmd.Flags().Bool("definitions", false, "Print extracted definitions")

	return cmd
}

// loadConfig reads the config file named by --config and applies any
// override flags the command defines.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("catalog") {
		cfg.CatalogPath, _ = cmd.Flags().GetString("catalog")
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Backend, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("store-path") {
		cfg.Store.Path, _ = cmd.Flags().GetString("store-path")
	}
	if cmd.Flags().Changed("mongo-uri") {
		cfg.Store.MongoURI, _ = cmd.Flags().GetString("mongo-uri")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.Fetch.CacheDir, _ = cmd.Flags().GetString("cache-dir")
	}

	return cfg, nil
}

func openCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog not available at %s (run 'leyesmx catalog init' first): %w", cfg.CatalogPath, err)
	}
	return cat, nil
}

// buildPipeline wires the fetch, convert, and extract stages. The documents
// store may be nil for preview-only commands.
func buildPipeline(cfg *config.Config, documents store.Store) (*ingest.Pipeline, error) {
	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(clientConfig, cfg.Gate())
	fallback := fetch.NewFallback(client, cfg.FallbackConfig())
	converter := convert.NewExecConverter(cfg.ConvertConfig())
	extractor := extract.NewExtractor(extract.DefaultExtractConfig())

	return ingest.NewPipeline(fallback, converter, extractor, documents, ingest.PipelineConfig{Workers: cfg.Workers}), nil
}

func selectDescriptors(cat *catalog.Catalog, ids []string) ([]catalog.Descriptor, error) {
	if len(ids) == 0 {
		return cat.All(), nil
	}

	descriptors := make([]catalog.Descriptor, 0, len(ids))
	for _, id := range ids {
		descriptor, ok := cat.Get(id)
		if !ok {
			return nil, fmt.Errorf("document %s not in catalog (run 'leyesmx catalog list' to see known documents)", id)
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}

func printDocumentSummary(document *store.Document) {
	fmt.Printf("ID:          %s\n", document.ID)
	fmt.Printf("Title:       %s\n", document.Title)
	if document.ShortTitle != "" {
		fmt.Printf("Short title: %s\n", document.ShortTitle)
	}
	if document.Status != "" {
		fmt.Printf("Status:      %s\n", document.Status)
	}
	if document.Published != "" {
		fmt.Printf("Published:   %s\n", document.Published)
	}
	if document.Stub {
		fmt.Printf("Format:      stub (no usable publication)\n")
	} else {
		fmt.Printf("Format:      %s\n", document.Format)
	}
	if document.SourceURL != "" {
		fmt.Printf("Source:      %s\n", document.SourceURL)
	}
	fmt.Printf("Fetched:     %s\n", document.FetchedAt.Format(time.RFC3339))
	fmt.Printf("Provisions:  %d\n", len(document.Provisions))
	fmt.Printf("Definitions: %d\n", len(document.Definitions))
}

func printProvisionTable(document *store.Document) {
	if len(document.Provisions) == 0 {
		return
	}

	fmt.Printf("\n%-14s %-16s %s\n", "KEY", "LABEL", "CONTEXT")
	fmt.Println(strings.Repeat("-", 80))
	for _, provision := range document.Provisions {
		fmt.Printf("%-14s %-16s %s\n",
			provision.Key,
			truncateString(provision.Label, 16),
			truncateString(provision.Chapter, 46))
	}
}

// truncateString shortens by runes; titles here are full of accented
// characters and a byte cut would split them.
func truncateString(inputStr string, maxLength int) string {
	runes := []rune(inputStr)
	if len(runes) <= maxLength {
		return inputStr
	}
	return string(runes[:maxLength-3]) + "..."
}
