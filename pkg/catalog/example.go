package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// exampleRegistry is a starter registry covering a handful of well-known
// federal statutes, written by WriteExample for new installations.
const exampleRegistry = `# leyesmx catalog registry
#
# One entry per statute published in the LeyesBiblio archive. The id is the
# archive identifier used to derive the conventional URLs:
#   ref/<id>.htm  (reform-history page)
#   doc/<id>.doc  (word export)
#   pdf/<id>.pdf  (PDF export)
# Use markup_url / word_urls / pdf_urls to override documents that deviate.

documents:
  - id: cpeum
    title: Constitución Política de los Estados Unidos Mexicanos
    short_title: CPEUM
    status: vigente
    published: 05-02-1917
    description: Constitución federal.

  - id: lftr
    title: Ley Federal de Telecomunicaciones y Radiodifusión
    short_title: LFTR
    status: vigente
    published: 14-07-2014

  - id: lfpdppp
    title: Ley Federal de Protección de Datos Personales en Posesión de los Particulares
    short_title: LFPDPPP
    status: vigente
    published: 05-07-2010

  - id: lft
    title: Ley Federal del Trabajo
    short_title: LFT
    status: vigente
    published: 01-04-1970

  - id: cff
    title: Código Fiscal de la Federación
    short_title: CFF
    status: vigente
    published: 31-12-1981

  - id: lamp
    title: Ley de Amparo
    short_title: LAMP
    status: vigente
    published: 02-04-2013
`

// WriteExample writes the starter registry to the given path, creating
// parent directories as needed. Fails if the file already exists.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("catalog already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(exampleRegistry), 0644); err != nil {
		return fmt.Errorf("failed to write catalog %s: %w", path, err)
	}
	return nil
}
