package content

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"

	"quillvault/internal/domain/models"
)

// Exporter converts a persisted version to a standalone markdown file with
// a YAML frontmatter block carrying the version metadata.
type Exporter struct {
	converter *md.Converter
}

// NewExporter creates a markdown exporter.
func NewExporter() *Exporter {
	return &Exporter{converter: md.NewConverter("", true, nil)}
}

// frontmatter is the exported metadata header. Caller metadata fields are
// flattened in, matching the stored layout.
type frontmatter struct {
	SavedAt        string                 `yaml:"saved_at"`
	WordCount      int                    `yaml:"word_count"`
	CharacterCount int                    `yaml:"character_count"`
	Extra          map[string]interface{} `yaml:",inline"`
}

// Export renders a persisted version as markdown. The body is converted
// from stored HTML; the metadata becomes frontmatter between "---" fences.
func (e *Exporter) Export(version *models.PersistedVersion) (string, error) {
	body, err := e.converter.ConvertString(version.HTML)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	fm := frontmatter{
		SavedAt:        version.Metadata.SavedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		WordCount:      version.Metadata.WordCount,
		CharacterCount: version.Metadata.CharacterCount,
		Extra:          version.Metadata.Extra,
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}

	var out strings.Builder
	out.WriteString("---\n")
	out.Write(header)
	out.WriteString("---\n\n")
	out.WriteString(body)
	out.WriteString("\n")
	return out.String(), nil
}
