package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeltaOp is a single rich-text operation. Insert is either a string of
// text or an embed object (image, divider). Attributes carry inline and
// block formatting for the inserted range.
type DeltaOp struct {
	Insert     interface{}            `json:"insert"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Delta is the canonical in-memory form of an editable document: a flat
// sequence of insert operations from which plain text and rendered markup
// are derived.
type Delta struct {
	Ops []DeltaOp `json:"ops"`
}

// IsEmpty reports whether the delta carries no operations.
func (d Delta) IsEmpty() bool {
	return len(d.Ops) == 0
}

// Document is the unit of work owned by an editor session until saved.
type Document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Delta          Delta     `json:"delta"`
	PlainText      string    `json:"plain_text"`
	HTML           string    `json:"html"`
	WordCount      int       `json:"word_count"`
	CharCount      int       `json:"char_count"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// VersionMetadata is the metadata block stored with every persisted
// version. Caller-supplied fields are flattened alongside the fixed keys
// on the wire, so Extra round-trips through Marshal/Unmarshal without a
// nested object.
type VersionMetadata struct {
	SavedAt        time.Time              `json:"savedAt"`
	WordCount      int                    `json:"wordCount"`
	CharacterCount int                    `json:"characterCount"`
	Extra          map[string]interface{} `json:"-"`
}

// reservedMetadataKeys are never treated as caller fields.
var reservedMetadataKeys = map[string]bool{
	"savedAt":        true,
	"wordCount":      true,
	"characterCount": true,
}

// MarshalJSON flattens Extra fields to the top level of the metadata object.
func (m VersionMetadata) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"savedAt":        m.SavedAt.UTC().Format(time.RFC3339Nano),
		"wordCount":      m.WordCount,
		"characterCount": m.CharacterCount,
	}
	for k, v := range m.Extra {
		if reservedMetadataKeys[k] {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the fixed keys from caller fields.
func (m *VersionMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["savedAt"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("savedAt: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("savedAt: %w", err)
		}
		m.SavedAt = t
	}
	if v, ok := raw["wordCount"]; ok {
		if err := json.Unmarshal(v, &m.WordCount); err != nil {
			return fmt.Errorf("wordCount: %w", err)
		}
	}
	if v, ok := raw["characterCount"]; ok {
		if err := json.Unmarshal(v, &m.CharacterCount); err != nil {
			return fmt.Errorf("characterCount: %w", err)
		}
	}

	for k, v := range raw {
		if reservedMetadataKeys[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if m.Extra == nil {
			m.Extra = make(map[string]interface{})
		}
		m.Extra[k] = val
	}
	return nil
}

// PersistedVersion is the wire format written to the key-value store.
// Delta may be nil for versions captured from markup-only sources; readers
// fall back to HTML in that case.
type PersistedVersion struct {
	Delta     *Delta          `json:"delta,omitempty"`
	PlainText string          `json:"plainText"`
	HTML      string          `json:"html"`
	Metadata  VersionMetadata `json:"metadata"`
}

// VersionListing pairs a store key with the metadata loaded for display.
// Metadata is zero-valued when an individual entry failed to load.
type VersionListing struct {
	Key      string          `json:"key"`
	Metadata VersionMetadata `json:"metadata"`
}
