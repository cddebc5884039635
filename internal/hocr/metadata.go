package hocr

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
)

// metadataSetters binds each recognized field name to its Metadata slot.
var metadataSetters = map[string]func(*Metadata, string){
	"title":       func(m *Metadata, v string) { m.Title = v },
	"creator":     func(m *Metadata, v string) { m.Creator = v },
	"description": func(m *Metadata, v string) { m.Description = v },
	"publisher":   func(m *Metadata, v string) { m.Publisher = v },
	"contributor": func(m *Metadata, v string) { m.Contributor = v },
	"date":        func(m *Metadata, v string) { m.Date = v },
	"language":    func(m *Metadata, v string) { m.Language = v },
}

// MetadataSpec enumerates the recognized fields and their defaults.
type MetadataSpec struct {
	Fields          []config.MetadataField
	TitleFromBookID bool
}

// DefaultMetadataSpec recognizes all seven bibliographic fields with empty
// defaults and a title that falls back to the book id.
func DefaultMetadataSpec() MetadataSpec {
	return MetadataSpec{
		Fields:          config.DefaultMetadataFields(),
		TitleFromBookID: true,
	}
}

func (s MetadataSpec) validate() error {
	for _, f := range s.Fields {
		if _, ok := metadataSetters[normalizeMetaName(f.Name)]; !ok {
			return fmt.Errorf("unsupported metadata field %q", f.Name)
		}
	}
	return nil
}

// build produces a fully populated Metadata from the raw name/content pairs
// found in the markup, in document order. The first occurrence of a field
// wins.
func (s MetadataSpec) build(bookID string, raw []metaPair, pageCount int) Metadata {
	found := make(map[string]string, len(raw))
	for _, p := range raw {
		name := normalizeMetaName(p.name)
		if _, seen := found[name]; seen {
			continue
		}
		found[name] = strings.TrimSpace(p.content)
	}

	md := Metadata{PageCount: pageCount}
	titleSet := false
	for _, f := range s.Fields {
		name := normalizeMetaName(f.Name)
		value, ok := found[name]
		if !ok || value == "" {
			value = f.Default
		}
		if name == "title" && value != "" {
			titleSet = true
		}
		metadataSetters[name](&md, value)
	}
	if !titleSet && s.TitleFromBookID {
		md.Title = bookID
	}
	return md
}

type metaPair struct {
	name    string
	content string
}

// normalizeMetaName lower-cases a meta name and strips a Dublin Core
// prefix, so "DC.Title", "dc.title" and "title" are the same field.
func normalizeMetaName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"dc.", "dcterms.", "dc:"} {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}
