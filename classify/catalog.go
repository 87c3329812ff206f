package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML override for sections and keywords.
//
//	sections:
//	  - id: sec_fruit
//	    name: Fruta y verdura
//	    icon: "🍎"
//	    order: 1
//	keywords:
//	  - key: manzana
//	    section: sec_fruit
//
// An empty keywords list keeps the built-in table.
type CatalogFile struct {
	Sections []Section `yaml:"sections"`
	Keywords []Keyword `yaml:"keywords"`
}

// LoadCatalogFile reads and validates a catalog override.
func LoadCatalogFile(path string) (*Catalog, []Keyword, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog override.
func ParseCatalog(data []byte) (*Catalog, []Keyword, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	catalog, err := NewCatalog(file.Sections)
	if err != nil {
		return nil, nil, err
	}

	keywords := file.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords()
	}
	keywords, err = validateKeywords(keywords, catalog)
	if err != nil {
		return nil, nil, err
	}
	return catalog, keywords, nil
}
