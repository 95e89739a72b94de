package checklist

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	LocaleEN = "en"
	LocaleES = "es"
)

//go:embed default.yaml
var defaultDefinition []byte

// Item is one fixed inspection category. Order inside a Checklist defines traversal order.
type Item struct {
	ID             string            `yaml:"id" json:"id"`
	Icon           string            `yaml:"icon" json:"icon,omitempty"`
	RequiredPhotos int               `yaml:"required_photos" json:"required_photos"`
	Name           map[string]string `yaml:"name" json:"name"`
	Description    map[string]string `yaml:"description" json:"description"`
	Prompt         string            `yaml:"prompt" json:"prompt,omitempty"`
}

// Label returns the display name in the given locale, falling back to English and then the id.
func (it Item) Label(locale string) string {
	return localized(it.Name, locale, it.ID)
}

func (it Item) Describe(locale string) string {
	return localized(it.Description, locale, "")
}

func (it Item) NeedsPhotos() bool {
	return it.RequiredPhotos > 0
}

type Checklist struct {
	Version string `yaml:"version" json:"version"`
	Items   []Item `yaml:"items" json:"items"`
	SHA256  string `yaml:"-" json:"sha256"`
}

func (c *Checklist) Len() int {
	return len(c.Items)
}

// MaxRequiredPhotos is the largest photo count any single item asks for.
func (c *Checklist) MaxRequiredPhotos() int {
	n := 0
	for _, it := range c.Items {
		if it.RequiredPhotos > n {
			n = it.RequiredPhotos
		}
	}
	return n
}

// Index returns the position of the item with the given id, or -1.
func (c *Checklist) Index(id string) int {
	for i, it := range c.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Load reads a checklist definition from path. An empty path selects the embedded default.
func Load(path string) (*Checklist, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(defaultDefinition)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	return Parse(raw)
}

// Default returns the embedded checklist. The embedded file is validated by tests, so a failure here is a build defect.
func Default() *Checklist {
	c, err := Parse(defaultDefinition)
	if err != nil {
		panic(fmt.Sprintf("embedded checklist: %v", err))
	}
	return c
}

func Parse(raw []byte) (*Checklist, error) {
	var c Checklist
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse checklist: %w", err)
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	c.SHA256 = hex.EncodeToString(sum[:])
	return &c, nil
}

func validate(c Checklist) error {
	if len(c.Items) == 0 {
		return errors.New("checklist: no items")
	}
	seen := make(map[string]struct{}, len(c.Items))
	for i, it := range c.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return fmt.Errorf("checklist: item %d has empty id", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("checklist: duplicate item id %q", id)
		}
		seen[id] = struct{}{}
		if it.RequiredPhotos < 0 {
			return fmt.Errorf("checklist: item %q has negative required_photos", id)
		}
		if strings.TrimSpace(it.Name[LocaleEN]) == "" {
			return fmt.Errorf("checklist: item %q has no %s name", id, LocaleEN)
		}
	}
	return nil
}

func localized(values map[string]string, locale, fallback string) string {
	if v := strings.TrimSpace(values[locale]); v != "" {
		return v
	}
	if v := strings.TrimSpace(values[LocaleEN]); v != "" {
		return v
	}
	return fallback
}
