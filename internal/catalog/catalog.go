// Package catalog loads the service categories the scanner visits.
//
// The catalog is a json5 document. A sibling "<name>.local.<ext>" file, when
// present, is merged over it so deployments can add or retarget categories
// without editing the checked-in file.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/wolfman30/spa-availability/internal/availability"
)

// Entry is one category as written in the catalog file.
type Entry struct {
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	TypeID      int    `json:"typeId"`
	URL         string `json:"url"`
	PassName    string `json:"passName"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Order       int    `json:"order"`
}

// Catalog maps category keys (e.g. "deep_tissue") to entries.
type Catalog struct {
	Categories map[string]Entry `json:"categories"`
}

// Default is the built-in catalog for the Sensea booking site.
func Default() Catalog {
	return Catalog{Categories: map[string]Entry{
		"swedish": {
			Label:  "Swedish",
			Kind:   string(availability.KindStaff),
			TypeID: 12789431,
			URL:    "https://sensea.as.me/?appointmentType=12789431",
			Order:  10,
		},
		"deep_tissue": {
			Label:  "Deep Tissue",
			Kind:   string(availability.KindStaff),
			TypeID: 12789613,
			URL:    "https://sensea.as.me/?appointmentType=12789613",
			Order:  20,
		},
		"couples": {
			Label:  "Couples",
			Kind:   string(availability.KindStaff),
			TypeID: 13182311,
			URL:    "https://sensea.as.me/?appointmentType=13182311",
			Order:  30,
		},
		"spa_pass": {
			Label:       "Spa Pass",
			Kind:        string(availability.KindPass),
			TypeID:      15360506,
			URL:         "https://sensea.as.me/schedule/1e0cc157/category/Spa%2520pass",
			PassName:    "Spa Pass",
			Description: "Access to the Nordic Spa facilities.",
			Order:       40,
		},
	}}
}

// Load reads the catalog at path merged with its local override. An empty
// path returns Default.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	var out Catalog
	found := false

	base, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, fmt.Errorf("catalog: parse %s: %w", path, err)
		}
		found = true
	}

	local := localPath(path)
	overrideRaw, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("catalog: read %s: %w", local, err)
	}
	if len(overrideRaw) > 0 {
		var override Catalog
		if err := json5.Unmarshal(overrideRaw, &override); err != nil {
			return out, fmt.Errorf("catalog: parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("catalog: merge %s: %w", local, err)
		}
		slog.Info("merging catalog with local overrides", "local", local)
		found = true
	}

	if !found {
		return out, fmt.Errorf("catalog: %s: %w", path, os.ErrNotExist)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// Validate checks that every entry can be scanned.
func (c Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog: no categories")
	}
	for key, e := range c.Categories {
		switch availability.CategoryKind(e.Kind) {
		case availability.KindStaff:
			if e.TypeID == 0 {
				return fmt.Errorf("catalog: %s: staff category needs typeId", key)
			}
		case availability.KindPass:
			if e.PassName == "" {
				return fmt.Errorf("catalog: %s: pass category needs passName", key)
			}
		default:
			return fmt.Errorf("catalog: %s: unknown kind %q", key, e.Kind)
		}
		if e.URL == "" {
			return fmt.Errorf("catalog: %s: missing url", key)
		}
	}
	return nil
}

// WithPassURL points every pass category at url. An empty url is a no-op.
func (c Catalog) WithPassURL(url string) Catalog {
	if url == "" {
		return c
	}
	out := Catalog{Categories: make(map[string]Entry, len(c.Categories))}
	for key, e := range c.Categories {
		if availability.CategoryKind(e.Kind) == availability.KindPass {
			e.URL = url
		}
		out.Categories[key] = e
	}
	return out
}

// List returns the categories ordered by their order field, then key.
func (c Catalog) List() []availability.ServiceCategory {
	keys := make([]string, 0, len(c.Categories))
	for k := range c.Categories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.Categories[keys[i]], c.Categories[keys[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return keys[i] < keys[j]
	})

	out := make([]availability.ServiceCategory, 0, len(keys))
	for _, k := range keys {
		e := c.Categories[k]
		out = append(out, availability.ServiceCategory{
			Key:         k,
			Label:       e.Label,
			Kind:        availability.CategoryKind(e.Kind),
			TypeID:      e.TypeID,
			URL:         e.URL,
			PassName:    e.PassName,
			Description: e.Description,
			ImageURL:    e.ImageURL,
		})
	}
	return out
}

func localPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}
