// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// MODEL TIERS
// =============================================================================

// Tier names a slot in the model catalog.
type Tier string

const (
	TierLite Tier = "lite"
	TierPro  Tier = "pro"
)

// Default backend model tags for each tier.
const (
	DefaultLiteModel = "llama3.2:1b"
	DefaultProModel  = "llama3:8b"
)

// ModelInfo describes one loadable model.
type ModelInfo struct {
	// Tier is empty for models that are not in the catalog.
	Tier Tier `json:"tier,omitempty"`

	// ID is the backend model identifier
	ID string `json:"id"`

	// Label is the short display name ("Lite", "Pro")
	Label string `json:"label"`
}

// InCatalog reports whether the model came from a catalog tier.
func (m ModelInfo) InCatalog() bool {
	return m.Tier != ""
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog maps tiers to backend models. The lite tier is the default.
type Catalog struct {
	lite ModelInfo
	pro  ModelInfo
}

// NewCatalog builds a catalog from backend ids. Empty ids use the defaults.
func NewCatalog(liteID, proID string) Catalog {
	if liteID == "" {
		liteID = DefaultLiteModel
	}
	if proID == "" {
		proID = DefaultProModel
	}
	return Catalog{
		lite: ModelInfo{Tier: TierLite, ID: liteID, Label: "Lite"},
		pro:  ModelInfo{Tier: TierPro, ID: proID, Label: "Pro"},
	}
}

// DefaultCatalog returns the catalog with the default model tags.
func DefaultCatalog() Catalog {
	return NewCatalog("", "")
}

// Default returns the model loaded on startup.
func (c Catalog) Default() ModelInfo {
	return c.lite
}

// Models returns every catalog entry, lite first.
func (c Catalog) Models() []ModelInfo {
	return []ModelInfo{c.lite, c.pro}
}

// Resolve accepts a tier name or a backend id. Unknown values are treated as
// raw backend ids and labelled with the id itself.
func (c Catalog) Resolve(nameOrID string) ModelInfo {
	key := strings.TrimSpace(nameOrID)
	switch Tier(strings.ToLower(key)) {
	case TierLite:
		return c.lite
	case TierPro:
		return c.pro
	}
	for _, m := range c.Models() {
		if m.ID == key {
			return m
		}
	}
	return ModelInfo{ID: key, Label: key}
}
