package liquidation

import "strings"

// AssetRegistry holds the ordered, deduplicated list of assets eligible as
// collateral or debt. Iteration order is fixed at construction so proportional
// distributions stay reproducible; membership checks are O(1).
type AssetRegistry struct {
	ordered []string
	members map[string]struct{}
}

// NewAssetRegistry builds a registry from the supplied assets, trimming
// whitespace and dropping duplicates while preserving first-seen order.
func NewAssetRegistry(assets []string) *AssetRegistry {
	registry := &AssetRegistry{members: make(map[string]struct{}, len(assets))}
	for _, asset := range assets {
		asset = strings.TrimSpace(asset)
		if asset == "" {
			continue
		}
		if _, ok := registry.members[asset]; ok {
			continue
		}
		registry.members[asset] = struct{}{}
		registry.ordered = append(registry.ordered, asset)
	}
	return registry
}

// Contains reports whether the asset is eligible.
func (r *AssetRegistry) Contains(asset string) bool {
	if r == nil {
		return false
	}
	_, ok := r.members[asset]
	return ok
}

// List returns the assets in registry order.
func (r *AssetRegistry) List() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.ordered...)
}

// Len returns the number of registered assets.
func (r *AssetRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}
