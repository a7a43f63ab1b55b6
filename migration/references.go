package migration

import (
	"context"
	"fmt"
	"strings"

	log "log/slog"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/cache"
	"github.com/dropsight/catmig/target"
)

// platformTokens is the closed set of marketplace platforms present in the
// target store. Legacy platform names outside this set default to dropi.
var platformTokens = map[string]struct{}{
	"dropi":         {},
	"aliclick":      {},
	"droplatam":     {},
	"seventy block": {},
	"wimpy":         {},
	"easydrop":      {},
	"mastershop":    {},
	"dropea":        {},
}

// DefaultPlatformToken absorbs unknown legacy platform names.
const DefaultPlatformToken = "dropi"

// FallbackBaseCategoryID is the designated "other" base category, used when
// no resolution strategy matches a legacy category name.
const FallbackBaseCategoryID int64 = 104

// categorySynonyms maps hand-verified legacy category names to their base
// category names. Extended as mismatches surface in migration logs.
var categorySynonyms = map[string]string{
	"bienestar y salud":           "salud",
	"salud y belleza":             "salud",
	"belleza y cuidado personal":  "belleza",
	"hogar y cocina":              "hogar",
	"deportes y fitness":          "deportes",
	"mascotas y animales":         "mascotas",
	"tecnologia y electronica":    "tecnologia",
	"herramientas y construccion": "herramientas",
}

// NormalizePlatform lowercases the legacy platform name into its token,
// defaulting to dropi (with a warning) when outside the closed set.
func NormalizePlatform(name string) string {
	token := strings.ToLower(strings.TrimSpace(name))
	if _, ok := platformTokens[token]; ok {
		return token
	}
	log.Warn("unknown platform name, defaulting", "platform", name, "default", DefaultPlatformToken)
	return DefaultPlatformToken
}

// NormalizeCountry uppercases the code and collapses legacy aliases (CO1 -> CO).
func NormalizeCountry(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "CO1" {
		return "CO"
	}
	return c
}

type platformCountryKey struct {
	platformID int64
	countryID  int64
}

// baseCategoryIndex is the one-time-loaded view over the closed taxonomy.
type baseCategoryIndex struct {
	byID      map[int64]target.BaseCategory
	byName    map[string]int64 // exact
	byLowered map[string]int64
	// ordered preserves the store's id order so containment scans are deterministic.
	ordered []target.BaseCategory
}

// Resolver maps legacy (platform, country, category) references onto target
// store ids through process-lifetime caches. It never creates reference rows.
type Resolver struct {
	refs ReferenceStore

	countries         *cache.ReadThrough[string, target.Country]
	platforms         *cache.ReadThrough[string, target.Platform]
	platformCountries *cache.ReadThrough[platformCountryKey, target.PlatformCountry]
	categories        *cache.Lazy[baseCategoryIndex]
}

// NewResolver creates a Resolver over the reference store.
func NewResolver(refs ReferenceStore) *Resolver {
	r := &Resolver{refs: refs}
	r.countries = cache.NewReadThrough(func(ctx context.Context, code string) (target.Country, bool, error) {
		return refs.CountryByCode(ctx, code)
	})
	r.platforms = cache.NewReadThrough(func(ctx context.Context, name string) (target.Platform, bool, error) {
		return refs.PlatformByName(ctx, name)
	})
	r.platformCountries = cache.NewReadThrough(func(ctx context.Context, k platformCountryKey) (target.PlatformCountry, bool, error) {
		return refs.PlatformCountry(ctx, k.platformID, k.countryID)
	})
	r.categories = cache.NewLazy(func(ctx context.Context) (baseCategoryIndex, error) {
		cats, err := refs.BaseCategories(ctx)
		if err != nil {
			return baseCategoryIndex{}, err
		}
		idx := baseCategoryIndex{
			byID:      make(map[int64]target.BaseCategory, len(cats)),
			byName:    make(map[string]int64, len(cats)),
			byLowered: make(map[string]int64, len(cats)),
			ordered:   cats,
		}
		for _, c := range cats {
			idx.byID[c.ID] = c
			idx.byName[c.Name] = c.ID
			idx.byLowered[strings.ToLower(c.Name)] = c.ID
		}
		log.Info("loaded base category taxonomy", "categories", len(cats))
		return idx, nil
	})
	return r
}

// ResolvePlatform returns the platform row for a legacy platform name.
func (r *Resolver) ResolvePlatform(ctx context.Context, platformName string) (target.Platform, error) {
	token := NormalizePlatform(platformName)
	p, found, err := r.platforms.Get(ctx, token)
	if err != nil {
		return p, err
	}
	if !found {
		return p, catmig.Error[string]{
			Code:     catmig.ReferenceMissing,
			Err:      fmt.Errorf("platform %q not found in target store", token),
			UserData: platformName,
		}
	}
	return p, nil
}

// ResolvePlatformCountry maps (platform name, country code) to the
// platform-country id. Fails with ReferenceMissing when any hop is absent:
// this system never creates platform-countries.
func (r *Resolver) ResolvePlatformCountry(ctx context.Context, platformName, countryCode string) (int64, error) {
	platform, err := r.ResolvePlatform(ctx, platformName)
	if err != nil {
		return 0, err
	}
	code := NormalizeCountry(countryCode)
	country, found, err := r.countries.Get(ctx, code)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, catmig.Error[string]{
			Code:     catmig.ReferenceMissing,
			Err:      fmt.Errorf("country %q not found in target store", code),
			UserData: countryCode,
		}
	}
	pc, found, err := r.platformCountries.Get(ctx, platformCountryKey{platform.ID, country.ID})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, catmig.Error[string]{
			Code:     catmig.ReferenceMissing,
			Err:      fmt.Errorf("platform country (%s, %s) not found in target store", platformName, code),
			UserData: platformName + "/" + code,
		}
	}
	return pc.ID, nil
}

// ResolveBaseCategoryByName resolves a legacy category name to a base
// category id. Strategies, in order: exact name, case-normalized name,
// platform category mapping, substring containment either way, hand-coded
// synonyms, and finally the designated fallback. Never creates a category.
func (r *Resolver) ResolveBaseCategoryByName(ctx context.Context, name, platformName string) (int64, error) {
	idx, err := r.categories.Get(ctx)
	if err != nil {
		return 0, err
	}
	if name != "" {
		if id, ok := idx.byName[name]; ok {
			return id, nil
		}
		lowered := strings.ToLower(strings.TrimSpace(name))
		if id, ok := idx.byLowered[lowered]; ok {
			return id, nil
		}
		if platformName != "" {
			if platform, err := r.ResolvePlatform(ctx, platformName); err == nil {
				id, found, err := r.refs.PlatformCategoryBaseID(ctx, platform.ID, name)
				if err != nil {
					return 0, err
				}
				if found {
					if _, ok := idx.byID[id]; ok {
						return id, nil
					}
				}
			}
		}
		for _, c := range idx.ordered {
			catName := strings.ToLower(c.Name)
			if strings.Contains(catName, lowered) || strings.Contains(lowered, catName) {
				return c.ID, nil
			}
		}
		if synonym, ok := categorySynonyms[lowered]; ok {
			if id, ok := idx.byLowered[synonym]; ok {
				return id, nil
			}
		}
	}
	log.Debug("category resolution fell through to fallback", "name", name)
	return FallbackBaseCategoryID, nil
}

// ResolveValidBaseCategoryID keeps an existing id when it is still part of
// the taxonomy, resolves by name otherwise, and falls back as a last resort.
func (r *Resolver) ResolveValidBaseCategoryID(ctx context.Context, existingID int64, name, platformName string) (int64, error) {
	idx, err := r.categories.Get(ctx)
	if err != nil {
		return 0, err
	}
	if existingID != 0 {
		if _, ok := idx.byID[existingID]; ok {
			return existingID, nil
		}
	}
	if name != "" {
		return r.ResolveBaseCategoryByName(ctx, name, platformName)
	}
	return FallbackBaseCategoryID, nil
}
