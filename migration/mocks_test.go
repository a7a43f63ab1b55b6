package migration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

// memRefs is an in-memory ReferenceStore seeded with a small reference set.
type memRefs struct {
	countries         map[string]target.Country
	platforms         map[string]target.Platform
	platformCountries map[platformCountryKey]target.PlatformCountry
	categories        []target.BaseCategory
	platformCategory  map[string]int64
}

func newTestRefs() *memRefs {
	r := &memRefs{
		countries: map[string]target.Country{
			"CO": {ID: 1, Code: "CO"},
			"AR": {ID: 2, Code: "AR"},
			"GT": {ID: 3, Code: "GT"},
		},
		platforms: map[string]target.Platform{
			"dropi":    {ID: 1, Name: "dropi"},
			"aliclick": {ID: 2, Name: "aliclick"},
		},
		platformCountries: map[platformCountryKey]target.PlatformCountry{
			{1, 1}: {ID: 10, PlatformID: 1, CountryID: 1},
			{1, 2}: {ID: 11, PlatformID: 1, CountryID: 2},
			{1, 3}: {ID: 12, PlatformID: 1, CountryID: 3},
			{2, 1}: {ID: 20, PlatformID: 2, CountryID: 1},
		},
		categories: []target.BaseCategory{
			{ID: 100, Name: "Salud"},
			{ID: 101, Name: "Belleza"},
			{ID: 102, Name: "Hogar"},
			{ID: 104, Name: "Otros"},
		},
		platformCategory: map[string]int64{},
	}
	return r
}

func (r *memRefs) CountryByCode(_ context.Context, code string) (target.Country, bool, error) {
	c, ok := r.countries[code]
	return c, ok, nil
}

func (r *memRefs) PlatformByName(_ context.Context, name string) (target.Platform, bool, error) {
	p, ok := r.platforms[name]
	return p, ok, nil
}

func (r *memRefs) PlatformCountry(_ context.Context, platformID, countryID int64) (target.PlatformCountry, bool, error) {
	pc, ok := r.platformCountries[platformCountryKey{platformID, countryID}]
	return pc, ok, nil
}

func (r *memRefs) BaseCategories(_ context.Context) ([]target.BaseCategory, error) {
	return r.categories, nil
}

func (r *memRefs) PlatformCategoryBaseID(_ context.Context, platformID int64, name string) (int64, bool, error) {
	id, ok := r.platformCategory[fmt.Sprintf("%d|%s", platformID, name)]
	return id, ok, nil
}

// memProviders is an in-memory ProviderStore.
type memProviders struct {
	mu   sync.Mutex
	rows map[string]target.Provider

	createErr error
}

func newMemProviders() *memProviders {
	return &memProviders{rows: make(map[string]target.Provider)}
}

func (s *memProviders) GetByID(_ context.Context, id string) (*target.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.rows[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *memProviders) FindByNameAndExternalID(_ context.Context, name, externalID string) (*target.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		// Name matching is case-insensitive, like the repository's ILIKE.
		if strings.EqualFold(p.Name, name) && p.ExternalID == externalID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (s *memProviders) FindByExternalID(_ context.Context, externalID string, platformCountryID int64) (*target.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.ExternalID == externalID && p.PlatformCountryID == platformCountryID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (s *memProviders) UpdateVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("provider %s not found", id)
	}
	p.Verified = verified
	s.rows[id] = p
	return nil
}

func (s *memProviders) UpdateExternalIDVerified(_ context.Context, id, externalID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("provider %s not found", id)
	}
	p.ExternalID = externalID
	p.Verified = verified
	s.rows[id] = p
	return nil
}

func (s *memProviders) UpdateNameVerified(_ context.Context, id, name string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("provider %s not found", id)
	}
	p.Name = name
	p.Verified = verified
	s.rows[id] = p
	return nil
}

func (s *memProviders) Create(_ context.Context, p target.Provider) (*target.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.rows[p.ID] = p
	return &p, nil
}

func (s *memProviders) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// memProducts is an in-memory ProductStore.
type memProducts struct {
	mu   sync.Mutex
	rows map[string]target.Product
}

func newMemProducts() *memProducts {
	return &memProducts{rows: make(map[string]target.Product)}
}

func (s *memProducts) GetByID(_ context.Context, id string) (*target.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.rows[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *memProducts) Insert(_ context.Context, p target.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; ok {
		return catmig.Error[string]{Code: catmig.TargetWriteConflict, Err: fmt.Errorf("duplicate product %s", p.ID)}
	}
	s.rows[p.ID] = p
	return nil
}

func (s *memProducts) Update(_ context.Context, p target.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; !ok {
		return fmt.Errorf("product %s not found", p.ID)
	}
	s.rows[p.ID] = p
	return nil
}

func (s *memProducts) get(id string) (target.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	return p, ok
}

// memHistories is an in-memory HistoryStore enforcing (product, date) uniqueness.
type memHistories struct {
	mu   sync.Mutex
	rows map[string]map[string]target.History // productID -> date -> row

	batchErr error
}

func newMemHistories() *memHistories {
	return &memHistories{rows: make(map[string]map[string]target.History)}
}

func (s *memHistories) ExistingDates(_ context.Context, productID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for date := range s.rows[productID] {
		out[date] = struct{}{}
	}
	return out, nil
}

func (s *memHistories) Insert(_ context.Context, h target.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(h)
}

func (s *memHistories) InsertBatch(_ context.Context, rows []target.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	for _, h := range rows {
		if err := s.insertLocked(h); err != nil {
			return err
		}
	}
	return nil
}

func (s *memHistories) insertLocked(h target.History) error {
	byDate, ok := s.rows[h.ProductID]
	if !ok {
		byDate = make(map[string]target.History)
		s.rows[h.ProductID] = byDate
	}
	if _, dup := byDate[h.Date]; dup {
		return catmig.Error[string]{Code: catmig.TargetWriteConflict, Err: fmt.Errorf("duplicate history (%s, %s)", h.ProductID, h.Date)}
	}
	byDate[h.Date] = h
	return nil
}

func (s *memHistories) get(productID, date string) (target.History, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.rows[productID][date]
	return h, ok
}

func (s *memHistories) countFor(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[productID])
}

// memMultimedia is an in-memory MultimediaStore preserving insertion order.
type memMultimedia struct {
	mu   sync.Mutex
	rows map[string][]target.Multimedia // productID -> ordered rows

	batchErr error
}

func newMemMultimedia() *memMultimedia {
	return &memMultimedia{rows: make(map[string][]target.Multimedia)}
}

func (s *memMultimedia) ListByProduct(_ context.Context, productID string) ([]target.Multimedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]target.Multimedia, len(s.rows[productID]))
	copy(out, s.rows[productID])
	return out, nil
}

func (s *memMultimedia) UpdateOriginalURL(_ context.Context, id, originalURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for productID, rows := range s.rows {
		for i := range rows {
			if rows[i].ID == id {
				rows[i].OriginalURL = originalURL
				s.rows[productID] = rows
				return nil
			}
		}
	}
	return fmt.Errorf("multimedia %s not found", id)
}

func (s *memMultimedia) Insert(_ context.Context, m target.Multimedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.ProductID] = append(s.rows[m.ProductID], m)
	return nil
}

func (s *memMultimedia) InsertBatch(_ context.Context, rows []target.Multimedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	for _, m := range rows {
		s.rows[m.ProductID] = append(s.rows[m.ProductID], m)
	}
	return nil
}

// fakeReader serves a fixed product slice as the legacy sequence.
type fakeReader struct {
	products []catmig.SourceProduct
	countErr error
	readErr  error
}

func (r *fakeReader) Count(_ context.Context) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.products), nil
}

func (r *fakeReader) Read(_ context.Context, skip, take int) ([]catmig.SourceProduct, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	if skip >= len(r.products) {
		return nil, nil
	}
	end := skip + take
	if end > len(r.products) {
		end = len(r.products)
	}
	return r.products[skip:end], nil
}

type historyFakeKey struct {
	externalID string
	platform   string
	country    string
}

// fakeHistorySource serves canned legacy time-series rows.
type fakeHistorySource struct {
	rows map[historyFakeKey][]catmig.SourceHistory
}

func newFakeHistorySource() *fakeHistorySource {
	return &fakeHistorySource{rows: make(map[historyFakeKey][]catmig.SourceHistory)}
}

func (s *fakeHistorySource) add(h catmig.SourceHistory) {
	k := historyFakeKey{h.ExternalProductID, h.PlatformName, h.CountryCode}
	s.rows[k] = append(s.rows[k], h)
}

func (s *fakeHistorySource) Dates(_ context.Context, externalID, platformName, countryCode string) ([]string, error) {
	k := historyFakeKey{externalID, platformName, countryCode}
	seen := make(map[string]struct{})
	var dates []string
	for _, h := range s.rows[k] {
		if _, ok := seen[h.Date]; ok {
			continue
		}
		seen[h.Date] = struct{}{}
		dates = append(dates, h.Date)
	}
	return dates, nil
}

func (s *fakeHistorySource) RowsForDates(_ context.Context, externalID, platformName, countryCode string, dates []string) ([]catmig.SourceHistory, error) {
	k := historyFakeKey{externalID, platformName, countryCode}
	want := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		want[d] = struct{}{}
	}
	var out []catmig.SourceHistory
	for _, h := range s.rows[k] {
		if _, ok := want[h.Date]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}
