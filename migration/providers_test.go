package migration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

func sourceProduct(externalID string) catmig.SourceProduct {
	return catmig.SourceProduct{
		SourceID:     "src-" + externalID,
		ExternalID:   externalID,
		Name:         "Producto " + externalID,
		PlatformName: "dropi",
		CountryCode:  "CO",
		Visible:      true,
		CreatedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func withProvider(p catmig.SourceProduct, blob string) catmig.SourceProduct {
	p.Provider = json.RawMessage(blob)
	return p
}

func TestProviderReconcileCreatesNew(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	p := withProvider(sourceProduct("p1"), `{"name":"Acme","external_id":"prov-1","verified":true}`)
	id, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected a new provider")
	}
	got, _ := store.GetByID(ctx, id)
	if got == nil || got.Name != "Acme" || got.ExternalID != "prov-1" || !got.Verified {
		t.Errorf("unexpected provider row: %+v", got)
	}
	if got.PlatformCountryID != 10 {
		t.Errorf("platform country = %d, want 10", got.PlatformCountryID)
	}
}

func TestProviderReconcileDoubleEncodedBlob(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	p := withProvider(sourceProduct("p1"), `"{\"name\":\"Acme\",\"external_id\":\"prov-1\"}"`)
	id, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected a new provider")
	}
	got, _ := store.GetByID(ctx, id)
	if got == nil || got.Name != "Acme" {
		t.Errorf("double-encoded blob not parsed: %+v", got)
	}
}

func TestProviderReconcileFallback(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	// Missing blob, unusable blob, and blob without external id all take the
	// fallback path keyed by the product's own external id.
	for _, blob := range []string{"", "null", "not json", `{"name":"Acme"}`} {
		p := sourceProduct("p9")
		if blob != "" {
			p = withProvider(p, blob)
		}
		id, _, err := r.Reconcile(ctx, p)
		if err != nil {
			t.Fatalf("blob %q: %v", blob, err)
		}
		got, _ := store.GetByID(ctx, id)
		if got == nil || got.Name != "null" || got.ExternalID != "p9" {
			t.Errorf("blob %q: unexpected fallback provider: %+v", blob, got)
		}
	}
	if n := store.count(); n != 1 {
		t.Errorf("fallback provider rows = %d, want 1 (reused)", n)
	}
}

func TestProviderReconcileUpdatesByName(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	store.rows["pr-1"] = target.Provider{
		ID: "pr-1", Name: "Acme", ExternalID: "prov-old", PlatformCountryID: 10,
	}
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	// Found by name but external id moved: same row, external id updated.
	p := withProvider(sourceProduct("p1"), `{"name":"Acme","external_id":"prov-old","verified":true}`)
	id, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if created || id != "pr-1" {
		t.Errorf("got (%s, %v), want (pr-1, false)", id, created)
	}
	got, _ := store.GetByID(ctx, "pr-1")
	if !got.Verified {
		t.Error("verified flag not propagated")
	}
}

func TestProviderReconcileNameMatchIgnoresCase(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	store.rows["pr-1"] = target.Provider{
		ID: "pr-1", Name: "Acme", ExternalID: "prov-1", PlatformCountryID: 10,
	}
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	// Legacy blobs vary the provider name's casing; the lookup matches like
	// the repository's case-insensitive name query.
	p := withProvider(sourceProduct("p1"), `{"name":"ACME","external_id":"prov-1","verified":true}`)
	id, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if created || id != "pr-1" {
		t.Errorf("got (%s, %v), want (pr-1, false)", id, created)
	}
	if n := store.count(); n != 1 {
		t.Errorf("provider rows = %d, want 1", n)
	}
}

func TestProviderReconcileExternalIDCollision(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	store.rows["pr-1"] = target.Provider{
		ID: "pr-1", Name: "Acme", ExternalID: "prov-1", PlatformCountryID: 10,
	}
	store.rows["pr-2"] = target.Provider{
		ID: "pr-2", Name: "Other", ExternalID: "prov-2", PlatformCountryID: 10,
	}
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	// Blob asserts Acme now has prov-2, but pr-2 already holds that natural
	// key: only safe fields are updated and pr-1 keeps its external id.
	p := withProvider(sourceProduct("p1"), `{"name":"Acme","external_id":"prov-2","verified":true}`)
	id, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if created || id != "pr-2" {
		// FindByNameAndExternalID misses (pr-1 has prov-1), natural-key lookup
		// lands on pr-2 and its name gets refreshed.
		t.Errorf("got (%s, %v), want (pr-2, false)", id, created)
	}
	pr2, _ := store.GetByID(ctx, "pr-2")
	if pr2.Name != "Acme" || !pr2.Verified {
		t.Errorf("natural-key holder not refreshed: %+v", pr2)
	}
	pr1, _ := store.GetByID(ctx, "pr-1")
	if pr1.ExternalID != "prov-1" {
		t.Errorf("pr-1 external id changed to %q", pr1.ExternalID)
	}
}

func TestProviderReconcileCollisionKeepsSafeFields(t *testing.T) {
	ctx := context.Background()
	store := newMemProviders()
	store.rows["pr-1"] = target.Provider{
		ID: "pr-1", Name: "Acme", ExternalID: "prov-2", PlatformCountryID: 20,
	}
	store.rows["pr-2"] = target.Provider{
		ID: "pr-2", Name: "Other", ExternalID: "prov-2", PlatformCountryID: 10,
	}
	r := NewProviderReconciler(store, NewResolver(newTestRefs()))

	// pr-1 matches by (name, external id) but pr-2 holds prov-2 in the
	// product's platform country: reassigning would collide, so only the
	// verified flag moves.
	p := withProvider(sourceProduct("p1"), `{"name":"Acme","external_id":"prov-2","verified":true}`)
	id, created, err := r.Reconcile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if created || id != "pr-1" {
		t.Errorf("got (%s, %v), want (pr-1, false)", id, created)
	}
	pr1, _ := store.GetByID(ctx, "pr-1")
	if !pr1.Verified {
		t.Error("verified flag not propagated")
	}
	pr2, _ := store.GetByID(ctx, "pr-2")
	if pr2.Name != "Other" {
		t.Errorf("collision holder mutated: %+v", pr2)
	}
}
