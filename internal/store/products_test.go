package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/podari/internal/db"
	"github.com/erazemk/podari/internal/model"
)

func createTestUser(t *testing.T, database *sql.DB, name, email string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, name, email, "", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func newTestProduct(t *testing.T, database *sql.DB, ownerID, name string) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:        name,
		Description: "gently used",
		State:       "good",
		PurchasedAt: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		Images:      []string{"a.jpg", "b.jpg"},
		OwnerID:     ownerID,
		Available:   true,
	}
	if err := InsertProduct(context.Background(), database, p); err != nil {
		t.Fatalf("InsertProduct: %v", err)
	}
	return p
}

func TestInsertAndGetProduct(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, database, "Ana", "ana@example.com")
	p := newTestProduct(t, database, owner.ID, "Lamp")

	if _, ok := model.ParseID(p.ID); !ok {
		t.Fatalf("expected a generated id, got %q", p.ID)
	}

	got, err := GetProduct(ctx, database, p.ID, true)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got == nil {
		t.Fatal("expected product, got nil")
	}
	if got.Name != "Lamp" {
		t.Errorf("expected name 'Lamp', got %q", got.Name)
	}
	if !got.Available {
		t.Error("expected product to be available")
	}
	if got.ReceiverID != nil || got.DonatedAt != nil {
		t.Error("expected no receiver and no donation date")
	}
	if len(got.Images) != 2 || got.Images[0] != "a.jpg" || got.Images[1] != "b.jpg" {
		t.Errorf("expected images in order, got %v", got.Images)
	}
	if !got.PurchasedAt.Equal(p.PurchasedAt) {
		t.Errorf("expected purchased_at %v, got %v", p.PurchasedAt, got.PurchasedAt)
	}
	if got.Owner == nil || got.Owner.Name != "Ana" {
		t.Errorf("expected expanded owner 'Ana', got %+v", got.Owner)
	}

	plain, _ := GetProduct(ctx, database, p.ID, false)
	if plain.Owner != nil {
		t.Error("expected no expansion when expand is false")
	}
	if plain.OwnerID != owner.ID {
		t.Errorf("expected owner id %q, got %q", owner.ID, plain.OwnerID)
	}
}

func TestGetProductNotFound(t *testing.T) {
	database := db.NewTestDB(t)

	got, err := GetProduct(context.Background(), database, model.NewID(), true)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing product")
	}
}

func TestExpansionToleratesDeletedUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, database, "Ana", "ana@example.com")
	p := newTestProduct(t, database, owner.ID, "Lamp")
	DeleteUser(ctx, database, owner.ID)

	got, err := GetProduct(ctx, database, p.ID, true)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Owner != nil {
		t.Errorf("expected nil owner profile, got %+v", got.Owner)
	}
	if got.OwnerID != owner.ID {
		t.Errorf("expected raw owner id to be kept, got %q", got.OwnerID)
	}
}

func TestListProductsPagination(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, database, "Ana", "ana@example.com")
	for _, name := range []string{"P1", "P2", "P3", "P4"} {
		newTestProduct(t, database, owner.ID, name)
	}

	page, err := ListProducts(ctx, database, 2, 0)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(page) != 2 || page[0].Name != "P4" || page[1].Name != "P3" {
		t.Fatalf("expected [P4 P3], got %v", productNames(page))
	}

	page, _ = ListProducts(ctx, database, 2, 2)
	if len(page) != 2 || page[0].Name != "P2" || page[1].Name != "P1" {
		t.Fatalf("expected [P2 P1], got %v", productNames(page))
	}

	page, _ = ListProducts(ctx, database, 2, 4)
	if len(page) != 0 {
		t.Errorf("expected empty page, got %v", productNames(page))
	}
}

func TestListProductsMatching(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := createTestUser(t, database, "Ana", "ana@example.com")
	bor := createTestUser(t, database, "Bor", "bor@example.com")
	lamp := newTestProduct(t, database, ana.ID, "Lamp")
	newTestProduct(t, database, ana.ID, "Chair")
	newTestProduct(t, database, bor.ID, "Desk")

	owned, err := ListProductsMatching(ctx, database, model.ProductFilter{OwnerID: ana.ID})
	if err != nil {
		t.Fatalf("ListProductsMatching: %v", err)
	}
	if len(owned) != 2 {
		t.Errorf("expected 2 products for Ana, got %d", len(owned))
	}

	AssignReceiver(ctx, database, lamp.ID, ana.ID, bor.ID)

	received, _ := ListProductsMatching(ctx, database, model.ProductFilter{ReceiverID: bor.ID})
	if len(received) != 1 || received[0].Name != "Lamp" {
		t.Fatalf("expected [Lamp] received by Bor, got %v", productNames(received))
	}
	if received[0].Receiver == nil || received[0].Receiver.Name != "Bor" {
		t.Errorf("expected expanded receiver 'Bor', got %+v", received[0].Receiver)
	}

	none, _ := ListProductsMatching(ctx, database, model.ProductFilter{ReceiverID: ana.ID})
	if len(none) != 0 {
		t.Errorf("expected no products received by Ana, got %d", len(none))
	}
}

func TestSaveProductKeepsLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, database, "Ana", "ana@example.com")
	p := newTestProduct(t, database, owner.ID, "Lamp")
	MarkDonated(ctx, database, p.ID, owner.ID, time.Now())

	p.Name = "Desk lamp"
	p.Images = []string{"c.jpg"}
	p.Available = true
	ok, err := SaveProduct(ctx, database, p)
	if err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	if !ok {
		t.Fatal("expected SaveProduct to report an update")
	}

	got, _ := GetProduct(ctx, database, p.ID, false)
	if got.Name != "Desk lamp" {
		t.Errorf("expected name 'Desk lamp', got %q", got.Name)
	}
	if len(got.Images) != 1 || got.Images[0] != "c.jpg" {
		t.Errorf("expected images [c.jpg], got %v", got.Images)
	}
	if got.Available || got.DonatedAt == nil {
		t.Error("expected donation state to be preserved")
	}

	missing := *p
	missing.ID = model.NewID()
	ok, _ = SaveProduct(ctx, database, &missing)
	if ok {
		t.Error("expected SaveProduct to report no update for missing product")
	}
}

func TestDeleteProduct(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, database, "Ana", "ana@example.com")
	p := newTestProduct(t, database, owner.ID, "Lamp")

	ok, err := DeleteProduct(ctx, database, p.ID)
	if err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if !ok {
		t.Error("expected product to be deleted")
	}

	ok, _ = DeleteProduct(ctx, database, p.ID)
	if ok {
		t.Error("expected second delete to report nothing deleted")
	}
}

func TestAssignReceiverConditions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := createTestUser(t, database, "Ana", "ana@example.com")
	bor := createTestUser(t, database, "Bor", "bor@example.com")
	p := newTestProduct(t, database, ana.ID, "Lamp")

	// Wrong owner.
	ok, err := AssignReceiver(ctx, database, p.ID, bor.ID, bor.ID)
	if err != nil {
		t.Fatalf("AssignReceiver: %v", err)
	}
	if ok {
		t.Error("expected assignment by non-owner to fail")
	}

	ok, _ = AssignReceiver(ctx, database, p.ID, ana.ID, bor.ID)
	if !ok {
		t.Fatal("expected assignment by owner to succeed")
	}
	got, _ := GetProduct(ctx, database, p.ID, false)
	if got.ReceiverID == nil || *got.ReceiverID != bor.ID {
		t.Errorf("expected receiver %q, got %v", bor.ID, got.ReceiverID)
	}
	if !got.Available {
		t.Error("expected product to remain available after scheduling")
	}

	MarkDonated(ctx, database, p.ID, ana.ID, time.Now())
	ok, _ = AssignReceiver(ctx, database, p.ID, ana.ID, ana.ID)
	if ok {
		t.Error("expected assignment on donated product to fail")
	}
}

func TestMarkDonatedOnlyOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, database, "Ana", "ana@example.com")
	p := newTestProduct(t, database, owner.ID, "Lamp")

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := MarkDonated(ctx, database, p.ID, owner.ID, time.Now())
			if err != nil {
				t.Errorf("MarkDonated: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one successful donation, got %d", wins)
	}

	got, _ := GetProduct(ctx, database, p.ID, false)
	if got.Available {
		t.Error("expected product to be unavailable")
	}
	if got.DonatedAt == nil {
		t.Error("expected donated_at to be set")
	}
}

func productNames(products []model.Product) []string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names
}
