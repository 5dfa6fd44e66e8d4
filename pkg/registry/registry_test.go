package registry

import (
	"fmt"
	"testing"
)

// TestItem is a simple struct for testing
type TestItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	tests := []struct {
		name    string
		item    TestItem
		wantErr bool
	}{
		{
			name: "register valid item",
			item: TestItem{
				ID:   "test-1",
				Name: "Test Item 1",
			},
			wantErr: false,
		},
		{
			name: "register item with empty name",
			item: TestItem{
				ID:   "",
				Name: "Test Item",
			},
			wantErr: true,
		},
		{
			name: "register duplicate item",
			item: TestItem{
				ID:   "test-1", // Same ID as first test
				Name: "Test Item 2",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.item.ID, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("BaseRegistry.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	testItem := TestItem{
		ID:   "test-1",
		Name: "Test Item 1",
	}
	if err := registry.Register("test-1", testItem); err != nil {
		t.Fatalf("Failed to register test item: %v", err)
	}

	if got, ok := registry.Get("test-1"); !ok || got != testItem {
		t.Errorf("BaseRegistry.Get() = %v, %v, want %v, true", got, ok, testItem)
	}
	if _, ok := registry.Get("missing"); ok {
		t.Error("BaseRegistry.Get() found an item that was never registered")
	}
}

func TestBaseRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	// Register names deliberately out of lexical order
	names := []string{"zeta", "alpha", "mid"}
	for _, name := range names {
		if err := registry.Register(name, TestItem{ID: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	got := registry.Names()
	if len(got) != len(names) {
		t.Fatalf("Names() returned %d items, want %d", len(got), len(names))
	}
	for i, name := range names {
		if got[i] != name {
			t.Errorf("Names()[%d] = %s, want %s", i, got[i], name)
		}
	}

	items := registry.List()
	for i, name := range names {
		if items[i].ID != name {
			t.Errorf("List()[%d].ID = %s, want %s", i, items[i].ID, name)
		}
	}
}

func TestBaseRegistry_Count(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("item-%d", i)
		if err := registry.Register(name, TestItem{ID: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	if got := registry.Count(); got != 5 {
		t.Errorf("BaseRegistry.Count() = %d, want 5", got)
	}
}
