package store

import (
	"context"
	"testing"

	"github.com/halalscan/halalscan/internal/db"
)

func TestSetAndGetValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SetValue(ctx, database, "greeting", "hello"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	value, ok, err := GetValue(ctx, database, "greeting")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !ok || value != "hello" {
		t.Errorf("expected ('hello', true), got (%q, %v)", value, ok)
	}
}

func TestGetValueMissing(t *testing.T) {
	database := db.NewTestDB(t)

	value, ok, err := GetValue(context.Background(), database, "never-set")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if ok || value != "" {
		t.Errorf("expected ('', false), got (%q, %v)", value, ok)
	}
}

func TestSetValueOverwrites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	SetValue(ctx, database, "counter", "1")
	SetValue(ctx, database, "counter", "2")

	value, _, _ := GetValue(ctx, database, "counter")
	if value != "2" {
		t.Errorf("expected '2' after overwrite, got %q", value)
	}
}

func TestDeleteValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	SetValue(ctx, database, "temp", "x")
	if err := DeleteValue(ctx, database, "temp"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}

	_, ok, _ := GetValue(ctx, database, "temp")
	if ok {
		t.Error("expected key to be gone after delete")
	}
}

func TestJWTSecretStable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if first == "" {
		t.Fatal("expected non-empty secret")
	}

	second, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret (second): %v", err)
	}
	if second != first {
		t.Error("expected the same secret on repeated reads")
	}
}
