package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "wallets.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return database
}

func TestWalletForMissingUser(t *testing.T) {
	database := openTestDB(t)

	address, err := database.WalletFor(42)
	if err != nil {
		t.Fatalf("WalletFor() error = %v", err)
	}
	if address != "" {
		t.Errorf("WalletFor() = %q, want empty", address)
	}
}

func TestRegisterAndLookupWallet(t *testing.T) {
	database := openTestDB(t)

	if err := database.RegisterWallet(42, "alice", "0xabc123"); err != nil {
		t.Fatalf("RegisterWallet() error = %v", err)
	}

	address, err := database.WalletFor(42)
	if err != nil {
		t.Fatalf("WalletFor() error = %v", err)
	}
	if address != "0xabc123" {
		t.Errorf("WalletFor() = %q, want 0xabc123", address)
	}

	// Re-registering replaces the address.
	if err := database.RegisterWallet(42, "alice", "0xdef456"); err != nil {
		t.Fatalf("RegisterWallet() error = %v", err)
	}
	address, err = database.WalletFor(42)
	if err != nil {
		t.Fatalf("WalletFor() error = %v", err)
	}
	if address != "0xdef456" {
		t.Errorf("WalletFor() = %q, want 0xdef456", address)
	}
}
