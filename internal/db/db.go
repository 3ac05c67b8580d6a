package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the wallet database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		login TEXT NOT NULL UNIQUE,
		wallet_id INTEGER,
		FOREIGN KEY (wallet_id) REFERENCES wallets(id)
	);

	CREATE TABLE IF NOT EXISTS wallets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL UNIQUE
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// WalletFor returns the registered wallet address for a user ID. An empty
// string means no wallet is registered, which callers treat as a nudge, not
// an error.
func (db *DB) WalletFor(userID int64) (string, error) {
	query := `
	SELECT w.address
	FROM users u
	JOIN wallets w ON w.id = u.wallet_id
	WHERE u.id = ?
	`

	var address string
	err := db.QueryRow(query, userID).Scan(&address)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up wallet for user %d: %w", userID, err)
	}

	return address, nil
}

// RegisterWallet stores or replaces a user's wallet address.
func (db *DB) RegisterWallet(userID int64, login, address string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var walletID int64
	err = tx.QueryRow(`SELECT id FROM wallets WHERE address = ?`, address).Scan(&walletID)
	if err == sql.ErrNoRows {
		res, insertErr := tx.Exec(`INSERT INTO wallets (address) VALUES (?)`, address)
		if insertErr != nil {
			return fmt.Errorf("failed to insert wallet: %w", insertErr)
		}
		walletID, insertErr = res.LastInsertId()
		if insertErr != nil {
			return fmt.Errorf("failed to read wallet id: %w", insertErr)
		}
	} else if err != nil {
		return fmt.Errorf("failed to look up wallet: %w", err)
	}

	query := `
	INSERT INTO users (id, login, wallet_id)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		login = excluded.login,
		wallet_id = excluded.wallet_id
	`
	if _, err := tx.Exec(query, userID, login, walletID); err != nil {
		return fmt.Errorf("failed to save user wallet: %w", err)
	}

	return tx.Commit()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
