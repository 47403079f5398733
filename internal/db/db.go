package db

import (
	"database/sql"
	"log"

	"github.com/go-sql-driver/mysql"
)

func InitDB(dbURL string) *sql.DB {
	cfg, err := mysql.ParseDSN(dbURL)
	if err != nil {
		log.Fatal("invalid DB_URL: ", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		log.Fatal("could not open database: ", err)
	}

	err = db.Ping()
	if err != nil {
		log.Fatal("database is not responding: ", err)
	}

	log.Println("connected to database")
	return db
}

// Owner columns use a binary collation so owner filters match exactly.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username VARCHAR(100) COLLATE utf8mb4_bin PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price VARCHAR(64) NOT NULL DEFAULT '',
		stock INT NOT NULL DEFAULT 0,
		image VARCHAR(255) NULL,
		owner VARCHAR(100) COLLATE utf8mb4_bin NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_products_owner (owner)
	);`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGINT PRIMARY KEY,
		owner VARCHAR(100) COLLATE utf8mb4_bin NULL,
		items TEXT NOT NULL,
		total DECIMAL(20,2) NOT NULL DEFAULT 0,
		item_count INT NOT NULL DEFAULT 0,
		payment_method VARCHAR(50) NOT NULL DEFAULT 'cash',
		proof_uploaded TINYINT(1) NOT NULL DEFAULT 0,
		proof_filename VARCHAR(255) NULL,
		location TEXT NULL,
		timestamp VARCHAR(40) NOT NULL,
		date VARCHAR(40) NOT NULL,
		INDEX idx_transactions_owner (owner)
	);`,
}

func RunMigrations(db *sql.DB) error {
	for _, q := range migrations {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	log.Println("migrations complete")
	return nil
}
