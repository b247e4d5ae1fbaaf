package persisters

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type SQLite struct {
	DBPath string

	DB *sql.DB
}

func (s *SQLite) Open() error {
	// Create leading directories for database
	leadingDir, _ := filepath.Split(s.DBPath)
	if leadingDir != "" {
		if err := os.MkdirAll(leadingDir, os.ModePerm); err != nil {
			return err
		}
	}

	db, err := sql.Open("sqlite", s.DBPath)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(1) // Prevent "database locked" errors
	s.DB = db

	return nil
}

func (s *SQLite) Close() error {
	if s.DB == nil {
		return nil
	}

	return s.DB.Close()
}
