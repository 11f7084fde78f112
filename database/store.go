package database

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"blogd/domain"
)

// Ensure Store properly implements the domain.Store interface.
var _ domain.Store = &Store{}

// Store is the gorm backed domain.Store.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store on the open connection of db.
func NewStore(db *DB) *Store {
	return &Store{db: db.Gorm}
}

// validID reports whether id can be compared against a uuid column. Postgres
// rejects malformed uuids with a syntax error, those lookups are treated as
// misses instead.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
