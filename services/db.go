package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate applies a row-level FOR UPDATE lock where the dialect has
// one. SQLite (used in tests) has a single writer and no FOR UPDATE syntax,
// so there the transaction itself is the serialization point.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
