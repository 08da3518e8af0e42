package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate makes the next read of table take a row lock held until the
// transaction ends. sqlserver takes the lock through a table hint; sqlite has
// no row locks and relies on its database-level write lock.
func lockForUpdate(db *gorm.DB, table string) *gorm.DB {
	switch db.Dialector.Name() {
	case "sqlite":
		return db
	case "sqlserver":
		return db.Table(table + " WITH (UPDLOCK, ROWLOCK)")
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
