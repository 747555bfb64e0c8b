package pagination

import "gorm.io/gorm"

// Keyset orders rows newest first by (created_at, id) and, given a cursor,
// keeps only the rows that sort after it.
func Keyset(cursor *Cursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where("(created_at < ? OR (created_at = ? AND id < ?))",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		return db.Order("created_at DESC, id DESC")
	}
}
