package database

import "newsadvance/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// in dependency order.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserPreferences{},
		&models.Article{},
		&models.Comment{},
		&models.CommentVote{},
		&models.CommentFlag{},
	}
}
