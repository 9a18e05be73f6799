// Package models holds the GORM rows behind the linked-source, watch
// subscription and notification repositories. Domain entities stay free
// of ORM tags; each model converts to and from its entity.
package models
