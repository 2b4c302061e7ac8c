package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Repositories bundles all data access objects.
type Repositories struct {
	User   *UserRepository
	Survey *SurveyRepository
	Answer *AnswerRepository
}

// NewRepositories wires every repository onto one gorm handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:   NewUserRepository(db),
		Survey: NewSurveyRepository(db),
		Answer: NewAnswerRepository(db),
	}
}
