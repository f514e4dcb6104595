package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories aggregates all repository instances
type Repositories struct {
	User         UserRepository
	CoachAccount CoachAccountRepository
	CoachStudent CoachStudentRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates all repositories over the given DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		CoachAccount: NewCoachAccountRepository(db),
		CoachStudent: NewCoachStudentRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetCoachAccountRepository returns the coach account repository instance
func (f *Factory) GetCoachAccountRepository() CoachAccountRepository {
	return f.GetRepositories().CoachAccount
}

// GetCoachStudentRepository returns the coach-student repository instance
func (f *Factory) GetCoachStudentRepository() CoachStudentRepository {
	return f.GetRepositories().CoachStudent
}

// GetSubscriptionRepository returns the subscription repository instance
func (f *Factory) GetSubscriptionRepository() SubscriptionRepository {
	return f.GetRepositories().Subscription
}
