package repository

import (
	"database/sql"
	"testing"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// Hooks for tests in repository_test that drive services against the shared container.

func SharedDB() *sql.DB {
	return testDB
}

func NewTestProduct(t *testing.T, stock int, price string) *domain.Product {
	return createTestProduct(t, stock, price)
}
