package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mindmap-dev/mindmap/db"
	"github.com/mindmap-dev/mindmap/internal/logging"
	"github.com/mindmap-dev/mindmap/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenTestDB opens a migrated in-memory SQLite database private to the test.
// The pool is capped at one connection so the shared-cache database lives
// as long as the test.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	conn, err := db.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=on"), 1, logging.Discard())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.MigrateDatabase(conn, logging.Discard()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return conn
}

// FakeMailer records confirmation emails instead of sending them. Set Err to
// make every delivery fail.
type FakeMailer struct {
	mu   sync.Mutex
	Err  error
	Sent []services.ConfirmationEmail
}

func (m *FakeMailer) SendConfirmation(_ context.Context, email services.ConfirmationEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Sent = append(m.Sent, email)
	return nil
}

func (m *FakeMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Sent)
}

func (m *FakeMailer) Last() services.ConfirmationEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Sent) == 0 {
		return services.ConfirmationEmail{}
	}

	return m.Sent[len(m.Sent)-1]
}
