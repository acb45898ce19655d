package cursor_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/extract/cursor"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/sqlitedb"
)

// seed creates a database the way another application would, without the
// WAL journal engram uses for its own files.
func seed(path string, stmts ...string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	db, err := sql.Open(sqlitedb.DriverName, path)
	Expect(err).NotTo(HaveOccurred())
	defer db.Close()

	for _, s := range stmts {
		_, err := db.Exec(s)
		Expect(err).NotTo(HaveOccurred(), s)
	}
}

var _ = Describe("Extractor", func() {
	var root string

	BeforeEach(func() {
		root = filepath.Join(GinkgoT().TempDir(), "globalStorage")
	})

	collect := func(ext *cursor.Extractor) []session.Session {
		return slices.Collect(ext.Sessions(context.Background()))
	}

	It("is unavailable when no root exists", func() {
		ext := cursor.New([]string{root}, nil)
		Expect(ext.Available()).To(BeFalse())
		Expect(collect(ext)).To(BeEmpty())
	})

	It("reads chats from the first chat-like table of nested databases", func() {
		dbPath := filepath.Join(root, "nested", "state.db")
		seed(dbPath,
			`CREATE TABLE ItemTable (key TEXT, value TEXT)`,
			`CREATE TABLE chat_sessions (id TEXT, title TEXT, workspace TEXT, created_at INTEGER, messages TEXT)`,
			`CREATE TABLE conversations (id TEXT, messages TEXT)`,
			`INSERT INTO chat_sessions VALUES ('c1', 'Wire the billing webhook', '/home/dev/billing', 1767225600,
				'[{"role":"user","content":"add the webhook"},{"role":"assistant","text":"added"},{"role":"system","content":"x"}]')`,
			`INSERT INTO chat_sessions VALUES ('c2', NULL, NULL, NULL, '[{"content":"untitled prompt"}]')`,
			`INSERT INTO chat_sessions VALUES ('c3', 'empty', NULL, NULL, 'not json')`,
			`INSERT INTO conversations VALUES ('ignored', '[{"role":"user","content":"other table"}]')`,
		)

		ext := cursor.New([]string{root}, nil)
		Expect(ext.Available()).To(BeTrue())

		got := collect(ext)
		Expect(got).To(HaveLen(2))

		Expect(got[0].ID).To(Equal(session.NewID("cursor", dbPath+"#c2")))
		Expect(got[0].Title).To(Equal("untitled prompt"))
		Expect(got[0].Messages[0].Role).To(Equal(session.RoleUser))

		Expect(got[1].Title).To(Equal("Wire the billing webhook"))
		Expect(got[1].Project).To(Equal("/home/dev/billing"))
		Expect(got[1].SourcePath).To(Equal(dbPath))
		Expect(got[1].CreatedAt).To(Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
		Expect(got[1].Messages).To(HaveLen(2))
		Expect(got[1].Messages[1].Content).To(Equal("added"))
	})

	It("accepts a database file as a root and skips broken files", func() {
		dbPath := filepath.Join(root, "storage.db")
		seed(dbPath,
			`CREATE TABLE conversation (history TEXT)`,
			`INSERT INTO conversation VALUES ('[{"role":"user","content":"by rowid"}]')`,
		)
		broken := filepath.Join(root, "broken.db")
		Expect(os.WriteFile(broken, []byte("not a database"), 0o644)).To(Succeed())

		got := collect(cursor.New([]string{dbPath, broken}, nil))
		Expect(got).To(HaveLen(1))
		Expect(got[0].ID).To(Equal(session.NewID("cursor", dbPath+"#1")))
	})
})
