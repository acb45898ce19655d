package openclaw_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/extract/openclaw"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/sqlitedb"
)

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
	var (
		root string
		ext  *openclaw.Extractor
	)

	BeforeEach(func() {
		root = filepath.Join(GinkgoT().TempDir(), ".openclaw")
		ext = openclaw.New(root, nil)
	})

	collect := func() []session.Session {
		return slices.Collect(ext.Sessions(context.Background()))
	}

	It("is unavailable without a database", func() {
		Expect(ext.Available()).To(BeFalse())
		Expect(collect()).To(BeEmpty())
	})

	It("joins sessions with their messages, newest first", func() {
		seed(filepath.Join(root, "agent.db"),
			`CREATE TABLE sessions (id TEXT, channel TEXT, label TEXT, created_at TEXT)`,
			`CREATE TABLE messages (id INTEGER PRIMARY KEY, session_id TEXT, role TEXT, content TEXT, created_at TEXT)`,
			`INSERT INTO sessions VALUES ('s1', 'telegram', 'Morning standup notes', '2026-01-01 08:00:00')`,
			`INSERT INTO sessions VALUES ('s2', 'slack', NULL, '2026-01-02 08:00:00')`,
			`INSERT INTO sessions VALUES ('s3', 'slack', 'no messages', '2026-01-03 08:00:00')`,
			`INSERT INTO messages (session_id, role, content) VALUES ('s1', 'user', 'what is on today')`,
			`INSERT INTO messages (session_id, role, content) VALUES ('s1', 'tool', 'calendar lookup')`,
			`INSERT INTO messages (session_id, role, content) VALUES ('s1', 'assistant', 'two meetings')`,
			`INSERT INTO messages (session_id, role, content) VALUES ('s2', 'user', 'deploy the bot')`,
		)

		Expect(ext.Available()).To(BeTrue())
		got := collect()
		Expect(got).To(HaveLen(2))

		Expect(got[0].ID).To(Equal(session.NewID("openclaw", "s2")))
		Expect(got[0].Project).To(Equal("slack"))
		Expect(got[0].Title).To(Equal("deploy the bot"))

		Expect(got[1].Project).To(Equal("telegram"))
		Expect(got[1].Title).To(Equal("Morning standup notes"))
		Expect(got[1].Messages).To(HaveLen(2))
		Expect(got[1].Messages[1].Content).To(Equal("two meetings"))
	})

	It("falls back to a history column", func() {
		seed(filepath.Join(root, "sessions.db"),
			`CREATE TABLE conversation (key TEXT, label TEXT, history TEXT)`,
			`INSERT INTO conversation VALUES ('k1', 'ops', '[{"role":"user","content":"rotate the keys"},{"role":"assistant","content":"rotated"}]')`,
		)

		got := collect()
		Expect(got).To(HaveLen(1))
		Expect(got[0].ID).To(Equal(session.NewID("openclaw", "k1")))
		Expect(got[0].Project).To(Equal("ops"))
		Expect(got[0].Messages).To(HaveLen(2))
	})

	It("yields nothing for an unrelated schema", func() {
		seed(filepath.Join(root, "other.db"), `CREATE TABLE config (k TEXT, v TEXT)`)
		Expect(collect()).To(BeEmpty())
	})
})
