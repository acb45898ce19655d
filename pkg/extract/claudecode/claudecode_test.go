package claudecode_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/extract/claudecode"
	"github.com/papercomputeco/engram/pkg/session"
)

func writeFile(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
}

var _ = Describe("Extractor", func() {
	var (
		root string
		ext  *claudecode.Extractor
	)

	BeforeEach(func() {
		root = filepath.Join(GinkgoT().TempDir(), "projects")
		ext = claudecode.New(root, nil)
	})

	collect := func() []session.Session {
		return slices.Collect(ext.Sessions(context.Background()))
	}

	It("is unavailable without a projects directory", func() {
		Expect(ext.Name()).To(Equal("claude_code"))
		Expect(ext.Available()).To(BeFalse())
		Expect(collect()).To(BeEmpty())
	})

	It("parses nested messages with block content", func() {
		writeFile(filepath.Join(root, "-home-dev-myapp", "abc.jsonl"), `{"type":"summary","summary":"ignored"}
{"type":"user","cwd":"/home/dev/myapp","timestamp":"2026-02-01T10:00:00.000Z","message":{"role":"user","content":"Why does the build fail?"}}
{"type":"assistant","timestamp":"2026-02-01T10:00:05.000Z","message":{"role":"assistant","content":[{"type":"text","text":"The linker is missing."},{"type":"tool_use","name":"Bash","input":{}}]}}
not json at all
{"type":"system","message":{"role":"system","content":"hidden"}}`)

		Expect(ext.Available()).To(BeTrue())
		got := collect()
		Expect(got).To(HaveLen(1))

		s := got[0]
		path := filepath.Join(root, "-home-dev-myapp", "abc.jsonl")
		Expect(s.ID).To(Equal(session.NewID("claude_code", path)))
		Expect(s.SourceTool).To(Equal("claude_code"))
		Expect(s.SourcePath).To(Equal(path))
		Expect(s.Project).To(Equal("/home/dev/myapp"))
		Expect(s.Title).To(Equal("Why does the build fail?"))
		Expect(s.Summary).To(Equal("The linker is missing.\n[Tool: Bash]"))
		Expect(s.CreatedAt).To(Equal(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)))
		Expect(s.Messages).To(HaveLen(2))
		Expect(s.Messages[0].Role).To(Equal(session.RoleUser))
		Expect(s.Messages[1].Role).To(Equal(session.RoleAssistant))
	})

	It("parses top-level role and content", func() {
		writeFile(filepath.Join(root, "proj", "legacy.jsonl"), `{"role":"user","content":"hello from the old format"}
{"role":"assistant","content":[{"type":"text","text":"hi"}]}`)

		got := collect()
		Expect(got).To(HaveLen(1))
		Expect(got[0].Title).To(Equal("hello from the old format"))
		Expect(got[0].Summary).To(Equal("hi"))
	})

	It("prefers the project.json path, then cwd, then the directory name", func() {
		writeFile(filepath.Join(root, "with-meta", "project.json"), `{"path":"/srv/meta-project"}`)
		writeFile(filepath.Join(root, "with-meta", "a.jsonl"), `{"cwd":"/ignored","message":{"role":"user","content":"question one"}}`)
		writeFile(filepath.Join(root, "bare-dir", "b.jsonl"), `{"message":{"role":"user","content":"question two"}}`)

		byTitle := map[string]string{}
		for _, s := range collect() {
			byTitle[s.Title] = s.Project
		}
		Expect(byTitle).To(Equal(map[string]string{
			"question one": "/srv/meta-project",
			"question two": "bare-dir",
		}))
	})

	It("skips transcripts without conversation messages", func() {
		writeFile(filepath.Join(root, "p", "empty.jsonl"), `{"type":"summary"}`)
		Expect(collect()).To(BeEmpty())
	})

	It("falls back to the file stem for a title and truncates content", func() {
		long := strings.Repeat("x", 5000)
		writeFile(filepath.Join(root, "p", "stem-name.jsonl"), `{"message":{"role":"assistant","content":"`+long+`"}}`)

		got := collect()
		Expect(got).To(HaveLen(1))
		Expect(got[0].Title).To(Equal("stem-name"))
		Expect(got[0].Summary).To(HaveLen(200))
		Expect(got[0].Messages[0].Content).To(HaveLen(session.MaxMessageChars))
	})

	It("stops when the consumer stops", func() {
		writeFile(filepath.Join(root, "p", "1.jsonl"), `{"message":{"role":"user","content":"one"}}`)
		writeFile(filepath.Join(root, "p", "2.jsonl"), `{"message":{"role":"user","content":"two"}}`)

		n := 0
		for range ext.Sessions(context.Background()) {
			n++
			break
		}
		Expect(n).To(Equal(1))
	})

	It("restarts from the beginning on every call", func() {
		writeFile(filepath.Join(root, "p", "1.jsonl"), `{"message":{"role":"user","content":"one"}}`)
		Expect(collect()).To(HaveLen(1))
		Expect(collect()).To(HaveLen(1))
	})
})
