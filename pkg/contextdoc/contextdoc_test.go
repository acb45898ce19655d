package contextdoc_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/contextdoc"
	"github.com/papercomputeco/engram/pkg/dotdir"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
)

func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

var _ = Describe("Renderer", func() {
	var (
		ctx      context.Context
		layout   dotdir.Layout
		facts    *fact.Store
		sessions *session.Store
		renderer *contextdoc.Renderer
		fixed    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		layout = dotdir.NewLayout(GinkgoT().TempDir())
		fixed = time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)

		var err error
		facts, err = fact.NewStore(fact.Config{
			Path: layout.FactsDB(),
			Now:  steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts.Init(ctx)).To(Succeed())

		sessions, err = session.NewStore(session.Config{
			Path: layout.SessionsDB(),
			Now:  steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions.Init(ctx)).To(Succeed())

		renderer, err = contextdoc.New(contextdoc.Config{
			Facts:    facts,
			Sessions: sessions,
			Layout:   layout,
			Now:      func() time.Time { return fixed },
		})
		Expect(err).NotTo(HaveOccurred())
	})

	add := func(in fact.Input) string {
		id, err := facts.Add(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	factLines := func(doc string) []string {
		var out []string
		for _, l := range strings.Split(doc, "\n") {
			if strings.HasPrefix(l, "- ") {
				out = append(out, l)
			}
		}
		return out
	}

	Describe("New", func() {
		It("requires both readers", func() {
			_, err := contextdoc.New(contextdoc.Config{Facts: facts})
			Expect(err).To(HaveOccurred())
			_, err = contextdoc.New(contextdoc.Config{Sessions: sessions})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Core", func() {
		It("renders a placeholder without pinned global facts", func() {
			add(fact.Input{Content: "not pinned at all"})
			add(fact.Input{Scope: "project:myapp", Content: "pinned but scoped", Pinned: true})

			doc, err := renderer.Core(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(Equal(contextdoc.CorePlaceholder))
		})

		It("keeps whole fact lines within the budget", func() {
			var all []string
			for i := range 20 {
				content := fmt.Sprintf("Rule %02d: keep handlers small and return errors", i)
				all = append(all, "- 📌 "+content)
				add(fact.Input{Content: content, Pinned: true})
			}

			doc, err := renderer.Core(ctx)
			Expect(err).NotTo(HaveOccurred())

			lines := factLines(doc)
			Expect(lines).NotTo(BeEmpty())
			Expect(len(lines)).To(BeNumerically("<", 20))

			total := 0
			for _, l := range lines {
				total += utf8.RuneCountInString(l)
				Expect(all).To(ContainElement(l))
			}
			Expect(total).To(BeNumerically("<=", contextdoc.DefaultBudgets.Core))
		})

		It("includes unpinned facts nowhere", func() {
			add(fact.Input{Content: "pinned global rule", Pinned: true})
			add(fact.Input{Content: "loose global note"})

			doc, err := renderer.Core(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(ContainSubstring("- 📌 pinned global rule"))
			Expect(doc).NotTo(ContainSubstring("loose global note"))
		})
	})

	Describe("Global", func() {
		It("renders each section in order", func() {
			add(fact.Input{Content: "always sign commits", Pinned: true})
			add(fact.Input{Content: "prefer table driven tests"})
			add(fact.Input{Scope: "project:myapp", Content: "use port 8080 for the api"})

			_, err := sessions.Upsert(ctx, session.Session{
				SourceTool: "claude_code",
				SourcePath: "/logs/a.jsonl",
				Project:    "/home/dev/code/myapp",
				Title:      "Debug the flaky login test",
				CreatedAt:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
			})
			Expect(err).NotTo(HaveOccurred())

			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(doc).To(ContainSubstring("_Updated: 2026-03-04 05:06_"))
			idx := func(s string) int { return strings.Index(doc, s) }
			Expect(idx("### 📌 Global rules")).To(BeNumerically(">", 0))
			Expect(idx("### Preferences and conventions")).To(BeNumerically(">", idx("### 📌 Global rules")))
			Expect(idx("### Active projects")).To(BeNumerically(">", idx("### Preferences and conventions")))
			Expect(idx("### Recent sessions")).To(BeNumerically(">", idx("### Active projects")))

			Expect(doc).To(ContainSubstring("- 📌 always sign commits"))
			Expect(doc).To(ContainSubstring("- prefer table driven tests"))
			Expect(doc).To(ContainSubstring("- **myapp**: use port 8080 for the api"))
			Expect(doc).To(ContainSubstring("- [2026-02-01] (claude_code) Debug the flaky login test"))
		})

		It("omits empty sections", func() {
			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).NotTo(ContainSubstring("###"))
		})

		It("lists at most 10 other global facts", func() {
			for i := range 12 {
				add(fact.Input{Content: fmt.Sprintf("global preference %d", i)})
			}

			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(factLines(doc)).To(HaveLen(10))
		})

		It("keeps the pinned section within its own budget", func() {
			for i := range 30 {
				add(fact.Input{Content: fmt.Sprintf("pinned rule %02d %s", i, strings.Repeat("x", 40)), Pinned: true})
			}

			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())

			total := 0
			for _, l := range factLines(doc) {
				total += utf8.RuneCountInString(l)
			}
			Expect(total).To(BeNumerically("<=", contextdoc.DefaultBudgets.Pinned))
			Expect(total).To(BeNumerically(">", contextdoc.DefaultBudgets.Pinned-70))
		})

		It("orders projects by most recent touch and truncates rollup facts", func() {
			add(fact.Input{Scope: "project:alpha", Content: "alpha fact " + strings.Repeat("a", 60)})
			add(fact.Input{Scope: "project:beta", Content: "beta fact"})

			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Index(doc, "**beta**")).To(BeNumerically("<", strings.Index(doc, "**alpha**")))
			Expect(doc).To(ContainSubstring("- **alpha**: alpha fact " + strings.Repeat("a", 39)))
			Expect(doc).NotTo(ContainSubstring(strings.Repeat("a", 40)))

			_, err = facts.Search(ctx, "alpha", fact.SearchOptions{})
			Expect(err).NotTo(HaveOccurred())

			doc, err = renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Index(doc, "**alpha**")).To(BeNumerically("<", strings.Index(doc, "**beta**")))
		})

		It("limits the rollup to 8 projects and 3 facts each", func() {
			for p := range 10 {
				for f := range 4 {
					add(fact.Input{Scope: fmt.Sprintf("project:p%d", p), Content: fmt.Sprintf("p%d-f%d", p, f)})
				}
			}

			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(doc, "- **p")).To(Equal(8))
			Expect(doc).To(ContainSubstring("- **p9**: p9-f0; p9-f1; p9-f2\n"))
			Expect(doc).NotTo(ContainSubstring("**p0**"))
		})

		It("skips noisy and rootless recent sessions", func() {
			for i, s := range []session.Session{
				{Title: "HEARTBEAT_OK", Project: "/home/dev/code/myapp"},
				{Title: "Plan the storage migration", Project: "/home/dev/workspace"},
				{Title: "Plan the cache invalidation", Project: "/home/dev/code/myapp"},
			} {
				s.SourceTool = "openclaw"
				s.SourcePath = fmt.Sprintf("row-%d", i)
				_, err := sessions.Upsert(ctx, s)
				Expect(err).NotTo(HaveOccurred())
			}

			doc, err := renderer.Global(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(ContainSubstring("Plan the cache invalidation"))
			Expect(doc).NotTo(ContainSubstring("HEARTBEAT_OK"))
			Expect(doc).NotTo(ContainSubstring("storage migration"))
		})
	})

	Describe("Project", func() {
		It("returns nothing for a project without facts", func() {
			doc, err := renderer.Project(ctx, "ghost")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(BeEmpty())
		})

		It("renders all pinned facts and up to 15 others", func() {
			add(fact.Input{Scope: "project:myapp", Content: "never commit secrets", Pinned: true})
			for i := range 20 {
				add(fact.Input{Scope: "project:myapp", Content: fmt.Sprintf("note %02d", i)})
			}

			doc, err := renderer.Project(ctx, "myapp")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(HavePrefix("## Project memory: myapp"))
			Expect(doc).To(ContainSubstring("### 📌 Key rules\n- 📌 never commit secrets"))
			Expect(factLines(doc)).To(HaveLen(16))
		})
	})

	Describe("Update", func() {
		It("writes core, global and non-empty project artifacts", func() {
			add(fact.Input{Content: "pinned", Pinned: true})
			add(fact.Input{Scope: "project:myapp", Content: "deploy with helm"})

			results, err := renderer.Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Kind).To(Equal(contextdoc.KindCore))
			Expect(results[1].Kind).To(Equal(contextdoc.KindGlobal))
			Expect(results[2].Kind).To(Equal(contextdoc.KindProject))
			Expect(results[2].Project).To(Equal("myapp"))
			Expect(results[0].Tokens).To(Equal(results[0].Chars / 4))

			for _, r := range results {
				data, err := os.ReadFile(r.Path)
				Expect(err).NotTo(HaveOccurred())
				Expect(utf8.RuneCount(data)).To(Equal(r.Chars))
			}
			Expect(layout.ProjectContext("myapp")).To(BeAnExistingFile())
			Expect(filepath.Join(layout.Projects(), "ghost")).NotTo(BeAnExistingFile())
		})

		It("keeps the previous version as a backup", func() {
			add(fact.Input{Content: "first rule", Pinned: true})
			_, err := renderer.Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(contextdoc.BackupPath(layout.Core())).NotTo(BeAnExistingFile())

			add(fact.Input{Content: "second rule", Pinned: true})
			_, err = renderer.Update(ctx)
			Expect(err).NotTo(HaveOccurred())

			backup, err := os.ReadFile(contextdoc.BackupPath(layout.Core()))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(backup)).NotTo(ContainSubstring("second rule"))
			Expect(string(backup)).To(ContainSubstring("first rule"))

			current, err := os.ReadFile(layout.Core())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(current)).To(ContainSubstring("second rule"))
		})

		It("leaves the published artifact intact when publishing fails", func() {
			add(fact.Input{Content: "original rule", Pinned: true})
			_, err := renderer.Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			before, err := os.ReadFile(layout.Core())
			Expect(err).NotTo(HaveOccurred())

			failing, err := contextdoc.New(contextdoc.Config{
				Facts:    facts,
				Sessions: sessions,
				Layout:   layout,
				Rename: func(string, string) error {
					return errors.New("simulated crash before rename")
				},
			})
			Expect(err).NotTo(HaveOccurred())

			add(fact.Input{Content: "replacement rule", Pinned: true})
			_, err = failing.Update(ctx)
			Expect(err).To(MatchError(ContainSubstring("simulated crash")))

			after, err := os.ReadFile(layout.Core())
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
			Expect(strings.TrimSuffix(layout.Core(), ".md") + ".tmp").NotTo(BeAnExistingFile())
		})
	})
})

var _ = Describe("WriteAtomic", func() {
	It("creates missing directories", func() {
		path := filepath.Join(GinkgoT().TempDir(), "a", "b", "doc.md")
		Expect(contextdoc.WriteAtomic(path, []byte("hello"))).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hello"))
	})

	It("names the backup after the document", func() {
		Expect(contextdoc.BackupPath("/x/core.md")).To(Equal("/x/core.bak"))
	})
})
