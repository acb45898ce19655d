package extract_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/extract"
)

var _ = Describe("Registry", func() {
	var home string

	BeforeEach(func() {
		home = GinkgoT().TempDir()
	})

	names := func(es []extract.Extractor) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.Name())
		}
		return out
	}

	It("returns every extractor in a fixed order", func() {
		Expect(names(extract.All(extract.Options{Home: home}))).To(Equal(
			[]string{"claude_code", "opencode", "cursor", "openclaw"},
		))
		Expect(extract.Names).To(Equal(names(extract.All(extract.Options{Home: home}))))
	})

	It("filters by name and keeps registry order", func() {
		all := extract.All(extract.Options{Home: home})
		Expect(names(extract.ByName(all, "openclaw", "claude_code"))).To(Equal(
			[]string{"claude_code", "openclaw"},
		))
		Expect(extract.ByName(all)).To(HaveLen(4))
		Expect(extract.ByName(all, "nope")).To(BeEmpty())
	})

	It("knows the supported tools", func() {
		Expect(extract.Known("cursor")).To(BeTrue())
		Expect(extract.Known("vim")).To(BeFalse())
	})

	It("resolves default roots under home", func() {
		for _, e := range extract.All(extract.Options{Home: home}) {
			if e.Name() == "cursor" {
				continue
			}
			Expect(e.Roots()).To(HaveLen(1))
			Expect(e.Roots()[0]).To(HavePrefix(home))
		}
	})

	It("reports nothing available in an empty home", func() {
		for _, e := range extract.All(extract.Options{Home: home}) {
			if e.Name() == "cursor" {
				// Cursor's Windows root comes from APPDATA, not home.
				continue
			}
			Expect(e.Available()).To(BeFalse(), e.Name())
			Expect(slices.Collect(e.Sessions(context.Background()))).To(BeEmpty())
		}
	})

	It("finds Claude Code transcripts under home", func() {
		dir := filepath.Join(home, ".claude", "projects", "-work-app")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "abc.jsonl"), []byte(
			`{"type":"user","cwd":"/work/app","message":{"role":"user","content":"fix the login bug"}}`+"\n",
		), 0o644)).To(Succeed())

		e := extract.ByName(extract.All(extract.Options{Home: home}), "claude_code")[0]
		Expect(e.Available()).To(BeTrue())

		got := slices.Collect(e.Sessions(context.Background()))
		Expect(got).To(HaveLen(1))
		Expect(got[0].Project).To(Equal("/work/app"))
	})
})
