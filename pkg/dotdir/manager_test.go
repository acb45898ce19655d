package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("prefers ENGRAM_HOME over the home directory", func() {
			envDir := filepath.Join(tmpDir, "from-env")
			GinkgoT().Setenv(dotdir.EnvHome, envDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(envDir))
		})

		It("prefers the override over ENGRAM_HOME", func() {
			GinkgoT().Setenv(dotdir.EnvHome, filepath.Join(tmpDir, "from-env"))
			override := filepath.Join(tmpDir, "override")

			result, err := m.Target(override)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(override))
		})

		It("falls back to ~/.engram", func() {
			GinkgoT().Setenv(dotdir.EnvHome, "")
			GinkgoT().Setenv("HOME", tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(tmpDir, ".engram")))
		})
	})

	Describe("Layout", func() {
		It("places every file under the root", func() {
			l, err := m.Layout(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(l.SessionsDB()).To(Equal(filepath.Join(tmpDir, "engram.db")))
			Expect(l.FactsDB()).To(Equal(filepath.Join(tmpDir, "memory.db")))
			Expect(l.Core()).To(Equal(filepath.Join(tmpDir, "core.md")))
			Expect(l.Context()).To(Equal(filepath.Join(tmpDir, "context.md")))
			Expect(l.ProjectContext("myapp")).To(Equal(filepath.Join(tmpDir, "projects", "myapp", "context.md")))
		})
	})
})
