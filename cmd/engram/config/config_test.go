package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/engram/cmd/engram/config"
	"github.com/papercomputeco/engram/pkg/dotdir"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		home string
		out  *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		home = GinkgoT().TempDir()
		GinkgoT().Setenv(dotdir.EnvHome, home)
		out = &bytes.Buffer{}
	})

	Describe("set subcommand", func() {
		It("writes config.toml owner-only", func() {
			Expect(run("set", "backend.name", "webdav")).To(Succeed())

			info, err := os.Stat(filepath.Join(home, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
			Expect(out.String()).To(ContainSubstring("backend.name"))
		})

		It("masks credentials in its output", func() {
			Expect(run("set", "backend.token", "ghp_secret")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("ghp_secret"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(HaveOccurred())
		})

		It("rejects unknown backends", func() {
			err := run("set", "backend.name", "dropbox")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown backend"))
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "backend.name")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})

		It("rejects invalid integer values", func() {
			Expect(run("set", "context.core_budget", "lots")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "embedding.model", "mxbai-embed-large")).To(Succeed())
			out.Reset()

			Expect(run("get", "embedding.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("mxbai-embed-large"))
		})

		It("prints defaults when nothing is set", func() {
			Expect(run("get", "backend.name")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("local"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("storage.sessions_path"))
			Expect(out.String()).To(ContainSubstring("api.listen"))
		})

		It("masks credentials", func() {
			Expect(run("set", "backend.secret_key", "s3cr3t")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("s3cr3t"))
			Expect(out.String()).To(ContainSubstring("********"))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
