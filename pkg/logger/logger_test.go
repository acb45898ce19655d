package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/logger"
)

var _ = Describe("Logger", func() {
	decode := func(buf *bytes.Buffer) map[string]any {
		var parsed map[string]any
		ExpectWithOffset(1, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed)).To(Succeed())
		return parsed
	}

	Describe("New", func() {
		It("writes text records at info level by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("imported sessions", "tool", "cursor", "count", 3)
			l.Debug("skipped")

			Expect(buf.String()).To(ContainSubstring("imported sessions"))
			Expect(buf.String()).To(ContainSubstring("tool=cursor"))
			Expect(buf.String()).To(ContainSubstring("count=3"))
			Expect(buf.String()).NotTo(ContainSubstring("skipped"))
		})

		It("includes debug records when debugging", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("fts degraded")

			Expect(buf.String()).To(ContainSubstring("fts degraded"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Warn("push failed", "backend", "webdav", "files", 2)

			parsed := decode(&buf)
			Expect(parsed["level"]).To(Equal("WARN"))
			Expect(parsed["msg"]).To(Equal("push failed"))
			Expect(parsed["backend"]).To(Equal("webdav"))
			Expect(parsed["files"]).To(BeNumerically("==", 2))
		})

		It("prefers JSON over pretty output", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
			l.Info("rendered")

			Expect(decode(&buf)["msg"]).To(Equal("rendered"))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Info("watching sources")

			Expect(buf.String()).To(ContainSubstring("watching sources"))
		})

		It("adds the source position on request", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true))
			l.Info("located")

			Expect(decode(&buf)).To(HaveKey("source"))
		})

		It("writes to every writer", func() {
			var a, b bytes.Buffer
			l := logger.New(logger.WithWriters(&a, &b))
			l.Info("checkpointed")

			Expect(a.String()).To(ContainSubstring("checkpointed"))
			Expect(b.String()).To(ContainSubstring("checkpointed"))
		})
	})

	Describe("Nop", func() {
		It("accepts every call and reports nothing enabled", func() {
			l := logger.Nop()
			Expect(func() {
				l.Error("ignored")
				l.With("store", "facts").WithGroup("query").Info("ignored")
			}).NotTo(Panic())
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})

	Describe("Multi", func() {
		It("writes each record to every logger", func() {
			var pretty, file bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&pretty)),
				logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
			)

			multi.Info("synced", "tool", "claude_code")

			Expect(pretty.String()).To(ContainSubstring("synced"))

			var parsed map[string]any
			Expect(json.Unmarshal(file.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["tool"]).To(Equal("claude_code"))
		})

		It("respects each logger's level", func() {
			var quiet, verbose bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&quiet)),
				logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)),
			)

			multi.Debug("checkpoint")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("checkpoint"))
		})

		It("carries With attributes and groups to every logger", func() {
			var a, b bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
				logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
			)

			multi.With("component", "api").WithGroup("request").Info("served", "path", "/v1/facts")

			for _, buf := range []*bytes.Buffer{&a, &b} {
				var parsed map[string]any
				Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
				Expect(parsed["component"]).To(Equal("api"))
				group, ok := parsed["request"].(map[string]any)
				Expect(ok).To(BeTrue())
				Expect(group["path"]).To(Equal("/v1/facts"))
			}
		})

		It("flattens nested loggers", func() {
			var a, b, c bytes.Buffer
			inner := logger.Multi(logger.New(logger.WithWriter(&a)), logger.New(logger.WithWriter(&b)))
			multi := logger.Multi(inner, logger.New(logger.WithWriter(&c)))

			multi.Info("once")

			for _, buf := range []*bytes.Buffer{&a, &b, &c} {
				Expect(strings.Count(buf.String(), "once")).To(Equal(1))
			}
		})

		It("drops nil and nop loggers", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			multi := logger.Multi(nil, logger.Nop(), l)

			Expect(multi.Handler()).To(BeIdenticalTo(l.Handler()))
		})

		It("discards everything without loggers", func() {
			multi := logger.Multi()
			Expect(multi.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})

	Describe("OpenFile", func() {
		It("appends JSON records to the file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "logs", "engram.log")

			for _, msg := range []string{"first", "second"} {
				l, closer, err := logger.OpenFile(path, false)
				Expect(err).NotTo(HaveOccurred())
				l.Info(msg)
				l.Debug("hidden")
				Expect(closer.Close()).To(Succeed())
			}

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines).To(HaveLen(2))

			var parsed map[string]any
			Expect(json.Unmarshal([]byte(lines[1]), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("second"))
			Expect(parsed).NotTo(HaveKey("source"))

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("records debug messages with their source when debugging", func() {
			path := filepath.Join(GinkgoT().TempDir(), "engram.log")
			l, closer, err := logger.OpenFile(path, true)
			Expect(err).NotTo(HaveOccurred())
			l.Debug("detail")
			Expect(closer.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			var parsed map[string]any
			Expect(json.Unmarshal(data, &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("detail"))
			Expect(parsed).To(HaveKey("source"))
		})
	})

	Describe("With", func() {
		It("binds attributes and groups to child loggers", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.With("store", "sessions").WithGroup("search").Info("scanned", "query", "linker")

			parsed := decode(&buf)
			Expect(parsed["store"]).To(Equal("sessions"))
			group, ok := parsed["search"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["query"]).To(Equal("linker"))
		})
	})
})
