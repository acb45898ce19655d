package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
)

var _ = Describe("cliui", func() {
	DescribeTable("FormatDuration",
		func(d time.Duration, want string) {
			Expect(cliui.FormatDuration(d)).To(Equal(want))
		},
		Entry("milliseconds", 12*time.Millisecond, "12ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)

	It("formats the zero time as never", func() {
		Expect(cliui.FormatTime(time.Time{})).To(Equal("never"))
	})

	It("marks failures", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})

	Describe("Step", func() {
		It("returns the error of fn and prints the message", func() {
			var buf bytes.Buffer
			err := cliui.Step(&buf, "Importing sessions", func() error {
				return errors.New("boom")
			})
			Expect(err).To(MatchError("boom"))
			Expect(buf.String()).To(ContainSubstring("Importing sessions"))
			Expect(buf.String()).To(HaveSuffix("\n"))
		})
	})

	It("prints key value lines", func() {
		var buf bytes.Buffer
		cliui.KeyValue(&buf, "Backend", "webdav")
		Expect(buf.String()).To(ContainSubstring("Backend:"))
		Expect(buf.String()).To(ContainSubstring("webdav"))
	})

	It("prints the first line of a pinned fact", func() {
		var buf bytes.Buffer
		cliui.PrintFact(&buf, fact.Fact{ID: "abc123", Scope: "global", Content: "use sqlite\nsecond line", Pinned: true})
		Expect(buf.String()).To(ContainSubstring("abc123"))
		Expect(buf.String()).To(ContainSubstring("[global]"))
		Expect(buf.String()).To(ContainSubstring("use sqlite"))
		Expect(buf.String()).NotTo(ContainSubstring("second line"))
		Expect(buf.String()).To(ContainSubstring(cliui.PinMark))
	})

	It("prints untitled sessions with their project", func() {
		var buf bytes.Buffer
		cliui.PrintSession(&buf, session.Session{ID: "cursor_1", SourceTool: "cursor", Project: "/src/app", MessageCount: 4})
		Expect(buf.String()).To(ContainSubstring("(untitled)"))
		Expect(buf.String()).To(ContainSubstring("4 messages"))
		Expect(buf.String()).To(ContainSubstring("/src/app"))
	})
})
