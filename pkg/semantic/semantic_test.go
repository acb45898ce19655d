package semantic_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/semantic"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
	"github.com/papercomputeco/engram/pkg/vector"
)

var _ = Describe("Index", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
		index    *semantic.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()

		var err error
		index, err = semantic.New(embedder, driver, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires both an embedder and a driver", func() {
		_, err := semantic.New(nil, driver, nil)
		Expect(err).To(HaveOccurred())
		_, err = semantic.New(embedder, nil, nil)
		Expect(err).To(HaveOccurred())
	})

	It("stores the embedding with a digest of the text", func() {
		Expect(index.Index(ctx, "tool_a", "fix the flaky test")).To(Succeed())

		docs, err := driver.Get(ctx, []string{"tool_a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
		Expect(docs[0].Digest).To(Equal(semantic.Digest("fix the flaky test")))
	})

	It("does not re-embed unchanged text", func() {
		Expect(index.Index(ctx, "tool_a", "same text")).To(Succeed())
		Expect(index.Index(ctx, "tool_a", "same text")).To(Succeed())
		Expect(embedder.Calls).To(HaveLen(1))

		Expect(index.Index(ctx, "tool_a", "changed text")).To(Succeed())
		Expect(embedder.Calls).To(HaveLen(2))
	})

	It("surfaces embedding failures", func() {
		embedder.FailOn = "bad"
		Expect(index.Index(ctx, "tool_a", "bad")).NotTo(Succeed())
	})

	It("returns nearest ids in driver order", func() {
		driver.Results = []vector.QueryResult{
			{Document: vector.Document{ID: "tool_b"}, Score: 0.9},
			{Document: vector.Document{ID: "tool_a"}, Score: 0.5},
		}

		ids, err := index.Nearest(ctx, "query", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"tool_b", "tool_a"}))
		Expect(embedder.Calls).To(ContainElement("query"))
	})

	It("forgets sessions", func() {
		Expect(index.Index(ctx, "tool_a", "text")).To(Succeed())
		Expect(index.Forget(ctx, "tool_a")).To(Succeed())

		docs, err := driver.Get(ctx, []string{"tool_a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(BeEmpty())
	})
})
