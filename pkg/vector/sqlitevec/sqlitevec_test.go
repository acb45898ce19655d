package sqlitevec_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/vector"
	"github.com/papercomputeco/engram/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlitevec.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlitevec.New(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 4,
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("New", func() {
		It("requires a database path", func() {
			_, err := sqlitevec.New(sqlitevec.Config{Dimensions: 4})
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("requires non-zero dimensions", func() {
			_, err := sqlitevec.New(sqlitevec.Config{DBPath: ":memory:"})
			Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
		})

		It("reopens a file database with its documents intact", func() {
			path := filepath.Join(GinkgoT().TempDir(), "vectors.db")
			first, err := sqlitevec.New(sqlitevec.Config{DBPath: path, Dimensions: 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Add(ctx, []vector.Document{
				{ID: "tool_a", Digest: "d1", Embedding: []float32{1, 0, 0, 0}},
			})).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := sqlitevec.New(sqlitevec.Config{DBPath: path, Dimensions: 4})
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			docs, err := second.Get(ctx, []string{"tool_a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Digest).To(Equal("d1"))
		})
	})

	Describe("Add", func() {
		It("ignores an empty batch", func() {
			Expect(driver.Add(ctx, nil)).To(Succeed())
		})

		It("rejects embeddings of the wrong size", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "tool_a", Embedding: []float32{1, 2}},
			})
			Expect(err).To(MatchError(vector.ErrDimensions))
		})

		It("replaces a document with the same id", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "tool_a", Digest: "old", Embedding: []float32{1, 0, 0, 0}},
			})).To(Succeed())
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "tool_a", Digest: "new", Embedding: []float32{0, 1, 0, 0}},
			})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"tool_a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Digest).To(Equal("new"))
			Expect(docs[0].Embedding).To(Equal([]float32{0, 1, 0, 0}))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "tool_x", Digest: "x", Embedding: []float32{1, 0, 0, 0}},
				{ID: "tool_y", Digest: "y", Embedding: []float32{0, 1, 0, 0}},
				{ID: "tool_z", Digest: "z", Embedding: []float32{0.9, 0.1, 0, 0}},
			})).To(Succeed())
		})

		It("returns the nearest documents first", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("tool_x"))
			Expect(results[1].ID).To(Equal("tool_z"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})

		It("returns nothing from an empty index", func() {
			empty, err := sqlitevec.New(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4})
			Expect(err).NotTo(HaveOccurred())
			defer empty.Close()

			results, err := empty.Query(ctx, []float32{1, 0, 0, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Get", func() {
		It("skips unknown ids", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "tool_a", Digest: "a", Embedding: []float32{1, 0, 0, 0}},
			})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"tool_a", "tool_missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("tool_a"))
		})

		It("returns nil for no ids", func() {
			docs, err := driver.Get(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeNil())
		})
	})

	Describe("Delete", func() {
		It("removes documents from both lookup and query", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "tool_a", Digest: "a", Embedding: []float32{1, 0, 0, 0}},
				{ID: "tool_b", Digest: "b", Embedding: []float32{0, 1, 0, 0}},
			})).To(Succeed())

			Expect(driver.Delete(ctx, []string{"tool_a"})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"tool_a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())

			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("tool_b"))
		})
	})
})
