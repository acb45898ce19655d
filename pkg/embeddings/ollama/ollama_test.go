package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/embeddings/ollama"
	"github.com/papercomputeco/engram/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		status  int
		payload string
		gotBody map[string]string
	)

	BeforeEach(func() {
		status = http.StatusOK
		payload = `{"embeddings":[[0.1,0.2,0.3]]}`
		gotBody = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/tags":
				w.WriteHeader(status)
			case "/api/embed":
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
				w.WriteHeader(status)
				w.Write([]byte(payload))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the model and input and returns the first embedding", func() {
		e := ollama.New(ollama.Config{BaseURL: server.URL, Model: "all-minilm"})

		emb, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(gotBody).To(HaveKeyWithValue("model", "all-minilm"))
		Expect(gotBody).To(HaveKeyWithValue("input", "hello"))
	})

	It("uses the default model when none is set", func() {
		e := ollama.New(ollama.Config{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(gotBody).To(HaveKeyWithValue("model", ollama.DefaultEmbeddingModel))
	})

	It("wraps server errors as embedding errors", func() {
		status = http.StatusInternalServerError
		payload = "model not found"
		e := ollama.New(ollama.Config{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("model not found"))
	})

	It("fails on an empty embeddings list", func() {
		payload = `{"embeddings":[]}`
		e := ollama.New(ollama.Config{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})

	It("enforces configured dimensions", func() {
		e := ollama.New(ollama.Config{BaseURL: server.URL, Dimensions: 768})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrDimensions))
	})

	It("pings the tags endpoint", func() {
		e := ollama.New(ollama.Config{BaseURL: server.URL})
		Expect(e.Ping(context.Background())).To(Succeed())

		status = http.StatusServiceUnavailable
		Expect(e.Ping(context.Background())).NotTo(Succeed())
	})
})
