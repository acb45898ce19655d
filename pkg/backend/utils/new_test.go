package backendutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/backend"
	backendutils "github.com/papercomputeco/engram/pkg/backend/utils"
	"github.com/papercomputeco/engram/pkg/config"
)

var _ = Describe("New", func() {
	DescribeTable("selects the backend by name",
		func(c config.BackendConfig, want string) {
			b, err := backendutils.New(c, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Name()).To(Equal(want))
		},
		Entry("empty", config.BackendConfig{}, "local"),
		Entry("local", config.BackendConfig{Name: "local"}, "local"),
		Entry("github", config.BackendConfig{Name: "github", Token: "t", Repo: "me/notes"}, "github"),
		Entry("gitee", config.BackendConfig{Name: "gitee", Token: "t", Repo: "me/notes"}, "gitee"),
		Entry("webdav", config.BackendConfig{Name: "webdav", URL: "https://dav.example.com/remote.php/dav"}, "webdav"),
		Entry("s3", config.BackendConfig{Name: "s3", Bucket: "b", AccessKey: "a", SecretKey: "s"}, "s3"),
	)

	It("rejects unknown backends", func() {
		_, err := backendutils.New(config.BackendConfig{Name: "dropbox"}, nil)
		Expect(err).To(MatchError(backend.ErrUnknownBackend))
	})

	It("surfaces missing credentials", func() {
		_, err := backendutils.New(config.BackendConfig{Name: "github"}, nil)
		Expect(err).To(HaveOccurred())
		_, err = backendutils.New(config.BackendConfig{Name: "s3"}, nil)
		Expect(err).To(HaveOccurred())
	})
})
