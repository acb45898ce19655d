package mcp_test

import (
	"context"
	"encoding/json"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/api/mcp"
	"github.com/papercomputeco/engram/pkg/contextdoc"
	"github.com/papercomputeco/engram/pkg/dotdir"
	"github.com/papercomputeco/engram/pkg/fact"
	engramlogger "github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/syncer"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

type fakeSyncer struct {
	opts   syncer.Options
	result *syncer.Result
	err    error
}

func (f *fakeSyncer) Run(_ context.Context, opts syncer.Options) (*syncer.Result, error) {
	f.opts = opts
	return f.result, f.err
}

// connect serves s over an in-memory transport and returns a client session.
func connect(ctx context.Context, s *mcp.Server) *mcpsdk.ClientSession {
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "engram-test", Version: "v0.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())

	DeferCleanup(func() {
		_ = cs.Close()
		cancel()
		Eventually(done).Should(BeClosed())
	})
	return cs
}

func call(ctx context.Context, cs *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Content).NotTo(BeEmpty())
	return res
}

func text(res *mcpsdk.CallToolResult) string {
	tc, ok := res.Content[0].(*mcpsdk.TextContent)
	Expect(ok).To(BeTrue())
	return tc.Text
}

func decode[T any](res *mcpsdk.CallToolResult) T {
	Expect(res.IsError).To(BeFalse(), text(res))
	var out T
	Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
	return out
}

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		sessions *session.Store
		facts    *fact.Store
		renderer *contextdoc.Renderer
		config   mcp.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		layout := dotdir.NewLayout(GinkgoT().TempDir())

		var err error
		sessions, err = session.NewStore(session.Config{Path: layout.SessionsDB()})
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions.Init(ctx)).To(Succeed())

		facts, err = fact.NewStore(fact.Config{Path: layout.FactsDB()})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts.Init(ctx)).To(Succeed())

		renderer, err = contextdoc.New(contextdoc.Config{Facts: facts, Sessions: sessions, Layout: layout})
		Expect(err).NotTo(HaveOccurred())

		config = mcp.Config{
			Sessions: sessions,
			Facts:    facts,
			Renderer: renderer,
			Logger:   engramlogger.Nop(),
		}
	})

	seed := func(tool, locator, project, title string) string {
		id, err := sessions.Upsert(ctx, session.Session{
			SourceTool: tool,
			SourcePath: locator,
			Project:    project,
			Title:      title,
			Messages: []session.Message{
				{Role: session.RoleUser, Content: title},
				{Role: session.RoleAssistant, Content: "done"},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	newClient := func() *mcpsdk.ClientSession {
		server, err := mcp.NewServer(config)
		Expect(err).NotTo(HaveOccurred())
		return connect(ctx, server)
	}

	toolNames := func(cs *mcpsdk.ClientSession) []string {
		res, err := cs.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(res.Tools))
		for _, t := range res.Tools {
			names = append(names, t.Name)
		}
		return names
	}

	Describe("NewServer", func() {
		DescribeTable("rejects incomplete configs",
			func(mutate func(*mcp.Config), msg string) {
				mutate(&config)
				_, err := mcp.NewServer(config)
				Expect(err).To(MatchError(ContainSubstring(msg)))
			},
			Entry("session store", func(c *mcp.Config) { c.Sessions = nil }, "session store is required"),
			Entry("fact store", func(c *mcp.Config) { c.Facts = nil }, "fact store is required"),
			Entry("renderer", func(c *mcp.Config) { c.Renderer = nil }, "renderer is required"),
			Entry("logger", func(c *mcp.Config) { c.Logger = nil }, "logger is required"),
		)

		It("skips validation in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server).NotTo(BeNil())
		})

		It("registers the memory tools", func() {
			Expect(toolNames(newClient())).To(ConsistOf(
				"search_memory", "list_sessions", "get_session",
				"add_memory", "list_facts", "get_context_summary",
			))
		})

		It("adds sync and semantic tools when configured", func() {
			config.Syncer = &fakeSyncer{result: &syncer.Result{}}
			config.Semantic = testutils.NewMockSemanticIndex()
			Expect(toolNames(newClient())).To(ContainElements("sync_sessions", "semantic_search"))
		})
	})

	Describe("search_memory", func() {
		It("returns matching sessions and facts", func() {
			seed("claude_code", "a.jsonl", "/work/engram", "add retries to the uploader")
			seed("cursor", "b", "/work/other", "rename the settings page")
			_, err := facts.Add(ctx, fact.Input{Content: "Keep uploader retries bounded"})
			Expect(err).NotTo(HaveOccurred())

			out := decode[mcp.SearchOutput](call(ctx, newClient(), "search_memory", map[string]any{"query": "uploader"}))
			Expect(out.Query).To(Equal("uploader"))
			Expect(out.Sessions).To(HaveLen(1))
			Expect(out.Sessions[0].Title).To(Equal("add retries to the uploader"))
			Expect(out.Facts).To(HaveLen(1))
			Expect(out.Total).To(Equal(2))
		})

		It("returns empty lists when nothing matches", func() {
			out := decode[mcp.SearchOutput](call(ctx, newClient(), "search_memory", map[string]any{"query": "nothing"}))
			Expect(out.Sessions).To(BeEmpty())
			Expect(out.Facts).To(BeEmpty())
			Expect(out.Total).To(BeZero())
		})

		It("reports a missing query as a tool error", func() {
			res := call(ctx, newClient(), "search_memory", map[string]any{"query": ""})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("query is required"))
		})
	})

	Describe("list_sessions", func() {
		It("filters by tool", func() {
			seed("claude_code", "a.jsonl", "/work/engram", "first")
			seed("cursor", "b", "/work/engram", "second")

			out := decode[mcp.SessionsOutput](call(ctx, newClient(), "list_sessions", map[string]any{"tool": "cursor"}))
			Expect(out.Count).To(Equal(1))
			Expect(out.Sessions[0].SourceTool).To(Equal("cursor"))
			Expect(out.Sessions[0].Messages).To(BeEmpty())
		})
	})

	Describe("get_session", func() {
		It("returns the session with its messages", func() {
			id := seed("claude_code", "a.jsonl", "/work/engram", "first")

			out := decode[mcp.GetSessionOutput](call(ctx, newClient(), "get_session", map[string]any{"session_id": id}))
			Expect(out.Session.ID).To(Equal(id))
			Expect(out.Session.Messages).To(HaveLen(2))
			Expect(out.Session.Messages[0].Role).To(Equal(session.RoleUser))
		})

		It("reports unknown sessions", func() {
			res := call(ctx, newClient(), "get_session", map[string]any{"session_id": "missing"})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("session not found: missing"))
		})
	})

	Describe("add_memory and list_facts", func() {
		It("saves facts with the mcp source", func() {
			cs := newClient()
			added := decode[mcp.AddMemoryOutput](call(ctx, cs, "add_memory", map[string]any{
				"content": "Use table driven tests",
				"scope":   "project:engram",
				"pin":     true,
			}))
			Expect(added.Status).To(Equal("saved"))
			Expect(added.Scope).To(Equal("project:engram"))
			Expect(added.ID).To(Equal(fact.NewID("project:engram", "Use table driven tests")))

			out := decode[mcp.ListFactsOutput](call(ctx, cs, "list_facts", map[string]any{"scope": "project:engram"}))
			Expect(out.Count).To(Equal(1))
			Expect(out.Facts[0].Source).To(Equal(fact.SourceMCP))
			Expect(out.Facts[0].Pinned).To(BeTrue())
			Expect(out.Facts[0].Priority).To(Equal(fact.DefaultPriority))
		})

		It("defaults to the global scope", func() {
			added := decode[mcp.AddMemoryOutput](call(ctx, newClient(), "add_memory", map[string]any{"content": "Prefer small commits"}))
			Expect(added.Scope).To(Equal(fact.ScopeGlobal))
		})

		DescribeTable("rejects invalid facts",
			func(args map[string]any, msg string) {
				res := call(ctx, newClient(), "add_memory", args)
				Expect(res.IsError).To(BeTrue())
				Expect(text(res)).To(ContainSubstring(msg))
			},
			Entry("blank content", map[string]any{"content": "  "}, "fact content is empty"),
			Entry("bad priority", map[string]any{"content": "x", "priority": 9}, "fact priority must be between 1 and 5"),
			Entry("bad scope", map[string]any{"content": "x", "scope": "team"}, "team"),
		)
	})

	Describe("get_context_summary", func() {
		It("renders core, global context and recent sessions", func() {
			seed("claude_code", "a.jsonl", "/work/engram", "add retries to the uploader")
			_, err := facts.Add(ctx, fact.Input{Content: "Never force push main", Pinned: true})
			Expect(err).NotTo(HaveOccurred())

			out := decode[mcp.ContextSummaryOutput](call(ctx, newClient(), "get_context_summary", map[string]any{}))
			Expect(out.Core).To(ContainSubstring("Never force push main"))
			Expect(out.Context).NotTo(BeEmpty())
			Expect(out.Recent).To(HaveLen(1))
			Expect(out.Summary).To(ConsistOf("[claude_code] add retries to the uploader (2 messages)"))
		})

		It("renders a project document", func() {
			_, err := facts.Add(ctx, fact.Input{Scope: "project:engram", Content: "Stores use WAL"})
			Expect(err).NotTo(HaveOccurred())

			out := decode[mcp.ContextSummaryOutput](call(ctx, newClient(), "get_context_summary", map[string]any{"project": "engram"}))
			Expect(out.Core).To(Equal(contextdoc.CorePlaceholder))
			Expect(out.Project).To(Equal("engram"))
			Expect(out.Context).To(ContainSubstring("## Project memory: engram"))
			Expect(out.Context).To(ContainSubstring("- Stores use WAL"))
			Expect(out.Recent).To(BeEmpty())
		})
	})

	Describe("sync_sessions", func() {
		It("runs the syncer without pushing", func() {
			fake := &fakeSyncer{result: &syncer.Result{
				Tools: []syncer.ToolResult{{Tool: "claude_code", Sessions: 3}},
				Facts: 1,
			}}
			config.Syncer = fake

			out := decode[mcp.SyncOutput](call(ctx, newClient(), "sync_sessions", map[string]any{"tools": []string{"claude_code"}}))
			Expect(fake.opts.Tools).To(Equal([]string{"claude_code"}))
			Expect(fake.opts.Push).To(BeFalse())
			Expect(out.Sessions).To(Equal(3))
			Expect(out.Facts).To(Equal(1))
			Expect(out.Summary).To(ContainSubstring("claude_code: 3 sessions"))
		})

		It("reports syncer failures", func() {
			config.Syncer = &fakeSyncer{err: errors.New("disk full")}

			res := call(ctx, newClient(), "sync_sessions", map[string]any{})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("disk full"))
		})
	})

	Describe("semantic_search", func() {
		It("loads the nearest sessions and skips stale ids", func() {
			id := seed("claude_code", "a.jsonl", "/work/engram", "add retries to the uploader")
			index := testutils.NewMockSemanticIndex()
			index.NearestIDs = []string{"stale", id}
			config.Semantic = index

			out := decode[mcp.SessionsOutput](call(ctx, newClient(), "semantic_search", map[string]any{"query": "backoff"}))
			Expect(out.Count).To(Equal(1))
			Expect(out.Sessions[0].ID).To(Equal(id))
			Expect(out.Sessions[0].Messages).To(BeNil())
		})

		It("reports index failures", func() {
			index := testutils.NewMockSemanticIndex()
			index.Fail = true
			config.Semantic = index

			res := call(ctx, newClient(), "semantic_search", map[string]any{"query": "backoff"})
			Expect(res.IsError).To(BeTrue())
		})
	})
})
