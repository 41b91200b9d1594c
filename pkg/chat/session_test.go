package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/YourPureAI/ai-api-connector/pkg/chat"
	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
	"github.com/YourPureAI/ai-api-connector/pkg/query"
	"github.com/YourPureAI/ai-api-connector/pkg/settings"
)

const weatherDirective = "```json\n{\"need_external_data\": true, \"query\": \"current weather in Paris\"}\n```"

var _ = Describe("Session", func() {
	var (
		ctx        context.Context
		openai     *fakeProvider
		dispatcher *fakeDispatcher
		source     *settings.StaticSource
		recorder   *fakeRecorder
		session    *chat.Session
	)

	newSession := func() *chat.Session {
		return chat.NewSession(chat.Config{
			Providers:   provider.NewRegistry(openai),
			Dispatcher:  dispatcher,
			Settings:    source,
			DispatchKey: "test-key",
			Recorder:    recorder,
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		openai = &fakeProvider{name: provider.OpenAI}
		dispatcher = &fakeDispatcher{}
		source = &settings.StaticSource{Settings: settings.Settings{
			AgentProvider: "openai",
			AgentModel:    "gpt-4o",
			OpenAIAPIKey:  "sk-test",
		}}
		recorder = &fakeRecorder{}
		session = newSession()
	})

	Describe("a new session", func() {
		It("starts with the system prompt and greeting", func() {
			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(llm.RoleSystem))
			Expect(msgs[0].Content).To(Equal(chat.SystemPrompt))
			Expect(msgs[1].Role).To(Equal(llm.RoleAssistant))
			Expect(msgs[1].Content).To(Equal(chat.Greeting))
			Expect(session.State()).To(Equal(chat.Idle))
		})

		It("hides the system prompt from the visible history", func() {
			Expect(session.Visible()).To(HaveLen(1))
		})
	})

	Context("when the reply carries no directive", func() {
		BeforeEach(func() {
			openai.replies = []providerReply{{text: "Sure thing, no JSON here"}}
		})

		It("appends the reply as the assistant message", func() {
			before := len(session.Messages())
			out, err := session.Send(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(before + 2))
			Expect(msgs[len(msgs)-2].Role).To(Equal(llm.RoleUser))
			Expect(msgs[len(msgs)-2].Content).To(Equal("hello"))
			Expect(msgs[len(msgs)-1]).To(Equal(out.Message))
			Expect(out.Message.Content).To(Equal("Sure thing, no JSON here"))
			Expect(out.APICall).To(BeNil())
			Expect(out.IsError).To(BeFalse())
			Expect(out.Provider).To(Equal(provider.OpenAI))
			Expect(out.Model).To(Equal("gpt-4o"))
			Expect(dispatcher.CallCount()).To(Equal(0))
		})

		It("sends the full history with the system prompt first", func() {
			_, err := session.Send(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())

			sent := openai.Call(0)
			Expect(sent[0].Role).To(Equal(llm.RoleSystem))
			Expect(sent[len(sent)-1].Content).To(Equal("hello"))
			Expect(openai.creds[0]).To(Equal("sk-test"))
		})

		It("records the transcript", func() {
			_, err := session.Send(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.calls).To(Equal(1))
			Expect(recorder.last).To(HaveLen(4))
		})

		It("does not fail the turn when recording fails", func() {
			recorder.err = errors.New("disk full")
			_, err := session.Send(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("when the dispatcher fails", func() {
		BeforeEach(func() {
			openai.replies = []providerReply{{text: weatherDirective}}
			dispatcher.result = query.Result{Success: false, Error: "timeout"}
		})

		It("skips the second provider call and reports the error", func() {
			out, err := session.Send(ctx, "what's the weather in Paris?")
			Expect(err).NotTo(HaveOccurred())

			Expect(openai.CallCount()).To(Equal(1))
			Expect(dispatcher.CallCount()).To(Equal(1))
			Expect(dispatcher.queries[0]).To(Equal("current weather in Paris"))
			Expect(dispatcher.keys[0]).To(Equal("test-key"))

			Expect(out.Message.Content).To(ContainSubstring("timeout"))
			Expect(out.Message.Content).To(Equal("I tried to fetch that information, but encountered an error: timeout"))
			Expect(out.APICall).NotTo(BeNil())
			Expect(out.APICall.Query).To(Equal("current weather in Paris"))
			Expect(out.APICall.Error).To(Equal("timeout"))
			Expect(out.APICall.Data).To(BeNil())
		})
	})

	Context("when the dispatcher succeeds", func() {
		var matched *query.MatchedFunction

		BeforeEach(func() {
			matched = &query.MatchedFunction{
				Connector: "weather",
				Operation: "getCurrent",
				Method:    "GET",
				Path:      "/current",
			}
			dispatcher.result = query.Result{
				Success:         true,
				MatchedFunction: matched,
				Data:            json.RawMessage(`{"temp": 18}`),
			}
		})

		It("asks the provider to restate the data", func() {
			openai.replies = []providerReply{
				{text: weatherDirective},
				{text: "It is 18 degrees in Paris."},
			}
			before := len(session.Messages())

			out, err := session.Send(ctx, "what's the weather in Paris?")
			Expect(err).NotTo(HaveOccurred())

			Expect(openai.CallCount()).To(Equal(2))
			Expect(out.Message.Content).To(Equal("It is 18 degrees in Paris."))
			Expect(out.APICall.Matched).To(Equal(matched))
			Expect(out.APICall.Data).To(MatchJSON(`{"temp": 18}`))
			Expect(out.APICall.Error).To(BeEmpty())
			Expect(session.Messages()).To(HaveLen(before + 2))

			second := openai.Call(1)
			last := second[len(second)-1]
			Expect(last.Role).To(Equal(llm.RoleUser))
			Expect(last.Content).To(HavePrefix("The external API returned this data: {\n  \"temp\": 18\n}."))
			Expect(last.Content).To(HaveSuffix("to answer my original question."))
		})

		It("does not keep the synthetic turn in the history", func() {
			openai.replies = []providerReply{
				{text: weatherDirective},
				{text: "It is 18 degrees in Paris."},
			}
			_, err := session.Send(ctx, "what's the weather in Paris?")
			Expect(err).NotTo(HaveOccurred())

			for _, m := range session.Messages() {
				Expect(m.Content).NotTo(HavePrefix("The external API returned this data"))
			}
		})

		It("falls back to the raw data when formatting fails", func() {
			openai.replies = []providerReply{
				{text: weatherDirective},
				{err: provider.NewUpstreamError(provider.OpenAI, 500, "overloaded")},
			}

			out, err := session.Send(ctx, "what's the weather in Paris?")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.IsError).To(BeFalse())
			Expect(out.Message.Content).To(Equal("I successfully retrieved the data:\n\n{\n  \"temp\": 18\n}"))
			Expect(out.APICall.Data).To(MatchJSON(`{"temp": 18}`))
		})
	})

	Context("when the first provider call fails", func() {
		BeforeEach(func() {
			openai.replies = []providerReply{{err: provider.NewUpstreamError(provider.OpenAI, 401, "Incorrect API key provided")}}
		})

		It("ends the turn with an error-flagged message", func() {
			before := len(session.Messages())
			out, err := session.Send(ctx, "hello")

			Expect(err).To(MatchError(provider.ErrUpstream))
			Expect(out.IsError).To(BeTrue())
			Expect(out.Message.Content).To(Equal("Sorry, I encountered an error: OpenAI API error: Incorrect API key provided"))
			Expect(session.Messages()).To(HaveLen(before + 2))
			Expect(dispatcher.CallCount()).To(Equal(0))
			Expect(session.State()).To(Equal(chat.Idle))
		})

		It("leaves the session usable", func() {
			_, _ = session.Send(ctx, "hello")
			openai.replies = append(openai.replies, providerReply{text: "hi again"})

			out, err := session.Send(ctx, "hello?")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Message.Content).To(Equal("hi again"))
		})
	})

	Context("when the credential is missing", func() {
		BeforeEach(func() {
			source.Settings.OpenAIAPIKey = ""
		})

		It("fails before any provider call", func() {
			before := len(session.Messages())
			out, err := session.Send(ctx, "hello")

			Expect(err).To(MatchError(settings.ErrConfiguration))
			Expect(openai.CallCount()).To(Equal(0))
			Expect(dispatcher.CallCount()).To(Equal(0))
			Expect(out.IsError).To(BeTrue())
			Expect(out.Message.Content).To(Equal("Sorry, I encountered an error: OpenAI API key not configured. Please add it in Settings."))
			Expect(session.Messages()).To(HaveLen(before + 2))
		})
	})

	Context("when settings cannot be loaded", func() {
		BeforeEach(func() {
			source.Err = errors.New("connection refused")
		})

		It("reports that configuration is not loaded", func() {
			out, err := session.Send(ctx, "hello")
			Expect(err).To(MatchError(settings.ErrConfiguration))
			Expect(out.Message.Content).To(Equal("Sorry, I encountered an error: " + settings.NotLoadedMessage))
			Expect(openai.CallCount()).To(Equal(0))
			Expect(recorder.calls).To(Equal(0))
		})
	})

	Context("when the configured provider has no adapter", func() {
		It("returns ErrNoProvider", func() {
			source.Settings = settings.Settings{AgentProvider: "anthropic", AnthropicAPIKey: "ant"}
			out, err := session.Send(ctx, "hello")
			Expect(err).To(MatchError(chat.ErrNoProvider))
			Expect(out.IsError).To(BeTrue())
		})
	})

	Context("when the settings change between turns", func() {
		It("uses the new provider on the next turn", func() {
			google := &fakeProvider{name: provider.Google, replies: []providerReply{{text: "from gemini"}}}
			openai.replies = []providerReply{{text: "from openai"}}
			session = chat.NewSession(chat.Config{
				Providers:  provider.NewRegistry(openai, google),
				Dispatcher: dispatcher,
				Settings:   source,
			})

			out, err := session.Send(ctx, "one")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Message.Content).To(Equal("from openai"))

			source.Settings = settings.Settings{
				AgentProvider: "google",
				AgentModel:    "gemini-1.5-pro",
				GoogleAPIKey:  "g-key",
			}
			out, err = session.Send(ctx, "two")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Message.Content).To(Equal("from gemini"))
			Expect(out.Provider).To(Equal(provider.Google))
			Expect(google.creds[0]).To(Equal("g-key"))
			Expect(google.Call(0)).To(HaveLen(5))
		})
	})

	Describe("input validation", func() {
		It("rejects blank input without touching the history", func() {
			before := len(session.Messages())
			_, err := session.Send(ctx, "   ")
			Expect(err).To(MatchError(chat.ErrEmptyInput))
			Expect(session.Messages()).To(HaveLen(before))
		})
	})

	Describe("turn lock", func() {
		It("rejects input while a turn is in flight", func() {
			openai.block = make(chan struct{})
			openai.replies = []providerReply{{text: "done"}}

			done := make(chan error, 1)
			go func() {
				_, err := session.Send(ctx, "first")
				done <- err
			}()

			Eventually(session.State).Should(Equal(chat.AwaitingFirstReply))

			_, err := session.Send(ctx, "second")
			Expect(err).To(MatchError(chat.ErrTurnInProgress))
			Expect(session.Reset()).To(MatchError(chat.ErrTurnInProgress))

			close(openai.block)
			Eventually(done).Should(Receive(BeNil()))
			Expect(session.State()).To(Equal(chat.Idle))
			Expect(session.Messages()).To(HaveLen(4))
		})

		It("cancels the active turn", func() {
			openai.block = make(chan struct{})
			openai.replies = []providerReply{{text: "never"}}

			done := make(chan error, 1)
			go func() {
				_, err := session.Send(ctx, "first")
				done <- err
			}()

			Eventually(session.State).Should(Equal(chat.AwaitingFirstReply))
			Expect(session.Cancel()).To(BeTrue())

			var err error
			Eventually(done).WithTimeout(time.Second).Should(Receive(&err))
			Expect(err).To(MatchError(provider.ErrUpstream))

			msgs := session.Messages()
			Expect(msgs).To(HaveLen(4))
			Expect(msgs[3].Content).To(HavePrefix("Sorry, I encountered an error: "))
			Expect(session.Cancel()).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		It("restores the system prompt and the reset greeting", func() {
			openai.replies = []providerReply{{text: "hi"}}
			_, err := session.Send(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())

			Expect(session.Reset()).To(Succeed())
			msgs := session.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(llm.RoleSystem))
			Expect(msgs[1].Content).To(Equal(chat.ResetGreeting))
		})
	})
})

var _ = Describe("Manager", func() {
	var base chat.Config

	BeforeEach(func() {
		base = chat.Config{
			Providers:  provider.NewRegistry(&fakeProvider{name: provider.OpenAI}),
			Dispatcher: &fakeDispatcher{},
			Settings:   settings.StaticSource{},
		}
	})

	It("creates, finds and deletes sessions", func() {
		m := chat.NewManager(base, nil)
		id, s := m.Create(context.Background())
		Expect(id).NotTo(BeEmpty())

		got, err := m.Get(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(s))
		Expect(m.Len()).To(Equal(1))

		Expect(m.Delete(id)).To(Succeed())
		_, err = m.Get(id)
		Expect(err).To(MatchError(chat.ErrSessionNotFound))
		Expect(m.Delete(id)).To(MatchError(chat.ErrSessionNotFound))
	})

	It("fetches the dispatch key once per session", func() {
		dispatcher := &fakeDispatcher{result: query.Result{Success: false, Error: "nope"}}
		openai := &fakeProvider{name: provider.OpenAI, replies: []providerReply{{text: weatherDirective}}}
		base.Providers = provider.NewRegistry(openai)
		base.Dispatcher = dispatcher
		base.Settings = settings.StaticSource{Settings: settings.Settings{OpenAIAPIKey: "sk"}}

		m := chat.NewManager(base, fakeKeys{key: "issued-key"})
		_, s := m.Create(context.Background())
		_, err := s.Send(context.Background(), "weather?")
		Expect(err).NotTo(HaveOccurred())
		Expect(dispatcher.keys).To(Equal([]string{"issued-key"}))
	})

	It("expires idle sessions and keeps busy ones", func() {
		busy := &fakeProvider{name: provider.Local, replies: []providerReply{{text: "done"}}, block: make(chan struct{})}
		base.Providers = provider.NewRegistry(busy)
		base.Settings = settings.StaticSource{Settings: settings.Settings{AgentProvider: "local"}}

		m := chat.NewManager(base, nil)
		idleID, _ := m.Create(context.Background())
		busyID, busySession := m.Create(context.Background())

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			_, err := busySession.Send(context.Background(), "slow question")
			Expect(err).NotTo(HaveOccurred())
		}()
		Eventually(busySession.State).ShouldNot(Equal(chat.Idle))

		Expect(m.SweepIdle(time.Hour)).To(Equal(0))
		time.Sleep(5 * time.Millisecond)
		Expect(m.SweepIdle(time.Millisecond)).To(Equal(1))

		_, err := m.Get(idleID)
		Expect(err).To(MatchError(chat.ErrSessionNotFound))
		_, err = m.Get(busyID)
		Expect(err).NotTo(HaveOccurred())

		close(busy.block)
		Eventually(done).Should(BeClosed())
	})

	It("sweeps on an interval until stopped", func() {
		m := chat.NewManager(base, nil)
		m.Create(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan error, 1)
		go func() {
			stopped <- m.ExpireIdle(ctx, time.Millisecond, time.Millisecond)
		}()

		Eventually(m.Len).Should(Equal(0))
		cancel()
		Eventually(stopped).Should(Receive(BeNil()))
	})

	It("does not expire sessions when no ttl is set", func() {
		m := chat.NewManager(base, nil)
		m.Create(context.Background())
		Expect(m.ExpireIdle(context.Background(), time.Millisecond, 0)).To(Succeed())
		Expect(m.Len()).To(Equal(1))
	})

	It("still creates a session when the key cannot be issued", func() {
		m := chat.NewManager(base, fakeKeys{err: errors.New("down")})
		id, s := m.Create(context.Background())
		Expect(id).NotTo(BeEmpty())
		Expect(s).NotTo(BeNil())
	})
})

var _ = Describe("Truncate", func() {
	It("keeps short text", func() {
		Expect(chat.Truncate("short", 10)).To(Equal("short"))
	})

	It("backs off to a rune boundary", func() {
		out := chat.Truncate("héllo wörld", 2)
		Expect(out).To(Equal("h..."))
		Expect(utf8.ValidString(out)).To(BeTrue())
	})

	It("never produces invalid UTF-8", func() {
		for n := 0; n < 12; n++ {
			Expect(utf8.ValidString(chat.Truncate("日本語のテキスト", n))).To(BeTrue())
		}
	})
})
