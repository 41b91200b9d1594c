package settings_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
	"github.com/YourPureAI/ai-api-connector/pkg/settings"
)

var _ = Describe("Settings", func() {
	Describe("Resolve", func() {
		It("defaults to openai and the default model", func() {
			cfg, err := settings.Settings{OpenAIAPIKey: "sk"}.Resolve()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider).To(Equal(provider.OpenAI))
			Expect(cfg.Model).To(Equal(settings.DefaultModel))
			Expect(cfg.Credential).To(Equal("sk"))
		})

		It("picks the credential of the selected provider", func() {
			cfg, err := settings.Settings{
				AgentProvider:   "anthropic",
				AgentModel:      "claude-3-5-sonnet",
				OpenAIAPIKey:    "sk",
				AnthropicAPIKey: "ant",
			}.Resolve()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider).To(Equal(provider.Anthropic))
			Expect(cfg.Credential).To(Equal("ant"))
		})

		DescribeTable("missing credentials are configuration errors",
			func(name string, message string) {
				_, err := settings.Settings{AgentProvider: name}.Resolve()
				Expect(errors.Is(err, settings.ErrConfiguration)).To(BeTrue())
				Expect(err.Error()).To(Equal(message))
			},
			Entry("openai", "openai", "OpenAI API key not configured. Please add it in Settings."),
			Entry("anthropic", "anthropic", "Anthropic API key not configured. Please add it in Settings."),
			Entry("google", "google", "Google API key not configured. Please add it in Settings."),
		)

		It("does not require a credential for the local provider", func() {
			cfg, err := settings.Settings{AgentProvider: "local", AgentModel: "llama3"}.Resolve()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider).To(Equal(provider.Local))
		})

		It("rejects unknown providers", func() {
			_, err := settings.Settings{AgentProvider: "mistral"}.Resolve()
			Expect(err).To(MatchError(settings.ErrConfiguration))
			Expect(err.Error()).To(Equal("Unsupported LLM provider"))
		})

		It("never prints the credential", func() {
			cfg, _ := settings.Settings{OpenAIAPIKey: "sk-secret"}.Resolve()
			Expect(cfg.String()).NotTo(ContainSubstring("sk-secret"))
		})
	})

	Describe("NotLoaded", func() {
		It("wraps the cause", func() {
			cause := errors.New("connection refused")
			err := settings.NotLoaded(cause)
			Expect(err.Error()).To(Equal(settings.NotLoadedMessage))
			Expect(errors.Is(err, cause)).To(BeTrue())
			Expect(errors.Is(err, settings.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("OverrideSource", func() {
		It("replaces provider and model but keeps credentials", func() {
			src := settings.OverrideSource{
				Base: settings.StaticSource{Settings: settings.Settings{
					AgentProvider: "openai",
					AgentModel:    "gpt-4",
					GoogleAPIKey:  "g",
				}},
				Provider: "google",
				Model:    "gemini-1.5-flash",
			}
			s, err := src.Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.AgentProvider).To(Equal("google"))
			Expect(s.AgentModel).To(Equal("gemini-1.5-flash"))
			Expect(s.GoogleAPIKey).To(Equal("g"))
		})

		It("passes base errors through", func() {
			src := settings.OverrideSource{Base: settings.StaticSource{Err: errors.New("down")}, Model: "x"}
			_, err := src.Load(context.Background())
			Expect(err).To(MatchError("down"))
		})
	})

	Describe("HTTPSource", func() {
		It("reads GET /config", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/config"))
				w.Write([]byte(`{"agentProvider":"google","agentModel":"gemini-1.5-pro","googleApiKey":"g"}`))
			}))
			defer srv.Close()

			s, err := settings.NewHTTPSource(srv.URL, srv.Client(), time.Second).Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.AgentProvider).To(Equal("google"))
			Expect(s.GoogleAPIKey).To(Equal("g"))
		})

		It("fails on non-200", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			_, err := settings.NewHTTPSource(srv.URL, srv.Client(), time.Second).Load(context.Background())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FileSource", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("parses TOML", func() {
			path := filepath.Join(dir, "settings.toml")
			Expect(os.WriteFile(path, []byte("agentProvider = \"anthropic\"\nanthropicApiKey = \"ant\"\n"), 0o600)).To(Succeed())

			src, err := settings.NewFileSource(path, nil)
			Expect(err).NotTo(HaveOccurred())
			s, err := src.Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.AgentProvider).To(Equal("anthropic"))
			Expect(s.AnthropicAPIKey).To(Equal("ant"))
		})

		It("parses YAML", func() {
			path := filepath.Join(dir, "settings.yaml")
			Expect(os.WriteFile(path, []byte("agentProvider: local\nagentModel: llama3\n"), 0o600)).To(Succeed())

			src, err := settings.NewFileSource(path, nil)
			Expect(err).NotTo(HaveOccurred())
			s, _ := src.Load(context.Background())
			Expect(s.AgentModel).To(Equal("llama3"))
		})

		It("rejects unknown extensions", func() {
			path := filepath.Join(dir, "settings.ini")
			Expect(os.WriteFile(path, []byte("x=y"), 0o600)).To(Succeed())

			_, err := settings.NewFileSource(path, nil)
			Expect(err).To(HaveOccurred())
		})

		It("keeps the last good settings when a reload fails", func() {
			path := filepath.Join(dir, "settings.toml")
			Expect(os.WriteFile(path, []byte("agentModel = \"gpt-4o\"\n"), 0o600)).To(Succeed())
			src, err := settings.NewFileSource(path, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(os.WriteFile(path, []byte("agentModel = \n"), 0o600)).To(Succeed())
			Expect(src.Reload()).To(HaveOccurred())

			s, _ := src.Load(context.Background())
			Expect(s.AgentModel).To(Equal("gpt-4o"))
		})

		It("picks up edits while watching", func() {
			path := filepath.Join(dir, "settings.toml")
			Expect(os.WriteFile(path, []byte("agentModel = \"gpt-4o\"\n"), 0o600)).To(Succeed())
			src, err := settings.NewFileSource(path, nil)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				defer GinkgoRecover()
				_ = src.Watch(ctx)
			}()

			Eventually(func() string {
				_ = os.WriteFile(path, []byte("agentModel = \"gpt-4o-mini\"\n"), 0o600)
				s, _ := src.Load(context.Background())
				return s.AgentModel
			}).WithTimeout(5 * time.Second).WithPolling(100 * time.Millisecond).Should(Equal("gpt-4o-mini"))
		})
	})
})
