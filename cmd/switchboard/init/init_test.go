package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/switchboard/cmd/switchboard/init"
	"github.com/papercomputeco/switchboard/pkg/config"
)

func loadConfig(dir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(dir, ".switchboard", "config.toml"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	cfg, err := config.ParseConfigTOML(data)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "switchboard-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .switchboard directory with a default config", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".switchboard"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Upstream.Timeout).To(Equal("5m"))
		Expect(cfg.Router.Providers).To(HaveKey("ollama"))
	})

	It("does not overwrite existing contents when already initialized", func() {
		dir := filepath.Join(tmpDir, ".switchboard")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		session := filepath.Join(dir, "session.json")
		Expect(os.WriteFile(session, []byte(`{"provider":"openai"}`), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("version = 1\n\n[events]\ntopic = \"mine\"\n"), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		data, err := os.ReadFile(session)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"provider":"openai"}`))
		Expect(loadConfig(tmpDir).Events.Topic).To(Equal("mine"))
	})

	Describe("--preset with provider presets", func() {
		It("writes an anthropic route table", func() {
			Expect(execute("--preset", "anthropic")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Router.Providers).To(HaveKey("anthropic"))
			cand := cfg.Router.Providers["anthropic"][0]
			Expect(cand.Dialect).To(Equal("anthropic"))
			Expect(cand.Endpoint).To(Equal("https://api.anthropic.com"))
			Expect(cand.Headers).To(HaveKeyWithValue("x-api-key", "${ANTHROPIC_API_KEY}"))
		})

		It("writes an openai route table", func() {
			Expect(execute("--preset", "openai")).To(Succeed())

			cand := loadConfig(tmpDir).Router.Providers["openai"][0]
			Expect(cand.Headers).To(HaveKeyWithValue("Authorization", "Bearer ${OPENAI_API_KEY}"))
		})

		It("rejects unknown preset names without creating anything", func() {
			err := execute("--preset", "invalid-provider")
			Expect(err).To(MatchError(ContainSubstring("unknown preset")))

			_, statErr := os.Stat(filepath.Join(tmpDir, ".switchboard"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes remote config.toml", func() {
			remoteCfg := `version = 1

[upstream]
timeout = "90s"

[[router.providers.deepseek]]
name = "deepseek-openai"
dialect = "openai"
endpoint = "https://api.deepseek.com"
priority = 1
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL+"/config.toml")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Upstream.Timeout).To(Equal("90s"))
			Expect(cfg.Router.Providers["deepseek"][0].Name).To(Equal("deepseek-openai"))
		})

		It("fails on a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("404")))
		})
	})
})
