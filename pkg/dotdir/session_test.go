package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns nil when no session exists", func() {
		session, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).To(BeNil())
	})

	It("saves and loads a session", func() {
		in := &dotdir.Session{
			Provider: "deepseek",
			Model:    "deepseek-reasoner",
			Messages: []dotdir.SessionMessage{
				{Role: "user", Content: "hello"},
				{Role: "assistant", Content: "hi there", Reasoning: "greet back"},
			},
		}
		Expect(m.SaveSession(in, tmpDir)).To(Succeed())

		out, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("rejects a nil session", func() {
		Expect(m.SaveSession(nil, tmpDir)).To(HaveOccurred())
	})

	It("fails on a corrupt session file", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("{"), 0o600)).To(Succeed())
		_, err := m.LoadSession(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("parsing session")))
	})

	It("clears the session and tolerates a missing file", func() {
		Expect(m.SaveSession(&dotdir.Session{Provider: "p"}, tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())
		Expect(filepath.Join(tmpDir, "session.json")).NotTo(BeAnExistingFile())
		Expect(m.ClearSession(tmpDir)).To(Succeed())
	})
})
