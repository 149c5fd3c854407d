package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/clock"
	"github.com/kent-id/athenaq/config"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// instantService finishes every query immediately with a single row.
type instantService struct {
	submitted []string
}

func (s *instantService) Submit(_ context.Context, sql string) (string, error) {
	s.submitted = append(s.submitted, sql)
	return "q-1", nil
}

func (s *instantService) Status(context.Context, string) (athenaq.ExecutionStatus, error) {
	return athenaq.ExecutionStatus{State: athenaq.StateSucceeded}, nil
}

func (s *instantService) Fetch(context.Context, string) (*athenaq.QueryResult, error) {
	return athenaq.NewQueryResult([]athenaq.Column{{Name: "answer", Type: "integer"}}, [][]athenaq.CellValue{{int64(42)}}), nil
}

func (s *instantService) ResultLocation(id string) string {
	return "s3://results/" + id + ".csv"
}

const validConfig = `
athena:
  database: analytics
  workgroup: primary
  output_location: s3://results/
query_prefix:
  tool_name: reports
queries:
  - name: answer
    sql: SELECT 42
`

var _ = Describe("Root command", func() {
	var dir string
	var stdout, stderr *bytes.Buffer
	var service *instantService
	var original func(context.Context, *config.Config) (*athenaq.Engine, error)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "athenaq-root-*")
		Expect(err).ToNot(HaveOccurred())
		stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}

		service = &instantService{}
		original = newEngine
		newEngine = func(_ context.Context, cfg *config.Config) (*athenaq.Engine, error) {
			opts := append(engineOptions(cfg, nil), athenaq.WithSleeper(clock.NewFake(clock.System().Now()).Sleep))
			return athenaq.NewEngine(service, opts...), nil
		}
	})

	AfterEach(func() {
		newEngine = original
		os.RemoveAll(dir)
	})

	writeConfig := func(content string) string {
		path := filepath.Join(dir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0600)).To(Succeed())
		return path
	}

	It("runs the configured queries", func() {
		path := writeConfig(validConfig)
		code := executeArgs([]string{"run", path, "--env-file", filepath.Join(dir, ".env")}, stdout, stderr)
		Expect(code).To(Equal(ExitOK), stderr.String())
		Expect(stdout.String()).To(ContainSubstring("=== Query: answer ==="))
		Expect(stdout.String()).To(ContainSubstring("42"))
		Expect(service.submitted).To(Equal([]string{"-- [reports] query_name=answer\nSELECT 42"}))
	})

	It("accepts the configuration through --config", func() {
		path := writeConfig(validConfig)
		code := executeArgs([]string{"run", "--config", path}, stdout, stderr)
		Expect(code).To(Equal(ExitOK), stderr.String())
	})

	It("exits with 1 on a missing configuration file", func() {
		code := executeArgs([]string{"run", filepath.Join(dir, "missing.yaml")}, stdout, stderr)
		Expect(code).To(Equal(ExitConfig))
		Expect(stderr.String()).To(ContainSubstring("Configuration Error"))
		Expect(service.submitted).To(BeEmpty())
	})

	It("exits with 1 on an invalid configuration", func() {
		path := writeConfig("athena: {database: db}\nqueries: []\n")
		Expect(executeArgs([]string{"validate", path}, stdout, stderr)).To(Equal(ExitConfig))
	})

	It("validates a configuration", func() {
		path := writeConfig(validConfig)
		Expect(executeArgs([]string{"validate", path}, stdout, stderr)).To(Equal(ExitOK))
		Expect(stdout.String()).To(ContainSubstring("configuration OK: 1 queries (1 active)"))
	})

	It("loads variables from the env file", func() {
		Expect(os.WriteFile(filepath.Join(dir, ".env"), []byte("ATHENAQ_ROOT_TEST_DB=from_dotenv\n"), 0600)).To(Succeed())
		defer os.Unsetenv("ATHENAQ_ROOT_TEST_DB")
		path := writeConfig(`
athena: {database: "${ATHENAQ_ROOT_TEST_DB}", workgroup: wg, output_location: "s3://out/"}
queries: [{name: a, sql: SELECT 1}]
`)
		code := executeArgs([]string{"validate", path, "--env-file", filepath.Join(dir, ".env")}, stdout, stderr)
		Expect(code).To(Equal(ExitOK), stderr.String())
	})
})
