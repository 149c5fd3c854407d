package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"math"
	"time"

	"github.com/aws/smithy-go"
	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/retry"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeRunner struct {
	calls   int32
	release chan struct{}
	outcome *athenaq.Outcome
	err     error
	lastReq athenaq.Request
	mu      sync.Mutex
}

func (f *fakeRunner) Run(_ context.Context, req athenaq.Request) (*athenaq.Outcome, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.outcome, f.err
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(rec *httptest.ResponseRecorder) response {
	var resp response
	Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

var _ = Describe("Server", func() {
	var runner *fakeRunner
	var handler http.Handler

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		runner = &fakeRunner{
			outcome: &athenaq.Outcome{
				Result: athenaq.NewQueryResult(
					[]athenaq.Column{{Name: "id", Type: "integer"}, {Name: "name", Type: "varchar"}},
					[][]athenaq.CellValue{{int64(1), nil}},
				),
				ExecutionID: "q-1",
				FromCache:   true,
			},
		}
		handler = NewServer(":0", runner, Info{Region: "us-east-1", Database: "analytics", Workgroup: "primary"}).Handler()
	})

	It("shows the configuration", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		resp := decode(rec)
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Data).To(MatchJSON(`{"region":"us-east-1","database":"analytics","workgroup":"primary"}`))
	})

	It("reports health", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"ok"}`))
	})

	It("exposes metrics", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	Context("POST /api/query", func() {
		It("runs the query with caching requested", func() {
			rec := post(`{"sql": "SELECT 1"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("X-Request-Id")).ToNot(BeEmpty())

			resp := decode(rec)
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Data).To(MatchJSON(`{
				"columns": [{"name": "id", "type": "integer"}, {"name": "name", "type": "varchar"}],
				"rows": [[1, null]],
				"row_count": 1,
				"from_cache": true
			}`))
			Expect(runner.lastReq).To(Equal(athenaq.Request{SQL: "SELECT 1", Caching: true}))
		})

		It("rejects non-JSON requests", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("sql=SELECT 1"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rec).Error).To(Equal("Request must be JSON"))
		})

		It("rejects malformed JSON", func() {
			rec := post(`{"sql": `)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects empty sql", func() {
			rec := post(`{"sql": "   "}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			resp := decode(rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Error).To(Equal("Missing or empty 'sql' field"))
			Expect(atomic.LoadInt32(&runner.calls)).To(BeZero())
		})

		It("maps query failures to 500 with the reason", func() {
			runner.err = &athenaq.QueryExecutionError{ExecutionID: "q-1", State: athenaq.StateFailed, Reason: "SYNTAX_ERROR"}
			rec := post(`{"sql": "SELECT x"}`)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(rec).Error).To(ContainSubstring("SYNTAX_ERROR"))
		})

		It("maps poll timeouts to 504", func() {
			runner.err = &athenaq.PollTimeoutError{ExecutionID: "q-1", Elapsed: time.Minute}
			Expect(post(`{"sql": "SELECT 1"}`).Code).To(Equal(http.StatusGatewayTimeout))
		})

		It("maps remote failures to 502", func() {
			runner.err = &athenaq.RemoteError{Op: "submit", Class: retry.Transient, Err: errors.New("throttled")}
			Expect(post(`{"sql": "SELECT 1"}`).Code).To(Equal(http.StatusBadGateway))
		})

		It("maps permanent auth failures to 401", func() {
			for _, code := range []string{"AccessDeniedException", "ExpiredTokenException", "UnrecognizedClientException"} {
				runner.err = &athenaq.RemoteError{
					Op:    "submit",
					Class: retry.Permanent,
					Err:   &smithy.GenericAPIError{Code: code, Message: "not authorized"},
				}
				rec := post(`{"sql": "SELECT 1"}`)
				Expect(rec.Code).To(Equal(http.StatusUnauthorized), code)
				Expect(decode(rec).Error).To(ContainSubstring("not authorized"))
			}
		})

		It("keeps permanent non-auth failures at 502", func() {
			runner.err = &athenaq.RemoteError{
				Op:    "submit",
				Class: retry.Permanent,
				Err:   &smithy.GenericAPIError{Code: "InvalidRequestException", Message: "bad workgroup"},
			}
			Expect(post(`{"sql": "SELECT 1"}`).Code).To(Equal(http.StatusBadGateway))
		})

		It("answers 500 with an error body when the result cannot be encoded", func() {
			runner.outcome.Result = athenaq.NewQueryResult(
				[]athenaq.Column{{Name: "ratio", Type: "double"}},
				[][]athenaq.CellValue{{math.NaN()}},
			)
			rec := post(`{"sql": "SELECT 0e0/0e0"}`)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			resp := decode(rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Error).To(Equal("Internal server error"))
		})

		It("hides unexpected errors", func() {
			runner.err = errors.New("secret detail")
			rec := post(`{"sql": "SELECT 1"}`)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(rec).Error).To(Equal("Internal server error"))
		})

		It("collapses identical concurrent queries", func() {
			runner.release = make(chan struct{})
			var wg sync.WaitGroup
			codes := make([]int, 3)
			for i := range codes {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					codes[i] = post(`{"sql": "SELECT 1"}`).Code
				}(i)
			}

			Eventually(func() int32 { return atomic.LoadInt32(&runner.calls) }).Should(Equal(int32(1)))
			// give the other requests time to join the in-flight call
			time.Sleep(50 * time.Millisecond)
			Expect(atomic.LoadInt32(&runner.calls)).To(Equal(int32(1)))
			close(runner.release)
			wg.Wait()

			Expect(codes).To(Equal([]int{200, 200, 200}))
		})
	})
})
