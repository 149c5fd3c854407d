package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kent-id/athenaq"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Format", func() {
	var result *athenaq.QueryResult

	BeforeEach(func() {
		result = athenaq.NewQueryResult(
			[]athenaq.Column{
				{Name: "id", Type: "integer"},
				{Name: "name", Type: "varchar"},
				{Name: "price", Type: "decimal"},
				{Name: "active", Type: "boolean"},
				{Name: "score", Type: "double"},
			},
			[][]athenaq.CellValue{
				{int64(1), "alpha", json.Number("10.50"), true, 2.5},
				{int64(2), nil, nil, false, nil},
			},
		)
	})

	Context("Table", func() {
		It("renders headers, values and NULL", func() {
			out := Table(result)
			for _, s := range []string{"id", "name", "price", "alpha", "10.50", "true", "2.5", "NULL"} {
				Expect(out).To(ContainSubstring(s))
			}
			Expect(out).ToNot(ContainSubstring("rows returned"))
		})

		It("truncates long values", func() {
			long := strings.Repeat("x", 60)
			result = athenaq.NewQueryResult([]athenaq.Column{{Name: "v", Type: "varchar"}}, [][]athenaq.CellValue{{long}})
			out := Table(result)
			Expect(out).To(ContainSubstring(strings.Repeat("x", 47) + "..."))
			Expect(out).ToNot(ContainSubstring(strings.Repeat("x", 48)))
		})

		It("keeps values at the width limit", func() {
			exact := strings.Repeat("y", MaxCellWidth)
			result = athenaq.NewQueryResult([]athenaq.Column{{Name: "v", Type: "varchar"}}, [][]athenaq.CellValue{{exact}})
			Expect(Table(result)).To(ContainSubstring(exact))
		})

		It("notes an empty result", func() {
			result = athenaq.NewQueryResult([]athenaq.Column{{Name: "id", Type: "integer"}}, nil)
			out := Table(result)
			Expect(out).To(ContainSubstring("id"))
			Expect(out).To(HaveSuffix("\n\n(0 rows returned)"))
		})
	})

	Context("Cell", func() {
		It("formats each value type", func() {
			Expect(Cell(nil)).To(Equal("NULL"))
			Expect(Cell(int64(-3))).To(Equal("-3"))
			Expect(Cell(0.1)).To(Equal("0.1"))
			Expect(Cell(false)).To(Equal("false"))
			Expect(Cell(json.Number("1.000"))).To(Equal("1.000"))
			Expect(Cell("")).To(Equal(""))
		})
	})

	Context("WriteCSV", func() {
		It("writes a header and empty fields for NULL", func() {
			var buf bytes.Buffer
			Expect(WriteCSV(&buf, result)).To(Succeed())
			Expect(buf.String()).To(Equal("id,name,price,active,score\n1,alpha,10.50,true,2.5\n2,,,false,\n"))
		})

		It("quotes values with separators", func() {
			result = athenaq.NewQueryResult([]athenaq.Column{{Name: "v", Type: "varchar"}}, [][]athenaq.CellValue{{"a,b"}})
			var buf bytes.Buffer
			Expect(WriteCSV(&buf, result)).To(Succeed())
			Expect(buf.String()).To(Equal("v\n\"a,b\"\n"))
		})
	})

	Context("WriteJSON", func() {
		It("writes rows as objects in column order", func() {
			var buf bytes.Buffer
			Expect(WriteJSON(&buf, result)).To(Succeed())

			out := buf.String()
			Expect(strings.Index(out, `"id": 1`)).To(BeNumerically("<", strings.Index(out, `"name": "alpha"`)))
			Expect(strings.Index(out, `"name": "alpha"`)).To(BeNumerically("<", strings.Index(out, `"price": 10.50`)))

			var decoded map[string]interface{}
			Expect(json.Unmarshal(buf.Bytes(), &decoded)).To(Succeed())
			Expect(decoded["row_count"]).To(Equal(2.0))
			Expect(decoded["columns"]).To(ContainElement(map[string]interface{}{"name": "id", "type": "integer"}))
			rows := decoded["rows"].([]interface{})
			Expect(rows[1]).To(Equal(map[string]interface{}{
				"id": 2.0, "name": nil, "price": nil, "active": false, "score": nil,
			}))
		})

		It("writes an empty rows array", func() {
			result = athenaq.NewQueryResult([]athenaq.Column{{Name: "id", Type: "integer"}}, nil)
			var buf bytes.Buffer
			Expect(WriteJSON(&buf, result)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring(`"rows": []`))
			Expect(buf.String()).To(ContainSubstring(`"row_count": 0`))
		})
	})

	Context("WriteFile", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "athenaq-format-*")
			Expect(err).ToNot(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(dir)
		})

		It("writes the file", func() {
			path := filepath.Join(dir, "out.csv")
			Expect(WriteFile(path, result, WriteCSV)).To(Succeed())
			data, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(HavePrefix("id,name"))
		})

		It("reports an unwritable path", func() {
			err := WriteFile(filepath.Join(dir, "missing", "out.csv"), result, WriteCSV)
			var fileErr *FileOutputError
			Expect(errors.As(err, &fileErr)).To(BeTrue())
			Expect(fileErr.Path).To(HaveSuffix("out.csv"))
		})

		It("reports a failing writer", func() {
			boom := errors.New("boom")
			err := WriteFile(filepath.Join(dir, "out.json"), result, func(io.Writer, *athenaq.QueryResult) error { return boom })
			Expect(errors.Is(err, boom)).To(BeTrue())
		})
	})

	Context("OutputPath", func() {
		It("keeps the path for a single query", func() {
			Expect(OutputPath("out.csv", "daily", false)).To(Equal("out.csv"))
		})

		It("inserts the query name before the extension", func() {
			Expect(OutputPath("reports/out.csv", "daily", true)).To(Equal("reports/out_daily.csv"))
			Expect(OutputPath("out", "daily", true)).To(Equal("out_daily"))
		})
	})
})
