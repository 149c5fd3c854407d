package athenaq

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Schema: result set", func() {
	Context("newResultSetDefinitionMap", func() {
		When("result columns are valid", func() {
			It("should return expected column definition", func() {
				columns := []Column{
					{Name: "my_id_col", Type: "integer"},
					{Name: "name_col", Type: "varchar"},
				}
				def, err := newResultSetDefinitionMap(columns)
				Expect(err).ToNot(HaveOccurred())
				Expect(len(def)).To(Equal(2))

				Expect(def["my_id_col"].index).To(Equal(0))
				Expect(def["my_id_col"].columnType).To(Equal("integer"))
				Expect(def["name_col"].index).To(Equal(1))
				Expect(def["name_col"].columnType).To(Equal("varchar"))
			})
		})

		When("result columns have missing name / type", func() {
			It("should return error on missing name", func() {
				_, err := newResultSetDefinitionMap([]Column{{Type: "integer"}})
				Expect(err).To(HaveOccurred())
			})

			It("should return error on missing type", func() {
				_, err := newResultSetDefinitionMap([]Column{{Name: "my_id_col"}})
				Expect(err).To(HaveOccurred())
			})
		})

		When("result columns are empty", func() {
			It("should return error", func() {
				_, err := newResultSetDefinitionMap([]Column{})
				Expect(err).To(HaveOccurred())
			})
		})

		When("result columns have duplicate names", func() {
			It("should return error", func() {
				columns := []Column{
					{Name: "my_id_col", Type: "integer"},
					{Name: "my_id_col", Type: "varchar"},
				}
				_, err := newResultSetDefinitionMap(columns)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Context("validateResultSetSchema", func() {
		var resultSchema resultSetDefinitionMap

		BeforeEach(func() {
			resultSchema = resultSetDefinitionMap{
				"my_id_col": {index: 0, columnType: "integer"},
				"name_col":  {index: 1, columnType: "varchar"},
			}
		})

		It("should accept matching definitions", func() {
			modelSchema := modelDefinitionMap{
				"my_id_col": {fieldName: "ID"},
				"name_col":  {fieldName: "Name"},
			}
			Expect(validateResultSetSchema(resultSchema, modelSchema)).To(Succeed())
		})

		It("should reject mismatched column counts", func() {
			modelSchema := modelDefinitionMap{
				"my_id_col": {fieldName: "ID"},
			}
			Expect(validateResultSetSchema(resultSchema, modelSchema)).ToNot(Succeed())
		})

		It("should reject columns missing from the result", func() {
			modelSchema := modelDefinitionMap{
				"my_id_col": {fieldName: "ID"},
				"other_col": {fieldName: "Other"},
			}
			Expect(validateResultSetSchema(resultSchema, modelSchema)).ToNot(Succeed())
		})
	})
})
