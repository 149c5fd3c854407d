package athenaq

import (
	"fmt"
)

// resultSetDefinitionMap is a map of column name to each column returned by the query
type resultSetDefinitionMap map[string]resultSetColInfo

type resultSetColInfo struct {
	index      int
	columnType string
}

// newResultSetDefinitionMap indexes result columns by name
func newResultSetDefinitionMap(columns []Column) (resultSetDefinitionMap, error) {
	if len(columns) <= 0 {
		err := fmt.Errorf("at least one column be returned by the data set")
		return nil, err
	}

	schema := make(resultSetDefinitionMap)
	for index, column := range columns {
		if column.Name == "" {
			err := fmt.Errorf("column name from result set is empty, index: %d, column: %+v", index, column)
			return nil, err
		}
		if column.Type == "" {
			err := fmt.Errorf("column type from result set is empty, index: %d, name: %s", index, column.Name)
			return nil, err
		}

		if _, ok := schema[column.Name]; ok {
			err := fmt.Errorf("duplicate column name from result set, index: %d, name: %s", index, column.Name)
			return nil, err
		}
		schema[column.Name] = resultSetColInfo{
			index:      index,
			columnType: column.Type,
		}
	}
	return schema, nil
}

func validateResultSetSchema(resultSetSchema resultSetDefinitionMap, modelDefSchema modelDefinitionMap) error {
	modelSchemaLength := len(modelDefSchema)
	resultSchemaLength := len(resultSetSchema)
	if modelSchemaLength != resultSchemaLength {
		err := fmt.Errorf("mismatched schema definition and result set columns count, modelSchemaLength: %d, resultSchemaLength: %d", modelSchemaLength, resultSchemaLength)
		return err
	}

	for key := range modelDefSchema {
		if _, ok := resultSetSchema[key]; !ok {
			err := fmt.Errorf("column '%s' is defined in model schema but not found in result set", key)
			return err
		}
	}

	return nil
}
