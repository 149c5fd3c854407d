package athenaq

import (
	"fmt"
	"reflect"
)

const structTag = "athena"

// modelDefinitionMap is a map of athena column name to each field defined in struct tags
type modelDefinitionMap map[string]modelDefinitionColInfo

// modelDefinitionColInfo as defined in the user-defined struct field tags
type modelDefinitionColInfo struct {
	fieldIndex int
	fieldName  string
}

func newModelDefinitionMap(modelType reflect.Type) (modelDefinitionMap, error) {
	if modelType.Kind() != reflect.Struct {
		err := fmt.Errorf("model type should be a struct, got: %s", modelType.String())
		return nil, err
	}
	if modelType.NumField() <= 0 {
		err := fmt.Errorf("at least one field should be defined for struct of type: %s", modelType.String())
		return nil, err
	}

	schema := make(modelDefinitionMap)
	// generate schema from struct tags:
	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		colName := field.Tag.Get(structTag)
		if colName == "" {
			err := fmt.Errorf("missing athena column name for field: %s", field.Name)
			return nil, err
		}
		if field.PkgPath != "" {
			err := fmt.Errorf("field %s is unexported and cannot be set", field.Name)
			return nil, err
		}

		if _, ok := schema[colName]; ok {
			err := fmt.Errorf("duplicate athena column name found: %s", colName)
			return nil, err
		}
		schema[colName] = modelDefinitionColInfo{
			fieldIndex: i,
			fieldName:  field.Name,
		}
	}

	return schema, nil
}
