package document

import (
	"reflect"

	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var reflector = jsonschema.Reflector{
	DoNotReference: true,
	Mapper:         mapSchema,
}

// Schema returns the JSON Schema of the document format.
func Schema() *jsonschema.Schema {
	s := reflector.Reflect(&Document{})
	s.Title = "quill document"
	return s
}

func mapSchema(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeFor[jsonx.Object]():
		return &jsonschema.Schema{Type: "object"}
	case reflect.TypeFor[ModelSettings]():
		return &jsonschema.Schema{
			Type:                 "object",
			AdditionalProperties: &jsonschema.Schema{Type: "object"},
		}
	case reflect.TypeFor[Input]():
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "string"},
				{Type: "object"},
			},
		}
	case reflect.TypeFor[ModelRef]():
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "string"},
				objectSchema([]string{"name"},
					"name", &jsonschema.Schema{Type: "string"},
					"settings", &jsonschema.Schema{Type: "object"},
				),
			},
		}
	case reflect.TypeFor[Output]():
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				objectSchema([]string{"output_type"},
					"output_type", &jsonschema.Schema{Const: OutputTypeExecuteResult},
					"execution_count", &jsonschema.Schema{Type: "integer"},
					"data", &jsonschema.Schema{},
					"mime_type", &jsonschema.Schema{Type: "string"},
					"metadata", &jsonschema.Schema{Type: "object"},
				),
				objectSchema([]string{"output_type", "ename", "evalue", "traceback"},
					"output_type", &jsonschema.Schema{Const: OutputTypeError},
					"ename", &jsonschema.Schema{Type: "string"},
					"evalue", &jsonschema.Schema{Type: "string"},
					"traceback", &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"metadata", &jsonschema.Schema{Type: "object"},
				),
			},
		}
	}
	return nil
}

func objectSchema(required []string, props ...any) *jsonschema.Schema {
	properties := orderedmap.New[string, *jsonschema.Schema]()
	for i := 0; i+1 < len(props); i += 2 {
		properties.Set(props[i].(string), props[i+1].(*jsonschema.Schema))
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
