package document

import (
	"errors"
	"fmt"

	"github.com/casualjim/quill/pkg/jsonx"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	OutputTypeExecuteResult = "execute_result"
	OutputTypeError         = "error"

	// MetadataRawResponse is the metadata key holding the provider response
	// an output was derived from.
	MetadataRawResponse = "raw_response"
	// MetadataRole is the metadata key holding the chat role of an output.
	MetadataRole = "role"
)

// ValueKind discriminates structured output values.
type ValueKind string

const (
	KindString       ValueKind = "string"
	KindToolCalls    ValueKind = "tool_calls"
	KindFunctionCall ValueKind = "function_call"
	KindBase64       ValueKind = "base64"
	KindFileURI      ValueKind = "file_uri"
)

var (
	executeResultJSON = []byte(`{"output_type":"execute_result"}`)
	errorOutputJSON   = []byte(`{"output_type":"error"}`)
)

// Output is a recorded result of running a prompt. It is one of
// *ExecuteResult or *ErrorOutput.
type Output interface {
	OutputType() string
	output()
}

// Data is the payload of an ExecuteResult: Text, Value, LegacyMessage or
// RawData.
type Data interface {
	data()
}

// Text is a plain-text result.
type Text string

func (Text) data() {}

// Value is a structured result, such as the tool calls a chat model asked for.
type Value struct {
	Kind  ValueKind
	Value any
}

func (Value) data() {}

// LegacyMessage is the raw provider chat message older documents stored as
// output data. It is read and written unchanged.
type LegacyMessage struct {
	Message *jsonx.Object
}

func (LegacyMessage) data() {}

// RawData keeps a payload that matches no known shape so it survives a
// round trip. It has no text.
type RawData struct {
	Value any
}

func (RawData) data() {}

// ExecuteResult is a successful output.
type ExecuteResult struct {
	ExecutionCount int
	Data           Data
	MimeType       string
	Metadata       *jsonx.Object
}

func (*ExecuteResult) OutputType() string { return OutputTypeExecuteResult }
func (*ExecuteResult) output()            {}

// ErrorOutput records a failed execution.
type ErrorOutput struct {
	Name      string
	Value     string
	Traceback []string
	Metadata  *jsonx.Object
}

func (*ErrorOutput) OutputType() string { return OutputTypeError }
func (*ErrorOutput) output()            {}

// Role returns the chat role recorded for the output, if any.
func (r *ExecuteResult) Role() string {
	if role, ok := jsonx.GetString(r.Metadata, MetadataRole); ok {
		return role
	}
	if legacy, ok := r.Data.(LegacyMessage); ok {
		role, _ := jsonx.GetString(legacy.Message, "role")
		return role
	}
	return ""
}

// MarshalJSON encodes the execute result with its output_type tag.
func (r *ExecuteResult) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(executeResultJSON, "execution_count", r.ExecutionCount)
	if err != nil {
		return nil, err
	}

	if r.Data != nil {
		db, err := marshalData(r.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output data: %w", err)
		}
		if result, err = sjson.SetRawBytes(result, "data", db); err != nil {
			return nil, err
		}
	}

	if r.MimeType != "" {
		if result, err = sjson.SetBytes(result, "mime_type", r.MimeType); err != nil {
			return nil, err
		}
	}

	md := r.Metadata
	if md == nil {
		md = jsonx.NewObject()
	}
	mb, err := jsonx.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output metadata: %w", err)
	}
	return sjson.SetRawBytes(result, "metadata", mb)
}

func marshalData(d Data) ([]byte, error) {
	switch d := d.(type) {
	case Text:
		return json.Marshal(string(d))
	case Value:
		vb, err := jsonx.Marshal(d.Value)
		if err != nil {
			return nil, err
		}
		result, err := sjson.SetBytes([]byte(`{}`), "kind", string(d.Kind))
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes(result, "value", vb)
	case LegacyMessage:
		return jsonx.Marshal(d.Message)
	case RawData:
		return jsonx.Marshal(d.Value)
	default:
		return nil, fmt.Errorf("unknown output data type %T", d)
	}
}

// MarshalJSON encodes the error output with its output_type tag.
func (e *ErrorOutput) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorOutputJSON, "ename", e.Name)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "evalue", e.Value); err != nil {
		return nil, err
	}
	tb := e.Traceback
	if tb == nil {
		tb = []string{}
	}
	if result, err = sjson.SetBytes(result, "traceback", tb); err != nil {
		return nil, err
	}
	if e.Metadata != nil {
		mb, err := jsonx.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output metadata: %w", err)
		}
		return sjson.SetRawBytes(result, "metadata", mb)
	}
	return result, nil
}

// UnmarshalOutput decodes a tagged output.
func UnmarshalOutput(data []byte) (Output, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)
	outputType := jv.Get("output_type")
	if !outputType.Exists() {
		return nil, errors.New("missing required field 'output_type'")
	}

	var metadata *jsonx.Object
	if md := jv.Get("metadata"); md.IsObject() {
		metadata = jsonx.FromResult(md).(*jsonx.Object)
	}

	switch outputType.String() {
	case OutputTypeExecuteResult:
		r := &ExecuteResult{
			ExecutionCount: int(jv.Get("execution_count").Int()),
			MimeType:       jv.Get("mime_type").String(),
			Metadata:       metadata,
		}
		if d := jv.Get("data"); d.Exists() {
			r.Data = dataFromResult(d)
		}
		return r, nil
	case OutputTypeError:
		e := &ErrorOutput{
			Name:     jv.Get("ename").String(),
			Value:    jv.Get("evalue").String(),
			Metadata: metadata,
		}
		jv.Get("traceback").ForEach(func(_, value gjson.Result) bool {
			e.Traceback = append(e.Traceback, value.String())
			return true
		})
		return e, nil
	default:
		return nil, fmt.Errorf("unknown output type %q", outputType.String())
	}
}

func dataFromResult(d gjson.Result) Data {
	switch {
	case d.Type == gjson.String:
		return Text(d.String())
	case d.IsObject():
		kind := d.Get("kind")
		if value := d.Get("value"); kind.Type == gjson.String && value.Exists() {
			return Value{Kind: ValueKind(kind.String()), Value: jsonx.FromResult(value)}
		}
		return LegacyMessage{Message: jsonx.FromResult(d).(*jsonx.Object)}
	default:
		return RawData{Value: jsonx.FromResult(d)}
	}
}
