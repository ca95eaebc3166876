// Package jsonx models untyped JSON values as a small recursive sum type:
//
//	nil | bool | float64 | string | []any | *Object
//
// Object is an insertion-ordered mapping, so documents, settings blocks and
// provider requests keep their key order across a decode/encode round trip.
// Every value produced by Parse, ParseObject or Normalize only ever contains
// these types, which is what DeepEqual, Clone and the stream reducer rely on.
package jsonx
