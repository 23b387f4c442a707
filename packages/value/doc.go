// Package value defines the tagged variant used for variables, response
// bodies and assertion operands.
//
// A Value is one of Null, String, Number, Bool, Bytes, Sequence or Mapping.
// Path segments are dispatched by variant (see Value.Field) rather than by
// inspecting Go types at runtime.
package value
