// Package parser parses testhttp documents into request definitions.
//
// A document is a sequence of blocks separated by ### lines. The first
// block may carry @import directives. Each block holds:
//   - Meta directives (# @name login, # @skip true)
//   - Variable lines (@token=abc, @id={{login.response.body.id}})
//   - One request line (GET https://... or a bare URL)
//   - Header lines until a blank line, then an optional body
//   - An optional >>> marker followed by assert lines
//
// Parsing is pure: it never touches the network and the same input always
// yields the same definitions.
package parser
