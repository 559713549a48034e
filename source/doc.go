// Package source provides source text handling for the SDSL compiler.
//
// It holds the pieces every later stage shares:
//   - Position and Span, attached to tokens, AST nodes and diagnostics
//   - Scanner, a cursor over the runes of a text with line/column tracking
//   - LineIndex, which converts byte offsets back to positions
//   - Decode, which accepts UTF-8 or UTF-16 input and normalizes it
//   - Error and Errors, positional diagnostics with source context
package source
