// Package grammar provides parser combinators over a token stream.
//
// A Parser is a pure function from an input position to a value and the
// position after it. Alternatives backtrack for free, and every failure is
// recorded in the State so that the furthest point reached, and the tokens
// that would have let parsing continue there, can be reported.
package grammar

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/token"
)

// State is the shared input and failure record of one parse.
type State struct {
	Tokens []token.Token

	furthest int
	expected []string
	memo     map[memoKey]memoEntry
}

// NewState returns a state over toks. The slice must end with an EOF token.
func NewState(toks []token.Token) *State {
	return &State{Tokens: toks, furthest: -1}
}

// At returns the token at pos, or the final EOF token past the end.
func (s *State) At(pos int) token.Token {
	if pos < len(s.Tokens) {
		return s.Tokens[pos]
	}
	return s.Tokens[len(s.Tokens)-1]
}

// Expect records that one of what was expected at pos.
func (s *State) Expect(pos int, what ...string) {
	switch {
	case pos > s.furthest:
		s.furthest = pos
		s.expected = append(s.expected[:0], what...)
	case pos == s.furthest:
		for _, w := range what {
			if !slices.Contains(s.expected, w) {
				s.expected = append(s.expected, w)
			}
		}
	}
}

// Err returns the error describing the furthest failure.
func (s *State) Err() *Error {
	pos := max(s.furthest, 0)
	exp := slices.Clone(s.expected)
	slices.Sort(exp)
	return &Error{Pos: pos, Found: s.At(pos), Expected: exp}
}

// Error is a parse failure at the furthest position reached.
type Error struct {
	Pos      int
	Found    token.Token
	Expected []string
}

func (e *Error) Error() string {
	start := e.Found.Span.Start
	if len(e.Expected) == 0 {
		return fmt.Sprintf("%d:%d: unexpected %s", start.Line, start.Column, e.Found)
	}
	return fmt.Sprintf("%d:%d: expected %s, found %s", start.Line, start.Column,
		strings.Join(e.Expected, " or "), e.Found)
}

// Parser parses a T starting at pos. On success it returns the position
// after the parsed input.
type Parser[T any] func(s *State, pos int) (T, int, bool)

// Run applies p to the whole token stream. Input left after p is an error.
func Run[T any](p Parser[T], toks []token.Token) (T, error) {
	s := NewState(toks)
	v, next, ok := p(s, 0)
	if ok && s.At(next).Kind == token.EOF {
		return v, nil
	}
	if ok {
		s.Expect(next, token.EOF.String())
	}
	var zero T
	return zero, s.Err()
}

// Tok matches a single token of the given kind.
func Tok(kind token.Kind) Parser[token.Token] {
	name := kind.String()
	return func(s *State, pos int) (token.Token, int, bool) {
		t := s.At(pos)
		if t.Kind != kind {
			s.Expect(pos, name)
			return token.Token{}, pos, false
		}
		return t, pos + 1, true
	}
}

// Word matches an identifier with the given spelling.
func Word(text string) Parser[token.Token] {
	name := "'" + text + "'"
	return func(s *State, pos int) (token.Token, int, bool) {
		t := s.At(pos)
		if t.Kind != token.Ident || t.Text != text {
			s.Expect(pos, name)
			return token.Token{}, pos, false
		}
		return t, pos + 1, true
	}
}

// Pure succeeds without consuming input.
func Pure[T any](v T) Parser[T] {
	return func(_ *State, pos int) (T, int, bool) { return v, pos, true }
}

// Label replaces the expectations recorded by p at its start position with name.
func Label[T any](p Parser[T], name string) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		furthest, n := s.furthest, len(s.expected)
		v, next, ok := p(s, pos)
		if !ok && s.furthest == pos {
			if furthest < pos {
				s.expected = s.expected[:0]
			} else {
				s.expected = s.expected[:n]
			}
			s.Expect(pos, name)
		}
		return v, next, ok
	}
}

// Map transforms the value produced by p.
func Map[A, B any](p Parser[A], f func(A) B) Parser[B] {
	return func(s *State, pos int) (B, int, bool) {
		a, next, ok := p(s, pos)
		if !ok {
			var zero B
			return zero, pos, false
		}
		return f(a), next, true
	}
}

// Bind sequences p with a parser chosen from its value.
func Bind[A, B any](p Parser[A], f func(A) Parser[B]) Parser[B] {
	return func(s *State, pos int) (B, int, bool) {
		a, next, ok := p(s, pos)
		if !ok {
			var zero B
			return zero, pos, false
		}
		b, end, ok := f(a)(s, next)
		if !ok {
			var zero B
			return zero, pos, false
		}
		return b, end, true
	}
}

// Pair holds two sequenced values.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple holds three sequenced values.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Seq2 runs a then b.
func Seq2[A, B any](a Parser[A], b Parser[B]) Parser[Pair[A, B]] {
	return func(s *State, pos int) (Pair[A, B], int, bool) {
		va, next, ok := a(s, pos)
		if !ok {
			return Pair[A, B]{}, pos, false
		}
		vb, next, ok := b(s, next)
		if !ok {
			return Pair[A, B]{}, pos, false
		}
		return Pair[A, B]{va, vb}, next, true
	}
}

// Seq3 runs a, b then c.
func Seq3[A, B, C any](a Parser[A], b Parser[B], c Parser[C]) Parser[Triple[A, B, C]] {
	return func(s *State, pos int) (Triple[A, B, C], int, bool) {
		va, next, ok := a(s, pos)
		if !ok {
			return Triple[A, B, C]{}, pos, false
		}
		vb, next, ok := b(s, next)
		if !ok {
			return Triple[A, B, C]{}, pos, false
		}
		vc, next, ok := c(s, next)
		if !ok {
			return Triple[A, B, C]{}, pos, false
		}
		return Triple[A, B, C]{va, vb, vc}, next, true
	}
}

// Left runs a then b and keeps the value of a.
func Left[A, B any](a Parser[A], b Parser[B]) Parser[A] {
	return Map(Seq2(a, b), func(p Pair[A, B]) A { return p.First })
}

// Right runs a then b and keeps the value of b.
func Right[A, B any](a Parser[A], b Parser[B]) Parser[B] {
	return Map(Seq2(a, b), func(p Pair[A, B]) B { return p.Second })
}

// Between parses open, p, close and keeps the value of p.
func Between[O, T, C any](open Parser[O], p Parser[T], close Parser[C]) Parser[T] {
	return Map(Seq3(open, p, close), func(t Triple[O, T, C]) T { return t.Second })
}

// Choice tries each alternative in order; the first success wins.
func Choice[T any](ps ...Parser[T]) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		for _, p := range ps {
			if v, next, ok := p(s, pos); ok {
				return v, next, true
			}
		}
		var zero T
		return zero, pos, false
	}
}

// Longest tries every alternative and keeps the one that consumed the most
// input. Ties go to the earliest alternative.
func Longest[T any](ps ...Parser[T]) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		var best T
		bestNext, found := pos, false
		for _, p := range ps {
			if v, next, ok := p(s, pos); ok && (!found || next > bestNext) {
				best, bestNext, found = v, next, true
			}
		}
		return best, bestNext, found
	}
}

// Many applies p zero or more times.
func Many[T any](p Parser[T]) Parser[[]T] {
	return func(s *State, pos int) ([]T, int, bool) {
		var out []T
		for {
			v, next, ok := p(s, pos)
			if !ok || next == pos {
				return out, pos, true
			}
			out = append(out, v)
			pos = next
		}
	}
}

// Many1 applies p one or more times.
func Many1[T any](p Parser[T]) Parser[[]T] {
	many := Many(p)
	return func(s *State, pos int) ([]T, int, bool) {
		out, next, _ := many(s, pos)
		if len(out) == 0 {
			return nil, pos, false
		}
		return out, next, true
	}
}

// Option is the result of an optional parser.
type Option[T any] struct {
	Value T
	Ok    bool
}

// Optional applies p at most once.
func Optional[T any](p Parser[T]) Parser[Option[T]] {
	return func(s *State, pos int) (Option[T], int, bool) {
		if v, next, ok := p(s, pos); ok {
			return Option[T]{v, true}, next, true
		}
		return Option[T]{}, pos, true
	}
}

// SepBy parses zero or more p separated by sep. A trailing separator is not consumed.
func SepBy[T, S any](p Parser[T], sep Parser[S]) Parser[[]T] {
	return func(s *State, pos int) ([]T, int, bool) {
		first, next, ok := p(s, pos)
		if !ok {
			return nil, pos, true
		}
		out := []T{first}
		pos = next
		for {
			_, afterSep, ok := sep(s, pos)
			if !ok {
				return out, pos, true
			}
			v, next, ok := p(s, afterSep)
			if !ok {
				return out, pos, true
			}
			out = append(out, v)
			pos = next
		}
	}
}

// SepBy1 parses one or more p separated by sep.
func SepBy1[T, S any](p Parser[T], sep Parser[S]) Parser[[]T] {
	list := SepBy(p, sep)
	return func(s *State, pos int) ([]T, int, bool) {
		out, next, _ := list(s, pos)
		if len(out) == 0 {
			return nil, pos, false
		}
		return out, next, true
	}
}

// Lazy defers construction of a parser, for recursive grammars.
func Lazy[T any](f func() Parser[T]) Parser[T] {
	get := sync.OnceValue(f)
	return func(s *State, pos int) (T, int, bool) {
		return get()(s, pos)
	}
}

// Ref returns a parser that calls *p at parse time, so that rules may be
// declared before they are defined.
func Ref[T any](p *Parser[T]) Parser[T] {
	return func(s *State, pos int) (T, int, bool) { return (*p)(s, pos) }
}

// ChainLeft parses operand (op operand)* and folds the result to the left.
func ChainLeft[T, O any](operand Parser[T], op Parser[O], combine func(left T, op O, right T) T) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		acc, next, ok := operand(s, pos)
		if !ok {
			return acc, pos, false
		}
		for {
			o, afterOp, ok := op(s, next)
			if !ok {
				return acc, next, true
			}
			right, afterRight, ok := operand(s, afterOp)
			if !ok {
				return acc, next, true
			}
			acc = combine(acc, o, right)
			next = afterRight
		}
	}
}

// ChainRight parses operand (op operand)* and folds the result to the right.
func ChainRight[T, O any](operand Parser[T], op Parser[O], combine func(left T, op O, right T) T) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		first, next, ok := operand(s, pos)
		if !ok {
			return first, pos, false
		}
		operands := []T{first}
		var ops []O
		for {
			o, afterOp, ok := op(s, next)
			if !ok {
				break
			}
			right, afterRight, ok := operand(s, afterOp)
			if !ok {
				break
			}
			ops = append(ops, o)
			operands = append(operands, right)
			next = afterRight
		}
		acc := operands[len(operands)-1]
		for i := len(ops) - 1; i >= 0; i-- {
			acc = combine(operands[i], ops[i], acc)
		}
		return acc, next, true
	}
}

// Not succeeds without consuming input when p fails.
func Not[T any](p Parser[T], name string) Parser[struct{}] {
	return func(s *State, pos int) (struct{}, int, bool) {
		if _, _, ok := p(s, pos); ok {
			s.Expect(pos, name)
			return struct{}{}, pos, false
		}
		return struct{}{}, pos, true
	}
}

// Peek succeeds without consuming input when p succeeds.
func Peek[T any](p Parser[T]) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		v, _, ok := p(s, pos)
		return v, pos, ok
	}
}

// Spanned pairs a value with the source span of the tokens it was parsed from.
type Spanned[T any] struct {
	Value T
	Span  source.Span
}

// WithSpan records the span covered by p.
func WithSpan[T any](p Parser[T]) Parser[Spanned[T]] {
	return func(s *State, pos int) (Spanned[T], int, bool) {
		v, next, ok := p(s, pos)
		if !ok {
			return Spanned[T]{}, pos, false
		}
		span := source.Span{Start: s.At(pos).Span.Start}
		if next > pos {
			span = span.To(s.At(next - 1).Span)
		}
		return Spanned[T]{v, span}, next, true
	}
}

// Filter fails, expecting name, when pred rejects the value of p.
func Filter[T any](p Parser[T], name string, pred func(T) bool) Parser[T] {
	return func(s *State, pos int) (T, int, bool) {
		v, next, ok := p(s, pos)
		if ok && !pred(v) {
			s.Expect(pos, name)
			ok = false
		}
		if !ok {
			var zero T
			return zero, pos, false
		}
		return v, next, true
	}
}

type memoKey struct {
	rule int64
	pos  int
}

type memoEntry struct {
	value any
	next  int
	ok    bool
}

var memoRules atomic.Int64

// Memo caches the result of p per input position for the duration of one
// parse, so that rules reached again through backtracking run once.
func Memo[T any](p Parser[T]) Parser[T] {
	rule := memoRules.Add(1)
	return func(s *State, pos int) (T, int, bool) {
		key := memoKey{rule, pos}
		if e, ok := s.memo[key]; ok {
			if !e.ok {
				var zero T
				return zero, pos, false
			}
			v, _ := e.value.(T)
			return v, e.next, true
		}
		v, next, ok := p(s, pos)
		if s.memo == nil {
			s.memo = make(map[memoKey]memoEntry)
		}
		s.memo[key] = memoEntry{v, next, ok}
		return v, next, ok
	}
}
