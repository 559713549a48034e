package grammar

import (
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/gogpu/sdsl/token"
)

func lex(t *testing.T, src string) []token.Token {
	t.Helper()
	f, err := token.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	return f.Tokens
}

func number() Parser[int] {
	return Map(Tok(token.IntLit), func(t token.Token) int {
		n, _ := strconv.Atoi(t.Text)
		return n
	})
}

func arith() Parser[int] {
	var expr Parser[int]
	atom := Choice(
		number(),
		Between(Tok(token.LParen), Ref(&expr), Tok(token.RParen)),
	)
	mul := ChainLeft(atom, Choice(Tok(token.Star), Tok(token.Slash)), func(l int, op token.Token, r int) int {
		if op.Kind == token.Star {
			return l * r
		}
		return l / r
	})
	expr = ChainLeft(mul, Choice(Tok(token.Plus), Tok(token.Minus)), func(l int, op token.Token, r int) int {
		if op.Kind == token.Plus {
			return l + r
		}
		return l - r
	})
	return expr
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"1", 1},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"100 / 10 / 5", 2},
	}
	p := arith()
	for _, tt := range tests {
		got, err := Run(p, lex(t, tt.src))
		if err != nil {
			t.Errorf("%q: %v", tt.src, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q = %d, want %d", tt.src, got, tt.want)
		}
	}
}

func TestChainRight(t *testing.T) {
	// 2 - 3 - 4 folded right: 2 - (3 - 4) = 3
	p := ChainRight(number(), Tok(token.Minus), func(l int, _ token.Token, r int) int { return l - r })
	got, err := Run(p, lex(t, "2 - 3 - 4"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("got %d, want 3", got)
	}
}

func TestFurthestFailure(t *testing.T) {
	_, err := Run(arith(), lex(t, "1 + (2 * )"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if perr.Pos != 5 {
		t.Errorf("Pos = %d, want 5", perr.Pos)
	}
	if perr.Found.Kind != token.RParen {
		t.Errorf("Found = %v", perr.Found)
	}
	if !slices.Contains(perr.Expected, token.IntLit.String()) || !slices.Contains(perr.Expected, token.LParen.String()) {
		t.Errorf("Expected = %v", perr.Expected)
	}
}

func TestTrailingInput(t *testing.T) {
	_, err := Run(number(), lex(t, "1 2"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v", err)
	}
	if perr.Pos != 1 {
		t.Errorf("Pos = %d, want 1", perr.Pos)
	}
}

func TestChoiceAndLongest(t *testing.T) {
	short := Map(Tok(token.Ident), func(token.Token) string { return "short" })
	long := Map(Seq2(Tok(token.Ident), Tok(token.LParen)), func(Pair[token.Token, token.Token]) string { return "long" })
	toks := lex(t, "f(")

	s := NewState(toks)
	if v, next, ok := Choice(short, long)(s, 0); !ok || v != "short" || next != 1 {
		t.Errorf("Choice = %q, %d, %v", v, next, ok)
	}
	s = NewState(toks)
	if v, next, ok := Longest(short, long)(s, 0); !ok || v != "long" || next != 2 {
		t.Errorf("Longest = %q, %d, %v", v, next, ok)
	}
	s = NewState(lex(t, "f"))
	if v, _, ok := Longest(short, Map(Tok(token.Ident), func(token.Token) string { return "tie" }))(s, 0); !ok || v != "short" {
		t.Errorf("Longest tie = %q", v)
	}
}

func TestSepByAndOptional(t *testing.T) {
	list := SepBy(number(), Tok(token.Comma))
	tests := []struct {
		src  string
		want []int
		next int
	}{
		{"", nil, 0},
		{"1", []int{1}, 1},
		{"1, 2, 3", []int{1, 2, 3}, 5},
		{"1, 2,", []int{1, 2}, 3},
	}
	for _, tt := range tests {
		s := NewState(lex(t, tt.src))
		got, next, ok := list(s, 0)
		if !ok || !slices.Equal(got, tt.want) || next != tt.next {
			t.Errorf("SepBy(%q) = %v, %d, %v", tt.src, got, next, ok)
		}
	}

	opt := Optional(Tok(token.Semicolon))
	s := NewState(lex(t, "x"))
	if o, next, ok := opt(s, 0); !ok || o.Ok || next != 0 {
		t.Errorf("Optional on mismatch = %+v, %d, %v", o, next, ok)
	}
}

func TestLabel(t *testing.T) {
	p := Label(Choice(Tok(token.IntLit), Tok(token.FloatLit)), "number")
	_, err := Run(p, lex(t, "x"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v", err)
	}
	if !slices.Equal(perr.Expected, []string{"number"}) {
		t.Errorf("Expected = %v, want [number]", perr.Expected)
	}
}

func TestMany(t *testing.T) {
	s := NewState(lex(t, "1 2 3 x"))
	got, next, ok := Many(number())(s, 0)
	if !ok || !slices.Equal(got, []int{1, 2, 3}) || next != 3 {
		t.Errorf("Many = %v, %d, %v", got, next, ok)
	}
	s = NewState(lex(t, "x"))
	if _, _, ok := Many1(number())(s, 0); ok {
		t.Error("Many1 succeeded on no input")
	}
}

func TestWithSpan(t *testing.T) {
	p := WithSpan(Seq3(Tok(token.Ident), Tok(token.Plus), Tok(token.Ident)))
	s := NewState(lex(t, "  ab + cd"))
	v, _, ok := p(s, 0)
	if !ok {
		t.Fatal("no match")
	}
	if v.Span.Start.Column != 3 || v.Span.Len != 7 {
		t.Errorf("span = %+v", v.Span)
	}
}

func TestFilter(t *testing.T) {
	even := Filter(number(), "even number", func(n int) bool { return n%2 == 0 })
	if _, err := Run(even, lex(t, "4")); err != nil {
		t.Errorf("4: %v", err)
	}
	_, err := Run(even, lex(t, "3"))
	var perr *Error
	if !errors.As(err, &perr) || !slices.Equal(perr.Expected, []string{"even number"}) {
		t.Errorf("3: %v", err)
	}
}

func TestMemo(t *testing.T) {
	calls := 0
	counted := Memo(func(s *State, pos int) (int, int, bool) {
		calls++
		return number()(s, pos)
	})
	// Both alternatives start with the memoized rule at position 0.
	p := Choice(
		Map(Seq2(counted, Tok(token.Semicolon)), func(Pair[int, token.Token]) int { return 1 }),
		Map(Seq2(counted, Tok(token.Comma)), func(Pair[int, token.Token]) int { return 2 }),
	)
	got, err := Run(p, lex(t, "7,"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 || calls != 1 {
		t.Errorf("got %d after %d calls, want 2 after 1", got, calls)
	}
}
