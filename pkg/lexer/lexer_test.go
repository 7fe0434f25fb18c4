package lexer

import (
	"testing"

	"fasterbasic/pkg/token"
)

type wantTok struct {
	kind   token.Kind
	lexeme string
}

func checkTokens(t *testing.T, src string, want []wantTok) {
	t.Helper()
	toks, bag := Tokenize(src)
	if bag.HasErrors() {
		t.Fatalf("unexpected lex errors for %q: %v", src, bag.Sorted())
	}
	if len(toks) != len(want) {
		t.Fatalf("%q: got %d tokens, want %d\ngot: %+v", src, len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Lexeme != w.lexeme {
			t.Errorf("%q: token %d = {%v %q}, want {%v %q}", src, i, toks[i].Kind, toks[i].Lexeme, w.kind, w.lexeme)
		}
	}
}

func TestTokenizeBasicTokens(t *testing.T) {
	checkTokens(t, "+ - * / \\ ^ = <> <= >= < > ( ) , ;", []wantTok{
		{token.PLUS, "+"}, {token.MINUS, "-"}, {token.STAR, "*"}, {token.SLASH, "/"},
		{token.BACKSLASH, "\\"}, {token.CARET_POW, "^"}, {token.EQ, "="}, {token.NE, "<>"},
		{token.LE, "<="}, {token.GE, ">="}, {token.LT, "<"}, {token.GT, ">"},
		{token.LPAREN, "("}, {token.RPAREN, ")"}, {token.COMMA, ","}, {token.SEMICOLON, ";"},
		{token.EOF, ""},
	})
}

func TestTokenizeKeywordsAndIdents(t *testing.T) {
	checkTokens(t, "LET x = 5", []wantTok{
		{token.LET, "LET"}, {token.IDENT, "x"}, {token.EQ, "="}, {token.INTEGER, "5"}, {token.EOF, ""},
	})
}

// A keyword-shaped name immediately followed by a type suffix sigil is a
// variable, never a keyword (spec §4.1).
func TestSuffixSigilDisambiguatesKeywordLikeIdent(t *testing.T) {
	checkTokens(t, "LEFT$", []wantTok{
		{token.IDENT, "LEFT"}, {token.SUFFIX_DOLLAR, "$"}, {token.EOF, ""},
	})
	checkTokens(t, "SINGLE%", []wantTok{
		{token.IDENT, "SINGLE"}, {token.SUFFIX_PERCENT, "%"}, {token.EOF, ""},
	})
}

// Every suffix sigil spec §4.1 names is its own token, not an ILLEGAL
// fallthrough, whether it trails an identifier or a number literal.
func TestAllSuffixSigils(t *testing.T) {
	checkTokens(t, "A# B@ C& D!", []wantTok{
		{token.IDENT, "A"}, {token.SUFFIX_HASH, "#"},
		{token.IDENT, "B"}, {token.SUFFIX_AT, "@"},
		{token.IDENT, "C"}, {token.SUFFIX_AMP, "&"},
		{token.IDENT, "D"}, {token.SUFFIX_BANG, "!"},
		{token.EOF, ""},
	})
	checkTokens(t, "5%", []wantTok{
		{token.INTEGER, "5"}, {token.SUFFIX_PERCENT, "%"}, {token.EOF, ""},
	})
}

// '^' is a suffix only directly against its operand with nothing that could
// start a right-hand expression following; otherwise it's exponentiation.
func TestCaretSuffixVsExponentOperator(t *testing.T) {
	checkTokens(t, "A^ = 1", []wantTok{
		{token.IDENT, "A"}, {token.SUFFIX_CARET, "^"}, {token.EQ, "="}, {token.INTEGER, "1"}, {token.EOF, ""},
	})
	checkTokens(t, "X^2", []wantTok{
		{token.IDENT, "X"}, {token.CARET_POW, "^"}, {token.INTEGER, "2"}, {token.EOF, ""},
	})
}

func TestEndCompoundCollapse(t *testing.T) {
	checkTokens(t, "END IF", []wantTok{
		{token.ENDIF_COMPOUND, "END IF"}, {token.EOF, ""},
	})
	checkTokens(t, "END FUNCTION", []wantTok{
		{token.ENDFUNCTION_COMPOUND, "END FUNCTION"}, {token.EOF, ""},
	})
}

// END CLASS stays two tokens so the parser can tell a class-body END apart
// from a bare program-terminating END (spec §4.1).
func TestEndClassStaysTwoTokens(t *testing.T) {
	checkTokens(t, "END CLASS", []wantTok{
		{token.END, "END"}, {token.CLASS, "CLASS"}, {token.EOF, ""},
	})
}

func TestRemAndApostropheComments(t *testing.T) {
	checkTokens(t, "PRINT 1 REM trailing note\nPRINT 2 ' another note\n", []wantTok{
		{token.PRINT, "PRINT"}, {token.INTEGER, "1"}, {token.END_OF_LINE, "\n"},
		{token.PRINT, "PRINT"}, {token.INTEGER, "2"}, {token.END_OF_LINE, "\n"},
		{token.EOF, ""},
	})
}

func TestNumberLiterals(t *testing.T) {
	toks, bag := Tokenize("10 3.14 &HFF 0x1A")
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}
	want := []struct {
		kind token.Kind
		num  float64
	}{
		{token.INTEGER, 10}, {token.FLOAT, 3.14}, {token.INTEGER, 255}, {token.INTEGER, 26},
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Num != w.num {
			t.Errorf("token %d = {%v %v}, want {%v %v}", i, toks[i].Kind, toks[i].Num, w.kind, w.num)
		}
	}
}

func TestUnterminatedStringReportsErrorButStillTokenizes(t *testing.T) {
	toks, bag := Tokenize("\"hello")
	if !bag.HasErrors() {
		t.Fatalf("expected an unterminated-string error")
	}
	if toks[0].Kind != token.STRING || toks[0].Lexeme != "hello" {
		t.Errorf("got %+v, want partial STRING token with text %q", toks[0], "hello")
	}
}

func TestIllegalCharacterRecovers(t *testing.T) {
	toks, bag := Tokenize("LET x = 1 ~ LET y = 2")
	if !bag.HasErrors() {
		t.Fatalf("expected an illegal-character error")
	}
	var sawIllegal int
	var letCount int
	for _, tok := range toks {
		if tok.Kind == token.ILLEGAL {
			sawIllegal++
		}
		if tok.Kind == token.LET {
			letCount++
		}
	}
	if sawIllegal == 0 || letCount != 2 {
		t.Errorf("expected lexing to recover past the illegal character and see both LETs, got: %+v", toks)
	}
}
