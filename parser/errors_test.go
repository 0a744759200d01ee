package parser

import "testing"

func TestErrorKind_ExitCode(t *testing.T) {
	if got := IOError.ExitCode(); got != 74 {
		t.Errorf("expected IOError to map to 74, got %d", got)
	}
	for _, k := range []ErrorKind{LexError, ParseError, EncodeError, LoadError, DecodeError, RuntimeError} {
		if got := k.ExitCode(); got != 65 {
			t.Errorf("expected %s to map to 65, got %d", k, got)
		}
	}
}

func TestErrorList_ErrorJoinsMessages(t *testing.T) {
	el := &ErrorList{}
	el.Add(NewError(ParseError, Position{Filename: "t.s", Line: 1}, "first"))
	el.Add(NewError(ParseError, Position{Filename: "t.s", Line: 2}, "second"))

	if !el.HasErrors() {
		t.Fatal("expected HasErrors to be true")
	}
	got := el.Error()
	if got != "t.s:1: parse error: first\nt.s:2: parse error: second" {
		t.Errorf("unexpected joined error text: %q", got)
	}
}
