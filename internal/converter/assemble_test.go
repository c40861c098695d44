package converter

import "testing"

func TestAssembler_Order(t *testing.T) {
	var a Assembler
	a.WriteHeader("# Book\n\n")
	a.AddChapter("one")
	a.AddChapter("two")
	a.AddChapter("one")

	want := "# Book\n\none\n\n---\n\ntwo\n\n---\n\none\n\n---\n\n"
	if got := a.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if a.Chapters() != 3 {
		t.Errorf("Chapters() = %d, want 3", a.Chapters())
	}
}

func TestAssembler_Empty(t *testing.T) {
	var a Assembler
	if a.String() != "" {
		t.Fatalf("empty assembler = %q", a.String())
	}
}
