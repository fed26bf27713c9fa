package envutil

import (
	"reflect"
	"testing"
	"time"
)

func TestTypedLookups(t *testing.T) {
	t.Setenv("EU_INT", "7")
	t.Setenv("EU_BAD_INT", "seven")
	t.Setenv("EU_BOOL", "on")
	t.Setenv("EU_DUR", "1500ms")
	t.Setenv("EU_DUR_BARE", "3")
	t.Setenv("EU_STR", "  hello ")

	if got := Int("EU_INT", 1); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	if got := Int("EU_BAD_INT", 1); got != 1 {
		t.Fatalf("Int fallback: want=1 got=%d", got)
	}
	if !Bool("EU_BOOL", false) {
		t.Fatalf("Bool: want=true")
	}
	if Bool("EU_MISSING", false) {
		t.Fatalf("Bool default: want=false")
	}
	if got := Duration("EU_DUR", time.Second, time.Second); got != 1500*time.Millisecond {
		t.Fatalf("Duration: want=1.5s got=%s", got)
	}
	if got := Duration("EU_DUR_BARE", time.Second, time.Second); got != 3*time.Second {
		t.Fatalf("Duration bare: want=3s got=%s", got)
	}
	t.Setenv("EU_FLOAT", "0.25")
	if got := Float("EU_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float: want=0.25 got=%v", got)
	}
	if got := String("EU_STR", "x"); got != "hello" {
		t.Fatalf("String: want=hello got=%q", got)
	}
}

func TestSplitCSVDropsBlanks(t *testing.T) {
	got := SplitCSV(" a, ,b,, c ")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitCSV: want=%v got=%v", want, got)
	}
	if got := SplitCSV(""); len(got) != 0 {
		t.Fatalf("SplitCSV empty: want none got=%v", got)
	}
}
