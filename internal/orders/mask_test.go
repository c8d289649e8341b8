package orders

import (
	"strings"
	"testing"
)

func TestMaskPhone(t *testing.T) {
	got := MaskPhone("01012345678")
	if !strings.HasPrefix(got, "010") {
		t.Fatalf("masked phone %q should keep first three digits", got)
	}
	if !strings.HasSuffix(got, "78") {
		t.Fatalf("masked phone %q should keep last two digits", got)
	}
	if strings.Contains(got, "1234567") {
		t.Fatalf("masked phone %q leaks middle digits", got)
	}

	if got := MaskPhone("123"); got != "***" {
		t.Fatalf("short phone masked to %q, want ***", got)
	}
	if got := MaskPhone("1234"); got != "***" {
		t.Fatalf("four-char phone masked to %q, want ***", got)
	}
}

func TestMaskName(t *testing.T) {
	if got := MaskName("김철수"); got != "김**" {
		t.Fatalf("MaskName = %q, want 김**", got)
	}
	if got := MaskName("Bo"); got != "B**" {
		t.Fatalf("MaskName = %q, want B**", got)
	}
	if got := MaskName(""); got != "" {
		t.Fatalf("MaskName(\"\") = %q, want empty", got)
	}
}

func TestMaskCustomer(t *testing.T) {
	m := MaskCustomer(Customer{Name: "홍길동", Phone: "01012345678"})
	if m.Name == "홍길동" || m.Phone == "01012345678" {
		t.Fatalf("masked customer still carries raw values: %+v", m)
	}
}
