package utils

import "testing"

func TestUrlQuery(t *testing.T) {
	if got := UrlQuery("São Paulo public health news"); got != "S%C3%A3o+Paulo+public+health+news" {
		t.Fatalf("UrlQuery = %q", got)
	}
}

func TestStr(t *testing.T) {
	if got := Str(nil); got != "" {
		t.Fatalf("Str(nil) = %q", got)
	}
	if got := Str(3.0); got != "3" {
		t.Fatalf("Str(3.0) = %q", got)
	}
	if got := Str("x"); got != "x" {
		t.Fatalf("Str(\"x\") = %q", got)
	}
}
