package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size         string
		wantPage, wantSize int
	}{
		{"", "", DefaultPage, DefaultPageSize},
		{"0", "0", 1, 1},
		{"3", "500", 3, MaxPageSize},
		{"-2", "abc", 1, DefaultPageSize},
	}
	for _, tc := range cases {
		p, s := ClampPage(tc.page, tc.size)
		if p != tc.wantPage || s != tc.wantSize {
			t.Fatalf("ClampPage(%q,%q) = %d,%d; want %d,%d", tc.page, tc.size, p, s, tc.wantPage, tc.wantSize)
		}
	}
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		total, page, size     int
		start, end, wantPages int
	}{
		{0, 1, 20, 0, 0, 0},
		{45, 1, 20, 0, 20, 3},
		{45, 3, 20, 40, 45, 3},
		{45, 4, 20, 45, 45, 3},
		{5, 0, 0, 0, 1, 5},
	}
	for _, tc := range cases {
		s, e, p := PageBounds(tc.total, tc.page, tc.size)
		if s != tc.start || e != tc.end || p != tc.wantPages {
			t.Fatalf("PageBounds(%d,%d,%d) = %d,%d,%d", tc.total, tc.page, tc.size, s, e, p)
		}
	}
}
