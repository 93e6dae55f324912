package store

import "testing"

func TestPostOrderClause(t *testing.T) {
	cases := []struct {
		sortBy string
		want   string
	}{
		{"", "is_pinned DESC, created_at DESC"},
		{PostSortPinnedFirst, "is_pinned DESC, created_at DESC"},
		{PostSortNewest, "created_at DESC"},
		{PostSortOldest, "created_at ASC"},
		{PostSortMostReplies, "reply_count DESC, created_at DESC"},
		{PostSortMostViews, "view_count DESC, created_at DESC"},
	}
	for _, tc := range cases {
		got, err := postOrderClause(tc.sortBy)
		if err != nil {
			t.Errorf("sort %q: unexpected error %v", tc.sortBy, err)
			continue
		}
		if got != tc.want {
			t.Errorf("sort %q: got %q, want %q", tc.sortBy, got, tc.want)
		}
	}
}

func TestPostOrderClauseRejectsUnknownSort(t *testing.T) {
	if _, err := postOrderClause("loudest"); err == nil {
		t.Fatal("expected error for unknown sort")
	}
}
