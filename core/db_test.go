package core

import "testing"

func TestDBOrdering_String(t *testing.T) {
	tests := []struct {
		name string
		ord  DBOrdering
		want string
	}{
		{name: "descending by default", ord: DBOrdering{Field: "created_at"}, want: "created_at DESC"},
		{name: "ascending", ord: DBOrdering{Field: "username", Ascending: true}, want: "username ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ord.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
