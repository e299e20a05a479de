package strutil

import "testing"

func TestTableAndColumnName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Org", "org"},
		{"AuthUser", "auth_user"},
		{"AuthUserAccessToken", "auth_user_access_token"},
		{"isPublic", "is_public"},
		{"org_id", "org_id"},
		{"HTTPServer", "http_server"},
		{"userID", "user_id"},
		{"getAPIKey", "get_api_key"},
		{"Repo2Owner", "repo2_owner"},
		{"stars2", "stars2"},
		{"Snake_Case", "snake_case"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := TableName(tt.input); got != tt.want {
				t.Errorf("TableName(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got := ColumnName(tt.input); got != tt.want {
				t.Errorf("ColumnName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFKColumn(t *testing.T) {
	for ref, want := range map[string]string{
		"org":        "org_id",
		"authUser":   "authUser_id",
		"order_item": "order_item_id",
	} {
		if got := FKColumn(ref); got != want {
			t.Errorf("FKColumn(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestPathSegment(t *testing.T) {
	for target, want := range map[string]string{
		"Org":      "org",
		"AuthUser": "auth_user",
		"repos":    "repos",
	} {
		if got := PathSegment(target); got != want {
			t.Errorf("PathSegment(%q) = %q, want %q", target, got, want)
		}
	}
}

func TestLowerFirst(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Org", "org"},
		{"AuthUser", "authUser"},
		{"repo", "repo"},
		{"Éclair", "éclair"},
	}

	for _, tt := range tests {
		if got := LowerFirst(tt.input); got != tt.want {
			t.Errorf("LowerFirst(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
