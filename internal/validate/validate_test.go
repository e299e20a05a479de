package validate

import (
	"strings"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		check   func(string) error
		input   string
		wantErr string
	}{
		{"model", ModelName, "Org", ""},
		{"model_compound", ModelName, "AuthUserAccessToken", ""},
		{"model_digits", ModelName, "Repo2", ""},
		{"model_empty", ModelName, "", "model name cannot be empty"},
		{"model_lowercase", ModelName, "org", "PascalCase"},
		{"model_underscore", ModelName, "Auth_User", "PascalCase"},
		{"model_dash", ModelName, "Auth-User", "PascalCase"},
		{"model_too_long", ModelName, "A" + strings.Repeat("a", MaxLength), "maximum length"},

		{"member", MemberName, "name", ""},
		{"member_snake", MemberName, "is_public", ""},
		{"member_camel", MemberName, "isPublic", ""},
		{"member_underscore", MemberName, "_hidden", ""},
		{"member_reference", MemberName, "org_id", ""},
		{"member_uppercase", MemberName, "Name", "lowercase"},
		{"member_digit", MemberName, "1name", "lowercase"},
		{"member_dot", MemberName, "org.name", "lowercase"},
		{"member_context", MemberName, "@auth", "lowercase"},
		{"member_internal", MemberName, "__id", "reserved"},

		{"alias", Alias, "repo", ""},
		{"alias_uppercase", Alias, "Org", "alias name"},
		{"alias_empty", Alias, "", "alias name cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("%q: unexpected error %v", tt.input, err)
				}
				return
			}
			if !alerr.Is(err, alerr.ErrInvalidIdentifier) {
				t.Fatalf("%q: error = %v, want %s", tt.input, err, alerr.ErrInvalidIdentifier)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%q: error %q should mention %q", tt.input, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsReservedWord(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"select", true},
		{"SELECT", true},
		{"Order", true},
		{"user", true},
		{"returning", true},
		{"pragma", true},
		{"uuid", true},
		{"org", false},
		{"name", false},
		{"slug", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsReservedWord(tt.input); got != tt.want {
			t.Errorf("IsReservedWord(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
