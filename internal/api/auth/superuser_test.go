package auth

import "testing"

func TestSuperuser_Authenticate(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		su       *Superuser
		email    string
		password string
		want     bool
	}{
		{"hash match", &Superuser{Email: "admin@slate.local", PasswordHash: hash}, "Admin@Slate.local", "hunter22", true},
		{"hash mismatch", &Superuser{Email: "admin@slate.local", PasswordHash: hash}, "admin@slate.local", "nope", false},
		{"plaintext match", &Superuser{Email: "admin@slate.local", Password: "dev"}, "admin@slate.local", "dev", true},
		{"hash wins over plaintext", &Superuser{Email: "admin@slate.local", PasswordHash: hash, Password: "dev"}, "admin@slate.local", "dev", false},
		{"other email", &Superuser{Email: "admin@slate.local", Password: "dev"}, "dir@example.com", "dev", false},
		{"not configured", &Superuser{}, "", "", false},
		{"nil", nil, "admin@slate.local", "dev", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.su.Authenticate(tc.email, tc.password); got != tc.want {
				t.Errorf("Authenticate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSuperuser_Principal(t *testing.T) {
	su := &Superuser{Email: " Admin@Slate.local", Password: "dev"}
	p := su.Principal()
	if !p.Superuser || p.Email != "admin@slate.local" || p.UserID != SuperuserID {
		t.Errorf("Principal() = %+v", p)
	}
}
