package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAdminCredentialIsLocked(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		want        bool
	}{
		{"never locked", nil, false},
		{"lock expired", &past, false},
		{"lock ends exactly now", &now, false},
		{"lock in future", &future, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AdminCredential{LockedUntil: tt.lockedUntil}
			if got := c.IsLocked(now); got != tt.want {
				t.Errorf("IsLocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdminCredentialJSONHidesSecrets(t *testing.T) {
	c := AdminCredential{
		ID:           1,
		Username:     "admin",
		PasswordHash: "deadbeef",
		Salt:         "cafebabe",
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "deadbeef") || strings.Contains(s, "cafebabe") {
		t.Errorf("secret material leaked into JSON: %s", s)
	}
	if !strings.Contains(s, `"username":"admin"`) {
		t.Errorf("expected username in JSON: %s", s)
	}
}

func TestSessionJSONHidesToken(t *testing.T) {
	s := Session{Token: "raw-token", TokenHash: "hash", UserID: 1}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "raw-token") || strings.Contains(string(data), "hash") {
		t.Errorf("token material leaked into JSON: %s", data)
	}
}

func TestActiveSessionPrincipal(t *testing.T) {
	as := &ActiveSession{
		Session:      Session{UserID: 1},
		Username:     "admin",
		IsFirstLogin: true,
	}
	p := as.Principal()
	if p.ID != 1 || p.Username != "admin" || !p.IsFirstLogin {
		t.Errorf("Principal() = %+v", p)
	}

	data, _ := json.Marshal(p)
	want := `{"id":1,"username":"admin","isFirstLogin":true}`
	if string(data) != want {
		t.Errorf("principal JSON = %s, want %s", data, want)
	}
}
