package openapi

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateAuthSpec_Info(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080", "sessionToken", "")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want %q", doc.OpenAPI, "3.1.0")
	}
	if doc.Info == nil {
		t.Fatal("Info is nil")
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("Info.Version = %q, want %q", doc.Info.Version, "1.0.0")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("Servers not set correctly")
	}

	doc = GenerateAuthSpec("http://localhost:8080", "sessionToken", "2.3.4")
	if doc.Info.Version != "2.3.4" {
		t.Errorf("Info.Version = %q, want %q", doc.Info.Version, "2.3.4")
	}
}

func TestGenerateAuthSpec_SecuritySchemes(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080", "warden_session", "")

	bearer, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok {
		t.Fatal("bearerAuth security scheme not found")
	}
	if bearer.Value.Type != "http" || bearer.Value.Scheme != "bearer" {
		t.Errorf("bearerAuth = %+v, want http bearer", bearer.Value)
	}

	cookie, ok := doc.Components.SecuritySchemes["sessionCookie"]
	if !ok {
		t.Fatal("sessionCookie security scheme not found")
	}
	if cookie.Value.In != "cookie" || cookie.Value.Name != "warden_session" {
		t.Errorf("sessionCookie = %+v, want cookie named warden_session", cookie.Value)
	}
}

func TestGenerateAuthSpec_Paths(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080", "sessionToken", "")

	tests := []struct {
		path   string
		method string
		authed bool
		codes  []string
	}{
		{"/api/auth/check-first-login", "GET", false, []string{"200", "500"}},
		{"/api/auth/setup-password", "POST", false, []string{"200", "400", "429", "500"}},
		{"/api/auth/login", "POST", false, []string{"200", "400", "401", "423", "429", "500"}},
		{"/api/auth/change-password", "POST", true, []string{"200", "400", "401", "423", "500"}},
		{"/api/auth/verify", "GET", true, []string{"200", "401", "500"}},
		{"/api/auth/logout", "POST", true, []string{"200", "401", "500"}},
		{"/healthz", "GET", false, []string{"200"}},
		{"/readyz", "GET", false, []string{"200", "503"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			item := doc.Paths.Value(tt.path)
			if item == nil {
				t.Fatalf("path %s not found", tt.path)
			}
			op := item.GetOperation(tt.method)
			if op == nil {
				t.Fatalf("%s %s not found", tt.method, tt.path)
			}
			if op.OperationID == "" {
				t.Error("missing operationId")
			}
			for _, code := range tt.codes {
				if op.Responses.Value(code) == nil {
					t.Errorf("missing %s response", code)
				}
			}
			if tt.authed && (op.Security == nil || len(*op.Security) != 2) {
				t.Errorf("expected bearer and cookie security, got %v", op.Security)
			}
			if !tt.authed && op.Security != nil {
				t.Errorf("unexpected security on public route: %v", op.Security)
			}
		})
	}
}

func TestGenerateAuthSpec_ErrorResponseSchema(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080", "sessionToken", "")

	errSchema, ok := doc.Components.Schemas["ErrorResponse"]
	if !ok {
		t.Fatal("ErrorResponse schema not found in components")
	}
	errorProp, ok := errSchema.Value.Properties["error"]
	if !ok {
		t.Fatal("error property not found in ErrorResponse schema")
	}
	for _, name := range []string{"code", "message", "context"} {
		if _, ok := errorProp.Value.Properties[name]; !ok {
			t.Errorf("%s property not found in error object", name)
		}
	}
}

func TestGenerateAuthSpec_RequestSchemasRequireFields(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080", "sessionToken", "")

	want := map[string][]string{
		"SetupRequest":          {"password", "confirmPassword"},
		"LoginRequest":          {"password"},
		"ChangePasswordRequest": {"currentPassword", "newPassword", "confirmPassword"},
	}
	for name, fields := range want {
		s, ok := doc.Components.Schemas[name]
		if !ok {
			t.Errorf("schema %s not found", name)
			continue
		}
		if strings.Join(s.Value.Required, ",") != strings.Join(fields, ",") {
			t.Errorf("%s required = %v, want %v", name, s.Value.Required, fields)
		}
	}
}

func TestGenerateAuthSpec_MarshalsToJSON(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080", "sessionToken", "")

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	paths, ok := raw["paths"].(map[string]any)
	if !ok {
		t.Fatal("paths missing from JSON output")
	}
	if _, ok := paths["/api/auth/login"]; !ok {
		t.Error("/api/auth/login missing from JSON output")
	}
}
