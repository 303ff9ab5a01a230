// Package openapi builds the OpenAPI 3.1 description of the admin
// authentication API.
package openapi

import (
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// BasePath is where the authentication routes are mounted.
const BasePath = "/api/auth"

// GenerateAuthSpec returns the OpenAPI document for the authentication API.
// cookieName is the session cookie accepted alongside the bearer header.
func GenerateAuthSpec(baseURL, cookieName, version string) *openapi3.T {
	if version == "" {
		version = "1.0.0"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Warden Admin Auth API",
			Description: "First-time setup, login with lockout, password change, and session management for the single admin account.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "http",
			Scheme:      "bearer",
			Description: "Opaque session token returned by login or setup.",
		},
	}
	doc.Components.SecuritySchemes["sessionCookie"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "cookie",
			Name: cookieName,
		},
	}

	addSchemas(doc)
	doc.Paths = openapi3.NewPaths()
	addAuthPaths(doc)
	addProbePaths(doc)

	return doc
}

func addSchemas(doc *openapi3.T) {
	s := doc.Components.Schemas

	s["ErrorResponse"] = objectSchema(openapi3.Schemas{
		"error": objectSchema(openapi3.Schemas{
			"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"message": stringSchema(""),
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type:        &openapi3.Types{"object"},
				Description: "remainingAttempts on a failed login, lockedUntil while locked",
			}},
		}),
	})

	s["SessionResponse"] = objectSchema(openapi3.Schemas{
		"sessionToken": stringSchema(""),
		"expiresAt":    stringSchema("date-time"),
	}, "sessionToken", "expiresAt")

	s["FirstLoginResponse"] = objectSchema(openapi3.Schemas{
		"isFirstLogin": boolSchema(),
	}, "isFirstLogin")

	s["Principal"] = objectSchema(openapi3.Schemas{
		"id":           &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
		"username":     stringSchema(""),
		"isFirstLogin": boolSchema(),
	}, "id", "username", "isFirstLogin")

	s["VerifyResponse"] = objectSchema(openapi3.Schemas{
		"user": openapi3.NewSchemaRef("#/components/schemas/Principal", nil),
	}, "user")

	s["MessageResponse"] = objectSchema(openapi3.Schemas{
		"success": boolSchema(),
		"message": stringSchema(""),
	})

	s["SetupRequest"] = objectSchema(openapi3.Schemas{
		"password":        stringSchema("password"),
		"confirmPassword": stringSchema("password"),
	}, "password", "confirmPassword")

	s["LoginRequest"] = objectSchema(openapi3.Schemas{
		"password": stringSchema("password"),
	}, "password")

	s["ChangePasswordRequest"] = objectSchema(openapi3.Schemas{
		"currentPassword": stringSchema("password"),
		"newPassword":     stringSchema("password"),
		"confirmPassword": stringSchema("password"),
	}, "currentPassword", "newPassword", "confirmPassword")
}

func addAuthPaths(doc *openapi3.T) {
	authenticated := openapi3.NewSecurityRequirements().
		With(openapi3.SecurityRequirement{"bearerAuth": {}}).
		With(openapi3.SecurityRequirement{"sessionCookie": {}})

	doc.Paths.Set(BasePath+"/check-first-login", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Report whether the admin password still needs to be set",
			OperationID: "checkFirstLogin",
			Responses:   newResponses("200", "Setup state", ref("FirstLoginResponse")),
		},
	})

	doc.Paths.Set(BasePath+"/setup-password", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Set the admin password for the first time and open a session",
			OperationID: "setupPassword",
			RequestBody: jsonBody(ref("SetupRequest")),
			Responses: newResponses("200", "Session opened", ref("SessionResponse"),
				http.StatusBadRequest, http.StatusTooManyRequests),
		},
	})

	doc.Paths.Set(BasePath+"/login", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Log in with the admin password",
			Description: "Five consecutive failures lock the account for fifteen minutes.",
			OperationID: "login",
			RequestBody: jsonBody(ref("LoginRequest")),
			Responses: newResponses("200", "Session opened", ref("SessionResponse"),
				http.StatusBadRequest, http.StatusUnauthorized, http.StatusLocked, http.StatusTooManyRequests),
		},
	})

	changePassword := &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Change the admin password",
		OperationID: "changePassword",
		RequestBody: jsonBody(ref("ChangePasswordRequest")),
		Responses: newResponses("200", "Password changed", ref("MessageResponse"),
			http.StatusBadRequest, http.StatusUnauthorized, http.StatusLocked),
		Security: authenticated,
	}
	doc.Paths.Set(BasePath+"/change-password", &openapi3.PathItem{Post: changePassword})

	doc.Paths.Set(BasePath+"/verify", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Return the identity behind the current session",
			OperationID: "verifySession",
			Responses:   newResponses("200", "Valid session", ref("VerifyResponse"), http.StatusUnauthorized),
			Security:    authenticated,
		},
	})

	doc.Paths.Set(BasePath+"/logout", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "End the current session",
			OperationID: "logout",
			Responses:   newResponses("200", "Session ended", ref("MessageResponse"), http.StatusUnauthorized),
			Security:    authenticated,
		},
	})
}

func addProbePaths(doc *openapi3.T) {
	status := objectSchema(openapi3.Schemas{"status": stringSchema("")})
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Liveness probe",
			OperationID: "healthz",
			Responses:   newResponses("200", "Process is up", status),
		},
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Readiness probe; checks the credential store",
			OperationID: "readyz",
			Responses:   newResponses("200", "Store reachable", status, http.StatusServiceUnavailable),
		},
	})
}

// newResponses builds a response set with the success response plus one
// ErrorResponse entry per listed status code. 500 is always included.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...int) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(len(errorCodes) + 2)

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := ref("ErrorResponse")
	for _, code := range append(errorCodes, http.StatusInternalServerError) {
		desc := http.StatusText(code)
		responses.Set(strconv.Itoa(code), &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func jsonBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func objectSchema(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

func stringSchema(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: format}}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}
