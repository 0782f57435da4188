package oauth

import (
	"testing"
	"time"
)

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare url", "https://mcp.example.com", "https://mcp.example.com"},
		{"trailing slash", "https://mcp.example.com/", "https://mcp.example.com"},
		{"mcp suffix", "https://mcp.example.com/mcp", "https://mcp.example.com"},
		{"sse suffix", "https://mcp.example.com/sse", "https://mcp.example.com"},
		{"mcp suffix with slash", "https://mcp.example.com/mcp/", "https://mcp.example.com"},
		{"path kept", "https://mcp.example.com/api/v1", "https://mcp.example.com/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeServerURL(tt.in); got != tt.want {
				t.Errorf("NormalizeServerURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToken_IsExpired(t *testing.T) {
	tests := []struct {
		name  string
		token *Token
		want  bool
	}{
		{
			name: "not expired",
			token: &Token{
				ExpiresAt: time.Now().Add(time.Hour),
			},
			want: false,
		},
		{
			name: "expired",
			token: &Token{
				ExpiresAt: time.Now().Add(-time.Hour),
			},
			want: true,
		},
		{
			name: "expires within margin",
			token: &Token{
				ExpiresAt: time.Now().Add(15 * time.Second), // Less than 30s margin
			},
			want: true,
		},
		{
			name: "no expiry set",
			token: &Token{
				ExpiresAt: time.Time{},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToken_IsExpiredWithMargin(t *testing.T) {
	token := &Token{
		ExpiresAt: time.Now().Add(2 * time.Minute),
	}

	// With 1 minute margin, should not be expired
	if token.IsExpiredWithMargin(time.Minute) {
		t.Error("IsExpiredWithMargin(1m) = true, want false")
	}

	// With 3 minute margin, should be expired
	if !token.IsExpiredWithMargin(3 * time.Minute) {
		t.Error("IsExpiredWithMargin(3m) = false, want true")
	}
}

func TestToken_SetExpiresAtFromExpiresIn(t *testing.T) {
	tests := []struct {
		name      string
		token     *Token
		wantSet   bool
		tolerance time.Duration
	}{
		{
			name: "sets expiry from expires_in",
			token: &Token{
				ExpiresIn: 3600,
			},
			wantSet:   true,
			tolerance: 5 * time.Second,
		},
		{
			name: "does not override existing expiry",
			token: &Token{
				ExpiresIn: 3600,
				ExpiresAt: time.Now().Add(2 * time.Hour),
			},
			wantSet: false, // Should not change
		},
		{
			name: "zero expires_in",
			token: &Token{
				ExpiresIn: 0,
			},
			wantSet: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalExpiry := tt.token.ExpiresAt
			tt.token.SetExpiresAtFromExpiresIn()

			if tt.wantSet {
				if tt.token.ExpiresAt.IsZero() {
					t.Error("ExpiresAt was not set")
				}
				expected := time.Now().Add(time.Duration(tt.token.ExpiresIn) * time.Second)
				diff := tt.token.ExpiresAt.Sub(expected)
				if diff < -tt.tolerance || diff > tt.tolerance {
					t.Errorf("ExpiresAt = %v, want ~%v", tt.token.ExpiresAt, expected)
				}
			} else {
				if tt.token.ExpiresAt != originalExpiry {
					t.Errorf("ExpiresAt changed from %v to %v", originalExpiry, tt.token.ExpiresAt)
				}
			}
		})
	}
}

func TestToken_Scopes(t *testing.T) {
	tests := []struct {
		name  string
		token *Token
		want  []string
	}{
		{
			name:  "empty scope",
			token: &Token{Scope: ""},
			want:  nil,
		},
		{
			name:  "single scope",
			token: &Token{Scope: "openid"},
			want:  []string{"openid"},
		},
		{
			name:  "multiple scopes",
			token: &Token{Scope: "openid profile email"},
			want:  []string{"openid", "profile", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.token.Scopes()
			if len(got) != len(tt.want) {
				t.Errorf("Scopes() = %v, want %v", got, tt.want)
				return
			}
			for i, s := range got {
				if s != tt.want[i] {
					t.Errorf("Scopes()[%d] = %q, want %q", i, s, tt.want[i])
				}
			}
		})
	}
}

func TestToken_OAuth2Conversion(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	original := &Token{
		AccessToken:  "access-123",
		TokenType:    "Bearer",
		RefreshToken: "refresh-456",
		ExpiresAt:    expiry,
		IDToken:      "id-789",
	}

	converted := original.ToOAuth2Token()
	if converted.AccessToken != original.AccessToken {
		t.Errorf("AccessToken = %q, want %q", converted.AccessToken, original.AccessToken)
	}
	if idToken, _ := converted.Extra("id_token").(string); idToken != "id-789" {
		t.Errorf("id_token extra = %q, want %q", idToken, "id-789")
	}

	roundTripped := FromOAuth2Token(converted)
	if roundTripped.AccessToken != original.AccessToken {
		t.Errorf("AccessToken = %q, want %q", roundTripped.AccessToken, original.AccessToken)
	}
	if roundTripped.RefreshToken != original.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", roundTripped.RefreshToken, original.RefreshToken)
	}
	if !roundTripped.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt = %v, want %v", roundTripped.ExpiresAt, expiry)
	}
	if roundTripped.IDToken != original.IDToken {
		t.Errorf("IDToken = %q, want %q", roundTripped.IDToken, original.IDToken)
	}

	if FromOAuth2Token(nil) != nil {
		t.Error("FromOAuth2Token(nil) should return nil")
	}
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name     string
		metadata *Metadata
		wantErr  bool
	}{
		{
			name: "valid",
			metadata: &Metadata{
				Issuer:                "https://issuer.example.com",
				AuthorizationEndpoint: "https://issuer.example.com/authorize",
				TokenEndpoint:         "https://issuer.example.com/token",
			},
			wantErr: false,
		},
		{
			name: "missing authorization endpoint",
			metadata: &Metadata{
				Issuer:        "https://issuer.example.com",
				TokenEndpoint: "https://issuer.example.com/token",
			},
			wantErr: true,
		},
		{
			name: "missing token endpoint",
			metadata: &Metadata{
				Issuer:                "https://issuer.example.com",
				AuthorizationEndpoint: "https://issuer.example.com/authorize",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.metadata.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetadata_SupportsPKCE(t *testing.T) {
	tests := []struct {
		name     string
		metadata *Metadata
		want     bool
	}{
		{
			name: "explicit S256 support",
			metadata: &Metadata{
				CodeChallengeMethodsSupported: []string{"plain", "S256"},
			},
			want: true,
		},
		{
			name: "only plain",
			metadata: &Metadata{
				CodeChallengeMethodsSupported: []string{"plain"},
			},
			want: false,
		},
		{
			name: "empty list assumes S256",
			metadata: &Metadata{
				CodeChallengeMethodsSupported: []string{},
			},
			want: true,
		},
		{
			name:     "nil list assumes S256",
			metadata: &Metadata{},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.metadata.SupportsPKCE(); got != tt.want {
				t.Errorf("SupportsPKCE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetadata_SupportsRegistration(t *testing.T) {
	withEndpoint := &Metadata{RegistrationEndpoint: "https://issuer.example.com/register"}
	if !withEndpoint.SupportsRegistration() {
		t.Error("SupportsRegistration() = false, want true")
	}

	withoutEndpoint := &Metadata{}
	if withoutEndpoint.SupportsRegistration() {
		t.Error("SupportsRegistration() = true, want false")
	}
}

func TestClientInformation_IsPublic(t *testing.T) {
	public := &ClientInformation{ClientID: "abc"}
	if !public.IsPublic() {
		t.Error("IsPublic() = false for client without secret, want true")
	}

	confidential := &ClientInformation{ClientID: "abc", ClientSecret: "s3cret"}
	if confidential.IsPublic() {
		t.Error("IsPublic() = true for client with secret, want false")
	}
}
