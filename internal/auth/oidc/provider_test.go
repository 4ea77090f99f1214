package oidc

import (
	"testing"

	"github.com/safesite-hq/safesite/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	cfg := &config.OIDCConfig{Enabled: false}
	if _, err := NewProvider(cfg); err == nil {
		t.Error("expected error when OIDC disabled, got nil")
	}
}

func TestNewProvider_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.OIDCConfig
	}{
		{"missing issuer", config.OIDCConfig{Enabled: true, ClientID: "id", ClientSecret: "secret"}},
		{"missing client id", config.OIDCConfig{Enabled: true, IssuerURL: "https://idp.example.com", ClientSecret: "secret"}},
		{"missing client secret", config.OIDCConfig{Enabled: true, IssuerURL: "https://idp.example.com", ClientID: "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(&tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
