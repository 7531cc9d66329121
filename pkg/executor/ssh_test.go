package executor

import (
	"strings"
	"testing"
	"time"
)

func TestSSHConfig_ClientConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SSHConfig
		wantErr string
	}{
		{
			name:    "no auth configured",
			cfg:     SSHConfig{Host: "example.com", User: "root", Insecure: true},
			wantErr: "no authentication method configured",
		},
		{
			name:    "unreadable key",
			cfg:     SSHConfig{Host: "example.com", User: "root", PrivateKeyPath: "/nonexistent/id_ed25519", Insecure: true},
			wantErr: "read private key",
		},
		{
			name:    "missing known_hosts",
			cfg:     SSHConfig{Host: "example.com", User: "root", Password: "s3cret", KnownHostsPath: "/nonexistent/known_hosts"},
			wantErr: "load known_hosts",
		},
		{
			name: "password auth with defaults",
			cfg:  SSHConfig{Host: "example.com", User: "deploy", Password: "s3cret", Insecure: true},
		},
		{
			name: "explicit timeout",
			cfg:  SSHConfig{Host: "example.com", User: "deploy", Password: "s3cret", Insecure: true, Timeout: 5 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.cfg.clientConfig()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("clientConfig() succeeded, want error")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("clientConfig() error = %v", err)
			}
			if out.User != tt.cfg.User {
				t.Errorf("User = %q, want %q", out.User, tt.cfg.User)
			}
			if len(out.Auth) != 1 {
				t.Errorf("len(Auth) = %d, want 1", len(out.Auth))
			}
			wantTimeout := tt.cfg.Timeout
			if wantTimeout == 0 {
				wantTimeout = 30 * time.Second
			}
			if out.Timeout != wantTimeout {
				t.Errorf("Timeout = %v, want %v", out.Timeout, wantTimeout)
			}
		})
	}
}
