package db

import "testing"

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		max     int32
		min     int32
		wantMax int32
		wantMin int32
	}{
		{"explicit sizes", "postgres://ward:pw@localhost:5432/inpatient", 20, 5, 20, 5},
		{"min clamped to max", "postgres://ward:pw@localhost:5432/inpatient", 4, 10, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := poolConfig(tt.url, tt.max, tt.min)
			if err != nil {
				t.Fatalf("poolConfig: %v", err)
			}
			if cfg.MaxConns != tt.wantMax || cfg.MinConns != tt.wantMin {
				t.Errorf("got max=%d min=%d, want %d/%d", cfg.MaxConns, cfg.MinConns, tt.wantMax, tt.wantMin)
			}
			params := cfg.ConnConfig.RuntimeParams
			if params["application_name"] != applicationName || params["lock_timeout"] != bedRowLockTimeout {
				t.Errorf("unexpected runtime params %v", params)
			}
		})
	}
}

func TestPoolConfig_KeepsURLParams(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost/inpatient?application_name=board&lock_timeout=1s", 2, 1)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["lock_timeout"]; got != "1s" {
		t.Errorf("expected lock_timeout from the url, got %q", got)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "board" {
		t.Errorf("expected application_name from the url, got %q", got)
	}
}

func TestPoolConfig_InvalidURL(t *testing.T) {
	if _, err := poolConfig("postgres://%zz", 2, 1); err == nil {
		t.Error("expected parse error")
	}
}
