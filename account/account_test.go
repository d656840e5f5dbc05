package account

import (
	"path/filepath"
	"testing"

	"github.com/quailyquaily/telegate/internal/fsstore"
)

func boolPtr(v bool) *bool { return &v }

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: "default"},
		{in: "  ", want: "default"},
		{in: "Main", want: "main"},
		{in: " work ", want: "work"},
	}
	for _, tc := range cases {
		if got := NormalizeID(tc.in); got != tc.want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveMergesAccountOverBase(t *testing.T) {
	cfg := ChannelConfig{
		Settings: Settings{
			APIID:      100,
			APIHash:    "basehash",
			DMPolicy:   PolicyAllowlist,
			AllowFrom:  []string{"111"},
			MediaMaxMb: 10,
		},
		Accounts: map[string]Settings{
			"work": {
				APIHash:   "workhash",
				AllowFrom: []string{"222"},
			},
		},
	}
	acct := Resolve(cfg, "Work")
	if acct.ID != "work" {
		t.Fatalf("ID = %q, want work", acct.ID)
	}
	if acct.APIID != 100 || acct.APIHash != "workhash" {
		t.Fatalf("credentials = %d/%q, want base id with account hash", acct.APIID, acct.APIHash)
	}
	if acct.DMPolicy != PolicyAllowlist {
		t.Fatalf("DMPolicy = %q, want inherited allowlist", acct.DMPolicy)
	}
	if len(acct.AllowFrom) != 1 || acct.AllowFrom[0] != "222" {
		t.Fatalf("AllowFrom = %v, want account override", acct.AllowFrom)
	}
	if acct.MediaMaxMb != 10 {
		t.Fatalf("MediaMaxMb = %v, want inherited 10", acct.MediaMaxMb)
	}
}

func TestResolveDefaults(t *testing.T) {
	acct := Resolve(ChannelConfig{}, "")
	if acct.ID != DefaultID {
		t.Fatalf("ID = %q, want default", acct.ID)
	}
	if !acct.Enabled {
		t.Fatalf("Enabled = false, want true by default")
	}
	if acct.DMPolicy != PolicyPairing {
		t.Fatalf("DMPolicy = %q, want pairing", acct.DMPolicy)
	}
	if acct.TextChunkLimit != DefaultTextChunkLimit {
		t.Fatalf("TextChunkLimit = %d, want %d", acct.TextChunkLimit, DefaultTextChunkLimit)
	}
	if acct.MediaMaxMb != DefaultMediaMaxMb {
		t.Fatalf("MediaMaxMb = %v, want %v", acct.MediaMaxMb, DefaultMediaMaxMb)
	}
	if acct.Configured() {
		t.Fatalf("Configured() = true, want false without credentials")
	}
	if acct.APIIDSource != SourceNone || acct.APIHashSource != SourceNone {
		t.Fatalf("sources = %s/%s, want none/none", acct.APIIDSource, acct.APIHashSource)
	}
}

func TestResolveEnabledIsANDOfBothLevels(t *testing.T) {
	cfg := ChannelConfig{
		Settings: Settings{Enabled: boolPtr(true)},
		Accounts: map[string]Settings{
			"work": {Enabled: boolPtr(false)},
		},
	}
	if acct := Resolve(cfg, "work"); acct.Enabled {
		t.Fatalf("Enabled = true, want false when account disabled")
	}

	cfg = ChannelConfig{
		Settings: Settings{Enabled: boolPtr(false)},
		Accounts: map[string]Settings{
			"work": {Enabled: boolPtr(true)},
		},
	}
	if acct := Resolve(cfg, "work"); acct.Enabled {
		t.Fatalf("Enabled = true, want false when channel disabled")
	}
}

func TestEnvOverridesDefaultAccountOnly(t *testing.T) {
	t.Setenv(EnvAPIID, "777")
	t.Setenv(EnvAPIHash, "envhash")

	cfg := ChannelConfig{
		Settings: Settings{APIID: 100, APIHash: "confhash"},
		Accounts: map[string]Settings{
			"work": {APIID: 200, APIHash: "workhash"},
		},
	}

	def := Resolve(cfg, DefaultID)
	if def.APIID != 777 || def.APIHash != "envhash" {
		t.Fatalf("default credentials = %d/%q, want env override", def.APIID, def.APIHash)
	}
	if def.APIIDSource != SourceEnv || def.APIHashSource != SourceEnv {
		t.Fatalf("default sources = %s/%s, want env/env", def.APIIDSource, def.APIHashSource)
	}

	work := Resolve(cfg, "work")
	if work.APIID != 200 || work.APIHash != "workhash" {
		t.Fatalf("work credentials = %d/%q, env must not apply to named accounts", work.APIID, work.APIHash)
	}
	if work.APIIDSource != SourceConfig {
		t.Fatalf("work APIIDSource = %s, want config", work.APIIDSource)
	}
}

func TestListIDsAndResolveDefaultID(t *testing.T) {
	if ids := ListIDs(ChannelConfig{}); len(ids) != 1 || ids[0] != DefaultID {
		t.Fatalf("ListIDs(empty) = %v, want [default]", ids)
	}

	cfg := ChannelConfig{Accounts: map[string]Settings{"Work": {}, "alt": {}}}
	ids := ListIDs(cfg)
	if len(ids) != 3 || ids[0] != "alt" || ids[1] != DefaultID || ids[2] != "work" {
		t.Fatalf("ListIDs() = %v, want [alt default work]", ids)
	}
	if got := ResolveDefaultID(cfg); got != DefaultID {
		t.Fatalf("ResolveDefaultID() = %q, want the default sentinel even with named accounts", got)
	}

	cfg.Accounts["default"] = Settings{}
	ids = ListIDs(cfg)
	if len(ids) != 3 {
		t.Fatalf("ListIDs() = %v, want no duplicate default entry", ids)
	}
	if got := ResolveDefaultID(cfg); got != DefaultID {
		t.Fatalf("ResolveDefaultID() = %q, want default when configured", got)
	}
}

func TestValidateOpenPolicyRequiresWildcard(t *testing.T) {
	cfg := ChannelConfig{Settings: Settings{DMPolicy: PolicyOpen}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("Validate() = nil, want error for open policy without wildcard")
	}
	cfg.AllowFrom = []string{"*"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := ChannelConfig{Settings: Settings{DMPolicy: "everyone"}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("Validate() = nil, want error for unknown policy")
	}
}

func TestSetEnabledAndDeleteEditConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := SetEnabled(path, "Work", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	root := map[string]any{}
	if _, err := fsstore.ReadYAML(path, &root); err != nil {
		t.Fatalf("ReadYAML() error = %v", err)
	}
	channels := root["channels"].(map[string]any)
	channel := channels[Channel].(map[string]any)
	accounts := channel["accounts"].(map[string]any)
	block := accounts["work"].(map[string]any)
	if enabled, _ := block["enabled"].(bool); enabled {
		t.Fatalf("enabled = true, want false")
	}

	if err := Delete(path, "work"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := Delete(path, "work"); err == nil {
		t.Fatalf("Delete() of missing account should fail")
	}
}
