package fields

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alert_fields.toml")
	doc := `
[network_attack_alert]
src_ip = { type = "String", description = "源IP地址" }
alarm_type = { type = "Integer", optional = false }
custom_field = {}

[host_behavior_alert]
host_name = { type = "String" }
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	d := Load(path, testLogger())

	na := d.ForFamily(SectionNetworkAttack)
	if len(na) != 3 {
		t.Fatalf("expected 3 network attack fields, got %d", len(na))
	}
	// Fields come back sorted by name.
	if na[0].Name != "alarm_type" || na[1].Name != "custom_field" || na[2].Name != "src_ip" {
		t.Errorf("unexpected field order: %v", na)
	}
	if na[0].Optional {
		t.Error("alarm_type should not be optional")
	}
	if na[1].Type != "String" {
		t.Errorf("missing type should default to String, got %q", na[1].Type)
	}
	if !na[1].Optional {
		t.Error("missing optional should default to true")
	}

	if !d.Known("host_name") || !d.Known("custom_field") {
		t.Error("Known should cover every section")
	}
	if d.Known("no_such_field") {
		t.Error("Known matched an undefined field")
	}
	if !d.Lookup(SectionHostBehavior, "host_name") {
		t.Error("Lookup missed host_name in host_behavior_alert")
	}
	if d.Lookup(SectionHostBehavior, "src_ip") {
		t.Error("Lookup should be scoped to the section")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	d := Load(filepath.Join(t.TempDir(), "nope.toml"), testLogger())

	// The fallback must cover the fields rules commonly reference.
	for _, name := range []string{"alarm_id", "src_ip", "sha256", "host_name", "alarm_severity"} {
		if !d.Known(name) {
			t.Errorf("built-in dictionary missing %q", name)
		}
	}
}

func TestLoadEmptyFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := Load(path, testLogger())
	if !d.Known("alarm_id") {
		t.Error("empty document should fall back to the built-in dictionary")
	}
}

func TestBuiltinFamilies(t *testing.T) {
	d := Builtin()

	fams := d.Families()
	if len(fams) != 3 {
		t.Fatalf("expected 3 families, got %d", len(fams))
	}
	// Fixed API order: host behavior, malicious sample, network attack.
	if fams[0].AlertType != SectionHostBehavior ||
		fams[1].AlertType != SectionMaliciousSample ||
		fams[2].AlertType != SectionNetworkAttack {
		t.Errorf("unexpected family order: %q %q %q",
			fams[0].AlertType, fams[1].AlertType, fams[2].AlertType)
	}
	if fams[0].DisplayName != "主机行为告警" {
		t.Errorf("unexpected display name %q", fams[0].DisplayName)
	}

	// Family-specific fields stay in their own section.
	if !d.Lookup(SectionMaliciousSample, "sha256") {
		t.Error("malicious_sample_alert missing sha256")
	}
	if d.Lookup(SectionHostBehavior, "sha256") {
		t.Error("sha256 leaked into host_behavior_alert")
	}
	// apt_group appears in both NA and MS sections.
	if !d.Lookup(SectionNetworkAttack, "apt_group") || !d.Lookup(SectionMaliciousSample, "apt_group") {
		t.Error("apt_group should exist in both network attack and malicious sample")
	}

	// Required discriminators are marked non-optional.
	for _, f := range d.ForFamily(SectionNetworkAttack) {
		switch f.Name {
		case "alarm_type", "alarm_subtype", "source":
			if f.Optional {
				t.Errorf("%s should not be optional", f.Name)
			}
		}
	}
}

func TestSectionFor(t *testing.T) {
	cases := map[string]string{
		"network_attack":         SectionNetworkAttack,
		"malicious_sample":       SectionMaliciousSample,
		"host_behavior":          SectionHostBehavior,
		"network_attack_alert":   SectionNetworkAttack,
		"malicious_sample_alert": SectionMaliciousSample,
		"host_behavior_alert":    SectionHostBehavior,
		"bogus":                  "",
		"":                       "",
	}
	for in, want := range cases {
		if got := SectionFor(in); got != want {
			t.Errorf("SectionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommonGroups(t *testing.T) {
	groups := CommonGroups()
	if len(groups) != 7 {
		t.Fatalf("expected 7 groups, got %d", len(groups))
	}
	if groups[0].GroupName != "基础信息" {
		t.Errorf("first group should be 基础信息, got %q", groups[0].GroupName)
	}
	if len(groups[0].Fields) != 8 {
		t.Errorf("基础信息 should list 8 fields, got %d", len(groups[0].Fields))
	}

	// Every grouped field must exist in the built-in dictionary.
	d := Builtin()
	for _, g := range groups {
		for _, name := range g.Fields {
			if !d.Known(name) {
				t.Errorf("group %s references unknown field %q", g.GroupName, name)
			}
		}
	}
}
