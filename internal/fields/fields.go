// Package fields loads the alert field dictionary.
//
// The dictionary declares which fields each alert family carries. It is
// consulted by the DSL validator (is this identifier a real field?) and
// served to rule editors through the admin API. The backing document is
// a TOML file with one table per family; when the document is missing or
// unreadable the built-in list derived from the table schemas is used, so
// a damaged dictionary never blocks ingestion.
package fields

import (
	"log/slog"
	"sort"

	"github.com/BurntSushi/toml"
)

// Family section names in the dictionary document.
const (
	SectionHostBehavior    = "host_behavior_alert"
	SectionMaliciousSample = "malicious_sample_alert"
	SectionNetworkAttack   = "network_attack_alert"
)

// sections lists the family sections in the order the API returns them.
var sections = []struct {
	name        string
	displayName string
}{
	{SectionHostBehavior, "主机行为告警"},
	{SectionMaliciousSample, "恶意样本告警"},
	{SectionNetworkAttack, "网络攻击告警"},
}

// SectionFor maps an alert_type request value to its dictionary section.
// Both the family word ("network_attack") and the section name
// ("network_attack_alert") are accepted; unknown values return "".
func SectionFor(name string) string {
	for _, s := range sections {
		if name == s.name || name+"_alert" == s.name {
			return s.name
		}
	}
	return ""
}

// Field describes one alert field.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"field_type"`
	Optional    bool   `json:"optional"`
	Description string `json:"description"`
}

// FamilyFields groups one family's fields for the admin API.
type FamilyFields struct {
	AlertType   string  `json:"alert_type"`
	DisplayName string  `json:"display_name"`
	Fields      []Field `json:"fields"`
}

// Group is one display group of commonly filtered fields.
type Group struct {
	GroupName string   `json:"group_name"`
	Fields    []string `json:"fields"`
}

// Dictionary is the loaded field dictionary. It is built once at startup
// and read-only afterwards.
type Dictionary struct {
	families map[string][]Field
	known    map[string]struct{}
}

// fieldSpec mirrors one field entry in the TOML document. Optional is a
// pointer so an absent key defaults to true.
type fieldSpec struct {
	Type        string `toml:"type"`
	Optional    *bool  `toml:"optional"`
	Description string `toml:"description"`
}

// Load reads the dictionary document at path. Any read or parse failure
// falls back to the built-in dictionary with a warning; loading never
// fails hard.
func Load(path string, logger *slog.Logger) *Dictionary {
	var doc map[string]map[string]fieldSpec
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		logger.Warn("field dictionary unavailable, using built-in field list",
			"path", path,
			"error", err)
		return Builtin()
	}

	d := &Dictionary{
		families: make(map[string][]Field, len(doc)),
		known:    make(map[string]struct{}),
	}
	for section, specs := range doc {
		fam := make([]Field, 0, len(specs))
		for name, spec := range specs {
			f := Field{
				Name:        name,
				Type:        spec.Type,
				Optional:    true,
				Description: spec.Description,
			}
			if f.Type == "" {
				f.Type = "String"
			}
			if spec.Optional != nil {
				f.Optional = *spec.Optional
			}
			fam = append(fam, f)
			d.known[name] = struct{}{}
		}
		sort.Slice(fam, func(i, j int) bool { return fam[i].Name < fam[j].Name })
		d.families[section] = fam
	}

	if len(d.known) == 0 {
		logger.Warn("field dictionary is empty, using built-in field list", "path", path)
		return Builtin()
	}
	return d
}

// Field names shared by every family, mirroring the common table prefix.
var commonFieldNames = []string{
	"alarm_id", "alarm_date", "alarm_severity", "alarm_name",
	"alarm_description", "alarm_type", "alarm_subtype", "source",
	"control_rule_id", "control_task_id", "procedure_technique_id",
	"session_id", "ip_version", "src_ip", "src_port", "dst_ip", "dst_port",
	"protocol", "terminal_id", "source_file_path",
}

var hostBehaviorFieldNames = []string{
	"host_name", "terminal_ip", "user_account", "terminal_os",
	"dst_process_md5", "dst_process_path", "dst_process_cli",
	"src_process_md5", "src_process_path", "src_process_cli",
	"register_key_name", "register_key_value", "register_path",
	"file_name", "file_md5", "file_path",
}

var maliciousSampleFieldNames = []string{
	"sample_source", "md5", "sha1", "sha256", "sha512", "ssdeep",
	"sample_original_name", "sample_description", "sample_family",
	"apt_group", "sample_alarm_engine", "target_platform", "file_type",
	"file_size", "language", "rule", "target_content", "compile_date",
	"last_analy_date", "sample_alarm_detail",
}

var networkAttackFieldNames = []string{
	"signature_id", "attack_payload", "attack_stage", "attack_ip",
	"attacked_ip", "apt_group", "vul_type", "cve_id", "vul_desc",
}

// requiredFieldNames are the wire keys every alert must carry.
var requiredFieldNames = map[string]struct{}{
	"alarm_type":    {},
	"alarm_subtype": {},
	"source":        {},
}

// Builtin returns the compiled-in dictionary: the raw table columns per
// family, names only. It backs Load's fallback path and the tests.
func Builtin() *Dictionary {
	d := &Dictionary{
		families: make(map[string][]Field, len(sections)),
		known:    make(map[string]struct{}),
	}
	extras := map[string][]string{
		SectionHostBehavior:    hostBehaviorFieldNames,
		SectionMaliciousSample: maliciousSampleFieldNames,
		SectionNetworkAttack:   networkAttackFieldNames,
	}
	for section, extra := range extras {
		names := make([]string, 0, len(commonFieldNames)+len(extra)+1)
		names = append(names, commonFieldNames...)
		names = append(names, extra...)
		names = append(names, "data")
		sort.Strings(names)

		fam := make([]Field, 0, len(names))
		for _, name := range names {
			f := Field{Name: name, Type: "String", Optional: true}
			if _, required := requiredFieldNames[name]; required {
				f.Optional = false
			}
			fam = append(fam, f)
			d.known[name] = struct{}{}
		}
		d.families[section] = fam
	}
	return d
}

// ForFamily returns the fields of one family section, sorted by name.
// Unknown sections return nil.
func (d *Dictionary) ForFamily(section string) []Field {
	return d.families[section]
}

// Lookup reports whether the family section defines the field.
func (d *Dictionary) Lookup(section, name string) bool {
	for _, f := range d.families[section] {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Known reports whether any family defines the field. The DSL validator
// checks identifiers against the whole dictionary because a stored rule
// does not declare which family it targets.
func (d *Dictionary) Known(name string) bool {
	_, ok := d.known[name]
	return ok
}

// Families returns every family section with its display name, in the
// fixed API order.
func (d *Dictionary) Families() []FamilyFields {
	out := make([]FamilyFields, 0, len(sections))
	for _, s := range sections {
		fam, ok := d.families[s.name]
		if !ok {
			continue
		}
		out = append(out, FamilyFields{
			AlertType:   s.name,
			DisplayName: s.displayName,
			Fields:      fam,
		})
	}
	return out
}

// CommonGroups returns the display groups the rule editors offer as
// quick picks. The grouping is presentation only; it never constrains
// which fields a rule may reference.
func CommonGroups() []Group {
	return []Group{
		{
			GroupName: "基础信息",
			Fields: []string{
				"alarm_id", "alarm_date", "alarm_severity", "alarm_name",
				"alarm_description", "alarm_type", "alarm_subtype", "source",
			},
		},
		{
			GroupName: "网络信息",
			Fields: []string{
				"ip_version", "src_ip", "src_port", "dst_ip", "dst_port",
				"protocol",
			},
		},
		{
			GroupName: "终端信息",
			Fields: []string{
				"terminal_id", "host_name", "terminal_ip", "terminal_os",
				"user_account",
			},
		},
		{
			GroupName: "进程信息",
			Fields: []string{
				"src_process_path", "src_process_md5", "src_process_cli",
				"dst_process_path", "dst_process_md5", "dst_process_cli",
			},
		},
		{
			GroupName: "文件信息",
			Fields: []string{
				"file_name", "file_path", "file_md5", "file_type", "file_size",
			},
		},
		{
			GroupName: "样本信息",
			Fields: []string{
				"md5", "sha1", "sha256", "sample_family", "sample_original_name",
			},
		},
		{
			GroupName: "攻击信息",
			Fields: []string{
				"attack_ip", "attacked_ip", "attack_stage", "attack_payload",
				"apt_group", "vul_type", "cve_id",
			},
		},
	}
}
