// Package types - Raw and converged alert records
//
// # Record Shape
//
// One struct per alert family serves three roles: decoding the inbound JSON
// message, carrying the table row, and rendering API responses. The wire
// format and the table columns were designed together, so the shapes line up
// field for field. ID, Data and CreatedAt are storage-owned and never arrive
// on the wire; the ingest pipeline fills Data with the original message
// bytes before insert.
//
// Required-versus-optional follows the table constraints: alarm_type,
// alarm_subtype and source are NOT NULL and value-typed, everything else is
// a pointer. The ingest pipeline rejects messages missing a required key
// before the typed decode runs (encoding/json would otherwise zero-fill).
package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RequiredAlertKeys are the wire keys every alert message must carry,
// whatever its family. Checked against the decoded object before the
// typed unmarshal.
var RequiredAlertKeys = []string{"alarm_type", "alarm_subtype", "source"}

// =============================================================================
// NETWORK ATTACK (family 1)
// =============================================================================

// NetworkAttackRecord is a traffic-level detection: one event seen on the
// wire, classified by alarm_subtype (scan, exploit attempt, C2 callback...).
type NetworkAttackRecord struct {
	ID               uuid.UUID `json:"id"`
	AlarmID          *string   `json:"alarm_id,omitempty"`
	AlarmDate        *int64    `json:"alarm_date,omitempty"`
	AlarmSeverity    *int16    `json:"alarm_severity,omitempty"`
	AlarmName        *string   `json:"alarm_name,omitempty"`
	AlarmDescription *string   `json:"alarm_description,omitempty"`
	AlarmType        int16     `json:"alarm_type"`
	AlarmSubtype     int32     `json:"alarm_subtype"`
	Source           int16     `json:"source"`
	ControlRuleID    *string   `json:"control_rule_id,omitempty"`
	ControlTaskID    *string   `json:"control_task_id,omitempty"`

	// MITRE ATT&CK technique IDs, stored as a JSONB string array.
	ProcedureTechniqueID []string `json:"procedure_technique_id,omitempty"`

	SessionID      *string `json:"session_id,omitempty"`
	IPVersion      *int16  `json:"ip_version,omitempty"`
	SrcIP          *string `json:"src_ip,omitempty"`
	SrcPort        *int32  `json:"src_port,omitempty"`
	DstIP          *string `json:"dst_ip,omitempty"`
	DstPort        *int32  `json:"dst_port,omitempty"`
	Protocol       *string `json:"protocol,omitempty"`
	TerminalID     *string `json:"terminal_id,omitempty"`
	SourceFilePath *string `json:"source_file_path,omitempty"`

	SignatureID   *string `json:"signature_id,omitempty"`
	AttackPayload *string `json:"attack_payload,omitempty"`
	AttackStage   *string `json:"attack_stage,omitempty"`
	AttackIP      *string `json:"attack_ip,omitempty"`
	AttackedIP    *string `json:"attacked_ip,omitempty"`
	APTGroup      *string `json:"apt_group,omitempty"`
	VulType       *string `json:"vul_type,omitempty"`
	// Upstream producers emit this key with a capitalized prefix.
	CVEID   *string `json:"CVE_id,omitempty"`
	VulDesc *string `json:"vul_desc,omitempty"`

	// Data preserves the original inbound message verbatim.
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// MALICIOUS SAMPLE (family 2)
// =============================================================================

// MaliciousSampleRecord is a file or sample verdict produced by an analysis
// engine. Identity for convergence is the sha256 when present, else the md5.
type MaliciousSampleRecord struct {
	ID               uuid.UUID `json:"id"`
	AlarmID          *string   `json:"alarm_id,omitempty"`
	AlarmDate        *int64    `json:"alarm_date,omitempty"`
	AlarmSeverity    *int16    `json:"alarm_severity,omitempty"`
	AlarmName        *string   `json:"alarm_name,omitempty"`
	AlarmDescription *string   `json:"alarm_description,omitempty"`
	AlarmType        int16     `json:"alarm_type"`
	AlarmSubtype     int32     `json:"alarm_subtype"`
	Source           int16     `json:"source"`
	ControlRuleID    *string   `json:"control_rule_id,omitempty"`
	ControlTaskID    *string   `json:"control_task_id,omitempty"`

	ProcedureTechniqueID []string `json:"procedure_technique_id,omitempty"`

	SessionID      *string `json:"session_id,omitempty"`
	IPVersion      *int16  `json:"ip_version,omitempty"`
	SrcIP          *string `json:"src_ip,omitempty"`
	SrcPort        *int32  `json:"src_port,omitempty"`
	DstIP          *string `json:"dst_ip,omitempty"`
	DstPort        *int32  `json:"dst_port,omitempty"`
	Protocol       *string `json:"protocol,omitempty"`
	TerminalID     *string `json:"terminal_id,omitempty"`
	SourceFilePath *string `json:"source_file_path,omitempty"`

	SampleSource       *int16  `json:"sample_source,omitempty"`
	MD5                *string `json:"md5,omitempty"`
	SHA1               *string `json:"sha1,omitempty"`
	SHA256             *string `json:"sha256,omitempty"`
	SHA512             *string `json:"sha512,omitempty"`
	SSDeep             *string `json:"ssdeep,omitempty"`
	SampleOriginalName *string `json:"sample_original_name,omitempty"`
	SampleDescription  *string `json:"sample_description,omitempty"`
	SampleFamily       *string `json:"sample_family,omitempty"`
	APTGroup           *string `json:"apt_group,omitempty"`

	// Engine IDs that flagged the sample, stored as a JSONB number array.
	SampleAlarmEngine []int32 `json:"sample_alarm_engine,omitempty"`

	TargetPlatform    *string `json:"target_platform,omitempty"`
	FileType          *string `json:"file_type,omitempty"`
	FileSize          *int64  `json:"file_size,omitempty"`
	Language          *string `json:"language,omitempty"`
	Rule              *string `json:"rule,omitempty"`
	TargetContent     *string `json:"target_content,omitempty"`
	CompileDate       *int64  `json:"compile_date,omitempty"`
	LastAnalyDate     *int64  `json:"last_analy_date,omitempty"`
	SampleAlarmDetail *string `json:"sample_alarm_detail,omitempty"`

	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// HOST BEHAVIOR (family 3)
// =============================================================================

// HostBehaviorRecord is an endpoint activity event: process launches, file
// drops, registry writes, lateral movement attempts.
type HostBehaviorRecord struct {
	ID               uuid.UUID `json:"id"`
	AlarmID          *string   `json:"alarm_id,omitempty"`
	AlarmDate        *int64    `json:"alarm_date,omitempty"`
	AlarmSeverity    *int16    `json:"alarm_severity,omitempty"`
	AlarmName        *string   `json:"alarm_name,omitempty"`
	AlarmDescription *string   `json:"alarm_description,omitempty"`
	AlarmType        int16     `json:"alarm_type"`
	AlarmSubtype     int32     `json:"alarm_subtype"`
	Source           int16     `json:"source"`
	ControlRuleID    *string   `json:"control_rule_id,omitempty"`
	ControlTaskID    *string   `json:"control_task_id,omitempty"`

	ProcedureTechniqueID []string `json:"procedure_technique_id,omitempty"`

	SessionID      *string `json:"session_id,omitempty"`
	IPVersion      *int16  `json:"ip_version,omitempty"`
	SrcIP          *string `json:"src_ip,omitempty"`
	SrcPort        *int32  `json:"src_port,omitempty"`
	DstIP          *string `json:"dst_ip,omitempty"`
	DstPort        *int32  `json:"dst_port,omitempty"`
	Protocol       *string `json:"protocol,omitempty"`
	TerminalID     *string `json:"terminal_id,omitempty"`
	SourceFilePath *string `json:"source_file_path,omitempty"`

	HostName       *string `json:"host_name,omitempty"`
	TerminalIP     *string `json:"terminal_ip,omitempty"`
	UserAccount    *string `json:"user_account,omitempty"`
	TerminalOS     *string `json:"terminal_os,omitempty"`
	DstProcessMD5  *string `json:"dst_process_md5,omitempty"`
	DstProcessPath *string `json:"dst_process_path,omitempty"`
	DstProcessCli  *string `json:"dst_process_cli,omitempty"`
	SrcProcessMD5  *string `json:"src_process_md5,omitempty"`
	SrcProcessPath *string `json:"src_process_path,omitempty"`
	SrcProcessCli  *string `json:"src_process_cli,omitempty"`

	RegisterKeyName  *string `json:"register_key_name,omitempty"`
	RegisterKeyValue *string `json:"register_key_value,omitempty"`
	RegisterPath     *string `json:"register_path,omitempty"`

	FileName *string `json:"file_name,omitempty"`
	FileMD5  *string `json:"file_md5,omitempty"`
	FilePath *string `json:"file_path,omitempty"`

	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// INVALID ALERTS (dead letter)
// =============================================================================

// FilteredReason is the error recorded for alerts dropped by a filter rule,
// as opposed to alerts that failed to parse.
const FilteredReason = "filtered"

// InvalidAlertRecord is a dead-lettered message: malformed JSON, a schema
// mismatch, or an alert dropped by a filter rule. Data holds the message
// exactly as received.
type InvalidAlertRecord struct {
	ID        uuid.UUID       `json:"id"`
	Data      json.RawMessage `json:"data"`
	AlertType string          `json:"alert_type"`
	Error     string          `json:"error"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// CONVERGED RECORDS
// =============================================================================

// ConvergedNetworkAttack is a network attack identity with its occurrence
// count. CreatedAt is the first time the identity was seen.
type ConvergedNetworkAttack struct {
	NetworkAttackRecord
	ConvergenceCount int32 `json:"convergence_count"`
}

// ConvergedMaliciousSample is a sample identity (sha256, else md5) with its
// occurrence count.
type ConvergedMaliciousSample struct {
	MaliciousSampleRecord
	ConvergenceCount int32 `json:"convergence_count"`
}

// ConvergedHostBehavior is a host behavior identity with its occurrence
// count.
type ConvergedHostBehavior struct {
	HostBehaviorRecord
	ConvergenceCount int32 `json:"convergence_count"`
}

// ConvergenceMapping links one raw alert to the converged record it was
// folded into. Every stored raw alert has exactly one mapping row.
type ConvergenceMapping struct {
	ID               uuid.UUID   `json:"id"`
	RawAlertID       uuid.UUID   `json:"raw_alert_id"`
	ConvergedAlertID uuid.UUID   `json:"converged_alert_id"`
	AlertType        AlertFamily `json:"alert_type"`
	CreatedAt        time.Time   `json:"created_at"`
}
