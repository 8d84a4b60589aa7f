package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// RAW NETWORK ATTACK ALERTS
// =============================================================================

const networkAttackColumns = `id, alarm_id, alarm_date, alarm_severity, alarm_name,
	alarm_description, alarm_type, alarm_subtype, source, control_rule_id,
	control_task_id, procedure_technique_id, session_id, ip_version, src_ip,
	src_port, dst_ip, dst_port, protocol, terminal_id, source_file_path,
	signature_id, attack_payload, attack_stage, attack_ip, attacked_ip,
	apt_group, vul_type, cve_id, vul_desc, data, created_at`

func scanNetworkAttack(row pgx.Row) (*types.NetworkAttackRecord, error) {
	var rec types.NetworkAttackRecord
	var ptJSON, data []byte
	err := row.Scan(
		&rec.ID, &rec.AlarmID, &rec.AlarmDate, &rec.AlarmSeverity, &rec.AlarmName,
		&rec.AlarmDescription, &rec.AlarmType, &rec.AlarmSubtype, &rec.Source, &rec.ControlRuleID,
		&rec.ControlTaskID, &ptJSON, &rec.SessionID, &rec.IPVersion, &rec.SrcIP,
		&rec.SrcPort, &rec.DstIP, &rec.DstPort, &rec.Protocol, &rec.TerminalID, &rec.SourceFilePath,
		&rec.SignatureID, &rec.AttackPayload, &rec.AttackStage, &rec.AttackIP, &rec.AttackedIP,
		&rec.APTGroup, &rec.VulType, &rec.CVEID, &rec.VulDesc, &data, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ptJSON != nil {
		json.Unmarshal(ptJSON, &rec.ProcedureTechniqueID)
	}
	rec.Data = data
	return &rec, nil
}

// InsertNetworkAttack stores a raw network attack alert and fills the
// record's ID and CreatedAt from the inserted row.
func (s *Store) InsertNetworkAttack(ctx context.Context, rec *types.NetworkAttackRecord) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO network_attack_alerts (
			alarm_id, alarm_date, alarm_severity, alarm_name, alarm_description,
			alarm_type, alarm_subtype, source, control_rule_id, control_task_id,
			procedure_technique_id, session_id, ip_version, src_ip, src_port,
			dst_ip, dst_port, protocol, terminal_id, source_file_path,
			signature_id, attack_payload, attack_stage, attack_ip, attacked_ip,
			apt_group, vul_type, cve_id, vul_desc, data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
		RETURNING id, created_at
	`,
		rec.AlarmID, rec.AlarmDate, rec.AlarmSeverity, rec.AlarmName, rec.AlarmDescription,
		rec.AlarmType, rec.AlarmSubtype, rec.Source, rec.ControlRuleID, rec.ControlTaskID,
		marshalJSONB(rec.ProcedureTechniqueID), rec.SessionID, rec.IPVersion, rec.SrcIP, rec.SrcPort,
		rec.DstIP, rec.DstPort, rec.Protocol, rec.TerminalID, rec.SourceFilePath,
		rec.SignatureID, rec.AttackPayload, rec.AttackStage, rec.AttackIP, rec.AttackedIP,
		rec.APTGroup, rec.VulType, rec.CVEID, rec.VulDesc, []byte(rec.Data),
	).Scan(&rec.ID, &rec.CreatedAt)
}

// GetNetworkAttack retrieves a raw network attack alert by ID.
func (s *Store) GetNetworkAttack(ctx context.Context, id uuid.UUID) (*types.NetworkAttackRecord, error) {
	rec, err := scanNetworkAttack(s.pool.QueryRow(ctx,
		`SELECT `+networkAttackColumns+` FROM network_attack_alerts WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListNetworkAttacks returns a page of raw network attack alerts, newest
// first, with the unpaged total.
func (s *Store) ListNetworkAttacks(ctx context.Context, limit, offset int) ([]*types.NetworkAttackRecord, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM network_attack_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+networkAttackColumns+`
		FROM network_attack_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.NetworkAttackRecord
	for rows.Next() {
		rec, err := scanNetworkAttack(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// =============================================================================
// RAW MALICIOUS SAMPLE ALERTS
// =============================================================================

const maliciousSampleColumns = `id, alarm_id, alarm_date, alarm_severity, alarm_name,
	alarm_description, alarm_type, alarm_subtype, source, control_rule_id,
	control_task_id, procedure_technique_id, session_id, ip_version, src_ip,
	src_port, dst_ip, dst_port, protocol, terminal_id, source_file_path,
	sample_source, md5, sha1, sha256, sha512, ssdeep, sample_original_name,
	sample_description, sample_family, apt_group, sample_alarm_engine,
	target_platform, file_type, file_size, language, rule, target_content,
	compile_date, last_analy_date, sample_alarm_detail, data, created_at`

func scanMaliciousSample(row pgx.Row) (*types.MaliciousSampleRecord, error) {
	var rec types.MaliciousSampleRecord
	var ptJSON, engineJSON, data []byte
	err := row.Scan(
		&rec.ID, &rec.AlarmID, &rec.AlarmDate, &rec.AlarmSeverity, &rec.AlarmName,
		&rec.AlarmDescription, &rec.AlarmType, &rec.AlarmSubtype, &rec.Source, &rec.ControlRuleID,
		&rec.ControlTaskID, &ptJSON, &rec.SessionID, &rec.IPVersion, &rec.SrcIP,
		&rec.SrcPort, &rec.DstIP, &rec.DstPort, &rec.Protocol, &rec.TerminalID, &rec.SourceFilePath,
		&rec.SampleSource, &rec.MD5, &rec.SHA1, &rec.SHA256, &rec.SHA512, &rec.SSDeep, &rec.SampleOriginalName,
		&rec.SampleDescription, &rec.SampleFamily, &rec.APTGroup, &engineJSON,
		&rec.TargetPlatform, &rec.FileType, &rec.FileSize, &rec.Language, &rec.Rule, &rec.TargetContent,
		&rec.CompileDate, &rec.LastAnalyDate, &rec.SampleAlarmDetail, &data, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ptJSON != nil {
		json.Unmarshal(ptJSON, &rec.ProcedureTechniqueID)
	}
	if engineJSON != nil {
		json.Unmarshal(engineJSON, &rec.SampleAlarmEngine)
	}
	rec.Data = data
	return &rec, nil
}

// InsertMaliciousSample stores a raw malicious sample alert and fills the
// record's ID and CreatedAt from the inserted row.
func (s *Store) InsertMaliciousSample(ctx context.Context, rec *types.MaliciousSampleRecord) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO malicious_sample_alerts (
			alarm_id, alarm_date, alarm_severity, alarm_name, alarm_description,
			alarm_type, alarm_subtype, source, control_rule_id, control_task_id,
			procedure_technique_id, session_id, ip_version, src_ip, src_port,
			dst_ip, dst_port, protocol, terminal_id, source_file_path,
			sample_source, md5, sha1, sha256, sha512, ssdeep, sample_original_name,
			sample_description, sample_family, apt_group, sample_alarm_engine,
			target_platform, file_type, file_size, language, rule, target_content,
			compile_date, last_analy_date, sample_alarm_detail, data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41)
		RETURNING id, created_at
	`,
		rec.AlarmID, rec.AlarmDate, rec.AlarmSeverity, rec.AlarmName, rec.AlarmDescription,
		rec.AlarmType, rec.AlarmSubtype, rec.Source, rec.ControlRuleID, rec.ControlTaskID,
		marshalJSONB(rec.ProcedureTechniqueID), rec.SessionID, rec.IPVersion, rec.SrcIP, rec.SrcPort,
		rec.DstIP, rec.DstPort, rec.Protocol, rec.TerminalID, rec.SourceFilePath,
		rec.SampleSource, rec.MD5, rec.SHA1, rec.SHA256, rec.SHA512, rec.SSDeep, rec.SampleOriginalName,
		rec.SampleDescription, rec.SampleFamily, rec.APTGroup, marshalJSONB(rec.SampleAlarmEngine),
		rec.TargetPlatform, rec.FileType, rec.FileSize, rec.Language, rec.Rule, rec.TargetContent,
		rec.CompileDate, rec.LastAnalyDate, rec.SampleAlarmDetail, []byte(rec.Data),
	).Scan(&rec.ID, &rec.CreatedAt)
}

// GetMaliciousSample retrieves a raw malicious sample alert by ID.
func (s *Store) GetMaliciousSample(ctx context.Context, id uuid.UUID) (*types.MaliciousSampleRecord, error) {
	rec, err := scanMaliciousSample(s.pool.QueryRow(ctx,
		`SELECT `+maliciousSampleColumns+` FROM malicious_sample_alerts WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListMaliciousSamples returns a page of raw malicious sample alerts,
// newest first, with the unpaged total.
func (s *Store) ListMaliciousSamples(ctx context.Context, limit, offset int) ([]*types.MaliciousSampleRecord, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM malicious_sample_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+maliciousSampleColumns+`
		FROM malicious_sample_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.MaliciousSampleRecord
	for rows.Next() {
		rec, err := scanMaliciousSample(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// =============================================================================
// RAW HOST BEHAVIOR ALERTS
// =============================================================================

const hostBehaviorColumns = `id, alarm_id, alarm_date, alarm_severity, alarm_name,
	alarm_description, alarm_type, alarm_subtype, source, control_rule_id,
	control_task_id, procedure_technique_id, session_id, ip_version, src_ip,
	src_port, dst_ip, dst_port, protocol, terminal_id, source_file_path,
	host_name, terminal_ip, user_account, terminal_os, dst_process_md5,
	dst_process_path, dst_process_cli, src_process_md5, src_process_path,
	src_process_cli, register_key_name, register_key_value, register_path,
	file_name, file_md5, file_path, data, created_at`

func scanHostBehavior(row pgx.Row) (*types.HostBehaviorRecord, error) {
	var rec types.HostBehaviorRecord
	var ptJSON, data []byte
	err := row.Scan(
		&rec.ID, &rec.AlarmID, &rec.AlarmDate, &rec.AlarmSeverity, &rec.AlarmName,
		&rec.AlarmDescription, &rec.AlarmType, &rec.AlarmSubtype, &rec.Source, &rec.ControlRuleID,
		&rec.ControlTaskID, &ptJSON, &rec.SessionID, &rec.IPVersion, &rec.SrcIP,
		&rec.SrcPort, &rec.DstIP, &rec.DstPort, &rec.Protocol, &rec.TerminalID, &rec.SourceFilePath,
		&rec.HostName, &rec.TerminalIP, &rec.UserAccount, &rec.TerminalOS, &rec.DstProcessMD5,
		&rec.DstProcessPath, &rec.DstProcessCli, &rec.SrcProcessMD5, &rec.SrcProcessPath,
		&rec.SrcProcessCli, &rec.RegisterKeyName, &rec.RegisterKeyValue, &rec.RegisterPath,
		&rec.FileName, &rec.FileMD5, &rec.FilePath, &data, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ptJSON != nil {
		json.Unmarshal(ptJSON, &rec.ProcedureTechniqueID)
	}
	rec.Data = data
	return &rec, nil
}

// InsertHostBehavior stores a raw host behavior alert and fills the
// record's ID and CreatedAt from the inserted row.
func (s *Store) InsertHostBehavior(ctx context.Context, rec *types.HostBehaviorRecord) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO host_behavior_alerts (
			alarm_id, alarm_date, alarm_severity, alarm_name, alarm_description,
			alarm_type, alarm_subtype, source, control_rule_id, control_task_id,
			procedure_technique_id, session_id, ip_version, src_ip, src_port,
			dst_ip, dst_port, protocol, terminal_id, source_file_path,
			host_name, terminal_ip, user_account, terminal_os, dst_process_md5,
			dst_process_path, dst_process_cli, src_process_md5, src_process_path,
			src_process_cli, register_key_name, register_key_value, register_path,
			file_name, file_md5, file_path, data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34, $35, $36, $37)
		RETURNING id, created_at
	`,
		rec.AlarmID, rec.AlarmDate, rec.AlarmSeverity, rec.AlarmName, rec.AlarmDescription,
		rec.AlarmType, rec.AlarmSubtype, rec.Source, rec.ControlRuleID, rec.ControlTaskID,
		marshalJSONB(rec.ProcedureTechniqueID), rec.SessionID, rec.IPVersion, rec.SrcIP, rec.SrcPort,
		rec.DstIP, rec.DstPort, rec.Protocol, rec.TerminalID, rec.SourceFilePath,
		rec.HostName, rec.TerminalIP, rec.UserAccount, rec.TerminalOS, rec.DstProcessMD5,
		rec.DstProcessPath, rec.DstProcessCli, rec.SrcProcessMD5, rec.SrcProcessPath,
		rec.SrcProcessCli, rec.RegisterKeyName, rec.RegisterKeyValue, rec.RegisterPath,
		rec.FileName, rec.FileMD5, rec.FilePath, []byte(rec.Data),
	).Scan(&rec.ID, &rec.CreatedAt)
}

// GetHostBehavior retrieves a raw host behavior alert by ID.
func (s *Store) GetHostBehavior(ctx context.Context, id uuid.UUID) (*types.HostBehaviorRecord, error) {
	rec, err := scanHostBehavior(s.pool.QueryRow(ctx,
		`SELECT `+hostBehaviorColumns+` FROM host_behavior_alerts WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListHostBehaviors returns a page of raw host behavior alerts, newest
// first, with the unpaged total.
func (s *Store) ListHostBehaviors(ctx context.Context, limit, offset int) ([]*types.HostBehaviorRecord, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM host_behavior_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+hostBehaviorColumns+`
		FROM host_behavior_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.HostBehaviorRecord
	for rows.Next() {
		rec, err := scanHostBehavior(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// =============================================================================
// INVALID ALERTS (dead letter)
// =============================================================================

// InsertInvalidAlert dead-letters a message. The data column is JSONB, so
// payloads that are not valid JSON are stored as a JSON string.
func (s *Store) InsertInvalidAlert(ctx context.Context, data []byte, alertType, errMsg string) error {
	if !json.Valid(data) {
		data, _ = json.Marshal(string(data))
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invalid_alerts (data, alert_type, error)
		VALUES ($1, $2, $3)
	`, data, alertType, errMsg)
	return err
}

// ListInvalidAlerts returns a page of dead-lettered messages, newest first,
// with the unpaged total.
func (s *Store) ListInvalidAlerts(ctx context.Context, limit, offset int) ([]*types.InvalidAlertRecord, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invalid_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, data, alert_type, error, created_at
		FROM invalid_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.InvalidAlertRecord
	for rows.Next() {
		var rec types.InvalidAlertRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &data, &rec.AlertType, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		rec.Data = data
		items = append(items, &rec)
	}
	return items, total, rows.Err()
}
