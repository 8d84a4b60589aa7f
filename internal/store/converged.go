package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillsec/alertconv/pkg/types"
)

// ConvergeResult reports what a converge call did: IsNew means a converged
// row was created, otherwise an existing row's count was incremented to
// Count.
type ConvergeResult struct {
	ConvergedID uuid.UUID
	IsNew       bool
	Count       int32
}

// =============================================================================
// IDENTITY KEYS
// =============================================================================

// Identity keys feed the striped converge lock. NULL and empty string are
// distinct identities, so nil pointers get a marker no real value can
// collide with.

const nilKey = "\x00nil"

func strKey(p *string) string {
	if p == nil {
		return nilKey
	}
	return *p
}

func int32Key(p *int32) string {
	if p == nil {
		return nilKey
	}
	return strconv.FormatInt(int64(*p), 10)
}

func networkAttackIdentityKey(rec *types.NetworkAttackRecord) string {
	return strings.Join([]string{"na",
		strKey(rec.SrcIP), int32Key(rec.SrcPort),
		strKey(rec.DstIP), int32Key(rec.DstPort),
		strKey(rec.Protocol),
	}, "\x1f")
}

// maliciousSampleIdentityKeys returns the lock keys for a sample: one per
// hash it carries, so a both-hash arrival serializes against a concurrent
// md5-only sibling too. A sample with no hash has no keys and always
// inserts fresh.
func maliciousSampleIdentityKeys(rec *types.MaliciousSampleRecord) []string {
	var keys []string
	if rec.SHA256 != nil {
		keys = append(keys, "ms\x1fsha256\x1f"+*rec.SHA256)
	}
	if rec.MD5 != nil {
		keys = append(keys, "ms\x1fmd5\x1f"+*rec.MD5)
	}
	return keys
}

func hostBehaviorIdentityKey(rec *types.HostBehaviorRecord) string {
	return strings.Join([]string{"hb",
		strKey(rec.HostName), strKey(rec.TerminalIP),
		strKey(rec.DstProcessPath), strKey(rec.SrcProcessPath),
	}, "\x1f")
}

// =============================================================================
// CONVERGED NETWORK ATTACK
// =============================================================================

const convergedNetworkAttackColumns = `id, alarm_id, alarm_date, alarm_severity, alarm_name,
	alarm_description, alarm_type, alarm_subtype, source, control_rule_id,
	control_task_id, procedure_technique_id, session_id, ip_version, src_ip,
	src_port, dst_ip, dst_port, protocol, terminal_id, source_file_path,
	signature_id, attack_payload, attack_stage, attack_ip, attacked_ip,
	apt_group, vul_type, cve_id, vul_desc, data, convergence_count, created_at`

func scanConvergedNetworkAttack(row pgx.Row) (*types.ConvergedNetworkAttack, error) {
	var rec types.ConvergedNetworkAttack
	var ptJSON, data []byte
	err := row.Scan(
		&rec.ID, &rec.AlarmID, &rec.AlarmDate, &rec.AlarmSeverity, &rec.AlarmName,
		&rec.AlarmDescription, &rec.AlarmType, &rec.AlarmSubtype, &rec.Source, &rec.ControlRuleID,
		&rec.ControlTaskID, &ptJSON, &rec.SessionID, &rec.IPVersion, &rec.SrcIP,
		&rec.SrcPort, &rec.DstIP, &rec.DstPort, &rec.Protocol, &rec.TerminalID, &rec.SourceFilePath,
		&rec.SignatureID, &rec.AttackPayload, &rec.AttackStage, &rec.AttackIP, &rec.AttackedIP,
		&rec.APTGroup, &rec.VulType, &rec.CVEID, &rec.VulDesc, &data, &rec.ConvergenceCount, &rec.CreatedAt,
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

// ConvergeNetworkAttack folds a stored raw alert into its converged
// identity (the NULL-safe five-tuple). The find-or-insert, the count
// increment, the lineage row, and the tag attachments commit in one
// transaction; the identity lock keeps concurrent workers from double
// inserting.
func (s *Store) ConvergeNetworkAttack(ctx context.Context, rec *types.NetworkAttackRecord, tagIDs []uuid.UUID) (*ConvergeResult, error) {
	mu := s.lockIdentity(networkAttackIdentityKey(rec))
	defer mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := &ConvergeResult{}
	err = tx.QueryRow(ctx, `
		SELECT id FROM converged_network_attack_alerts
		WHERE src_ip IS NOT DISTINCT FROM $1
		  AND src_port IS NOT DISTINCT FROM $2
		  AND dst_ip IS NOT DISTINCT FROM $3
		  AND dst_port IS NOT DISTINCT FROM $4
		  AND protocol IS NOT DISTINCT FROM $5
		LIMIT 1
	`, rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, rec.Protocol).Scan(&res.ConvergedID)

	switch err {
	case nil:
		if err := tx.QueryRow(ctx, `
			UPDATE converged_network_attack_alerts
			SET convergence_count = convergence_count + 1
			WHERE id = $1
			RETURNING convergence_count
		`, res.ConvergedID).Scan(&res.Count); err != nil {
			return nil, err
		}
	case pgx.ErrNoRows:
		res.IsNew = true
		res.Count = 1
		if err := tx.QueryRow(ctx, `
			INSERT INTO converged_network_attack_alerts (
				alarm_id, alarm_date, alarm_severity, alarm_name, alarm_description,
				alarm_type, alarm_subtype, source, control_rule_id, control_task_id,
				procedure_technique_id, session_id, ip_version, src_ip, src_port,
				dst_ip, dst_port, protocol, terminal_id, source_file_path,
				signature_id, attack_payload, attack_stage, attack_ip, attacked_ip,
				apt_group, vul_type, cve_id, vul_desc, data, convergence_count
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, 1)
			RETURNING id
		`,
			rec.AlarmID, rec.AlarmDate, rec.AlarmSeverity, rec.AlarmName, rec.AlarmDescription,
			rec.AlarmType, rec.AlarmSubtype, rec.Source, rec.ControlRuleID, rec.ControlTaskID,
			marshalJSONB(rec.ProcedureTechniqueID), rec.SessionID, rec.IPVersion, rec.SrcIP, rec.SrcPort,
			rec.DstIP, rec.DstPort, rec.Protocol, rec.TerminalID, rec.SourceFilePath,
			rec.SignatureID, rec.AttackPayload, rec.AttackStage, rec.AttackIP, rec.AttackedIP,
			rec.APTGroup, rec.VulType, rec.CVEID, rec.VulDesc, []byte(rec.Data),
		).Scan(&res.ConvergedID); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.finishConvergeTx(ctx, tx, rec.ID, res.ConvergedID, types.FamilyNetworkAttack, tagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// GetConvergedNetworkAttack retrieves a converged network attack by ID.
func (s *Store) GetConvergedNetworkAttack(ctx context.Context, id uuid.UUID) (*types.ConvergedNetworkAttack, error) {
	rec, err := scanConvergedNetworkAttack(s.pool.QueryRow(ctx,
		`SELECT `+convergedNetworkAttackColumns+` FROM converged_network_attack_alerts WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListConvergedNetworkAttacks returns a page of converged network attacks,
// newest first, with the unpaged total.
func (s *Store) ListConvergedNetworkAttacks(ctx context.Context, limit, offset int) ([]*types.ConvergedNetworkAttack, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM converged_network_attack_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+convergedNetworkAttackColumns+`
		FROM converged_network_attack_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.ConvergedNetworkAttack
	for rows.Next() {
		rec, err := scanConvergedNetworkAttack(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// ListUnpublishedNetworkAttacks returns converged network attacks created
// at or after since that have no push log row, oldest first.
func (s *Store) ListUnpublishedNetworkAttacks(ctx context.Context, since time.Time) ([]*types.ConvergedNetworkAttack, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(convergedNetworkAttackColumns, "t1")+`
		FROM converged_network_attack_alerts t1
		LEFT JOIN converged_push_logs t2 ON t1.id = t2.converged_id
		WHERE t1.created_at >= $1 AND t2.converged_id IS NULL
		ORDER BY t1.created_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.ConvergedNetworkAttack
	for rows.Next() {
		rec, err := scanConvergedNetworkAttack(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// ListRawNetworkAttacksByConvergedID returns the raw alerts folded into a
// converged record, in arrival order.
func (s *Store) ListRawNetworkAttacksByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.NetworkAttackRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(networkAttackColumns, "r")+`
		FROM network_attack_alerts r
		JOIN alert_convergence_mapping m ON m.raw_alert_id = r.id
		WHERE m.converged_alert_id = $1 AND m.alert_type = $2
		ORDER BY r.created_at ASC
	`, convergedID, int16(types.FamilyNetworkAttack))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.NetworkAttackRecord
	for rows.Next() {
		rec, err := scanNetworkAttack(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// =============================================================================
// CONVERGED MALICIOUS SAMPLE
// =============================================================================

const convergedMaliciousSampleColumns = `id, alarm_id, alarm_date, alarm_severity, alarm_name,
	alarm_description, alarm_type, alarm_subtype, source, control_rule_id,
	control_task_id, procedure_technique_id, session_id, ip_version, src_ip,
	src_port, dst_ip, dst_port, protocol, terminal_id, source_file_path,
	sample_source, md5, sha1, sha256, sha512, ssdeep, sample_original_name,
	sample_description, sample_family, apt_group, sample_alarm_engine,
	target_platform, file_type, file_size, language, rule, target_content,
	compile_date, last_analy_date, sample_alarm_detail, data,
	convergence_count, created_at`

func scanConvergedMaliciousSample(row pgx.Row) (*types.ConvergedMaliciousSample, error) {
	var rec types.ConvergedMaliciousSample
	var ptJSON, engineJSON, data []byte
	err := row.Scan(
		&rec.ID, &rec.AlarmID, &rec.AlarmDate, &rec.AlarmSeverity, &rec.AlarmName,
		&rec.AlarmDescription, &rec.AlarmType, &rec.AlarmSubtype, &rec.Source, &rec.ControlRuleID,
		&rec.ControlTaskID, &ptJSON, &rec.SessionID, &rec.IPVersion, &rec.SrcIP,
		&rec.SrcPort, &rec.DstIP, &rec.DstPort, &rec.Protocol, &rec.TerminalID, &rec.SourceFilePath,
		&rec.SampleSource, &rec.MD5, &rec.SHA1, &rec.SHA256, &rec.SHA512, &rec.SSDeep, &rec.SampleOriginalName,
		&rec.SampleDescription, &rec.SampleFamily, &rec.APTGroup, &engineJSON,
		&rec.TargetPlatform, &rec.FileType, &rec.FileSize, &rec.Language, &rec.Rule, &rec.TargetContent,
		&rec.CompileDate, &rec.LastAnalyDate, &rec.SampleAlarmDetail, &data,
		&rec.ConvergenceCount, &rec.CreatedAt,
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

// ConvergeMaliciousSample folds a stored raw sample alert into its
// converged identity. The probe prefers sha256 and falls through to md5,
// so a sample carrying both hashes can still merge with a row first seen
// with only an md5. A sample with neither hash always inserts fresh.
func (s *Store) ConvergeMaliciousSample(ctx context.Context, rec *types.MaliciousSampleRecord, tagIDs []uuid.UUID) (*ConvergeResult, error) {
	if keys := maliciousSampleIdentityKeys(rec); len(keys) > 0 {
		defer s.lockIdentities(keys...)()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := &ConvergeResult{}
	err = pgx.ErrNoRows
	if rec.SHA256 != nil {
		err = tx.QueryRow(ctx, `
			SELECT id FROM converged_malicious_sample_alerts
			WHERE sha256 = $1
			LIMIT 1
		`, *rec.SHA256).Scan(&res.ConvergedID)
		if err != nil && err != pgx.ErrNoRows {
			return nil, err
		}
	}
	if err == pgx.ErrNoRows && rec.MD5 != nil {
		err = tx.QueryRow(ctx, `
			SELECT id FROM converged_malicious_sample_alerts
			WHERE md5 = $1
			LIMIT 1
		`, *rec.MD5).Scan(&res.ConvergedID)
		if err != nil && err != pgx.ErrNoRows {
			return nil, err
		}
	}

	switch err {
	case nil:
		if err := tx.QueryRow(ctx, `
			UPDATE converged_malicious_sample_alerts
			SET convergence_count = convergence_count + 1
			WHERE id = $1
			RETURNING convergence_count
		`, res.ConvergedID).Scan(&res.Count); err != nil {
			return nil, err
		}
	case pgx.ErrNoRows:
		res.IsNew = true
		res.Count = 1
		if err := tx.QueryRow(ctx, `
			INSERT INTO converged_malicious_sample_alerts (
				alarm_id, alarm_date, alarm_severity, alarm_name, alarm_description,
				alarm_type, alarm_subtype, source, control_rule_id, control_task_id,
				procedure_technique_id, session_id, ip_version, src_ip, src_port,
				dst_ip, dst_port, protocol, terminal_id, source_file_path,
				sample_source, md5, sha1, sha256, sha512, ssdeep, sample_original_name,
				sample_description, sample_family, apt_group, sample_alarm_engine,
				target_platform, file_type, file_size, language, rule, target_content,
				compile_date, last_analy_date, sample_alarm_detail, data, convergence_count
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
				$30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, 1)
			RETURNING id
		`,
			rec.AlarmID, rec.AlarmDate, rec.AlarmSeverity, rec.AlarmName, rec.AlarmDescription,
			rec.AlarmType, rec.AlarmSubtype, rec.Source, rec.ControlRuleID, rec.ControlTaskID,
			marshalJSONB(rec.ProcedureTechniqueID), rec.SessionID, rec.IPVersion, rec.SrcIP, rec.SrcPort,
			rec.DstIP, rec.DstPort, rec.Protocol, rec.TerminalID, rec.SourceFilePath,
			rec.SampleSource, rec.MD5, rec.SHA1, rec.SHA256, rec.SHA512, rec.SSDeep, rec.SampleOriginalName,
			rec.SampleDescription, rec.SampleFamily, rec.APTGroup, marshalJSONB(rec.SampleAlarmEngine),
			rec.TargetPlatform, rec.FileType, rec.FileSize, rec.Language, rec.Rule, rec.TargetContent,
			rec.CompileDate, rec.LastAnalyDate, rec.SampleAlarmDetail, []byte(rec.Data),
		).Scan(&res.ConvergedID); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.finishConvergeTx(ctx, tx, rec.ID, res.ConvergedID, types.FamilyMaliciousSample, tagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// GetConvergedMaliciousSample retrieves a converged malicious sample by ID.
func (s *Store) GetConvergedMaliciousSample(ctx context.Context, id uuid.UUID) (*types.ConvergedMaliciousSample, error) {
	rec, err := scanConvergedMaliciousSample(s.pool.QueryRow(ctx,
		`SELECT `+convergedMaliciousSampleColumns+` FROM converged_malicious_sample_alerts WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListConvergedMaliciousSamples returns a page of converged malicious
// samples, newest first, with the unpaged total.
func (s *Store) ListConvergedMaliciousSamples(ctx context.Context, limit, offset int) ([]*types.ConvergedMaliciousSample, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM converged_malicious_sample_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+convergedMaliciousSampleColumns+`
		FROM converged_malicious_sample_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.ConvergedMaliciousSample
	for rows.Next() {
		rec, err := scanConvergedMaliciousSample(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// ListUnpublishedMaliciousSamples returns converged malicious samples
// created at or after since that have no push log row, oldest first.
func (s *Store) ListUnpublishedMaliciousSamples(ctx context.Context, since time.Time) ([]*types.ConvergedMaliciousSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(convergedMaliciousSampleColumns, "t1")+`
		FROM converged_malicious_sample_alerts t1
		LEFT JOIN converged_push_logs t2 ON t1.id = t2.converged_id
		WHERE t1.created_at >= $1 AND t2.converged_id IS NULL
		ORDER BY t1.created_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.ConvergedMaliciousSample
	for rows.Next() {
		rec, err := scanConvergedMaliciousSample(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// ListRawMaliciousSamplesByConvergedID returns the raw alerts folded into a
// converged record, in arrival order.
func (s *Store) ListRawMaliciousSamplesByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.MaliciousSampleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(maliciousSampleColumns, "r")+`
		FROM malicious_sample_alerts r
		JOIN alert_convergence_mapping m ON m.raw_alert_id = r.id
		WHERE m.converged_alert_id = $1 AND m.alert_type = $2
		ORDER BY r.created_at ASC
	`, convergedID, int16(types.FamilyMaliciousSample))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.MaliciousSampleRecord
	for rows.Next() {
		rec, err := scanMaliciousSample(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// =============================================================================
// CONVERGED HOST BEHAVIOR
// =============================================================================

const convergedHostBehaviorColumns = `id, alarm_id, alarm_date, alarm_severity, alarm_name,
	alarm_description, alarm_type, alarm_subtype, source, control_rule_id,
	control_task_id, procedure_technique_id, session_id, ip_version, src_ip,
	src_port, dst_ip, dst_port, protocol, terminal_id, source_file_path,
	host_name, terminal_ip, user_account, terminal_os, dst_process_md5,
	dst_process_path, dst_process_cli, src_process_md5, src_process_path,
	src_process_cli, register_key_name, register_key_value, register_path,
	file_name, file_md5, file_path, data, convergence_count, created_at`

func scanConvergedHostBehavior(row pgx.Row) (*types.ConvergedHostBehavior, error) {
	var rec types.ConvergedHostBehavior
	var ptJSON, data []byte
	err := row.Scan(
		&rec.ID, &rec.AlarmID, &rec.AlarmDate, &rec.AlarmSeverity, &rec.AlarmName,
		&rec.AlarmDescription, &rec.AlarmType, &rec.AlarmSubtype, &rec.Source, &rec.ControlRuleID,
		&rec.ControlTaskID, &ptJSON, &rec.SessionID, &rec.IPVersion, &rec.SrcIP,
		&rec.SrcPort, &rec.DstIP, &rec.DstPort, &rec.Protocol, &rec.TerminalID, &rec.SourceFilePath,
		&rec.HostName, &rec.TerminalIP, &rec.UserAccount, &rec.TerminalOS, &rec.DstProcessMD5,
		&rec.DstProcessPath, &rec.DstProcessCli, &rec.SrcProcessMD5, &rec.SrcProcessPath,
		&rec.SrcProcessCli, &rec.RegisterKeyName, &rec.RegisterKeyValue, &rec.RegisterPath,
		&rec.FileName, &rec.FileMD5, &rec.FilePath, &data, &rec.ConvergenceCount, &rec.CreatedAt,
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

// ConvergeHostBehavior folds a stored raw alert into its converged identity
// (the NULL-safe host/terminal/process four-tuple).
func (s *Store) ConvergeHostBehavior(ctx context.Context, rec *types.HostBehaviorRecord, tagIDs []uuid.UUID) (*ConvergeResult, error) {
	mu := s.lockIdentity(hostBehaviorIdentityKey(rec))
	defer mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := &ConvergeResult{}
	err = tx.QueryRow(ctx, `
		SELECT id FROM converged_host_behavior_alerts
		WHERE host_name IS NOT DISTINCT FROM $1
		  AND terminal_ip IS NOT DISTINCT FROM $2
		  AND dst_process_path IS NOT DISTINCT FROM $3
		  AND src_process_path IS NOT DISTINCT FROM $4
		LIMIT 1
	`, rec.HostName, rec.TerminalIP, rec.DstProcessPath, rec.SrcProcessPath).Scan(&res.ConvergedID)

	switch err {
	case nil:
		if err := tx.QueryRow(ctx, `
			UPDATE converged_host_behavior_alerts
			SET convergence_count = convergence_count + 1
			WHERE id = $1
			RETURNING convergence_count
		`, res.ConvergedID).Scan(&res.Count); err != nil {
			return nil, err
		}
	case pgx.ErrNoRows:
		res.IsNew = true
		res.Count = 1
		if err := tx.QueryRow(ctx, `
			INSERT INTO converged_host_behavior_alerts (
				alarm_id, alarm_date, alarm_severity, alarm_name, alarm_description,
				alarm_type, alarm_subtype, source, control_rule_id, control_task_id,
				procedure_technique_id, session_id, ip_version, src_ip, src_port,
				dst_ip, dst_port, protocol, terminal_id, source_file_path,
				host_name, terminal_ip, user_account, terminal_os, dst_process_md5,
				dst_process_path, dst_process_cli, src_process_md5, src_process_path,
				src_process_cli, register_key_name, register_key_value, register_path,
				file_name, file_md5, file_path, data, convergence_count
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
				$30, $31, $32, $33, $34, $35, $36, $37, 1)
			RETURNING id
		`,
			rec.AlarmID, rec.AlarmDate, rec.AlarmSeverity, rec.AlarmName, rec.AlarmDescription,
			rec.AlarmType, rec.AlarmSubtype, rec.Source, rec.ControlRuleID, rec.ControlTaskID,
			marshalJSONB(rec.ProcedureTechniqueID), rec.SessionID, rec.IPVersion, rec.SrcIP, rec.SrcPort,
			rec.DstIP, rec.DstPort, rec.Protocol, rec.TerminalID, rec.SourceFilePath,
			rec.HostName, rec.TerminalIP, rec.UserAccount, rec.TerminalOS, rec.DstProcessMD5,
			rec.DstProcessPath, rec.DstProcessCli, rec.SrcProcessMD5, rec.SrcProcessPath,
			rec.SrcProcessCli, rec.RegisterKeyName, rec.RegisterKeyValue, rec.RegisterPath,
			rec.FileName, rec.FileMD5, rec.FilePath, []byte(rec.Data),
		).Scan(&res.ConvergedID); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.finishConvergeTx(ctx, tx, rec.ID, res.ConvergedID, types.FamilyHostBehavior, tagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// GetConvergedHostBehavior retrieves a converged host behavior by ID.
func (s *Store) GetConvergedHostBehavior(ctx context.Context, id uuid.UUID) (*types.ConvergedHostBehavior, error) {
	rec, err := scanConvergedHostBehavior(s.pool.QueryRow(ctx,
		`SELECT `+convergedHostBehaviorColumns+` FROM converged_host_behavior_alerts WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListConvergedHostBehaviors returns a page of converged host behaviors,
// newest first, with the unpaged total.
func (s *Store) ListConvergedHostBehaviors(ctx context.Context, limit, offset int) ([]*types.ConvergedHostBehavior, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM converged_host_behavior_alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+convergedHostBehaviorColumns+`
		FROM converged_host_behavior_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.ConvergedHostBehavior
	for rows.Next() {
		rec, err := scanConvergedHostBehavior(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// ListUnpublishedHostBehaviors returns converged host behaviors created at
// or after since that have no push log row, oldest first.
func (s *Store) ListUnpublishedHostBehaviors(ctx context.Context, since time.Time) ([]*types.ConvergedHostBehavior, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(convergedHostBehaviorColumns, "t1")+`
		FROM converged_host_behavior_alerts t1
		LEFT JOIN converged_push_logs t2 ON t1.id = t2.converged_id
		WHERE t1.created_at >= $1 AND t2.converged_id IS NULL
		ORDER BY t1.created_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.ConvergedHostBehavior
	for rows.Next() {
		rec, err := scanConvergedHostBehavior(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// ListRawHostBehaviorsByConvergedID returns the raw alerts folded into a
// converged record, in arrival order.
func (s *Store) ListRawHostBehaviorsByConvergedID(ctx context.Context, convergedID uuid.UUID) ([]*types.HostBehaviorRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(hostBehaviorColumns, "r")+`
		FROM host_behavior_alerts r
		JOIN alert_convergence_mapping m ON m.raw_alert_id = r.id
		WHERE m.converged_alert_id = $1 AND m.alert_type = $2
		ORDER BY r.created_at ASC
	`, convergedID, int16(types.FamilyHostBehavior))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.HostBehaviorRecord
	for rows.Next() {
		rec, err := scanHostBehavior(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// =============================================================================
// SHARED CONVERGE TAIL
// =============================================================================

// finishConvergeTx writes the lineage row and attaches matched tags inside
// the converge transaction.
func (s *Store) finishConvergeTx(ctx context.Context, tx pgx.Tx, rawID, convergedID uuid.UUID, family types.AlertFamily, tagIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO alert_convergence_mapping (raw_alert_id, converged_alert_id, alert_type)
		VALUES ($1, $2, $3)
	`, rawID, convergedID, int16(family)); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := attachTagTx(ctx, tx, convergedID, family.String(), tagID); err != nil {
			return err
		}
	}
	return nil
}
