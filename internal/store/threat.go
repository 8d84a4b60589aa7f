package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillsec/alertconv/pkg/types"
)

const threatEventColumns = `id, event_id, system_code, name, description, event_type,
	attacker, victimer, start_time, end_time, found_time, source,
	mitre_technique_id, attsck_list, attack_tool, first_found_time, priority,
	severity, dispose_status, app, impact_assessment, merge_alerts,
	threat_actor, org, attack_asset_ip, victim_asset_ip, attack_asset_ip_port,
	victim_asset_ip_port, attack_asset_domain, victim_asset_domain, attack_url,
	victim_url, attack_malware, attack_malware_sample,
	attack_malware_sample_family, attack_email_address, victim_email_address,
	attack_email, victim_email, attack_software, victim_software,
	attack_vulnerability, attack_certificate, victim_certificate, created_at`

func scanThreatEvent(row pgx.Row) (*types.ThreatEvent, error) {
	var e types.ThreatEvent
	err := row.Scan(
		&e.ID, &e.EventID, &e.SystemCode, &e.Name, &e.Description, &e.EventType,
		&e.Attacker, &e.Victimer, &e.StartTime, &e.EndTime, &e.FoundTime, &e.Source,
		&e.MitreTechniqueID, &e.AttsckList, &e.AttackTool, &e.FirstFoundTime, &e.Priority,
		&e.Severity, &e.DisposeStatus, &e.App, &e.ImpactAssessment, &e.MergeAlerts,
		&e.ThreatActor, &e.Org, &e.AttackAssetIP, &e.VictimAssetIP, &e.AttackAssetIPPort,
		&e.VictimAssetIPPort, &e.AttackAssetDomain, &e.VictimAssetDomain, &e.AttackURL,
		&e.VictimURL, &e.AttackMalware, &e.AttackMalwareSample,
		&e.AttackMalwareSampleFamily, &e.AttackEmailAddress, &e.VictimEmailAddress,
		&e.AttackEmail, &e.VictimEmail, &e.AttackSoftware, &e.VictimSoftware,
		&e.AttackVulnerability, &e.AttackCertificate, &e.VictimCertificate, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func threatEventArgs(e *types.ThreatEvent) []any {
	return []any{
		e.EventID, e.SystemCode, e.Name, e.Description, e.EventType,
		e.Attacker, e.Victimer, e.StartTime, e.EndTime, e.FoundTime, e.Source,
		e.MitreTechniqueID, e.AttsckList, e.AttackTool, e.FirstFoundTime, e.Priority,
		e.Severity, e.DisposeStatus, e.App, e.ImpactAssessment, []byte(e.MergeAlerts),
		[]byte(e.ThreatActor), []byte(e.Org), []byte(e.AttackAssetIP), []byte(e.VictimAssetIP),
		[]byte(e.AttackAssetIPPort), []byte(e.VictimAssetIPPort), []byte(e.AttackAssetDomain),
		[]byte(e.VictimAssetDomain), []byte(e.AttackURL), []byte(e.VictimURL),
		[]byte(e.AttackMalware), []byte(e.AttackMalwareSample), []byte(e.AttackMalwareSampleFamily),
		[]byte(e.AttackEmailAddress), []byte(e.VictimEmailAddress), []byte(e.AttackEmail),
		[]byte(e.VictimEmail), []byte(e.AttackSoftware), []byte(e.VictimSoftware),
		[]byte(e.AttackVulnerability), []byte(e.AttackCertificate), []byte(e.VictimCertificate),
	}
}

// InsertThreatEvent stores a threat event and fills the record's ID and
// CreatedAt.
func (s *Store) InsertThreatEvent(ctx context.Context, e *types.ThreatEvent) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO threat_events (
			event_id, system_code, name, description, event_type,
			attacker, victimer, start_time, end_time, found_time, source,
			mitre_technique_id, attsck_list, attack_tool, first_found_time, priority,
			severity, dispose_status, app, impact_assessment, merge_alerts,
			threat_actor, org, attack_asset_ip, victim_asset_ip, attack_asset_ip_port,
			victim_asset_ip_port, attack_asset_domain, victim_asset_domain, attack_url,
			victim_url, attack_malware, attack_malware_sample,
			attack_malware_sample_family, attack_email_address, victim_email_address,
			attack_email, victim_email, attack_software, victim_software,
			attack_vulnerability, attack_certificate, victim_certificate
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42, $43)
		RETURNING id, created_at
	`, threatEventArgs(e)...).Scan(&e.ID, &e.CreatedAt)
}

// GetThreatEvent retrieves a threat event by ID.
func (s *Store) GetThreatEvent(ctx context.Context, id uuid.UUID) (*types.ThreatEvent, error) {
	e, err := scanThreatEvent(s.pool.QueryRow(ctx,
		`SELECT `+threatEventColumns+` FROM threat_events WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ListThreatEvents returns a page of threat events, newest first, with the
// unpaged total.
func (s *Store) ListThreatEvents(ctx context.Context, limit, offset int) ([]*types.ThreatEvent, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM threat_events`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+threatEventColumns+`
		FROM threat_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.ThreatEvent
	for rows.Next() {
		e, err := scanThreatEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

// UpdateThreatEvent replaces the whole row. Returns nil when the event does
// not exist.
func (s *Store) UpdateThreatEvent(ctx context.Context, e *types.ThreatEvent) (*types.ThreatEvent, error) {
	args := append([]any{e.ID}, threatEventArgs(e)...)
	updated, err := scanThreatEvent(s.pool.QueryRow(ctx, `
		UPDATE threat_events SET
			event_id = $2, system_code = $3, name = $4, description = $5,
			event_type = $6, attacker = $7, victimer = $8, start_time = $9,
			end_time = $10, found_time = $11, source = $12,
			mitre_technique_id = $13, attsck_list = $14, attack_tool = $15,
			first_found_time = $16, priority = $17, severity = $18,
			dispose_status = $19, app = $20, impact_assessment = $21,
			merge_alerts = $22, threat_actor = $23, org = $24,
			attack_asset_ip = $25, victim_asset_ip = $26,
			attack_asset_ip_port = $27, victim_asset_ip_port = $28,
			attack_asset_domain = $29, victim_asset_domain = $30,
			attack_url = $31, victim_url = $32, attack_malware = $33,
			attack_malware_sample = $34, attack_malware_sample_family = $35,
			attack_email_address = $36, victim_email_address = $37,
			attack_email = $38, victim_email = $39, attack_software = $40,
			victim_software = $41, attack_vulnerability = $42,
			attack_certificate = $43, victim_certificate = $44
		WHERE id = $1
		RETURNING `+threatEventColumns,
		args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return updated, err
}
