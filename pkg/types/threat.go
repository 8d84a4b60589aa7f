// Package types - Threat events
package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ThreatEvent is an analyst-curated incident record assembled from converged
// alerts. The asset and indicator columns are free-form JSON because
// upstream exchanges disagree on their shapes; this service stores and
// serves them without interpretation.
type ThreatEvent struct {
	ID                uuid.UUID  `json:"id"`
	EventID           *int64     `json:"event_id,omitempty"`
	SystemCode        *string    `json:"system_code,omitempty"`
	Name              *string    `json:"name,omitempty"`
	Description       *string    `json:"description,omitempty"`
	EventType         *string    `json:"event_type,omitempty"`
	Attacker          *string    `json:"attacker,omitempty"`
	Victimer          *string    `json:"victimer,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	FoundTime         *time.Time `json:"found_time,omitempty"`
	Source            *string    `json:"source,omitempty"`
	MitreTechniqueID  *string    `json:"mitre_technique_id,omitempty"`
	AttsckList        *string    `json:"attsck_list,omitempty"`
	AttackTool        *string    `json:"attack_tool,omitempty"`
	FirstFoundTime    *time.Time `json:"first_found_time,omitempty"`
	Priority          *string    `json:"priority,omitempty"`
	Severity          *string    `json:"severity,omitempty"`
	DisposeStatus     *string    `json:"dispose_status,omitempty"`
	App               *string    `json:"app,omitempty"`
	ImpactAssessment  *string    `json:"impact_assessment,omitempty"`

	MergeAlerts               json.RawMessage `json:"merge_alerts,omitempty"`
	ThreatActor               json.RawMessage `json:"threat_actor,omitempty"`
	Org                       json.RawMessage `json:"org,omitempty"`
	AttackAssetIP             json.RawMessage `json:"attack_asset_ip,omitempty"`
	VictimAssetIP             json.RawMessage `json:"victim_asset_ip,omitempty"`
	AttackAssetIPPort         json.RawMessage `json:"attack_asset_ip_port,omitempty"`
	VictimAssetIPPort         json.RawMessage `json:"victim_asset_ip_port,omitempty"`
	AttackAssetDomain         json.RawMessage `json:"attack_asset_domain,omitempty"`
	VictimAssetDomain         json.RawMessage `json:"victim_asset_domain,omitempty"`
	AttackURL                 json.RawMessage `json:"attack_url,omitempty"`
	VictimURL                 json.RawMessage `json:"victim_url,omitempty"`
	AttackMalware             json.RawMessage `json:"attack_malware,omitempty"`
	AttackMalwareSample       json.RawMessage `json:"attack_malware_sample,omitempty"`
	AttackMalwareSampleFamily json.RawMessage `json:"attack_malware_sample_family,omitempty"`
	AttackEmailAddress        json.RawMessage `json:"attack_email_address,omitempty"`
	VictimEmailAddress        json.RawMessage `json:"victim_email_address,omitempty"`
	AttackEmail               json.RawMessage `json:"attack_email,omitempty"`
	VictimEmail               json.RawMessage `json:"victim_email,omitempty"`
	AttackSoftware            json.RawMessage `json:"attack_software,omitempty"`
	VictimSoftware            json.RawMessage `json:"victim_software,omitempty"`
	AttackVulnerability       json.RawMessage `json:"attack_vulnerability,omitempty"`
	AttackCertificate         json.RawMessage `json:"attack_certificate,omitempty"`
	VictimCertificate         json.RawMessage `json:"victim_certificate,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
