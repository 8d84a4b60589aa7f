// Package worker - Outbound payload shapes
//
// Downstream consumers receive converged alerts as camelCase documents with
// a fixed key set per family: optional fields marshal as explicit nulls,
// never disappear. The modelType discriminator tells consumers which shape
// they are looking at without inspecting alarmType.
package worker

import (
	"github.com/quillsec/alertconv/pkg/types"
)

// Downstream model discriminators.
const (
	modelTypeNetworkAttack   = "ALM_STR_NA"
	modelTypeMaliciousSample = "ALM_STR_MS"
	modelTypeHostBehavior    = "ALM_CLU_ACT"
)

// OutNetworkAttack is the downstream network attack document.
type OutNetworkAttack struct {
	ModelType            string   `json:"modelType"`
	AlarmID              *string  `json:"alarmId"`
	AlarmDate            *int64   `json:"alarmDate"`
	AlarmSeverity        *int16   `json:"alarmSeverity"`
	AlarmName            *string  `json:"alarmName"`
	AlarmDescription     *string  `json:"alarmDescription"`
	AlarmType            int16    `json:"alarmType"`
	AlarmSubType         int32    `json:"alarmSubType"`
	ControlRuleID        *string  `json:"controlRuleId"`
	ControlTaskID        *string  `json:"controlTaskId"`
	ProcedureTechniqueID []string `json:"procedureTechniqueId"`
	SessionID            *string  `json:"sessionId"`
	IPVersion            *int16   `json:"ipVersion"`
	SrcIP                *string  `json:"srcIp"`
	SrcPort              *int32   `json:"srcPort"`
	DstIP                *string  `json:"dstIp"`
	DstPort              *int32   `json:"dstPort"`
	Protocol             *string  `json:"protocol"`
	TerminalID           *string  `json:"terminalId"`
	SourceFilePath       *string  `json:"sourceFilePath"`
	CreatedAt            int64    `json:"createdAt"`
	UpdatedAt            int64    `json:"updatedAt"`
	SignatureID          *string  `json:"signatureId"`
	AttackPayload        *string  `json:"attackPayload"`
	AttackStage          *string  `json:"attackStage"`
	AttackIP             *string  `json:"attackIp"`
	AttackedIP           *string  `json:"attackedIp"`
	APTGroup             *string  `json:"aptGroup"`
	VulType              *string  `json:"vulType"`
	CVEID                *string  `json:"cveId"`
	VulDesc              *string  `json:"vulDesc"`
}

// OutMaliciousSample is the downstream malicious sample document.
type OutMaliciousSample struct {
	ModelType            string   `json:"modelType"`
	AlarmDate            *int64   `json:"alarmDate"`
	AlarmDescription     *string  `json:"alarmDescription"`
	AlarmID              *string  `json:"alarmId"`
	AlarmName            *string  `json:"alarmName"`
	AlarmSeverity        *int16   `json:"alarmSeverity"`
	AlarmType            int16    `json:"alarmType"`
	AlarmSubType         int32    `json:"alarmSubType"`
	ControlRuleID        *string  `json:"controlRuleId"`
	ControlTaskID        *string  `json:"controlTaskId"`
	ProcedureTechniqueID []string `json:"procedureTechniqueId"`
	SessionID            *string  `json:"sessionId"`
	CreatedAt            int64    `json:"createdAt"`
	DstIP                *string  `json:"dstIp"`
	DstPort              *int32   `json:"dstPort"`
	FileSize             *int64   `json:"fileSize"`
	FileType             *string  `json:"fileType"`
	IPVersion            *int16   `json:"ipVersion"`
	MD5                  *string  `json:"md5"`
	SampleFamily         *string  `json:"sampleFamily"`
	SampleOriginalName   *string  `json:"sampleOriginalName"`
	SampleSource         *int16   `json:"sampleSource"`
	SHA1                 *string  `json:"sha1"`
	SHA256               *string  `json:"sha256"`
	SrcIP                *string  `json:"srcIp"`
	SrcPort              *int32   `json:"srcPort"`
	SSDeep               *string  `json:"ssdeep"`
	TerminalID           *string  `json:"terminalId"`
	APTGroup             *string  `json:"aptGroup"`
	SampleDescription    *string  `json:"sampleDescription"`
	SampleAlarmEngine    []int32  `json:"sampleAlarmEngine"`
	TargetPlatform       *string  `json:"targetPlatform"`
	Language             *string  `json:"language"`
	Rule                 *string  `json:"rule"`
	TargetContent        *string  `json:"targetContent"`
	CompileDate          *int64   `json:"compileDate"`
	LastAnalyDate        *int64   `json:"lastAnalyDate"`
	SampleAlarmDetail    *string  `json:"sampleAlarmDetail"`
	UpdatedAt            int64    `json:"updatedAt"`
}

// OutHostBehavior is the downstream host behavior document.
type OutHostBehavior struct {
	ModelType            string   `json:"modelType"`
	AlarmDate            *int64   `json:"alarmDate"`
	AlarmDescription     *string  `json:"alarmDescription"`
	AlarmID              *string  `json:"alarmId"`
	AlarmName            *string  `json:"alarmName"`
	AlarmSeverity        *int16   `json:"alarmSeverity"`
	AlarmType            int16    `json:"alarmType"`
	AlarmSubType         int32    `json:"alarmSubType"`
	ControlRuleID        *string  `json:"controlRuleId"`
	ControlTaskID        *string  `json:"controlTaskId"`
	ProcedureTechniqueID []string `json:"procedureTechniqueId"`
	SessionID            *string  `json:"sessionId"`
	CreatedAt            int64    `json:"createdAt"`
	DstIP                *string  `json:"dstIp"`
	DstPort              *int32   `json:"dstPort"`
	DstProcessMD5        *string  `json:"dstProcessMd5"`
	FileMD5              *string  `json:"fileMd5"`
	FileName             *string  `json:"fileName"`
	FilePath             *string  `json:"filePath"`
	HostName             *string  `json:"hostName"`
	IPVersion            *int16   `json:"ipVersion"`
	SrcIP                *string  `json:"srcIp"`
	SrcPort              *int32   `json:"srcPort"`
	TerminalIP           *string  `json:"terminalIp"`
	TerminalOS           *string  `json:"terminalOs"`
	DstProcessPath       *string  `json:"dstProcessPath"`
	DstProcessCli        *string  `json:"dstProcessCli"`
	SrcProcessMD5        *string  `json:"srcProcessMd5"`
	SrcProcessPath       *string  `json:"srcProcessPath"`
	SrcProcessCli        *string  `json:"srcProcessCli"`
	RegisterKeyName      *string  `json:"registerKeyName"`
	RegisterKeyValue     *string  `json:"registerKeyValue"`
	RegisterPath         *string  `json:"registerPath"`
	UpdatedAt            int64    `json:"updatedAt"`
	UserAccount          *string  `json:"userAccount"`
}

// networkAttackPayload maps a converged row to its downstream document.
// alarmDate is re-normalized for rows that predate ingest normalization.
func networkAttackPayload(r *types.ConvergedNetworkAttack, now int64) OutNetworkAttack {
	return OutNetworkAttack{
		ModelType:            modelTypeNetworkAttack,
		AlarmID:              r.AlarmID,
		AlarmDate:            types.EnsureMillisPtr(r.AlarmDate),
		AlarmSeverity:        r.AlarmSeverity,
		AlarmName:            r.AlarmName,
		AlarmDescription:     r.AlarmDescription,
		AlarmType:            int16(types.FamilyNetworkAttack),
		AlarmSubType:         r.AlarmSubtype,
		ControlRuleID:        r.ControlRuleID,
		ControlTaskID:        r.ControlTaskID,
		ProcedureTechniqueID: r.ProcedureTechniqueID,
		SessionID:            r.SessionID,
		IPVersion:            r.IPVersion,
		SrcIP:                r.SrcIP,
		SrcPort:              r.SrcPort,
		DstIP:                r.DstIP,
		DstPort:              r.DstPort,
		Protocol:             r.Protocol,
		TerminalID:           r.TerminalID,
		SourceFilePath:       r.SourceFilePath,
		CreatedAt:            r.CreatedAt.UnixMilli(),
		UpdatedAt:            now,
		SignatureID:          r.SignatureID,
		AttackPayload:        r.AttackPayload,
		AttackStage:          r.AttackStage,
		AttackIP:             r.AttackIP,
		AttackedIP:           r.AttackedIP,
		APTGroup:             r.APTGroup,
		VulType:              r.VulType,
		CVEID:                r.CVEID,
		VulDesc:              r.VulDesc,
	}
}

func maliciousSamplePayload(r *types.ConvergedMaliciousSample, now int64) OutMaliciousSample {
	return OutMaliciousSample{
		ModelType:            modelTypeMaliciousSample,
		AlarmDate:            types.EnsureMillisPtr(r.AlarmDate),
		AlarmDescription:     r.AlarmDescription,
		AlarmID:              r.AlarmID,
		AlarmName:            r.AlarmName,
		AlarmSeverity:        r.AlarmSeverity,
		AlarmType:            int16(types.FamilyMaliciousSample),
		AlarmSubType:         r.AlarmSubtype,
		ControlRuleID:        r.ControlRuleID,
		ControlTaskID:        r.ControlTaskID,
		ProcedureTechniqueID: r.ProcedureTechniqueID,
		SessionID:            r.SessionID,
		CreatedAt:            r.CreatedAt.UnixMilli(),
		DstIP:                r.DstIP,
		DstPort:              r.DstPort,
		FileSize:             r.FileSize,
		FileType:             r.FileType,
		IPVersion:            r.IPVersion,
		MD5:                  r.MD5,
		SampleFamily:         r.SampleFamily,
		SampleOriginalName:   r.SampleOriginalName,
		SampleSource:         r.SampleSource,
		SHA1:                 r.SHA1,
		SHA256:               r.SHA256,
		SrcIP:                r.SrcIP,
		SrcPort:              r.SrcPort,
		SSDeep:               r.SSDeep,
		TerminalID:           r.TerminalID,
		APTGroup:             r.APTGroup,
		SampleDescription:    r.SampleDescription,
		SampleAlarmEngine:    r.SampleAlarmEngine,
		TargetPlatform:       r.TargetPlatform,
		Language:             r.Language,
		Rule:                 r.Rule,
		TargetContent:        r.TargetContent,
		CompileDate:          types.EnsureMillisPtr(r.CompileDate),
		LastAnalyDate:        types.EnsureMillisPtr(r.LastAnalyDate),
		SampleAlarmDetail:    r.SampleAlarmDetail,
		UpdatedAt:            now,
	}
}

func hostBehaviorPayload(r *types.ConvergedHostBehavior, now int64) OutHostBehavior {
	return OutHostBehavior{
		ModelType:            modelTypeHostBehavior,
		AlarmDate:            types.EnsureMillisPtr(r.AlarmDate),
		AlarmDescription:     r.AlarmDescription,
		AlarmID:              r.AlarmID,
		AlarmName:            r.AlarmName,
		AlarmSeverity:        r.AlarmSeverity,
		AlarmType:            int16(types.FamilyHostBehavior),
		AlarmSubType:         r.AlarmSubtype,
		ControlRuleID:        r.ControlRuleID,
		ControlTaskID:        r.ControlTaskID,
		ProcedureTechniqueID: r.ProcedureTechniqueID,
		SessionID:            r.SessionID,
		CreatedAt:            r.CreatedAt.UnixMilli(),
		DstIP:                r.DstIP,
		DstPort:              r.DstPort,
		DstProcessMD5:        r.DstProcessMD5,
		FileMD5:              r.FileMD5,
		FileName:             r.FileName,
		FilePath:             r.FilePath,
		HostName:             r.HostName,
		IPVersion:            r.IPVersion,
		SrcIP:                r.SrcIP,
		SrcPort:              r.SrcPort,
		TerminalIP:           r.TerminalIP,
		TerminalOS:           r.TerminalOS,
		DstProcessPath:       r.DstProcessPath,
		DstProcessCli:        r.DstProcessCli,
		SrcProcessMD5:        r.SrcProcessMD5,
		SrcProcessPath:       r.SrcProcessPath,
		SrcProcessCli:        r.SrcProcessCli,
		RegisterKeyName:      r.RegisterKeyName,
		RegisterKeyValue:     r.RegisterKeyValue,
		RegisterPath:         r.RegisterPath,
		UpdatedAt:            now,
		UserAccount:          r.UserAccount,
	}
}
