// Package testutil provides testing utilities and fixtures shared by the
// package tests.
//
// This package contains:
//   - Test helper functions (loggers, JSON encoding)
//   - Fixture factories for inbound alert messages and stored records
//
// # Usage
//
// Fixtures use functional options for customization:
//
//	msg := testutil.FixtureNetworkAttackMessage()
//	msg := testutil.FixtureNetworkAttackMessage(func(m map[string]any) {
//		m["src_ip"] = "10.9.8.7"
//		delete(m, "alarm_subtype")
//	})
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/pkg/types"
)

// NewTestLogger returns a logger that discards all output.
// Use for tests where logging output is not needed.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewVerboseTestLogger returns a debug-level logger writing to stderr.
// Use for debugging test failures.
func NewVerboseTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// =============================================================================
// INBOUND MESSAGE FIXTURES
// =============================================================================

// FixtureNetworkAttackMessage creates a decoded network attack message with
// sensible defaults. Use overrides to customize or delete keys.
func FixtureNetworkAttackMessage(overrides ...func(map[string]any)) map[string]any {
	msg := map[string]any{
		"alarm_id":          uuid.New().String(),
		"alarm_date":        float64(1735689600000),
		"alarm_severity":    float64(3),
		"alarm_name":        "SQL注入攻击",
		"alarm_description": "检测到针对Web服务器的SQL注入尝试",
		"alarm_type":        float64(1),
		"alarm_subtype":     float64(1001),
		"source":            float64(1),
		"session_id":        "sess-" + uuid.New().String()[:8],
		"ip_version":        float64(4),
		"src_ip":            "203.0.113.7",
		"src_port":          float64(52144),
		"dst_ip":            "192.168.1.20",
		"dst_port":          float64(443),
		"protocol":          "tcp",
		"signature_id":      "SIG-2024-0131",
		"attack_stage":      "exploitation",
	}

	for _, override := range overrides {
		override(msg)
	}

	return msg
}

// FixtureMaliciousSampleMessage creates a decoded malicious sample message
// with both hashes present.
func FixtureMaliciousSampleMessage(overrides ...func(map[string]any)) map[string]any {
	msg := map[string]any{
		"alarm_id":             uuid.New().String(),
		"alarm_date":           float64(1735689600000),
		"alarm_severity":       float64(4),
		"alarm_name":           "木马程序",
		"alarm_description":    "沙箱检测到远控木马样本",
		"alarm_type":           float64(2),
		"alarm_subtype":        float64(2001),
		"source":               float64(2),
		"md5":                  "d41d8cd98f00b204e9800998ecf8427e",
		"sha1":                 "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"sha256":               "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"sample_family":        "Gh0st",
		"sample_original_name": "invoice.exe",
		"file_type":            "PE32",
		"file_size":            float64(482304),
		"target_platform":      "windows",
	}

	for _, override := range overrides {
		override(msg)
	}

	return msg
}

// FixtureHostBehaviorMessage creates a decoded host behavior message.
func FixtureHostBehaviorMessage(overrides ...func(map[string]any)) map[string]any {
	msg := map[string]any{
		"alarm_id":          uuid.New().String(),
		"alarm_date":        float64(1735689600000),
		"alarm_severity":    float64(2),
		"alarm_name":        "可疑进程注入",
		"alarm_description": "检测到进程注入行为",
		"alarm_type":        float64(3),
		"alarm_subtype":     float64(3001),
		"source":            float64(3),
		"host_name":         "WIN-FILESRV01",
		"terminal_ip":       "192.168.1.31",
		"terminal_os":       "Windows Server 2019",
		"user_account":      "SYSTEM",
		"src_process_path":  `C:\Windows\System32\rundll32.exe`,
		"dst_process_path":  `C:\Windows\System32\lsass.exe`,
		"src_process_md5":   "73c519f050c20580f8a62c849b270e25",
	}

	for _, override := range overrides {
		override(msg)
	}

	return msg
}

// =============================================================================
// RECORD FIXTURES
// =============================================================================

// FixtureNetworkAttackRecord creates a stored network attack row.
func FixtureNetworkAttackRecord(overrides ...func(*types.NetworkAttackRecord)) *types.NetworkAttackRecord {
	rec := &types.NetworkAttackRecord{
		ID:            uuid.New(),
		AlarmID:       Ptr(uuid.New().String()),
		AlarmDate:     Ptr(int64(1735689600000)),
		AlarmSeverity: Ptr(int16(3)),
		AlarmName:     Ptr("SQL注入攻击"),
		AlarmType:     1,
		AlarmSubtype:  1001,
		Source:        1,
		IPVersion:     Ptr(int16(4)),
		SrcIP:         Ptr("203.0.113.7"),
		SrcPort:       Ptr(int32(52144)),
		DstIP:         Ptr("192.168.1.20"),
		DstPort:       Ptr(int32(443)),
		Protocol:      Ptr("tcp"),
		CreatedAt:     time.Now().UTC(),
	}

	for _, override := range overrides {
		override(rec)
	}

	return rec
}

// FixtureMaliciousSampleRecord creates a stored malicious sample row.
func FixtureMaliciousSampleRecord(overrides ...func(*types.MaliciousSampleRecord)) *types.MaliciousSampleRecord {
	rec := &types.MaliciousSampleRecord{
		ID:            uuid.New(),
		AlarmID:       Ptr(uuid.New().String()),
		AlarmDate:     Ptr(int64(1735689600000)),
		AlarmSeverity: Ptr(int16(4)),
		AlarmName:     Ptr("木马程序"),
		AlarmType:     2,
		AlarmSubtype:  2001,
		Source:        2,
		MD5:           Ptr("d41d8cd98f00b204e9800998ecf8427e"),
		SHA256:        Ptr("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		SampleFamily:  Ptr("Gh0st"),
		FileType:      Ptr("PE32"),
		FileSize:      Ptr(int64(482304)),
		CreatedAt:     time.Now().UTC(),
	}

	for _, override := range overrides {
		override(rec)
	}

	return rec
}

// FixtureHostBehaviorRecord creates a stored host behavior row.
func FixtureHostBehaviorRecord(overrides ...func(*types.HostBehaviorRecord)) *types.HostBehaviorRecord {
	rec := &types.HostBehaviorRecord{
		ID:             uuid.New(),
		AlarmID:        Ptr(uuid.New().String()),
		AlarmDate:      Ptr(int64(1735689600000)),
		AlarmSeverity:  Ptr(int16(2)),
		AlarmName:      Ptr("可疑进程注入"),
		AlarmType:      3,
		AlarmSubtype:   3001,
		Source:         3,
		HostName:       Ptr("WIN-FILESRV01"),
		TerminalIP:     Ptr("192.168.1.31"),
		TerminalOS:     Ptr("Windows Server 2019"),
		SrcProcessPath: Ptr(`C:\Windows\System32\rundll32.exe`),
		DstProcessPath: Ptr(`C:\Windows\System32\lsass.exe`),
		CreatedAt:      time.Now().UTC(),
	}

	for _, override := range overrides {
		override(rec)
	}

	return rec
}

// FixtureConvergedNetworkAttack creates a converged network attack row.
func FixtureConvergedNetworkAttack(overrides ...func(*types.ConvergedNetworkAttack)) *types.ConvergedNetworkAttack {
	rec := &types.ConvergedNetworkAttack{
		NetworkAttackRecord: *FixtureNetworkAttackRecord(),
		ConvergenceCount:    1,
	}

	for _, override := range overrides {
		override(rec)
	}

	return rec
}

// FixtureConvergedMaliciousSample creates a converged malicious sample row.
func FixtureConvergedMaliciousSample(overrides ...func(*types.ConvergedMaliciousSample)) *types.ConvergedMaliciousSample {
	rec := &types.ConvergedMaliciousSample{
		MaliciousSampleRecord: *FixtureMaliciousSampleRecord(),
		ConvergenceCount:      1,
	}

	for _, override := range overrides {
		override(rec)
	}

	return rec
}

// FixtureConvergedHostBehavior creates a converged host behavior row.
func FixtureConvergedHostBehavior(overrides ...func(*types.ConvergedHostBehavior)) *types.ConvergedHostBehavior {
	rec := &types.ConvergedHostBehavior{
		HostBehaviorRecord: *FixtureHostBehaviorRecord(),
		ConvergenceCount:   1,
	}

	for _, override := range overrides {
		override(rec)
	}

	return rec
}

// =============================================================================
// DICTIONARY FIXTURES
// =============================================================================

// FixtureTag creates a tag with sensible defaults.
func FixtureTag(overrides ...func(*types.Tag)) *types.Tag {
	tag := &types.Tag{
		ID:        uuid.New(),
		Name:      "木马",
		Category:  "恶意行为",
		Color:     "#e74c3c",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(tag)
	}

	return tag
}

// FixturePushConfig creates an enabled push configuration.
func FixturePushConfig(overrides ...func(*types.PushConfig)) *types.PushConfig {
	cfg := &types.PushConfig{
		ID:              1,
		Name:            "默认配置",
		Enabled:         true,
		WindowMinutes:   5,
		IntervalSeconds: 60,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	for _, override := range overrides {
		override(cfg)
	}

	return cfg
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Ptr returns a pointer to the given value.
// Useful for setting optional fields in fixtures.
func Ptr[T any](v T) *T {
	return &v
}

// MustJSON marshals v, panicking on failure. Fixture maps are always
// JSON-safe, so a failure is a test bug.
func MustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal fixture: %v", err))
	}
	return data
}
