// Package mockgen produces realistic inbound alerts and seed rows for
// demos and end-to-end testing.
//
// The Generator emits decoded alert messages (the same JSON documents the
// collectors publish to the inbound streams) built from small template
// pools: named attack scenarios, malware families, host behaviors, MITRE
// technique IDs, and address pools. Seed data for the tag dictionary,
// rule tables, and threat events lives in seeds.go.
package mockgen

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/quillsec/alertconv/pkg/types"
)

// Generator produces inbound alert messages. Not safe for concurrent use;
// give each goroutine its own Generator.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator. The seed makes runs reproducible; pass
// time.Now().UnixNano() when that does not matter.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// ByFamily dispatches to the family's generator.
func (g *Generator) ByFamily(family types.AlertFamily) map[string]any {
	switch family {
	case types.FamilyNetworkAttack:
		return g.NetworkAttack()
	case types.FamilyMaliciousSample:
		return g.MaliciousSample()
	default:
		return g.HostBehavior()
	}
}

// =============================================================================
// TEMPLATE POOLS
// =============================================================================

type networkAttackTemplate struct {
	name     string
	desc     string
	aptGroup string
	subtype  int32
}

var networkAttackTemplates = []networkAttackTemplate{
	{
		name:     "APT组织Lazarus后门通信检测",
		desc:     "检测到终端与已知APT组织Lazarus的C2服务器进行加密通信，存在数据泄露风险",
		aptGroup: "Lazarus Group",
		subtype:  1004,
	},
	{
		name:    "SQL注入漏洞利用尝试",
		desc:    "检测到针对Web应用程序的SQL注入攻击尝试，攻击者试图获取数据库信息",
		subtype: 1003,
	},
	{
		name:    "端口扫描探测行为",
		desc:    "检测到大规模端口扫描行为，可能是攻击者进行网络侦察",
		subtype: 1001,
	},
	{
		name:    "DDoS拒绝服务攻击",
		desc:    "检测到大量异常流量，目标系统面临拒绝服务攻击",
		subtype: 1006,
	},
	{
		name:    "Web Shell后门检测",
		desc:    "检测到可疑的Web Shell访问行为，服务器可能已被植入后门",
		subtype: 1004,
	},
}

type maliciousSampleTemplate struct {
	name     string
	desc     string
	family   string
	subtype  int32
	typeName string
}

var maliciousSampleTemplates = []maliciousSampleTemplate{
	{
		name:     "Emotet银行木马变种检测",
		desc:     "检测到Emotet银行木马最新变种，该样本具有窃取银行凭证和传播能力",
		family:   "Emotet",
		subtype:  2003,
		typeName: "Trojan",
	},
	{
		name:     "WannaCry勒索软件检测",
		desc:     "发现WannaCry勒索软件样本，该样本会加密系统文件并索要比特币赎金",
		family:   "WannaCry",
		subtype:  2005,
		typeName: "Ransomware",
	},
	{
		name:     "Mirai僵尸网络样本",
		desc:     "检测到Mirai僵尸网络恶意样本，可能用于DDoS攻击",
		family:   "Mirai",
		subtype:  2004,
		typeName: "Botnet",
	},
	{
		name:     "挖矿木马XMRig变种",
		desc:     "发现门罗币挖矿木马XMRig变种，会消耗大量系统资源",
		family:   "XMRig",
		subtype:  2006,
		typeName: "Miner",
	},
	{
		name:     "Cobalt Strike后门",
		desc:     "检测到Cobalt Strike木马样本，常用于APT攻击",
		family:   "CobaltStrike",
		subtype:  2003,
		typeName: "Backdoor",
	},
}

type hostBehaviorTemplate struct {
	name        string
	desc        string
	subtype     int32
	processPath string
	ruleWord    string
}

var hostBehaviorTemplates = []hostBehaviorTemplate{
	{
		name:        "XMRig挖矿进程检测",
		desc:        "检测到主机运行XMRig挖矿程序，占用大量CPU资源进行门罗币挖矿",
		subtype:     3001,
		processPath: "/tmp/.system/xmrig",
		ruleWord:    "MINER",
	},
	{
		name:        "勒索软件文件加密行为",
		desc:        "检测到大量文件被加密并添加.locked扩展名，疑似勒索软件攻击",
		subtype:     3002,
		processPath: `C:\Users\admin\AppData\Roaming\svchost.exe`,
		ruleWord:    "RANSOM",
	},
	{
		name:     "远程桌面暴力破解",
		desc:     "检测到针对RDP服务的大量失败登录尝试",
		subtype:  3004,
		ruleWord: "BRUTE",
	},
	{
		name:        "敏感数据外传",
		desc:        "检测到大量敏感文件被上传到外部服务器",
		subtype:     3008,
		processPath: "/usr/bin/curl",
		ruleWord:    "EXFIL",
	},
	{
		name:        "横向移动攻击",
		desc:        "检测到使用WMI进行横向移动的可疑行为",
		subtype:     3007,
		processPath: `C:\Windows\System32\wbem\wmic.exe`,
		ruleWord:    "LATERAL",
	},
}

var internalIPs = []string{"192.168.1.100", "10.0.1.50", "172.16.0.10", "192.168.2.200"}

var externalIPs = []string{"185.234.218.100", "45.67.89.123", "203.0.113.50", "198.51.100.20"}

var hostNames = []string{"DB-SERVER-01", "WEB-SERVER-02", "FIN-WORKSTATION-10", "DEV-PC-05"}

var hostIPs = []string{"192.168.10.50", "10.0.2.100", "172.16.5.20", "192.168.2.110"}

// =============================================================================
// GENERATORS
// =============================================================================

// NetworkAttack builds one network attack message. SQL injection templates
// carry vulnerability details; APT templates carry the group name.
func (g *Generator) NetworkAttack() map[string]any {
	t := networkAttackTemplates[g.rng.Intn(len(networkAttackTemplates))]
	now := time.Now()
	ts := now.UnixMilli()

	ruleKind := "SEC"
	sigKind := "ATK"
	if t.aptGroup != "" {
		ruleKind = "APT"
		sigKind = "APT"
	}
	dstPort := 443
	if t.subtype == 1003 {
		dstPort = 80
	}

	msg := map[string]any{
		"alarm_id":               g.alarmID("NA", now),
		"alarm_date":             ts,
		"alarm_severity":         g.rng.Intn(3) + 1,
		"alarm_name":             t.name,
		"alarm_description":      t.desc,
		"alarm_type":             1,
		"alarm_subtype":          t.subtype,
		"source":                 g.rng.Intn(4) + 1,
		"control_rule_id":        fmt.Sprintf("RULE-%s-%s-%03d", ruleKind, now.Format("2006"), g.rng.Intn(998)+1),
		"control_task_id":        fmt.Sprintf("TASK-SEC-%s-%03d", now.Format("2006"), g.rng.Intn(899)+100),
		"procedure_technique_id": []string{"T1071.001", "T1573.001"},
		"session_id":             fmt.Sprintf("SESSION-%s-%06d", now.Format("20060102"), g.rng.Intn(999999)),
		"ip_version":             4,
		"src_ip":                 g.pick(internalIPs),
		"src_port":               g.rng.Intn(30000) + 30000,
		"dst_ip":                 g.pick(externalIPs),
		"dst_port":               dstPort,
		"protocol":               "HTTPS",
		"terminal_id":            fmt.Sprintf("TERM-OFFICE-PC-%03d", g.rng.Intn(98)+1),
		"source_file_path":       fmt.Sprintf("/data/traffic/%s/capture_%d.pcap", now.Format("2006/01/02"), ts%999999),
		"signature_id":           fmt.Sprintf("SIG-%s-%03d", sigKind, g.rng.Intn(998)+1),
		"attack_payload":         fmt.Sprintf(`{"method":"GET","uri":"/api/data?id=%d"}`, g.rng.Uint32()),
		"attack_stage":           "Command and Control",
		"attack_ip":              g.pick(externalIPs),
		"attacked_ip":            g.pick(internalIPs),
		"apt_group":              t.aptGroup,
		"vul_type":               "",
		"cve_id":                 "",
		"vul_desc":               "",
	}
	if t.subtype == 1003 {
		msg["vul_type"] = "SQL注入"
		msg["cve_id"] = fmt.Sprintf("CVE-%s-%d", now.Format("2006"), g.rng.Intn(8999)+1000)
		msg["vul_desc"] = "应用程序未对用户输入进行适当验证"
	}
	return msg
}

// MaliciousSample builds one malicious sample message with a full hash set.
func (g *Generator) MaliciousSample() map[string]any {
	t := maliciousSampleTemplates[g.rng.Intn(len(maliciousSampleTemplates))]
	now := time.Now()
	ts := now.UnixMilli()

	aptGroup := ""
	if t.family == "CobaltStrike" {
		aptGroup = "APT29"
	}
	// Compile dates land between one day and one year before the alarm.
	compileOffset := int64(g.rng.Intn(364)+1) * 24 * int64(time.Hour/time.Millisecond)

	return map[string]any{
		"alarm_id":               g.alarmID("MS", now),
		"alarm_date":             ts,
		"alarm_severity":         g.rng.Intn(2) + 2,
		"alarm_name":             t.name,
		"alarm_description":      t.desc,
		"alarm_type":             2,
		"alarm_subtype":          t.subtype,
		"source":                 g.rng.Intn(4) + 1,
		"control_rule_id":        fmt.Sprintf("RULE-%s-%s-%03d", t.typeName, now.Format("2006"), g.rng.Intn(998)+1),
		"control_task_id":        fmt.Sprintf("TASK-MAL-%s-%03d", now.Format("2006"), g.rng.Intn(899)+100),
		"procedure_technique_id": []string{"T1055", "T1566.001"},
		"session_id":             "",
		"ip_version":             4,
		"src_ip":                 "",
		"dst_ip":                 "",
		"protocol":               "",
		"terminal_id":            fmt.Sprintf("TERM-FIN-PC-%03d", g.rng.Intn(98)+1),
		"source_file_path":       fmt.Sprintf("/data/samples/%s/sample_%d.exe", now.Format("2006/01/02"), ts%999999),
		"sample_source":          g.rng.Intn(3) + 1,
		"md5":                    g.hexString(32),
		"sha1":                   g.hexString(40),
		"sha256":                 g.hexString(64),
		"sha512":                 g.hexString(128),
		"ssdeep":                 fmt.Sprintf("96:%d:S%d", g.rng.Uint64(), g.rng.Uint32()),
		"sample_original_name":   strings.ToLower(t.family) + ".exe",
		"sample_description":     "",
		"sample_family":          t.family,
		"apt_group":              aptGroup,
		"sample_alarm_engine":    []int{1, 2},
		"target_platform":        "Windows x64",
		"file_type":              "PE32+ executable",
		"file_size":              g.rng.Intn(4900000) + 100000,
		"language":               "C++",
		"rule":                   fmt.Sprintf("YARA:%s_%s", t.family, t.typeName),
		"target_content":         "",
		"compile_date":           ts - compileOffset,
		"last_analy_date":        ts,
		"sample_alarm_detail":    fmt.Sprintf(`[{"rule_name":"%s_%s_%s"}]`, t.family, t.typeName, now.Format("2006")),
	}
}

// HostBehavior builds one host behavior message. The process path decides
// the OS flavor; Windows behaviors carry registry persistence fields.
func (g *Generator) HostBehavior() map[string]any {
	t := hostBehaviorTemplates[g.rng.Intn(len(hostBehaviorTemplates))]
	now := time.Now()
	ts := now.UnixMilli()

	linux := strings.HasPrefix(t.processPath, "/")
	cli := ""
	if t.processPath != "" {
		cli = t.processPath + " --param value"
	}

	msg := map[string]any{
		"alarm_id":               g.alarmID("HB", now),
		"alarm_date":             ts,
		"alarm_severity":         g.rng.Intn(2) + 2,
		"alarm_name":             t.name,
		"alarm_description":      t.desc,
		"alarm_type":             3,
		"alarm_subtype":          t.subtype,
		"source":                 g.rng.Intn(6) + 3,
		"control_rule_id":        fmt.Sprintf("RULE-%s-%s-%03d", t.ruleWord, now.Format("2006"), g.rng.Intn(998)+1),
		"control_task_id":        fmt.Sprintf("TASK-HOST-%s-%03d", now.Format("2006"), g.rng.Intn(899)+100),
		"procedure_technique_id": []string{"T1496"},
		"session_id":             "",
		"ip_version":             4,
		"src_ip":                 "",
		"dst_ip":                 "",
		"protocol":               "",
		"terminal_id":            fmt.Sprintf("TERM-SVR-%03d", g.rng.Intn(98)+1),
		"source_file_path":       fmt.Sprintf("/data/logs/%s/host_%d.log", now.Format("2006/01/02"), ts%999999),
		"host_name":              g.pick(hostNames),
		"terminal_ip":            g.pick(hostIPs),
		"user_account":           "admin",
		"terminal_os":            "Windows 10 Pro",
		"dst_process_md5":        g.hexString(32),
		"dst_process_path":       t.processPath,
		"dst_process_cli":        cli,
		"src_process_md5":        g.hexString(32),
		"src_process_path":       `C:\Windows\System32\explorer.exe`,
		"src_process_cli":        "",
		"register_key_name":      "",
		"register_key_value":     "",
		"register_path":          "",
		"file_name":              "suspicious.exe",
		"file_md5":               g.hexString(32),
		"file_path":              t.processPath,
	}

	if t.subtype == 3001 {
		msg["dst_ip"] = "pool.minexmr.com"
		msg["dst_port"] = 4444
		msg["protocol"] = "TCP"
		msg["user_account"] = "www-data"
		msg["file_name"] = "xmrig"
	}
	if linux {
		msg["terminal_os"] = "Ubuntu 20.04.3 LTS"
		msg["src_process_path"] = "/usr/sbin/apache2"
	} else {
		msg["register_key_name"] = `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
		msg["register_key_value"] = t.processPath
		msg["register_path"] = `HKEY_CURRENT_USER\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
	}
	return msg
}

// =============================================================================
// HELPERS
// =============================================================================

func (g *Generator) alarmID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%03d-%06X",
		prefix, now.Format("2006"), g.rng.Intn(998)+1, g.rng.Uint32()&0xFFFFFF)
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) hexString(n int) string {
	b := make([]byte, (n+1)/2)
	g.rng.Read(b)
	return hex.EncodeToString(b)[:n]
}

