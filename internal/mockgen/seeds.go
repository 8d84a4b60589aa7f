// Package mockgen - Seed rows for fresh deployments
package mockgen

import (
	"encoding/json"
	"time"

	"github.com/quillsec/alertconv/pkg/types"
)

// Tags returns the standard tag dictionary: five categories of
// operator-facing labels with display colors.
func Tags() []types.Tag {
	return []types.Tag{
		tag("APT攻击", "安全事件", "#E74C3C", "高级持续性威胁攻击事件"),
		tag("勒索软件", "安全事件", "#C0392B", "勒索软件感染和加密事件"),
		tag("DDoS攻击", "安全事件", "#E67E22", "分布式拒绝服务攻击"),
		tag("数据泄露", "安全事件", "#D35400", "敏感数据泄露或外传事件"),
		tag("供应链攻击", "安全事件", "#8E44AD", "第三方供应链安全事件"),

		tag("高危", "威胁等级", "#E74C3C", "高危威胁，需要立即处理"),
		tag("中危", "威胁等级", "#F39C12", "中等威胁，需要关注"),
		tag("低危", "威胁等级", "#3498DB", "低危威胁，常规处理"),
		tag("信息", "威胁等级", "#95A5A6", "信息性事件，无需处理"),

		tag("已处理", "处理状态", "#27AE60", "事件已完成处理"),
		tag("处理中", "处理状态", "#F39C12", "事件正在处理中"),
		tag("待处理", "处理状态", "#E74C3C", "事件等待处理"),
		tag("已忽略", "处理状态", "#95A5A6", "事件已忽略"),

		tag("钓鱼攻击", "攻击类型", "#9B59B6", "钓鱼邮件、钓鱼网站等"),
		tag("漏洞利用", "攻击类型", "#E67E22", "利用系统或应用漏洞的攻击"),
		tag("恶意软件", "攻击类型", "#C0392B", "病毒、木马、蠕虫等恶意软件"),
		tag("暴力破解", "攻击类型", "#D35400", "密码暴力破解攻击"),
		tag("SQL注入", "攻击类型", "#8E44AD", "SQL注入攻击"),
		tag("XSS攻击", "攻击类型", "#9B59B6", "跨站脚本攻击"),

		tag("金融行业", "行业", "#3498DB", "银行、证券、保险等金融机构"),
		tag("能源行业", "行业", "#E74C3C", "电力、石油、天然气等能源企业"),
		tag("互联网", "行业", "#1ABC9C", "互联网和科技公司"),
		tag("制造业", "行业", "#34495E", "制造和工业企业"),

		tag("单一主机", "影响范围", "#3498DB", "影响单个主机或设备"),
		tag("局部网络", "影响范围", "#F39C12", "影响局部网络或部门"),
		tag("全网范围", "影响范围", "#E74C3C", "影响整个企业网络"),
	}
}

func tag(name, category, color, description string) types.Tag {
	return types.Tag{Name: name, Category: category, Color: color, Description: &description}
}

// =============================================================================
// RULE SEEDS
// =============================================================================

// ConvergenceRules returns demo CONVERGE statements. Every statement
// compiles against the built-in field dictionary.
func ConvergenceRules() []types.ConvergenceRule {
	return []types.ConvergenceRule{
		{
			Name: "相同源IP高危告警收敛",
			DSLRule: `CONVERGE
  WHERE alarm_severity >= 3
  GROUP BY src_ip, alarm_type
  WINDOW 5m
  THRESHOLD 10`,
			Description: strp("对来自相同源IP的高危告警在5分钟内进行收敛，超过10条则触发"),
			Enabled:     true,
		},
		{
			Name: "主机行为告警收敛",
			DSLRule: `CONVERGE
  WHERE alarm_type == 3
  GROUP BY host_name, user_account
  WINDOW 10m
  THRESHOLD 20`,
			Description: strp("对同一主机和用户的行为告警进行收敛"),
			Enabled:     true,
		},
		{
			Name: "APT组织相关告警收敛",
			DSLRule: `CONVERGE
  WHERE apt_group != "" AND alarm_severity >= 2
  GROUP BY apt_group, dst_ip
  WINDOW 30m
  THRESHOLD 5`,
			Description: strp("对APT组织相关的告警按组织和目标IP收敛"),
			Enabled:     true,
		},
		{
			Name: "端口扫描行为收敛",
			DSLRule: `CONVERGE
  WHERE alarm_subtype IN (1001, 1002, 1003) AND dst_port IN (22, 3389, 445)
  GROUP BY src_ip, dst_port
  WINDOW 15m
  THRESHOLD 50`,
			Description: strp("对端口扫描行为进行收敛，15分钟内超过50次则告警"),
			Enabled:     true,
		},
		{
			Name: "恶意样本告警收敛",
			DSLRule: `CONVERGE
  WHERE alarm_type == 2
  GROUP BY md5, sample_family
  WINDOW 20m
  THRESHOLD 3`,
			Description: strp("相同MD5和样本家族的恶意样本告警收敛"),
			Enabled:     false,
		},
	}
}

// CorrelationRules returns demo CORRELATE statements.
func CorrelationRules() []types.CorrelationRule {
	return []types.CorrelationRule{
		{
			Name: "攻击链关联检测",
			DSLRule: `CORRELATE
  EVENT attack WHERE alarm_type == 1 AND alarm_severity >= 2
  EVENT behavior WHERE alarm_type == 3 AND dst_process_path CONTAINS "cmd.exe"
  JOIN ON attack.dst_ip == behavior.terminal_ip
  WINDOW 10m
  GENERATE
    SEVERITY 3
    NAME "检测到攻击链活动"
    DESCRIPTION "网络攻击后发现可疑主机行为"`,
			Description: strp("检测网络攻击后的可疑主机行为，识别攻击链"),
			Enabled:     true,
		},
		{
			Name: "横向移动检测",
			DSLRule: `CORRELATE
  EVENT login WHERE alarm_subtype == 3004 AND alarm_name CONTAINS "爆破"
  EVENT access WHERE alarm_subtype == 3005 AND alarm_name CONTAINS "进程"
  EVENT lateral WHERE alarm_subtype == 3007
  JOIN ON login.user_account == access.user_account AND access.dst_ip == lateral.src_ip
  WINDOW 30m
  GENERATE
    SEVERITY 4
    NAME "检测到横向移动"
    DESCRIPTION "发现异常登录后的横向移动行为"`,
			Description: strp("检测攻击者在内网中的横向移动行为"),
			Enabled:     true,
		},
		{
			Name: "APT攻击场景关联",
			DSLRule: `CORRELATE
  EVENT sample WHERE alarm_type == 2 AND apt_group != ""
  EVENT c2 WHERE alarm_subtype == 1004 AND alarm_name CONTAINS "C2"
  EVENT exfil WHERE alarm_name REGEX ".*数据泄露.*"
  JOIN ON sample.terminal_ip == c2.src_ip AND c2.src_ip == exfil.src_ip
  WINDOW 60m
  GENERATE
    SEVERITY 4
    NAME "APT攻击活动检测"
    DESCRIPTION "检测到完整的APT攻击链"`,
			Description: strp("检测APT攻击的完整链条：恶意样本->C2通信->数据泄露"),
			Enabled:     true,
		},
		{
			Name: "漏洞利用后行为检测",
			DSLRule: `CORRELATE
  EVENT exploit WHERE vul_type != "" AND cve_id != ""
  EVENT proc WHERE src_process_path REGEX ".*(powershell|cmd|wscript).*"
  JOIN ON exploit.attacked_ip == proc.terminal_ip
  WINDOW 5m
  GENERATE
    SEVERITY 3
    NAME "漏洞利用成功"
    DESCRIPTION "漏洞利用后检测到可疑进程执行"`,
			Description: strp("检测漏洞利用成功后的可疑进程行为"),
			Enabled:     true,
		},
		{
			Name: "多源协同攻击检测",
			DSLRule: `CORRELATE
  EVENT scan WHERE alarm_subtype == 1001
  EVENT brute WHERE alarm_subtype == 1002
  EVENT exploit WHERE alarm_severity >= 3
  JOIN ON scan.dst_ip == brute.dst_ip AND brute.dst_ip == exploit.attacked_ip
  WINDOW 120m
  GENERATE
    SEVERITY 4
    NAME "协同攻击检测"
    DESCRIPTION "检测到扫描、暴力破解、漏洞利用的完整攻击流程"`,
			Description: strp("检测多阶段的协同攻击行为"),
			Enabled:     false,
		},
	}
}

// FilterRules returns demo filter rules. An empty subtype applies the
// rule to the whole family.
func FilterRules() []types.FilterRule {
	return []types.FilterRule{
		{
			Name:      "过滤低危网络攻击",
			AlertType: "network_attack", AlertSubtype: "1001",
			Field: "alarm_severity", Operator: types.OpEq, Value: "1",
			Enabled: true,
		},
		{
			Name:      "过滤测试环境IP",
			AlertType: "network_attack",
			Field:     "src_ip", Operator: types.OpContains, Value: "192.168.100",
			Enabled: true,
		},
		{
			Name:      "过滤已知误报样本",
			AlertType: "malicious_sample", AlertSubtype: "2001",
			Field: "md5", Operator: types.OpRegex, Value: "^(abc123|def456).*",
			Enabled: false,
		},
		{
			Name:      "过滤白名单进程",
			AlertType: "host_behavior", AlertSubtype: "3005",
			Field: "src_process_path", Operator: types.OpContains, Value: `System32\svchost.exe`,
			Enabled: true,
		},
		{
			Name:      "过滤内网扫描",
			AlertType: "network_attack", AlertSubtype: "1001",
			Field: "src_ip", Operator: types.OpRegex, Value: `^10\.(0|1|2)\..+`,
			Enabled: false,
		},
		{
			Name:      "过滤信息类告警",
			AlertType: "network_attack",
			Field:     "alarm_severity", Operator: types.OpEq, Value: "0",
			Enabled: true,
		},
	}
}

// TagRules returns demo tag rules referencing the Tags dictionary.
func TagRules() []types.TagRule {
	return []types.TagRule{
		{
			Name:      "高危事件标记",
			AlertType: "network_attack",
			ConditionField: "alarm_severity", ConditionOperator: types.OpEq, ConditionValue: "3",
			Tags:        []string{"高危", "待处理"},
			Description: strp("为高危网络攻击事件添加标签"),
			Enabled:     true,
		},
		{
			Name:      "APT攻击标记",
			AlertType: "network_attack",
			ConditionField: "apt_group", ConditionOperator: types.OpNe, ConditionValue: "",
			Tags:        []string{"APT攻击", "高危"},
			Description: strp("为APT组织相关攻击添加标签"),
			Enabled:     true,
		},
		{
			Name:      "勒索软件标记",
			AlertType: "malicious_sample", AlertSubtype: "2005",
			ConditionField: "sample_family", ConditionOperator: types.OpRegex, ConditionValue: ".*(Ransom|Crypto|Locker|WannaCry).*",
			Tags:        []string{"勒索软件", "高危", "待处理"},
			Description: strp("识别并标记勒索软件家族"),
			Enabled:     true,
		},
		{
			Name:      "内网横向移动标记",
			AlertType: "host_behavior", AlertSubtype: "3007",
			ConditionField: "alarm_name", ConditionOperator: types.OpContains, ConditionValue: "横向",
			Tags:        []string{"局部网络", "处理中"},
			Description: strp("标记可能的内网横向移动行为"),
			Enabled:     true,
		},
		{
			Name:      "外联C2标记",
			AlertType: "network_attack", AlertSubtype: "1004",
			ConditionField: "alarm_name", ConditionOperator: types.OpContains, ConditionValue: "C2",
			Tags:        []string{"APT攻击", "高危", "待处理"},
			Description: strp("标记C2通信行为"),
			Enabled:     true,
		},
		{
			Name:      "数据泄露标记",
			AlertType: "host_behavior", AlertSubtype: "3008",
			ConditionField: "alarm_name", ConditionOperator: types.OpRegex, ConditionValue: ".*(泄露|外传|上传).*",
			Tags:        []string{"数据泄露", "高危"},
			Description: strp("标记可能的数据泄露事件"),
			Enabled:     true,
		},
		{
			Name:      "威胁情报来源标记",
			AlertType: "network_attack",
			ConditionField: "source", ConditionOperator: types.OpEq, ConditionValue: "4",
			Tags:        []string{"已处理"},
			Description: strp("标记来自威胁情报平台的告警"),
			Enabled:     false,
		},
	}
}

// =============================================================================
// THREAT EVENT SEEDS
// =============================================================================

// ThreatEvents returns five curated incident records spanning the event
// types the exchange format covers. The first carries every indicator
// column; the rest are progressively sparser, matching real feeds.
func ThreatEvents() []types.ThreatEvent {
	return []types.ThreatEvent{
		{
			EventID:          i64p(1000001),
			SystemCode:       strp("SYS-2025-001"),
			Name:             strp("APT攻击事件样例"),
			Description:      strp("模拟APT组织通过钓鱼邮件投递恶意文档，利用系统漏洞入侵受害者网络。"),
			EventType:        strp("网络攻击"),
			Attacker:         strp("APT-XYZ组织"),
			Victimer:         strp("某能源企业"),
			StartTime:        tsp(2025, 9, 10, 8, 30),
			EndTime:          tsp(2025, 9, 10, 12, 45),
			FoundTime:        tsp(2025, 9, 10, 9, 0),
			Source:           strp("IDS/威胁情报平台"),
			MitreTechniqueID: strp("T1566,T1203,T1059"),
			AttsckList:       strp("鱼叉式钓鱼,利用漏洞,脚本执行"),
			AttackTool:       strp("Cobalt Strike, Metasploit"),
			FirstFoundTime:   tsp(2025, 9, 10, 8, 45),
			Priority:         strp("高"),
			Severity:         strp("严重"),
			DisposeStatus:    strp("未审核"),
			App:              strp("Microsoft Word, Apache Tomcat"),
			ImpactAssessment: strp("可能导致核心业务系统数据泄露"),
			MergeAlerts: raw(`[
  {"alert_id": "AL-001", "alert_type": "钓鱼邮件", "alert_time": "2025-09-10 08:35:00"},
  {"alert_id": "AL-002", "alert_type": "漏洞利用", "alert_time": "2025-09-10 08:50:00"}
]`),
			ThreatActor:               raw(`[{"name": "APT-XYZ", "country": "未知", "group": "APT组织"}]`),
			Org:                       raw(`[{"name": "某能源企业总部", "location": "北京"}]`),
			AttackAssetIP:             raw(`["192.168.10.15", "45.67.89.101"]`),
			VictimAssetIP:             raw(`["10.0.5.20", "172.16.3.45"]`),
			AttackAssetIPPort:         raw(`["192.168.10.15:443", "45.67.89.101:80"]`),
			VictimAssetIPPort:         raw(`["10.0.5.20:8080", "172.16.3.45:445"]`),
			AttackAssetDomain:         raw(`["evil-apt.com", "malicious.cn"]`),
			VictimAssetDomain:         raw(`["victim-energy.com"]`),
			AttackURL:                 raw(`["http://evil-apt.com/phishing.doc", "http://malicious.cn/exploit"]`),
			VictimURL:                 raw(`["http://victim-energy.com/login"]`),
			AttackMalware:             raw(`["Trojan.Win32.APTXYZ", "Backdoor.Linux.Cobalt"]`),
			AttackMalwareSample:       raw(`["hash:123abc...", "hash:456def..."]`),
			AttackMalwareSampleFamily: raw(`["Cobalt Strike", "PlugX"]`),
			AttackEmailAddress:        raw(`["aptxyz@evil-apt.com", "attacker@phish.cn"]`),
			VictimEmailAddress:        raw(`["admin@victim-energy.com", "it@victim-energy.com"]`),
			AttackEmail:               raw(`["钓鱼邮件主题：紧急安全更新"]`),
			VictimEmail:               raw(`["回复邮件：确认收到安全更新"]`),
			AttackSoftware:            raw(`["Cobalt Strike", "Mimikatz"]`),
			VictimSoftware:            raw(`["Windows Server 2019", "Oracle Database 12c"]`),
			AttackVulnerability:       raw(`["CVE-2023-21768", "CVE-2024-12345"]`),
			AttackCertificate:         raw(`["恶意证书 SHA1: abcd1234efgh5678"]`),
			VictimCertificate:         raw(`["企业证书 SHA1: xyz9876abcd5432"]`),
		},
		{
			EventID:          i64p(1000002),
			SystemCode:       strp("SYS-2025-002"),
			Name:             strp("勒索软件加密事件"),
			Description:      strp("检测到勒索软件通过RDP弱口令入侵，加密服务器文件并索要赎金。"),
			EventType:        strp("勒索攻击"),
			Attacker:         strp("勒索团伙X"),
			Victimer:         strp("某制造企业"),
			StartTime:        tsp(2025, 10, 1, 14, 20),
			EndTime:          tsp(2025, 10, 1, 16, 30),
			FoundTime:        tsp(2025, 10, 1, 14, 45),
			Source:           strp("终端安全系统"),
			MitreTechniqueID: strp("T1078,T1486,T1490"),
			AttsckList:       strp("有效账户,数据加密勒索,抑制系统恢复"),
			AttackTool:       strp("RDP工具, WannaCry变种"),
			FirstFoundTime:   tsp(2025, 10, 1, 14, 30),
			Priority:         strp("高"),
			Severity:         strp("严重"),
			DisposeStatus:    strp("已审核"),
			App:              strp("Windows Server, SQL Server"),
			ImpactAssessment: strp("重要生产数据被加密，业务中断"),
			AttackAssetIP:    raw(`["203.0.113.45"]`),
			VictimAssetIP:    raw(`["192.168.1.100", "192.168.1.101"]`),
			AttackVulnerability: raw(`["CVE-2019-0708"]`),
		},
		{
			EventID:          i64p(1000003),
			SystemCode:       strp("SYS-2025-003"),
			Name:             strp("大规模DDoS攻击"),
			Description:      strp("检测到针对公司官网的大规模DDoS攻击，峰值流量达500Gbps。"),
			EventType:        strp("网络攻击"),
			Attacker:         strp("未知攻击者"),
			Victimer:         strp("某互联网公司"),
			StartTime:        tsp(2025, 10, 5, 10, 0),
			EndTime:          tsp(2025, 10, 5, 12, 0),
			FoundTime:        tsp(2025, 10, 5, 10, 5),
			Source:           strp("云WAF/DDoS防护"),
			AttsckList:       strp("SYN Flood, UDP Flood"),
			AttackTool:       strp("Mirai僵尸网络"),
			FirstFoundTime:   tsp(2025, 10, 5, 10, 2),
			Priority:         strp("中"),
			Severity:         strp("高危"),
			DisposeStatus:    strp("未审核"),
			ImpactAssessment: strp("官网服务短暂中断，部分用户无法访问"),
			AttackAssetIP:    raw(`["198.51.100.0/24", "203.0.113.0/24"]`),
			VictimAssetIP:    raw(`["104.28.1.100"]`),
		},
		{
			EventID:          i64p(1000004),
			SystemCode:       strp("SYS-2025-004"),
			Name:             strp("敏感数据外传事件"),
			Description:      strp("发现内部员工通过邮件外发大量客户敏感数据。"),
			EventType:        strp("数据泄露"),
			Attacker:         strp("内部人员"),
			Victimer:         strp("某金融机构"),
			StartTime:        tsp(2025, 10, 10, 16, 30),
			EndTime:          tsp(2025, 10, 10, 17, 0),
			FoundTime:        tsp(2025, 10, 10, 16, 45),
			Source:           strp("数据防泄露系统(DLP)"),
			MitreTechniqueID: strp("T1041,T1567"),
			AttsckList:       strp("数据泄露,传输到云账户"),
			FirstFoundTime:   tsp(2025, 10, 10, 16, 35),
			Priority:         strp("高"),
			Severity:         strp("严重"),
			DisposeStatus:    strp("已审核"),
			App:              strp("Email系统, 文件服务器"),
			ImpactAssessment: strp("约5000条客户个人信息可能泄露"),
		},
		{
			EventID:          i64p(1000005),
			SystemCode:       strp("SYS-2025-005"),
			Name:             strp("第三方软件后门植入"),
			Description:      strp("发现某第三方监控软件被植入后门，可能影响多个客户。"),
			EventType:        strp("供应链攻击"),
			Attacker:         strp("APT-Supply组织"),
			Victimer:         strp("多家企业客户"),
			StartTime:        tsp(2025, 10, 15, 9, 0),
			FoundTime:        tsp(2025, 10, 15, 11, 0),
			Source:           strp("威胁情报共享平台"),
			MitreTechniqueID: strp("T1195.002"),
			AttsckList:       strp("供应链破坏-软件供应链"),
			FirstFoundTime:   tsp(2025, 10, 15, 9, 30),
			Priority:         strp("高"),
			Severity:         strp("严重"),
			DisposeStatus:    strp("未审核"),
			ImpactAssessment: strp("可能导致多个客户环境被渗透"),
			AttackSoftware:   raw(`["MonitoringSoftware v3.2.1"]`),
		},
	}
}

func strp(s string) *string { return &s }

func i64p(n int64) *int64 { return &n }

func tsp(year int, month time.Month, day, hour, minute int) *time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return &t
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }
