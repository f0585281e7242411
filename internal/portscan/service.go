package portscan

import (
	"strings"

	"github.com/google/gopacket/layers"
)

// wellKnown 常用端口 -> 服务名
var wellKnown = map[uint16]string{
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	587:   "submission",
	631:   "ipp",
	993:   "imaps",
	995:   "pop3s",
	1433:  "mssql",
	1521:  "oracle",
	1723:  "pptp",
	2049:  "nfs",
	2375:  "docker",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "vnc",
	6379:  "redis",
	8000:  "http-alt",
	8080:  "http-proxy",
	8443:  "https-alt",
	9200:  "elasticsearch",
	11211: "memcached",
	27017: "mongodb",
}

// bannerSignatures banner 子串 (小写) -> 服务名, 按顺序匹配
var bannerSignatures = []struct {
	substr  string
	service string
}{
	{"ssh-", "ssh"},
	{"http/", "http"},
	{"esmtp", "smtp"},
	{"smtp", "smtp"},
	{"ftp", "ftp"},
	{"+ok", "pop3"},
	{"* ok", "imap"},
	{"mysql", "mysql"},
	{"mariadb", "mysql"},
	{"redis", "redis"},
	{"-err", "redis"},
	{"rfb ", "vnc"},
	{"amqp", "amqp"},
}

// Identify 根据端口号和 banner 推断服务名, 无法识别时返回 ""
// banner 命中签名时优先于端口表; 最后退回 IANA 端口注册表
func Identify(port uint16, banner string) string {
	if banner != "" {
		lb := strings.ToLower(banner)
		for _, sig := range bannerSignatures {
			if strings.Contains(lb, sig.substr) {
				return sig.service
			}
		}
	}
	if name, ok := wellKnown[port]; ok {
		return name
	}
	if name, ok := layers.TCPPortNames[layers.TCPPort(port)]; ok {
		return name
	}
	return ""
}
