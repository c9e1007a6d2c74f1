package media

import (
	"strconv"
	"strings"
)

// 这里的拦截是纯文本判断，不做 DNS 解析。能挡住直接写内网地址的
// 请求，挡不住解析到内网的域名，后者靠白名单兜底。

func isPrivateIPv4(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	nums := make([]int, 4)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return false
		}
		// 拒绝 "01" 这类八进制写法，避免绕过
		if len(part) > 1 && part[0] == '0' {
			return false
		}
		nums[i] = n
	}

	switch {
	case nums[0] == 10:
		return true
	case nums[0] == 127:
		return true
	case nums[0] == 192 && nums[1] == 168:
		return true
	case nums[0] == 172 && nums[1] >= 16 && nums[1] <= 31:
		return true
	case nums[0] == 169 && nums[1] == 254:
		return true
	case nums[0] == 0:
		return true
	}
	return false
}

// isBlockedHost 判断目标主机是否命中内网拦截名单。
func isBlockedHost(hostname string) bool {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if host == "" {
		return true
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	if host == "::1" || host == "0:0:0:0:0:0:0:1" {
		return true
	}
	if host == "169.254.169.254" {
		return true
	}
	if strings.HasPrefix(host, "fe80:") {
		return true
	}
	if strings.HasPrefix(host, "fc") || strings.HasPrefix(host, "fd") {
		return true
	}
	return isPrivateIPv4(host)
}

// hostMatchesRule 白名单规则匹配：完全相等或以 .rule 结尾。
// 规则自带前导点时只做后缀匹配。
func hostMatchesRule(hostname, rule string) bool {
	host := strings.ToLower(strings.TrimSpace(hostname))
	normalized := strings.ToLower(strings.TrimSpace(rule))
	if host == "" || normalized == "" {
		return false
	}
	if strings.HasPrefix(normalized, ".") {
		suffix := normalized[1:]
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	return host == normalized || strings.HasSuffix(host, "."+normalized)
}

// hostAllowed 在白名单非空时要求目标主机至少命中一条规则。
func hostAllowed(hostname string, rules []string) bool {
	if len(rules) == 0 {
		return true
	}
	for _, rule := range rules {
		if hostMatchesRule(hostname, rule) {
			return true
		}
	}
	return false
}
