package media

import "testing"

func TestIsBlockedHost(t *testing.T) {
	blocked := []string{
		"localhost",
		"api.localhost",
		"printer.local",
		"::1",
		"0:0:0:0:0:0:0:1",
		"169.254.169.254",
		"169.254.0.1",
		"fe80::1",
		"fd00::1",
		"fc00::1",
		"127.0.0.1",
		"10.0.0.5",
		"192.168.1.1",
		"172.16.0.1",
		"172.31.255.255",
		"0.0.0.0",
		"",
	}
	for _, host := range blocked {
		if !isBlockedHost(host) {
			t.Errorf("host %q should be blocked", host)
		}
	}

	allowed := []string{
		"music.163.com",
		"203.0.113.7",
		"172.32.0.1",
		"172.15.0.1",
		"11.0.0.1",
		"img1.kuwo.cn",
	}
	for _, host := range allowed {
		if isBlockedHost(host) {
			t.Errorf("host %q should be allowed", host)
		}
	}
}

func TestIsPrivateIPv4RejectsOctalTricks(t *testing.T) {
	// "010.0.0.1" 不是点分十进制，直接按非 IP 处理
	if isPrivateIPv4("010.0.0.1") {
		t.Error("leading-zero octets must not parse as private")
	}
	if isPrivateIPv4("256.1.1.1") {
		t.Error("out-of-range octet is not an IP")
	}
}

func TestHostMatchesRule(t *testing.T) {
	cases := []struct {
		host string
		rule string
		want bool
	}{
		{"music.163.com", "music.163.com", true},
		{"p1.music.126.net", "music.126.net", true},
		{"p1.music.126.net", ".music.126.net", true},
		{"music.126.net", ".music.126.net", true},
		{"evilmusic.126.net.attacker.com", "music.126.net", false},
		{"notmusic.126.net", "music.126.net", false},
		{"MUSIC.163.COM", "music.163.com", true},
		{"music.163.com", "", false},
	}
	for _, tc := range cases {
		if got := hostMatchesRule(tc.host, tc.rule); got != tc.want {
			t.Errorf("hostMatchesRule(%q, %q) = %v, want %v", tc.host, tc.rule, got, tc.want)
		}
	}
}

func TestHostAllowedEmptyListAllowsAll(t *testing.T) {
	if !hostAllowed("anything.example.com", nil) {
		t.Error("empty allowlist must allow every host")
	}
	if hostAllowed("other.example.com", []string{"music.163.com"}) {
		t.Error("non-empty allowlist must reject unknown hosts")
	}
}
