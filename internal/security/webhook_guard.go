package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// WebhookGuard はWebhook送信先URLの検証と、SSRF防止付きHTTPクライアントの生成を行う。
// 送信先は設定ファイルから読み込まれるが、内部ネットワークへの送信は許可しない。
type WebhookGuard interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続は
	// DNS解決後のIPアドレスに対してもブロックされる。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は送信先URLを起動時に静的に検証する。
	ValidateURL(rawURL string) error
}

// blockedNetworks はDNS解決を伴わない事前検証でブロックするネットワーク範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル (169.254.169.254 を含む)
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// webhookGuard はWebhookGuardの実装。
type webhookGuard struct {
	schemes []string
	ports   []int
}

// NewWebhookGuard はWebhookGuardを生成する。allowHTTPがfalseの場合はhttpsのみ許可する。
func NewWebhookGuard(allowHTTP bool) *webhookGuard {
	g := &webhookGuard{schemes: []string{"https"}, ports: []int{443}}
	if allowHTTP {
		g.schemes = append(g.schemes, "http")
		g.ports = append(g.ports, 80)
	}
	return g
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// safeurlはnet.DialerのControlフックで接続先IPを検証するため、DNS再バインディングにも対応する。
func (g *webhookGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(g.schemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は送信先URLのスキーム・ポート・ホストを検証する。
// ポートはNewSafeClientが接続を許可するものに限る。
func (g *webhookGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !g.allowsScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, g.schemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	port := defaultPort(scheme)
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid port: %q", p)
		}
	}
	if !g.allowsPort(port) {
		return fmt.Errorf("disallowed port: %d (allowed: %v)", port, g.ports)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func (g *webhookGuard) allowsScheme(scheme string) bool {
	for _, allowed := range g.schemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func (g *webhookGuard) allowsPort(port int) bool {
	for _, allowed := range g.ports {
		if port == allowed {
			return true
		}
	}
	return false
}

func defaultPort(scheme string) int {
	if scheme == "http" {
		return 80
	}
	return 443
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
