// In file: internal/tools/api_call_tool.go
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// --- API Call Tool Implementation ---

const defaultAPIResponseLimit = 8 * 1024

// ErrNonPublicAddress is returned when a request would connect to a loopback, private,
// link-local or otherwise internal address.
var ErrNonPublicAddress = errors.New("destination is not a public address")

// sharedAddressSpace is the carrier-grade NAT range, which netip does not classify as private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// APICallConfig bounds what APICallTool may reach and how much it reads back.
type APICallConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	AllowedHosts     []string      `yaml:"allowed_hosts"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
	// AllowPrivateNetworks lets requests reach loopback, private and link-local addresses.
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`
}

// APICallTool sends a single HTTP request on the model's behalf.
// It holds its own configured HTTP client so a slow endpoint cannot hang the cycle.
type APICallTool struct {
	httpClient   *http.Client
	allowedHosts map[string]bool
	maxBody      int64
}

var _ Action = (*APICallTool)(nil)

// NewAPICallTool creates the tool. An empty AllowedHosts list allows any host name, but unless
// AllowPrivateNetworks is set every connection, including redirects, must land on a public
// address. The check runs on the resolved IP at dial time.
func NewAPICallTool(cfg APICallConfig) *APICallTool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = defaultAPIResponseLimit
	}
	hosts := make(map[string]bool, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		hosts[strings.ToLower(h)] = true
	}
	client := &http.Client{Timeout: timeout}
	if !cfg.AllowPrivateNetworks {
		dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second, Control: publicOnly}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = dialer.DialContext
		// A proxy would be the only address checked.
		transport.Proxy = nil
		client.Transport = transport
	}
	return &APICallTool{
		httpClient:   client,
		allowedHosts: hosts,
		maxBody:      maxBody,
	}
}

// publicOnly is a net.Dialer Control hook that refuses non-public destinations.
func publicOnly(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, address)
	}
	if !isPublic(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, ap.Addr())
	}
	return nil
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}

func (t *APICallTool) Name() string { return APICallToolName }

// Execute builds the request from the validated arguments, sends it and summarizes the reply.
func (t *APICallTool) Execute(ctx context.Context, args Args) (string, error) {
	target, err := url.Parse(args.String("url"))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", target.Scheme)
	}
	if len(t.allowedHosts) > 0 && !t.allowedHosts[strings.ToLower(target.Hostname())] {
		return "", fmt.Errorf("host %q is not in the allowed list", target.Hostname())
	}

	method := args.String("method")
	var body io.Reader
	payload := args.Object("body")
	hasBody := (method == http.MethodPost || method == http.MethodPut) && len(payload) > 0
	if hasBody {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return "", fmt.Errorf("failed to create API request: %w", err)
	}
	req.Header.Set("User-Agent", "Tool-Router-Agent/1.0")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range args.Object("headers") {
		req.Header.Set(k, fmt.Sprint(v))
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("failed to read API response: %w", err)
	}
	truncated := int64(len(respBody)) > t.maxBody
	if truncated {
		respBody = respBody[:t.maxBody]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "API call to %s with method %s returned status %d.", target.String(), method, resp.StatusCode)
	if len(respBody) > 0 {
		sb.WriteString("\n")
		sb.Write(respBody)
		if truncated {
			sb.WriteString("\n... [response truncated]")
		}
	}
	return sb.String(), nil
}
