package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Scheme identifies which wire transport an endpoint URL selects.
type Scheme string

const (
	// SchemeTCP is the point-to-point stream transport (TCP).
	SchemeTCP Scheme = "tcp"
	// SchemeIPC is the local inter-process transport (Unix domain socket).
	SchemeIPC Scheme = "ipc"
)

// DefaultTopic is used when an endpoint URL declares no topic spec.
const DefaultTopic = "main"

// TopicSpec describes which topics an endpoint accepts and how they are renamed.
// A bare topic "t" is stored as Renames["t"] = "t". An "in>out" entry is stored
// as Renames["in"] = "out". Wildcard subscribes to every topic, including
// reserved ones, regardless of Renames.
type TopicSpec struct {
	Wildcard bool
	Renames  map[string]string
}

// Accepts reports whether topic passes this spec's filter and returns the
// renamed (output) topic name to use.
func (t TopicSpec) Accepts(topic string) (string, bool) {
	if out, ok := t.Renames[topic]; ok {
		return out, true
	}
	if t.Wildcard {
		return topic, true
	}
	return "", false
}

// EndpointURL is a fully parsed endpoint specifier:
// scheme://host[:port][;topic-map][?ephemeral]
type EndpointURL struct {
	Scheme    Scheme
	Host      string
	Port      int
	Path      string // used by the IPC scheme as the socket path when Host is empty
	Topics    TopicSpec
	Ephemeral bool
	Raw       string
}

// ParseEndpointURL parses an endpoint URL of the form
// scheme://host[:port][;topic-spec][?]. The ephemeral marker ('?') may
// appear either right after the host (the
// "wildcard-ephemeral" shorthand used by ephemeral tee tests) or at the very
// end of the string after the topic spec; both positions mean the same thing,
// so the first '?' encountered anywhere is stripped and recorded.
func ParseEndpointURL(raw string) (EndpointURL, error) {
	s := raw
	ephemeral := false
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		ephemeral = true
		s = s[:idx] + s[idx+1:]
	}

	schemeSep := strings.Index(s, "://")
	if schemeSep < 0 {
		return EndpointURL{}, fmt.Errorf("transport: invalid endpoint URL %q: missing scheme", raw)
	}
	scheme := Scheme(s[:schemeSep])
	rest := s[schemeSep+3:]

	var topicPart string
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		topicPart = rest[semi+1:]
		rest = rest[:semi]
	}

	hostPort := rest
	path := ""
	if scheme == SchemeIPC {
		// IPC endpoints address a socket path rather than a host:port.
		path = rest
		hostPort = ""
	}

	host, port, err := splitHostPort(hostPort)
	if err != nil && scheme != SchemeIPC {
		return EndpointURL{}, fmt.Errorf("transport: invalid endpoint URL %q: %w", raw, err)
	}

	spec, err := parseTopicSpec(topicPart)
	if err != nil {
		return EndpointURL{}, fmt.Errorf("transport: invalid endpoint URL %q: %w", raw, err)
	}

	switch scheme {
	case SchemeTCP, SchemeIPC:
	default:
		return EndpointURL{}, fmt.Errorf("transport: unsupported scheme %q in %q", scheme, raw)
	}

	return EndpointURL{
		Scheme:    scheme,
		Host:      host,
		Port:      port,
		Path:      path,
		Topics:    spec,
		Ephemeral: ephemeral,
		Raw:       raw,
	}, nil
}

// splitHostPort parses "host:port", returning port 0 when absent.
func splitHostPort(s string) (string, int, error) {
	if s == "" {
		return "", 0, nil
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port present.
		return s, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// parseTopicSpec parses the comma-separated topic-map portion of an endpoint URL.
// An empty spec defaults to {"main": "main"}; "*" enables wildcard.
func parseTopicSpec(s string) (TopicSpec, error) {
	spec := TopicSpec{Renames: map[string]string{}}
	if s == "" {
		spec.Renames[DefaultTopic] = DefaultTopic
		return spec, nil
	}

	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if tok == "*" {
			spec.Wildcard = true
			continue
		}
		if idx := strings.IndexByte(tok, '>'); idx >= 0 {
			in := strings.TrimSpace(tok[:idx])
			out := strings.TrimSpace(tok[idx+1:])
			if in == "" {
				in = DefaultTopic
			}
			if out == "" {
				out = DefaultTopic
			}
			spec.Renames[in] = out
			continue
		}
		spec.Renames[tok] = tok
	}
	return spec, nil
}

// Address returns the dial/listen address for the tcp scheme, or the socket path for ipc.
func (e EndpointURL) Address() string {
	if e.Scheme == SchemeIPC {
		if e.Path != "" {
			return e.Path
		}
		return e.Host
	}
	if e.Port == 0 {
		return e.Host
	}
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// NetworkName returns the net.Dial/net.Listen network for this endpoint's scheme.
func (e EndpointURL) NetworkName() string {
	if e.Scheme == SchemeIPC {
		return "unix"
	}
	return "tcp"
}

// IsReserved reports whether topic is a reserved (underscore-prefixed) control topic.
func IsReserved(topic string) bool {
	return strings.HasPrefix(topic, "_")
}
