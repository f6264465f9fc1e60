package transport

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	mdns "github.com/miekg/dns"
)

const maxCNAMEHops = 5

// DefaultResolverCacheTTL is how long resolved endpoint addresses are reused.
const DefaultResolverCacheTTL = 5 * time.Minute

// Resolver resolves host names against a fixed list of DNS servers, following
// CNAMEs, with a small TTL cache.
type Resolver struct {
	servers  []string      // host:port
	timeout  time.Duration // per query
	cacheTTL time.Duration
	mu       sync.RWMutex
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	ips     []net.IP
	expires time.Time
}

// NewResolver returns nil when no servers are configured, leaving resolution
// to the system resolver.
func NewResolver(servers []string, perTimeout, cacheTTL time.Duration) *Resolver {
	var norm []string
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		norm = append(norm, s)
	}
	if len(norm) == 0 {
		return nil
	}
	if perTimeout <= 0 {
		perTimeout = 2 * time.Second
	}
	return &Resolver{servers: norm, timeout: perTimeout, cacheTTL: cacheTTL, cache: map[string]cacheEntry{}}
}

// Servers returns the normalized server list.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// Resolve returns the deduplicated, sorted addresses of host from the first
// server that answers with any.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("resolve: empty host")
	}
	r.mu.RLock()
	if ce, ok := r.cache[host]; ok && time.Now().Before(ce.expires) {
		ips := append([]net.IP{}, ce.ips...)
		r.mu.RUnlock()
		return ips, nil
	}
	r.mu.RUnlock()

	var collected []net.IP
	for _, s := range r.servers {
		if collected = r.lookup(ctx, host, s); len(collected) > 0 {
			break
		}
	}
	if len(collected) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses from %v", host, r.servers)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].String() < collected[j].String() })

	if r.cacheTTL > 0 {
		r.mu.Lock()
		r.cache[host] = cacheEntry{ips: collected, expires: time.Now().Add(r.cacheTTL)}
		r.mu.Unlock()
	}
	return append([]net.IP{}, collected...), nil
}

// lookup queries A and AAAA for name on one server, following up to
// maxCNAMEHops CNAMEs.
func (r *Resolver) lookup(ctx context.Context, name, server string) []net.IP {
	seen := map[string]struct{}{}
	var acc []net.IP
	target := name
	for hop := 0; hop < maxCNAMEHops; hop++ {
		next := ""
		for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
			rrs, err := r.exchange(ctx, target, qtype, server)
			if err != nil {
				continue
			}
			for _, rr := range rrs {
				var ip net.IP
				switch v := rr.(type) {
				case *mdns.A:
					ip = v.A
				case *mdns.AAAA:
					ip = v.AAAA
				case *mdns.CNAME:
					next = strings.TrimSuffix(v.Target, ".")
				}
				if ip == nil {
					continue
				}
				if _, ok := seen[ip.String()]; !ok {
					seen[ip.String()] = struct{}{}
					acc = append(acc, ip)
				}
			}
		}
		if len(acc) > 0 || next == "" || next == target {
			break
		}
		target = next
	}
	return acc
}

func (r *Resolver) exchange(ctx context.Context, fqdn string, qtype uint16, server string) ([]mdns.RR, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(fqdn), qtype)
	c := &mdns.Client{Timeout: r.timeout}
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	in, _, err := c.ExchangeContext(qctx, m, server)
	if err != nil {
		return nil, err
	}
	if in == nil || in.Rcode != mdns.RcodeSuccess {
		return nil, fmt.Errorf("query %s type %d via %s: no answer", fqdn, qtype, server)
	}
	return append(in.Answer, in.Extra...), nil
}
