// Package platform is the external-collaborator surface of spec.md §6:
// host/link/route declarations fed in by callback, with no XML grammar
// of its own (platform-file parsing is an explicit Non-goal). A
// Builder accumulates declarations exactly the way an XML parser would
// hand them in one at a time; Build resolves them against a pair of
// surf models into a queryable Platform.
package platform

import (
	"fmt"

	"github.com/nmxmxh/simcore/lmm"
	"github.com/nmxmxh/simcore/surf"
)

// HostDecl is one host declaration (spec.md §6): name, processing
// speed. Availability/state traces are not supported.
type HostDecl struct {
	Name  string
	Flops float64
}

// LinkDecl is one link declaration: name, bandwidth, latency, sharing
// policy.
type LinkDecl struct {
	Name      string
	Bandwidth float64
	Latency   float64
	Policy    lmm.Policy
}

// RouteDecl is an ordered list of link names connecting two hosts.
type RouteDecl struct {
	Src, Dst string
	Links    []string
}

// Builder accumulates declarations before Build resolves them. The
// zero value is not usable; call NewBuilder.
type Builder struct {
	hosts  []HostDecl
	links  []LinkDecl
	routes []RouteDecl
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// DeclareHost records a host declaration (the callback an XML parser,
// or any other platform front end, would invoke once per <host> tag).
func (b *Builder) DeclareHost(name string, flops float64) {
	b.hosts = append(b.hosts, HostDecl{Name: name, Flops: flops})
}

// DeclareLink records a link declaration.
func (b *Builder) DeclareLink(name string, bandwidth, latency float64, policy lmm.Policy) {
	b.links = append(b.links, LinkDecl{Name: name, Bandwidth: bandwidth, Latency: latency, Policy: policy})
}

// DeclareRoute records an ordered path of link names between two hosts.
// Routes are directed: declare the reverse explicitly if traffic flows
// both ways (DeclareRoute's reverse-route-as-ACK-backpressure wiring in
// Platform.Route relies on that reverse declaration, if any, being
// present).
func (b *Builder) DeclareRoute(src, dst string, links ...string) {
	b.routes = append(b.routes, RouteDecl{Src: src, Dst: dst, Links: append([]string(nil), links...)})
}

// Platform is the resolved result of a Builder applied against a
// concrete pair of resource models: host/link names turned into live
// *surf.Host/*surf.Link handles, and routes turned into ordered link
// slices ready for surf.NetworkModel.Communicate/Start.
type Platform struct {
	cpu *surf.CPUModel
	net *surf.NetworkModel

	hosts  map[string]*surf.Host
	links  map[string]*surf.Link
	routes map[routeKey][]*surf.Link
}

type routeKey struct{ src, dst string }

// Build registers every declaration in b against cpu/net and resolves
// every route, returning a plain (non-simerr) error on an unknown
// host/link reference.
func Build(b *Builder, cpu *surf.CPUModel, net *surf.NetworkModel) (*Platform, error) {
	p := &Platform{
		cpu:    cpu,
		net:    net,
		hosts:  make(map[string]*surf.Host, len(b.hosts)),
		links:  make(map[string]*surf.Link, len(b.links)),
		routes: make(map[routeKey][]*surf.Link, len(b.routes)),
	}

	for _, h := range b.hosts {
		p.hosts[h.Name] = cpu.AddHost(h.Name, h.Flops)
	}
	for _, l := range b.links {
		p.links[l.Name] = net.AddLink(l.Name, l.Bandwidth, l.Latency, l.Policy)
	}
	for _, r := range b.routes {
		if _, ok := p.hosts[r.Src]; !ok {
			return nil, fmt.Errorf("platform: route %s->%s references unknown host %q", r.Src, r.Dst, r.Src)
		}
		if _, ok := p.hosts[r.Dst]; !ok {
			return nil, fmt.Errorf("platform: route %s->%s references unknown host %q", r.Src, r.Dst, r.Dst)
		}
		links := make([]*surf.Link, 0, len(r.Links))
		for _, name := range r.Links {
			l, ok := net.Link(name)
			if !ok {
				return nil, fmt.Errorf("platform: route %s->%s references unknown link %q", r.Src, r.Dst, name)
			}
			links = append(links, l)
		}
		p.routes[routeKey{r.Src, r.Dst}] = links
	}
	return p, nil
}

// Host resolves a declared host name to its live handle.
func (p *Platform) Host(name string) (*surf.Host, bool) {
	h, ok := p.hosts[name]
	return h, ok
}

// Hosts returns every declared host, in no particular order — used by
// a caller wiring a config-level setting (e.g. a concurrency limit)
// onto every host uniformly.
func (p *Platform) Hosts() []*surf.Host {
	out := make([]*surf.Host, 0, len(p.hosts))
	for _, h := range p.hosts {
		out = append(out, h)
	}
	return out
}

// Links returns every declared link, in no particular order.
func (p *Platform) Links() []*surf.Link {
	out := make([]*surf.Link, 0, len(p.links))
	for _, l := range p.links {
		out = append(out, l)
	}
	return out
}

// Route returns the declared forward path from src to dst, and — if
// one was separately declared — the dst-to-src path to use as the
// reverse route for TCP-ACK back-pressure (spec.md §4.B). A platform
// that never declared the reverse simply communicates without modeling
// ACK traffic.
func (p *Platform) Route(src, dst string) (route, reverse []*surf.Link, ok bool) {
	route, ok = p.routes[routeKey{src, dst}]
	if !ok {
		return nil, nil, false
	}
	reverse = p.routes[routeKey{dst, src}]
	return route, reverse, true
}
