package transport

import "reflect"

// BalancedSourceGroup presents N underlying Sources as a single Feed. Each
// tick comes from whichever member has one ready; per-member order is
// preserved, but there is no ordering guarantee across members.
type BalancedSourceGroup struct {
	members []*Source
	next    int
}

// NewBalancedSourceGroup groups the given sources into one balanced feed.
func NewBalancedSourceGroup(members []*Source) *BalancedSourceGroup {
	return &BalancedSourceGroup{members: members}
}

// Read implements Feed by scanning members in rotating order starting from
// the member after the one last served, so no single fast member starves
// the others.
func (g *BalancedSourceGroup) Read() (*Tick, bool) {
	n := len(g.members)
	for i := 0; i < n; i++ {
		idx := (g.next + i) % n
		if t, ok := g.members[idx].Read(); ok {
			g.next = (idx + 1) % n
			return t, true
		}
	}
	return nil, false
}

// Peek returns the next available tick, in the same rotating order as Read,
// without dequeuing it.
func (g *BalancedSourceGroup) Peek() (*Tick, bool) {
	n := len(g.members)
	for i := 0; i < n; i++ {
		idx := (g.next + i) % n
		if t, ok := g.members[idx].Peek(); ok {
			return t, true
		}
	}
	return nil, false
}

// Ephemeral reports true only if every member is ephemeral, matching the
// join discipline's "never blocks" requirement for all-ephemeral groups.
func (g *BalancedSourceGroup) Ephemeral() bool {
	for _, m := range g.members {
		if !m.Ephemeral() {
			return false
		}
	}
	return true
}

// Done closes when any required (non-ephemeral) member's upstream is gone.
func (g *BalancedSourceGroup) Done() <-chan struct{} {
	merged := make(chan struct{})
	go func() {
		defer close(merged)
		cases := make([]reflect.SelectCase, 0, len(g.members))
		for _, m := range g.members {
			if !m.Ephemeral() {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(m.Done())})
			}
		}
		if len(cases) == 0 {
			// No required members: block forever (never "done").
			select {}
		}
		reflect.Select(cases)
	}()
	return merged
}

// Topics returns the first member's topic spec; members of a balanced group
// are expected to share identical topic specs.
func (g *BalancedSourceGroup) Topics() TopicSpec {
	if len(g.members) == 0 {
		return TopicSpec{}
	}
	return g.members[0].Topics()
}

// Label implements Feed.
func (g *BalancedSourceGroup) Label() string {
	label := "balanced["
	for i, m := range g.members {
		if i > 0 {
			label += ","
		}
		label += m.Label()
	}
	return label + "]"
}
