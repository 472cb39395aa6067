package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/Samael-fhts/admc/internal/ldap"
)

// updateCache rewrites every cached trace of oldDN after a successful
// delete, rename or move. newDN == "" means the entry was deleted. The
// server propagates DN changes to descendants and referring attributes
// internally without notifying clients, so the cache has to replicate that
// propagation locally.
//
// Containment is substring-based rather than segment-aware: a descendant DN
// always ends with its ancestor's DN, and attribute values embed referenced
// DNs as plain text. The flip side is that a DN textually containing oldDN
// without being a true descendant gets rewritten too.
func (s *Session) updateCache(ctx context.Context, oldDN, newDN string) {
	deleted := oldDN != "" && newDN == ""

	type dnChange struct {
		oldDN string
		newDN string
	}

	s.mu.Lock()

	// Rewrite every cached DN containing the changed DN, which covers the
	// changed entry itself and all of its descendants.
	var changes []dnChange
	for _, dn := range cachedDNsLocked(s) {
		if !strings.Contains(dn, oldDN) {
			continue
		}

		// A deleted entry has no meaningful new DN.
		updatedDN := ""
		if !deleted {
			updatedDN = strings.ReplaceAll(dn, oldDN, newDN)
		}

		if deleted {
			delete(s.attrs, dn)
			delete(s.loaded, dn)
		} else {
			s.attrs[updatedDN] = s.attrs[dn]
			s.loaded[updatedDN] = struct{}{}
			delete(s.attrs, dn)
			delete(s.loaded, dn)
		}

		changes = append(changes, dnChange{oldDN: dn, newDN: updatedDN})
	}

	// Rewrite every attribute value containing the changed DN, collecting
	// one notification per affected entry.
	touched := make(map[string]struct{})
	for dn, attrs := range s.attrs {
		for attribute, values := range attrs {
			rewritten := values[:0:0]
			changed := false
			for _, value := range values {
				if !strings.Contains(value, oldDN) {
					rewritten = append(rewritten, value)
					continue
				}
				changed = true
				if !deleted {
					rewritten = append(rewritten, strings.ReplaceAll(value, oldDN, newDN))
				}
			}
			if changed {
				attrs[attribute] = rewritten
				touched[dn] = struct{}{}
			}
		}
	}

	_, reloadNew := s.loaded[newDN]

	s.mu.Unlock()

	// Shallower entries first, so consumers process a renamed parent
	// before its children.
	sort.SliceStable(changes, func(i, j int) bool {
		return ldap.Depth(changes[i].oldDN) < ldap.Depth(changes[j].oldDN)
	})
	for _, change := range changes {
		s.emit(DNChanged{OldDN: change.oldDN, NewDN: change.newDN})
	}

	// A rename or move changes server-computed attributes beyond the DN,
	// so the moved entry itself is refreshed from the server. This runs
	// after the DN notifications so consumers see DN changes settle first.
	if !deleted && reloadNew {
		s.reload(ctx, newDN)
		s.emit(AttributesChanged{DN: newDN})
	}

	for _, dn := range sortedKeys(touched) {
		s.emit(AttributesChanged{DN: dn})
	}
}

func cachedDNsLocked(s *Session) []string {
	dns := make([]string, 0, len(s.attrs))
	for dn := range s.attrs {
		dns = append(dns, dn)
	}
	sort.Strings(dns)
	return dns
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedDNs(entries map[string]ldap.Attributes) []string {
	dns := make([]string, 0, len(entries))
	for dn := range entries {
		dns = append(dns, dn)
	}
	sort.Strings(dns)
	return dns
}
