package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/Samael-fhts/admc/internal/ldap"
)

// Session maintains a DN-keyed cache of entry attributes on top of a
// directory client. A DN is either wholly absent from the cache or carries
// a fully populated attribute map; there is no partially loaded state.
//
// The session expects a single logical caller. Cache mutations are applied
// under a lock as one transaction per operation, so a reader never observes
// a partially rewritten cache, but the event callbacks themselves run
// unsynchronized on the calling goroutine.
type Session struct {
	client     ldap.Client
	searchBase string
	log        ldap.Logger

	mu        sync.Mutex
	connected bool
	loaded    map[string]struct{}
	attrs     map[string]ldap.Attributes

	subscribers []func(Event)
}

// NewSession creates a session over the given client. searchBase is the DN
// all searches are rooted at.
func NewSession(client ldap.Client, searchBase string, log ldap.Logger) *Session {
	if log == nil {
		log = ldap.NopLogger{}
	}
	return &Session{
		client:     client,
		searchBase: searchBase,
		log:        log,
		loaded:     make(map[string]struct{}),
		attrs:      make(map[string]ldap.Attributes),
	}
}

// Subscribe registers a callback invoked synchronously for every session
// event. Not safe to call concurrently with session operations.
func (s *Session) Subscribe(fn func(Event)) {
	s.subscribers = append(s.subscribers, fn)
}

func (s *Session) emit(events ...Event) {
	for _, event := range events {
		for _, fn := range s.subscribers {
			fn(event)
		}
	}
}

// SearchBase returns the DN searches are rooted at.
func (s *Session) SearchBase() string {
	return s.searchBase
}

// Connect establishes the underlying directory binding. Operations on a
// session that never connected, or whose last connection attempt failed,
// fail with a connection error.
func (s *Session) Connect(ctx context.Context, uri, bindIdentity, secret string) error {
	err := s.client.Connect(ctx, uri, bindIdentity, secret)

	s.mu.Lock()
	s.connected = err == nil
	s.mu.Unlock()

	if err != nil {
		s.emit(LoginFailed{URI: uri, BindIdentity: bindIdentity, Error: err.Error()})
		return err
	}

	s.emit(LoginComplete{URI: uri, BindIdentity: bindIdentity})
	return nil
}

// IsConnected reports whether the last connection attempt succeeded and
// the session has not been closed since.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return s.client.Close()
}

// fetchAttributes reads every attribute of dn from the server. The second
// return value reports whether the entry was found.
func (s *Session) fetchAttributes(ctx context.Context, dn string) (ldap.Attributes, bool, error) {
	entries, err := s.client.Search(ctx, dn, ldap.ScopeBase, "", []string{"*"})
	if err != nil {
		if ldap.IsNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	for entryDN, attrs := range entries {
		if strings.EqualFold(entryDN, dn) || len(entries) == 1 {
			return attrs, true, nil
		}
	}
	return nil, false, nil
}

// LoadAttributes fetches every attribute of dn, replacing any previously
// cached map and marking dn as loaded. An entry that exists with zero
// attributes is a valid empty result, not an error.
func (s *Session) LoadAttributes(ctx context.Context, dn string) error {
	_, err := s.loadAttributes(ctx, dn)
	return err
}

// loadAttributes fetches and stores dn's attributes, announcing the change.
// Lazy cache fills on read go through here too, so subscribers mirroring
// the cache see every fill.
func (s *Session) loadAttributes(ctx context.Context, dn string) (bool, error) {
	attrs, found, err := s.fetchAttributes(ctx, dn)
	if err != nil {
		s.emit(LoadFailed{DN: dn, Error: err.Error()})
		return false, err
	}
	if !found {
		return false, nil
	}

	s.mu.Lock()
	s.storeLocked(dn, attrs)
	s.mu.Unlock()

	s.emit(AttributesChanged{DN: dn})
	return true, nil
}

func (s *Session) storeLocked(dn string, attrs ldap.Attributes) {
	if attrs == nil {
		attrs = make(ldap.Attributes)
	}
	s.attrs[dn] = attrs
	s.loaded[dn] = struct{}{}
}

// Attributes returns the cached attribute map of dn, loading it first if dn
// was never loaded. An empty DN returns an empty map without touching the
// cache or the client.
func (s *Session) Attributes(ctx context.Context, dn string) ldap.Attributes {
	if dn == "" {
		return ldap.Attributes{}
	}

	s.mu.Lock()
	_, isLoaded := s.loaded[dn]
	s.mu.Unlock()

	if !isLoaded {
		// Best effort: a failed load leaves the DN unloaded and the
		// caller sees an empty map.
		_, _ = s.loadAttributes(ctx, dn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.attrs[dn]
	if !ok {
		return ldap.Attributes{}
	}
	return attrs.Clone()
}

// AttributeValues returns all values of an attribute, in server order.
func (s *Session) AttributeValues(ctx context.Context, dn, attribute string) []string {
	return s.Attributes(ctx, dn)[attribute]
}

// Attribute returns the first value of an attribute, or the empty string.
func (s *Session) Attribute(ctx context.Context, dn, attribute string) string {
	values := s.AttributeValues(ctx, dn, attribute)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// AttributeValueExists reports whether an attribute contains a value.
func (s *Session) AttributeValueExists(ctx context.Context, dn, attribute, value string) bool {
	for _, v := range s.AttributeValues(ctx, dn, attribute) {
		if v == value {
			return true
		}
	}
	return false
}

// SetAttribute replaces all values of an attribute with a single value. On
// success the entry's attributes are reloaded from the server, since a
// write can change server-computed attributes beyond the one modified.
func (s *Session) SetAttribute(ctx context.Context, dn, attribute, value string) error {
	oldValue := s.Attribute(ctx, dn, attribute)

	if err := s.client.ModifyReplace(ctx, dn, attribute, []string{value}); err != nil {
		s.emit(AttributeSetFailed{
			DN:        dn,
			Attribute: attribute,
			OldValue:  oldValue,
			NewValue:  value,
			Error:     s.client.LastError(),
		})
		return err
	}

	s.reload(ctx, dn)
	s.emit(
		AttributesChanged{DN: dn},
		AttributeSet{DN: dn, Attribute: attribute, OldValue: oldValue, NewValue: value},
	)
	return nil
}

// reload refreshes the cached attributes of dn without emitting events.
func (s *Session) reload(ctx context.Context, dn string) {
	attrs, found, err := s.fetchAttributes(ctx, dn)
	if err != nil || !found {
		return
	}
	s.mu.Lock()
	s.storeLocked(dn, attrs)
	s.mu.Unlock()
}

// CreateEntry creates a new entry of the given type under dn.
func (s *Session) CreateEntry(ctx context.Context, name, dn string, entryType EntryType) error {
	var err error
	switch entryType {
	case EntryUser:
		err = s.client.CreateUser(ctx, name, dn)
	case EntryComputer:
		err = s.client.CreateComputer(ctx, name, dn)
	case EntryOU:
		err = s.client.CreateOU(ctx, name, dn)
	case EntryGroup:
		err = s.client.CreateGroup(ctx, name, dn)
	default:
		return s.createTopologyEntry(ctx, name, dn, entryType)
	}

	if err != nil {
		s.emit(EntryCreateFailed{DN: dn, Type: entryType, Error: s.client.LastError()})
		return err
	}

	s.emit(EntryCreated{DN: dn, Type: entryType})
	return nil
}

// DeleteEntry deletes an entry and removes it, its descendants and every
// cached reference to it from the cache.
func (s *Session) DeleteEntry(ctx context.Context, dn string) error {
	if err := s.client.Delete(ctx, dn); err != nil {
		s.emit(EntryDeleteFailed{DN: dn, Error: s.client.LastError()})
		return err
	}

	s.updateCache(ctx, dn, "")
	s.emit(EntryDeleted{DN: dn})
	return nil
}

// Move relocates an entry under a new container, keeping its leaf RDN. A
// user entry takes the user-specific client path, which also updates the
// principal name server-side.
func (s *Session) Move(ctx context.Context, dn, newContainer string) error {
	newDN := ldap.MoveDN(dn, newContainer)

	var err error
	if s.IsUser(ctx, dn) {
		err = s.client.MoveUser(ctx, dn, newContainer)
	} else {
		err = s.client.Move(ctx, dn, newContainer)
	}

	if err != nil {
		s.emit(MoveFailed{OldDN: dn, NewContainer: newContainer, NewDN: newDN, Error: s.client.LastError()})
		return err
	}

	s.updateCache(ctx, dn, newDN)
	s.emit(MoveComplete{OldDN: dn, NewContainer: newContainer, NewDN: newDN})
	return nil
}

// Rename changes an entry's name, preserving the RDN attribute type. Users
// and groups take specialized client paths that also rewrite their account
// name attributes.
func (s *Session) Rename(ctx context.Context, dn, newName string) error {
	newDN := ldap.RenameDN(dn, newName)

	var err error
	switch {
	case s.IsUser(ctx, dn):
		err = s.client.RenameUser(ctx, dn, newName)
	case s.IsGroup(ctx, dn):
		err = s.client.RenameGroup(ctx, dn, newName)
	default:
		err = s.client.Rename(ctx, dn, ldap.RenameRDN(ldap.FirstRDN(dn), newName))
	}

	if err != nil {
		s.emit(RenameFailed{OldDN: dn, NewName: newName, NewDN: newDN, Error: s.client.LastError()})
		return err
	}

	s.updateCache(ctx, dn, newDN)
	s.emit(RenameComplete{OldDN: dn, NewName: newName, NewDN: newDN})
	return nil
}

// AddMemberToGroup adds memberDn to the group's member list. On success
// the cached member/memberOf attributes of both sides are patched locally
// instead of reloaded; a side that was never loaded stays unloaded.
func (s *Session) AddMemberToGroup(ctx context.Context, groupDN, memberDN string) error {
	if err := s.client.ModifyAdd(ctx, groupDN, "member", []string{memberDN}); err != nil {
		s.emit(MemberAddFailed{GroupDN: groupDN, MemberDN: memberDN, Error: s.client.LastError()})
		return err
	}

	s.addAttributeLocal(groupDN, "member", memberDN)
	s.addAttributeLocal(memberDN, "memberOf", groupDN)
	s.emit(MemberAdded{GroupDN: groupDN, MemberDN: memberDN})
	return nil
}

// RemoveMemberFromGroup removes memberDn from the group's member list,
// patching loaded cache entries locally like AddMemberToGroup.
func (s *Session) RemoveMemberFromGroup(ctx context.Context, groupDN, memberDN string) error {
	if err := s.client.ModifyDelete(ctx, groupDN, "member", []string{memberDN}); err != nil {
		s.emit(MemberRemoveFailed{GroupDN: groupDN, MemberDN: memberDN, Error: s.client.LastError()})
		return err
	}

	s.removeAttributeLocal(groupDN, "member", memberDN)
	s.removeAttributeLocal(memberDN, "memberOf", groupDN)
	s.emit(MemberRemoved{GroupDN: groupDN, MemberDN: memberDN})
	return nil
}

// addAttributeLocal appends a value to a loaded entry's attribute in the
// cache. Unloaded DNs are left untouched.
func (s *Session) addAttributeLocal(dn, attribute, value string) {
	s.mu.Lock()
	_, isLoaded := s.loaded[dn]
	if isLoaded {
		if s.attrs[dn] == nil {
			s.attrs[dn] = make(ldap.Attributes)
		}
		s.attrs[dn][attribute] = append(s.attrs[dn][attribute], value)
	}
	s.mu.Unlock()

	if isLoaded {
		s.emit(AttributesChanged{DN: dn})
	}
}

// removeAttributeLocal removes the first occurrence of a value from a
// loaded entry's attribute in the cache. Unloaded DNs and absent values
// are left untouched.
func (s *Session) removeAttributeLocal(dn, attribute, value string) {
	s.mu.Lock()
	removed := false
	if _, isLoaded := s.loaded[dn]; isLoaded {
		values := s.attrs[dn][attribute]
		for i, v := range values {
			if v == value {
				s.attrs[dn][attribute] = append(values[:i:i], values[i+1:]...)
				removed = true
				break
			}
		}
	}
	s.mu.Unlock()

	if removed {
		s.emit(AttributesChanged{DN: dn})
	}
}

// SetPassword sets an entry's password and reloads its attributes.
func (s *Session) SetPassword(ctx context.Context, dn, password string) error {
	if err := s.client.SetPassword(ctx, dn, password); err != nil {
		s.emit(PasswordSetFailed{DN: dn, Error: s.client.LastError()})
		return err
	}

	s.reload(ctx, dn)
	s.emit(AttributesChanged{DN: dn}, PasswordSet{DN: dn})
	return nil
}

// Type predicates check for the known type-marker value in the entry's
// objectClass, loading attributes on demand.

func (s *Session) IsUser(ctx context.Context, dn string) bool {
	return s.AttributeValueExists(ctx, dn, "objectClass", "user")
}

func (s *Session) IsGroup(ctx context.Context, dn string) bool {
	return s.AttributeValueExists(ctx, dn, "objectClass", "group")
}

func (s *Session) IsComputer(ctx context.Context, dn string) bool {
	return s.AttributeValueExists(ctx, dn, "objectClass", "computer")
}

func (s *Session) IsContainer(ctx context.Context, dn string) bool {
	return s.AttributeValueExists(ctx, dn, "objectClass", "container")
}

func (s *Session) IsOU(ctx context.Context, dn string) bool {
	return s.AttributeValueExists(ctx, dn, "objectClass", "organizationalUnit")
}

func (s *Session) IsPolicy(ctx context.Context, dn string) bool {
	return s.AttributeValueExists(ctx, dn, "objectClass", "groupPolicyContainer")
}

// IsContainerLike reports whether the entry can hold children in a tree
// view sense.
func (s *Session) IsContainerLike(ctx context.Context, dn string) bool {
	for _, class := range []string{"organizationalUnit", "builtinDomain", "domain"} {
		if s.AttributeValueExists(ctx, dn, "objectClass", class) {
			return true
		}
	}
	return false
}

// Search returns the DNs matching a filter under the session's search
// base. On error the result is empty and a SearchFailed event is emitted.
func (s *Session) Search(ctx context.Context, filter string) []string {
	entries, err := s.client.Search(ctx, s.searchBase, ldap.ScopeSubtree, filter, []string{"1.1"})
	if err != nil {
		s.emit(SearchFailed{Filter: filter, Error: s.client.LastError()})
		return nil
	}

	return sortedDNs(entries)
}

// Children returns the DNs of an entry's direct children.
func (s *Session) Children(ctx context.Context, dn string) []string {
	entries, err := s.client.Search(ctx, dn, ldap.ScopeOneLevel, "", []string{"1.1"})
	if err != nil {
		s.emit(SearchFailed{Filter: "(objectClass=*)", Error: s.client.LastError()})
		return nil
	}

	return sortedDNs(entries)
}
