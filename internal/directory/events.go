// Package directory implements a DN-keyed attribute cache over a directory
// client, keeping the cache consistent with server-side rename, move and
// delete propagation and notifying subscribers of every change.
package directory

// EntryType identifies the kind of entry being created.
type EntryType int

const (
	EntryUser EntryType = iota
	EntryComputer
	EntryOU
	EntryGroup
	EntrySite
	EntrySubnet
	EntrySiteLink
)

// String returns the string representation of an entry type.
func (t EntryType) String() string {
	switch t {
	case EntryUser:
		return "user"
	case EntryComputer:
		return "computer"
	case EntryOU:
		return "organizational_unit"
	case EntryGroup:
		return "group"
	case EntrySite:
		return "site"
	case EntrySubnet:
		return "subnet"
	case EntrySiteLink:
		return "site_link"
	default:
		return "unknown"
	}
}

// Event is implemented by all session notifications. Subscribers receive
// events synchronously, on the goroutine performing the operation, in the
// order the session emits them.
type Event interface {
	event()
}

// LoginComplete reports a successful connection.
type LoginComplete struct {
	URI          string
	BindIdentity string
}

// LoginFailed reports a failed connection attempt.
type LoginFailed struct {
	URI          string
	BindIdentity string
	Error        string
}

// DNChanged reports that a cached entry's DN was rewritten after a rename
// or move. For multi-entry propagation, events arrive shallowest first.
type DNChanged struct {
	OldDN string
	NewDN string
}

// AttributesChanged reports that an entry's cached attribute map changed.
type AttributesChanged struct {
	DN string
}

// LoadFailed reports a failed attribute load.
type LoadFailed struct {
	DN    string
	Error string
}

// AttributeSet reports a successful single-attribute replace.
type AttributeSet struct {
	DN        string
	Attribute string
	OldValue  string
	NewValue  string
}

// AttributeSetFailed reports a failed single-attribute replace.
type AttributeSetFailed struct {
	DN        string
	Attribute string
	OldValue  string
	NewValue  string
	Error     string
}

// EntryCreated reports a successful entry creation.
type EntryCreated struct {
	DN   string
	Type EntryType
}

// EntryCreateFailed reports a failed entry creation.
type EntryCreateFailed struct {
	DN    string
	Type  EntryType
	Error string
}

// EntryDeleted reports a successful entry deletion.
type EntryDeleted struct {
	DN string
}

// EntryDeleteFailed reports a failed entry deletion.
type EntryDeleteFailed struct {
	DN    string
	Error string
}

// MoveComplete reports a successful move.
type MoveComplete struct {
	OldDN        string
	NewContainer string
	NewDN        string
}

// MoveFailed reports a failed move.
type MoveFailed struct {
	OldDN        string
	NewContainer string
	NewDN        string
	Error        string
}

// RenameComplete reports a successful rename.
type RenameComplete struct {
	OldDN   string
	NewName string
	NewDN   string
}

// RenameFailed reports a failed rename.
type RenameFailed struct {
	OldDN   string
	NewName string
	NewDN   string
	Error   string
}

// MemberAdded reports a successful group membership addition.
type MemberAdded struct {
	GroupDN  string
	MemberDN string
}

// MemberAddFailed reports a failed group membership addition.
type MemberAddFailed struct {
	GroupDN  string
	MemberDN string
	Error    string
}

// MemberRemoved reports a successful group membership removal.
type MemberRemoved struct {
	GroupDN  string
	MemberDN string
}

// MemberRemoveFailed reports a failed group membership removal.
type MemberRemoveFailed struct {
	GroupDN  string
	MemberDN string
	Error    string
}

// PasswordSet reports a successful password change.
type PasswordSet struct {
	DN string
}

// PasswordSetFailed reports a failed password change.
type PasswordSetFailed struct {
	DN    string
	Error string
}

// SearchFailed reports a failed search.
type SearchFailed struct {
	Filter string
	Error  string
}

func (LoginComplete) event()      {}
func (LoginFailed) event()        {}
func (DNChanged) event()          {}
func (AttributesChanged) event()  {}
func (LoadFailed) event()         {}
func (AttributeSet) event()       {}
func (AttributeSetFailed) event() {}
func (EntryCreated) event()       {}
func (EntryCreateFailed) event()  {}
func (EntryDeleted) event()       {}
func (EntryDeleteFailed) event()  {}
func (MoveComplete) event()       {}
func (MoveFailed) event()         {}
func (RenameComplete) event()     {}
func (RenameFailed) event()       {}
func (MemberAdded) event()        {}
func (MemberAddFailed) event()    {}
func (MemberRemoved) event()      {}
func (MemberRemoveFailed) event() {}
func (PasswordSet) event()        {}
func (PasswordSetFailed) event()  {}
func (SearchFailed) event()       {}
