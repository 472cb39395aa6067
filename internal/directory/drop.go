package directory

import "context"

// DropType is the action performed when one entry is dropped onto another.
type DropType int

const (
	DropNone DropType = iota
	DropMove
	DropAddToGroup
)

// String returns the string representation of a drop type.
func (t DropType) String() string {
	switch t {
	case DropMove:
		return "move"
	case DropAddToGroup:
		return "add_to_group"
	default:
		return "none"
	}
}

// GetDropType decides what dropping one entry onto another means. A user
// dropped on an OU or container moves; a user dropped on a group joins it.
// Groups and OUs move onto anything that is not a user or group. Dropping
// an entry onto itself never does anything.
func (s *Session) GetDropType(ctx context.Context, dn, targetDN string) DropType {
	if dn == targetDN {
		return DropNone
	}

	droppedIsUser := s.IsUser(ctx, dn)
	droppedIsGroup := s.IsGroup(ctx, dn)
	droppedIsOU := s.IsOU(ctx, dn)

	targetIsUser := s.IsUser(ctx, targetDN)
	targetIsGroup := s.IsGroup(ctx, targetDN)
	targetIsOU := s.IsOU(ctx, targetDN)
	targetIsContainer := s.IsContainer(ctx, targetDN)

	if droppedIsUser {
		if targetIsOU || targetIsContainer {
			return DropMove
		}
		if targetIsGroup {
			return DropAddToGroup
		}
	} else if droppedIsGroup || droppedIsOU {
		if !targetIsUser && !targetIsGroup {
			return DropMove
		}
	}

	return DropNone
}

// CanDrop reports whether dropping dn onto targetDN performs any action.
func (s *Session) CanDrop(ctx context.Context, dn, targetDN string) bool {
	return s.GetDropType(ctx, dn, targetDN) != DropNone
}

// DropEntry performs the action decided by GetDropType: a move relocates
// the dropped entry under the target, a group drop adds it to the target
// group. A None drop does nothing and reports no error.
func (s *Session) DropEntry(ctx context.Context, dn, targetDN string) error {
	switch s.GetDropType(ctx, dn, targetDN) {
	case DropMove:
		return s.Move(ctx, dn, targetDN)
	case DropAddToGroup:
		return s.AddMemberToGroup(ctx, targetDN, dn)
	default:
		return nil
	}
}
