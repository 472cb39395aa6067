package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/Samael-fhts/admc/internal/ldap"
)

// fakeClient is an in-memory directory backing session tests. Entries are
// keyed by DN; rename and move propagate to descendant keys the way a real
// server does.
type fakeClient struct {
	mu      sync.Mutex
	entries map[string]ldap.Attributes

	calls      map[string]int
	failOp     string
	failErr    error
	lastErr    error
	searchHook func(base, filter string)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		entries: make(map[string]ldap.Attributes),
		calls:   make(map[string]int),
	}
}

func (f *fakeClient) addEntry(dn string, attrs ldap.Attributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[dn] = attrs.Clone()
}

func (f *fakeClient) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOp = op
	f.failErr = err
}

func (f *fakeClient) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// begin records the call and returns the injected failure, if any.
func (f *fakeClient) begin(op string) error {
	f.calls[op]++
	if f.failOp == op && f.failErr != nil {
		f.lastErr = f.failErr
		return f.failErr
	}
	f.lastErr = nil
	return nil
}

func (f *fakeClient) Connect(ctx context.Context, uri, bindDN, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin("connect")
}

func (f *fakeClient) Close() error   { return nil }
func (f *fakeClient) IsSecure() bool { return true }

func (f *fakeClient) Search(ctx context.Context, base string, scope ldap.Scope, filter string, attributes []string) (map[string]ldap.Attributes, error) {
	f.mu.Lock()
	if err := f.begin("search"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	hook := f.searchHook
	f.mu.Unlock()

	if hook != nil {
		hook(base, filter)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	result := make(map[string]ldap.Attributes)
	for dn, attrs := range f.entries {
		switch scope {
		case ldap.ScopeBase:
			if dn == base {
				result[dn] = attrs.Clone()
			}
		case ldap.ScopeOneLevel:
			if ldap.ExtractParent(dn) == base {
				result[dn] = attrs.Clone()
			}
		default:
			if dn == base || strings.HasSuffix(dn, ","+base) {
				result[dn] = attrs.Clone()
			}
		}
	}

	if scope == ldap.ScopeBase && len(result) == 0 {
		err := &ldap.DirectoryError{Operation: "search", Code: ldap.ObjectNotFound, Message: "no such object", DN: base}
		f.lastErr = err
		return nil, err
	}
	return result, nil
}

func (f *fakeClient) Add(ctx context.Context, dn string, attributes ldap.Attributes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("add"); err != nil {
		return err
	}
	f.entries[dn] = attributes.Clone()
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("delete"); err != nil {
		return err
	}
	for key := range f.entries {
		if key == dn || strings.HasSuffix(key, ","+dn) {
			delete(f.entries, key)
		}
	}
	return nil
}

func (f *fakeClient) ModifyReplace(ctx context.Context, dn, attribute string, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("modify_replace"); err != nil {
		return err
	}
	if f.entries[dn] == nil {
		f.entries[dn] = make(ldap.Attributes)
	}
	f.entries[dn][attribute] = append([]string(nil), values...)
	return nil
}

func (f *fakeClient) ModifyAdd(ctx context.Context, dn, attribute string, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("modify_add"); err != nil {
		return err
	}
	if f.entries[dn] == nil {
		f.entries[dn] = make(ldap.Attributes)
	}
	f.entries[dn][attribute] = append(f.entries[dn][attribute], values...)
	return nil
}

func (f *fakeClient) ModifyDelete(ctx context.Context, dn, attribute string, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("modify_delete"); err != nil {
		return err
	}
	current := f.entries[dn][attribute]
	for _, value := range values {
		for i, v := range current {
			if v == value {
				current = append(current[:i:i], current[i+1:]...)
				break
			}
		}
	}
	f.entries[dn][attribute] = current
	return nil
}

// renameEntries rewrites every key containing oldDN, mirroring server-side
// subtree propagation.
func (f *fakeClient) renameEntries(oldDN, newDN string) {
	for key, attrs := range f.entries {
		if key == oldDN || strings.HasSuffix(key, ","+oldDN) {
			updated := strings.Replace(key, oldDN, newDN, 1)
			delete(f.entries, key)
			f.entries[updated] = attrs
		}
	}
}

func (f *fakeClient) Rename(ctx context.Context, dn, newRDN string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("rename"); err != nil {
		return err
	}
	newDN := newRDN
	if parent := ldap.ExtractParent(dn); parent != "" {
		newDN = newRDN + "," + parent
	}
	f.renameEntries(dn, newDN)
	f.setNamingAttribute(newDN)
	return nil
}

// setNamingAttribute mirrors the server rewriting the RDN attribute after
// a modify-DN operation.
func (f *fakeClient) setNamingAttribute(dn string) {
	if f.entries[dn] == nil {
		return
	}
	rdn := ldap.FirstRDN(dn)
	if eq := strings.Index(rdn, "="); eq > 0 {
		f.entries[dn][strings.ToLower(rdn[:eq])] = []string{rdn[eq+1:]}
	}
}

func (f *fakeClient) Move(ctx context.Context, dn, newParent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("move"); err != nil {
		return err
	}
	f.renameEntries(dn, ldap.MoveDN(dn, newParent))
	return nil
}

func (f *fakeClient) RenameUser(ctx context.Context, dn, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("rename_user"); err != nil {
		return err
	}
	newDN := ldap.RenameDN(dn, newName)
	f.renameEntries(dn, newDN)
	f.setNamingAttribute(newDN)
	if f.entries[newDN] != nil {
		f.entries[newDN]["sAMAccountName"] = []string{newName}
	}
	return nil
}

func (f *fakeClient) RenameGroup(ctx context.Context, dn, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("rename_group"); err != nil {
		return err
	}
	newDN := ldap.RenameDN(dn, newName)
	f.renameEntries(dn, newDN)
	f.setNamingAttribute(newDN)
	if f.entries[newDN] != nil {
		f.entries[newDN]["sAMAccountName"] = []string{newName}
	}
	return nil
}

func (f *fakeClient) MoveUser(ctx context.Context, dn, newParent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("move_user"); err != nil {
		return err
	}
	f.renameEntries(dn, ldap.MoveDN(dn, newParent))
	return nil
}

func (f *fakeClient) CreateUser(ctx context.Context, name, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_user"); err != nil {
		return err
	}
	f.entries[dn] = ldap.Attributes{"objectClass": {"top", "person", "user"}, "cn": {name}}
	return nil
}

func (f *fakeClient) CreateComputer(ctx context.Context, name, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_computer"); err != nil {
		return err
	}
	f.entries[dn] = ldap.Attributes{"objectClass": {"top", "computer"}, "cn": {name}}
	return nil
}

func (f *fakeClient) CreateGroup(ctx context.Context, name, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_group"); err != nil {
		return err
	}
	f.entries[dn] = ldap.Attributes{"objectClass": {"top", "group"}, "cn": {name}}
	return nil
}

func (f *fakeClient) CreateOU(ctx context.Context, name, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_ou"); err != nil {
		return err
	}
	f.entries[dn] = ldap.Attributes{"objectClass": {"top", "organizationalUnit"}, "ou": {name}}
	return nil
}

func (f *fakeClient) SetPassword(ctx context.Context, dn, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin("set_password")
}

func (f *fakeClient) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastErr == nil {
		return ""
	}
	return f.lastErr.Error()
}

func (f *fakeClient) LastErrorCode() ldap.ResultCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ldap.ErrorCode(f.lastErr)
}
