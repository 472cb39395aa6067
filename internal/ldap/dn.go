package ldap

import (
	"strings"
)

// DN helpers. Distinguished names are comma-separated attr=value segments
// ordered leaf-first: "CN=foo,OU=bar,DC=domain,DC=com".

// ExtractName returns the value of the leaf RDN.
//
//	"CN=foo,CN=bar,DC=domain,DC=com" => "foo"
func ExtractName(dn string) string {
	equalsIdx := strings.Index(dn, "=")
	if equalsIdx < 0 {
		return ""
	}

	rest := dn[equalsIdx+1:]
	if commaIdx := strings.Index(rest, ","); commaIdx >= 0 {
		return rest[:commaIdx]
	}
	return rest
}

// FirstRDN returns the leaf attr=value segment of a DN.
func FirstRDN(dn string) string {
	if commaIdx := strings.Index(dn, ","); commaIdx >= 0 {
		return dn[:commaIdx]
	}
	return dn
}

// ExtractParent returns the DN with its leaf RDN removed.
//
//	"CN=foo,CN=bar,DC=domain,DC=com" => "CN=bar,DC=domain,DC=com"
func ExtractParent(dn string) string {
	commaIdx := strings.Index(dn, ",")
	if commaIdx < 0 {
		return ""
	}
	return dn[commaIdx+1:]
}

// Depth counts the RDN segments of a DN. An empty DN has depth zero.
func Depth(dn string) int {
	if dn == "" {
		return 0
	}
	return strings.Count(dn, ",") + 1
}

// RenameDN substitutes the leaf segment's value with newName, preserving the
// attribute-type prefix.
//
//	RenameDN("CN=alice,OU=users,DC=x", "bob") => "CN=bob,OU=users,DC=x"
func RenameDN(dn, newName string) string {
	segments := strings.Split(dn, ",")
	segments[0] = RenameRDN(segments[0], newName)
	return strings.Join(segments, ",")
}

// RenameRDN substitutes the value of a single attr=value segment.
func RenameRDN(rdn, newName string) string {
	equalsIdx := strings.Index(rdn, "=")
	if equalsIdx < 0 {
		return rdn
	}
	return rdn[:equalsIdx+1] + newName
}

// MoveDN keeps the leaf RDN of dn and replaces the rest with the new
// container DN.
//
//	MoveDN("CN=alice,OU=users,DC=x", "OU=staff,DC=x") => "CN=alice,OU=staff,DC=x"
func MoveDN(dn, newContainer string) string {
	segments := strings.Split(dn, ",")
	return segments[0] + "," + newContainer
}

// EscapeDNValue escapes special characters in a DN attribute value according
// to RFC 4514: the characters , + " \ < > ; are always escaped, a leading #
// is escaped, leading and trailing spaces are escaped, and NULL bytes become
// \00.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 10)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// Filter construction helpers.

// FilterEquals builds an (attribute=value) filter with the value escaped.
func FilterEquals(attribute, value string) string {
	return "(" + attribute + "=" + escapeFilterValue(value) + ")"
}

// FilterAnd combines filters with the & operator.
func FilterAnd(filters ...string) string {
	return "(&" + strings.Join(filters, "") + ")"
}

// FilterOr combines filters with the | operator.
func FilterOr(filters ...string) string {
	return "(|" + strings.Join(filters, "") + ")"
}

// FilterNot negates a filter.
func FilterNot(filter string) string {
	return "(!" + filter + ")"
}

func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(
		"\\", "\\5c",
		"(", "\\28",
		")", "\\29",
		"*", "\\2a",
		"\x00", "\\00",
	)
	return replacer.Replace(value)
}
