package model

import "fmt"

// SecretScope selects which upstream secret authorizes an outbound call.
// Secrets of different scopes are never cross-applied.
type SecretScope string

const (
	ScopeAgent    SecretScope = "agent"    // application secret
	ScopeContacts SecretScope = "contacts" // address-book secret
	ScopeCorp     SecretScope = "corp"     // corporate secret
)

// ParseSecretScope accepts the scope names used in configuration and query
// strings. "concat" is accepted as an alias for contacts.
func ParseSecretScope(s string) (SecretScope, error) {
	switch s {
	case "agent", "":
		return ScopeAgent, nil
	case "contacts", "concat":
		return ScopeContacts, nil
	case "corp":
		return ScopeCorp, nil
	default:
		return "", fmt.Errorf("unknown secret scope %q", s)
	}
}

// CredentialKind is the class of a cached credential.
type CredentialKind string

const (
	KindAccessToken CredentialKind = "access_token"
	KindAgentTicket CredentialKind = "agent_ticket"
	KindCorpTicket  CredentialKind = "corp_ticket"
)

// ValueField is the upstream JSON field that carries the credential value.
func (k CredentialKind) ValueField() string {
	if k == KindAccessToken {
		return "access_token"
	}
	return "ticket"
}

// ExtAttrType is the type of a directory extended attribute. Values other
// than the constants below are kept as reported.
type ExtAttrType int

const (
	ExtAttrTypeUnset ExtAttrType = -1
	ExtAttrTypeText  ExtAttrType = 0
	ExtAttrTypeWeb   ExtAttrType = 1
)
