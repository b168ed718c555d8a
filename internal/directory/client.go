// Package directory verifies credentials against an external LDAP-style
// identity service. Verification is a bind with the user's own
// credentials followed by a subtree search resolving the login to a
// directory record; bind success alone is not sufficient.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"omnicorp.dev/authcore/internal/obs"
)

// DefaultGroup is substituted when a directory record carries no
// resolvable group membership.
const DefaultGroup = "Users"

const defaultTimeout = 10 * time.Second

var (
	// ErrInvalidCredentials is the normal "not authenticated" result:
	// the bind was rejected or the login resolves to no directory record.
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
	// ErrUnavailable wraps transport, bind-layer and search-layer faults.
	ErrUnavailable = errors.New("directory: unavailable")
)

// Result holds the display attributes and group memberships returned for
// a successfully authenticated login.
type Result struct {
	Login       string
	Account     string
	DisplayName string
	Email       string
	Groups      []string
}

// Config holds the connection parameters for the directory endpoint.
type Config struct {
	// URL of the directory endpoint, e.g. "ldap://dc01.example.com:389".
	URL string
	// Domain appended to the login's local part to form the bind identity.
	Domain string
	// BaseDN under which the subtree search runs.
	BaseDN string
	// Timeout bounds dial, bind and search. Zero selects 10s.
	Timeout time.Duration
}

// conn is the slice of *ldap.Conn the client uses; tests substitute a fake.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Client authenticates logins against the configured directory. It keeps
// no state beyond connection parameters; every call opens and releases
// its own connection.
type Client struct {
	cfg  Config
	dial func(ctx context.Context) (conn, error)
}

// NewClient constructs a Client for the given endpoint.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("directory: endpoint URL is required")
	}
	if strings.TrimSpace(cfg.Domain) == "" {
		return nil, errors.New("directory: domain is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{cfg: cfg}
	c.dial = c.dialLDAP
	return c, nil
}

func (c *Client) dialLDAP(ctx context.Context) (conn, error) {
	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	l, err := ldap.DialURL(c.cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, err
	}
	l.SetTimeout(timeout)
	return l, nil
}

// Authenticate binds as the login and resolves it to a directory record.
// Invalid credentials and unresolvable logins return ErrInvalidCredentials;
// transport faults return an ErrUnavailable wrap. Neither is ever
// reported as success, and the connection is released on every path.
func (c *Client) Authenticate(ctx context.Context, login, secret string) (*Result, error) {
	login = strings.TrimSpace(login)
	if login == "" || secret == "" {
		// An empty secret must not reach the bind: some servers treat
		// it as an anonymous bind and report success.
		return nil, ErrInvalidCredentials
	}

	start := time.Now()
	result, err := c.authenticate(ctx, login, secret)
	switch {
	case err == nil:
		obs.ObserveDirectoryAuth(time.Since(start), "success")
	case errors.Is(err, ErrInvalidCredentials):
		obs.ObserveDirectoryAuth(time.Since(start), "invalid_credentials")
	default:
		obs.ObserveDirectoryAuth(time.Since(start), "error")
	}
	return result, err
}

func (c *Client) authenticate(ctx context.Context, login, secret string) (*Result, error) {
	l, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, c.cfg.URL, err)
	}
	defer l.Close()

	localPart := login
	if i := strings.IndexByte(login, '@'); i >= 0 {
		localPart = login[:i]
	}
	bindName := localPart + "@" + c.cfg.Domain

	if err := l.Bind(bindName, secret); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: bind as %s: %v", ErrUnavailable, bindName, err)
	}

	// The search uses the original, un-stripped login: the account must
	// be resolvable by its mail attribute to count as authenticated.
	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		fmt.Sprintf("(&(objectClass=user)(mail=%s))", ldap.EscapeFilter(login)),
		[]string{"sAMAccountName", "mail", "displayName", "memberOf"},
		nil,
	)
	sr, err := l.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search for %s: %v", ErrUnavailable, login, err)
	}
	if len(sr.Entries) == 0 {
		return nil, ErrInvalidCredentials
	}

	entry := sr.Entries[0]
	result := &Result{
		Login:       login,
		Account:     entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
		Email:       entry.GetAttributeValue("mail"),
		Groups:      groupShortNames(entry.GetAttributeValues("memberOf")),
	}
	if result.Account == "" {
		result.Account = localPart
	}
	if result.DisplayName == "" {
		result.DisplayName = localPart
	}
	if result.Email == "" {
		result.Email = login
	}
	return result, nil
}

// groupShortNames maps each group DN to the value of its first relative
// DN using a structured parser, so escaped commas in common names do not
// split the name. Unparseable DNs are skipped; an empty result yields
// the single default placeholder.
func groupShortNames(groupDNs []string) []string {
	names := make([]string, 0, len(groupDNs))
	for _, dn := range groupDNs {
		parsed, err := ldap.ParseDN(dn)
		if err != nil || len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
			continue
		}
		if v := parsed.RDNs[0].Attributes[0].Value; v != "" {
			names = append(names, v)
		}
	}
	if len(names) == 0 {
		return []string{DefaultGroup}
	}
	return names
}
