package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// LDAPConfig holds LDAP directory configuration.
type LDAPConfig struct {
	Addr         string
	UseTLS       bool
	BindDN       string
	BindPassword string
	BaseDN       string
	UserFilter   string
	Timeout      time.Duration
}

// LDAPDirectory resolves users against an LDAP/AD server. Connections
// are pooled; a bind-failed or exhausted pool falls back to dialing a
// fresh connection per lookup.
type LDAPDirectory struct {
	config LDAPConfig
	logger *slog.Logger

	// mu guards pool against a send racing Close: returning a connection
	// into a closed channel would panic.
	mu     sync.Mutex
	pool   chan *ldap.Conn
	closed bool
}

// NewLDAPDirectory creates an LDAP-backed user directory and
// pre-populates its connection pool.
func NewLDAPDirectory(cfg LDAPConfig, logger *slog.Logger) *LDAPDirectory {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserFilter == "" {
		cfg.UserFilter = "(objectClass=person)"
	}

	d := &LDAPDirectory{
		config: cfg,
		pool:   make(chan *ldap.Conn, 10),
		logger: logger.With("component", "ldap-directory"),
	}

	for i := 0; i < 5; i++ {
		conn, err := d.connect()
		if err != nil {
			d.logger.Warn("failed to create LDAP connection", "error", err)
			continue
		}
		d.pool <- conn
	}

	return d
}

// Close drains and closes pooled connections. In-flight searches finish
// on their own connection and close it on return. Idempotent.
func (d *LDAPDirectory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.pool)
	d.mu.Unlock()

	for conn := range d.pool {
		conn.Close()
	}
	return nil
}

// GetUser looks one user up by employee id, (nil, nil) when absent.
func (d *LDAPDirectory) GetUser(ctx context.Context, id int64) (*model.User, error) {
	filter := fmt.Sprintf("(&%s(employeeID=%s))",
		d.config.UserFilter,
		ldap.EscapeFilter(strconv.FormatInt(id, 10)))

	entries, err := d.search(filter, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	return d.toUser(entries[0]), nil
}

// ListUsers returns every entry matching the configured user filter.
func (d *LDAPDirectory) ListUsers(ctx context.Context) ([]*model.User, error) {
	entries, err := d.search(d.config.UserFilter, 0)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(entries))
	for _, entry := range entries {
		users = append(users, d.toUser(entry))
	}

	return users, nil
}

func (d *LDAPDirectory) connect() (*ldap.Conn, error) {
	var conn *ldap.Conn
	var err error

	if d.config.UseTLS {
		conn, err = ldap.DialTLS("tcp", d.config.Addr, &tls.Config{})
	} else {
		conn, err = ldap.Dial("tcp", d.config.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP: %w", err)
	}

	if d.config.BindDN != "" {
		if err := conn.Bind(d.config.BindDN, d.config.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind to LDAP: %w", err)
		}
	}

	return conn, nil
}

func (d *LDAPDirectory) getConnection() (*ldap.Conn, error) {
	select {
	case conn, ok := <-d.pool:
		// a closed pool yields the zero value; dial fresh instead
		if ok {
			return conn, nil
		}
	default:
	}
	return d.connect()
}

func (d *LDAPDirectory) returnConnection(conn *ldap.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		conn.Close()
		return
	}

	select {
	case d.pool <- conn:
	default:
		conn.Close()
	}
}

func (d *LDAPDirectory) search(filter string, sizeLimit int) ([]*ldap.Entry, error) {
	conn, err := d.getConnection()
	if err != nil {
		return nil, err
	}
	defer d.returnConnection(conn)

	attributes := []string{
		"employeeID",
		"sAMAccountName",
		"uid",
		"displayName",
		"mail",
		"title",
		"userAccountControl",
	}

	req := ldap.NewSearchRequest(
		d.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		sizeLimit,
		int(d.config.Timeout.Seconds()),
		false,
		filter,
		attributes,
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}

	return result.Entries, nil
}

func (d *LDAPDirectory) toUser(entry *ldap.Entry) *model.User {
	user := &model.User{
		Username:    entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
		Email:       entry.GetAttributeValue("mail"),
		Role:        entry.GetAttributeValue("title"),
		Active:      true,
	}

	if user.Username == "" {
		user.Username = entry.GetAttributeValue("uid")
	}

	if raw := entry.GetAttributeValue("employeeID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			user.ID = id
		}
	}

	// userAccountControl bit 0x0002 marks a disabled account.
	if uac := entry.GetAttributeValue("userAccountControl"); uac != "" {
		if flags, err := strconv.Atoi(uac); err == nil && flags&0x0002 != 0 {
			user.Active = false
		}
	}

	return user
}
