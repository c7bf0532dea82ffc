// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package directory is the thin LDAP client layer used to talk to a
// supervised directory daemon.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// DefaultLDAPISocket is used for an ldapi URI that names no socket.
const DefaultLDAPISocket = "/var/run/slapd/ldapi"

// Conn is the subset of an LDAP connection the bootstrap and fixture code
// needs. *ldap.Conn satisfies it through Dial.
type Conn interface {
	Bind(username, password string) error
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Unbind() error
	Close() error
}

// Dialer opens a connection to uri.
type Dialer func(ctx context.Context, uri string) (Conn, error)

// ChooseURI picks the URI clients should connect to: the first ldapi URI
// (scheme matched case-insensitively), else the first URI. Returns "" for
// an empty list.
func ChooseURI(uris []string) string {
	for _, u := range uris {
		if strings.HasPrefix(strings.ToLower(u), "ldapi:") {
			return u
		}
	}
	if len(uris) == 0 {
		return ""
	}
	return uris[0]
}

// LDAPIURI builds an ldapi URI for a unix socket path, escaping the path
// into the host part the way OpenLDAP expects.
func LDAPIURI(socketPath string) string {
	return "ldapi://" + url.PathEscape(socketPath) + "/"
}

// SocketPath extracts the unix socket path from an ldapi URI.
func SocketPath(uri string) (string, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || !strings.EqualFold(scheme, "ldapi") {
		return "", fmt.Errorf("not an ldapi URI: %q", uri)
	}
	host, _, _ := strings.Cut(rest, "/")
	if host == "" {
		return DefaultLDAPISocket, nil
	}
	path, err := url.PathUnescape(host)
	if err != nil {
		return "", fmt.Errorf("invalid ldapi URI %q: %w", uri, err)
	}
	return path, nil
}

// Dial connects to uri. ldapi URIs carry the socket path percent-encoded in
// the host part, which url.Parse rejects, so they are dialled by hand.
func Dial(ctx context.Context, uri string) (Conn, error) {
	if strings.HasPrefix(strings.ToLower(uri), "ldapi:") {
		path, err := SocketPath(uri)
		if err != nil {
			return nil, err
		}
		var d net.Dialer
		nc, err := d.DialContext(ctx, "unix", path)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", uri, err)
		}
		c := ldap.NewConn(nc, false)
		c.Start()
		return &conn{c: c}, nil
	}

	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Timeout = time.Until(deadline)
	}
	c, err := ldap.DialURL(uri, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", uri, err)
	}
	return &conn{c: c}, nil
}

// conn adapts *ldap.Conn to Conn.
type conn struct {
	c *ldap.Conn
}

func (c *conn) Bind(username, password string) error { return c.c.Bind(username, password) }

func (c *conn) Add(req *ldap.AddRequest) error { return c.c.Add(req) }

func (c *conn) Modify(req *ldap.ModifyRequest) error { return c.c.Modify(req) }

func (c *conn) Unbind() error { return c.c.Unbind() }

func (c *conn) Close() error {
	c.c.Close()
	return nil
}

// IsAlreadyExists reports whether err is an LDAP "entry already exists" result.
func IsAlreadyExists(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists)
}

// ResultCode returns the LDAP result code carried by err, or -1.
func ResultCode(err error) int {
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		return int(lerr.ResultCode)
	}
	return -1
}
