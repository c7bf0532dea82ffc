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

package openldap

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/service"
	pkgerrors "github.com/tombee/dirsvc/pkg/errors"
)

const (
	configDN = "cn=config"
	moduleDN = "cn=module{0},cn=config"
)

// Bootstrapper loads the initial entries into a freshly started slapd:
// first the cn=config settings and the database, then the suffix entries.
// It is not idempotent; entries that already exist are reported as errors.
type Bootstrapper struct {
	Spec   service.BootstrapSpec
	Logger *slog.Logger
}

// Run performs both bootstrap stages, each over its own connection from
// dial.
func (b *Bootstrapper) Run(ctx context.Context, dial func(context.Context) (directory.Conn, error)) error {
	suffix, err := b.Spec.SplitSuffix()
	if err != nil {
		return err
	}
	if err := b.stage(ctx, "openldap.configure", dial, configDN, b.Spec.ConfigPassword, b.configure); err != nil {
		return err
	}
	return b.stage(ctx, "openldap.populate", dial, b.Spec.RootDN, b.Spec.RootPassword, func(c directory.Conn) error {
		return b.populate(c, suffix)
	})
}

func (b *Bootstrapper) stage(ctx context.Context, name string, dial func(context.Context) (directory.Conn, error), bindDN, password string, fn func(directory.Conn) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	defer span.End()

	err := b.withConn(ctx, dial, bindDN, password, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (b *Bootstrapper) withConn(ctx context.Context, dial func(context.Context) (directory.Conn, error), bindDN, password string, fn func(directory.Conn) error) error {
	conn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind(bindDN, password); err != nil {
		return pkgerrors.Wrapf(err, "bind as %s", bindDN)
	}
	if err := fn(conn); err != nil {
		return err
	}
	if err := conn.Unbind(); err != nil {
		return pkgerrors.Wrapf(err, "unbind %s", bindDN)
	}
	return nil
}

// configure sets up authentication and the primary database in cn=config.
func (b *Bootstrapper) configure(conn directory.Conn) error {
	spec := b.Spec
	logger := b.logger()

	authz := make([]string, len(spec.AuthzMap))
	for i, rule := range spec.AuthzMap {
		authz[i] = rule.Match + " " + rule.Replace
	}
	mod := ldap.NewModifyRequest(configDN, nil)
	mod.Replace("olcPasswordHash", []string{"{CLEARTEXT}"})
	mod.Replace("olcAuthzRegexp", authz)
	if err := conn.Modify(mod); err != nil {
		return pkgerrors.Wrapf(err, "modify %s", configDN)
	}

	if len(spec.Modules) > 0 {
		add := ldap.NewAddRequest(moduleDN, nil)
		add.Attribute("objectClass", []string{"olcModuleList"})
		add.Attribute("olcModuleLoad", spec.Modules)
		if err := conn.Add(add); err != nil {
			return pkgerrors.Wrapf(err, "add %s", moduleDN)
		}
	}

	rootPW, err := HashPassword(spec.RootPassword)
	if err != nil {
		return pkgerrors.Wrap(err, "hash root password")
	}
	dbDN := "olcDatabase=" + spec.DBType + "," + configDN
	add := ldap.NewAddRequest(dbDN, nil)
	add.Attribute("objectClass", []string{databaseObjectClass(spec.DBType)})
	add.Attribute("olcDatabase", []string{spec.DBType})
	add.Attribute("olcDbDirectory", []string{spec.DBDir})
	add.Attribute("olcSuffix", []string{spec.Suffix})
	add.Attribute("olcRootDN", []string{spec.RootDN})
	add.Attribute("olcRootPW", []string{rootPW})
	if err := conn.Add(add); err != nil {
		return pkgerrors.Wrapf(err, "add %s", dbDN)
	}

	if len(spec.Index) == 0 && len(spec.Access) == 0 {
		return nil
	}
	// The first database added after the frontend and config databases is {1}.
	primaryDN := "olcDatabase={1}" + spec.DBType + "," + configDN
	mod = ldap.NewModifyRequest(primaryDN, nil)
	if len(spec.Index) > 0 {
		mod.Add("olcDbIndex", spec.Index)
	}
	if len(spec.Access) > 0 {
		mod.Replace("olcAccess", spec.Access)
	}
	if err := conn.Modify(mod); err != nil {
		return pkgerrors.Wrapf(err, "modify %s", primaryDN)
	}
	logger.Debug("configured database", log.String("dn", primaryDN))
	return nil
}

// populate adds the organization entry and its organizational units,
// outermost first.
func (b *Bootstrapper) populate(conn directory.Conn, suffix *directory.Suffix) error {
	orgDN := suffix.OrgDN()
	add := ldap.NewAddRequest(orgDN, nil)
	add.Attribute("objectClass", []string{"dcObject", "organization"})
	add.Attribute("dc", []string{suffix.Org})
	add.Attribute("o", []string{suffix.Org})
	if err := conn.Add(add); err != nil {
		return pkgerrors.Wrapf(err, "add %s", orgDN)
	}

	for i, dn := range suffix.UnitDNs() {
		add := ldap.NewAddRequest(dn, nil)
		add.Attribute("objectClass", []string{"organizationalUnit"})
		add.Attribute("ou", []string{suffix.Units[i]})
		if err := conn.Add(add); err != nil {
			return pkgerrors.Wrapf(err, "add %s", dn)
		}
	}
	return nil
}

func (b *Bootstrapper) logger() *slog.Logger {
	if b.Logger == nil {
		return log.Discard()
	}
	return b.Logger
}

// databaseObjectClass returns the cn=config object class of a backend,
// e.g. olcMdbConfig for mdb.
func databaseObjectClass(dbType string) string {
	if dbType == "" {
		return ""
	}
	return "olc" + strings.ToUpper(dbType[:1]) + strings.ToLower(dbType[1:]) + "Config"
}
