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

package ldaptest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/openldap"
	"github.com/tombee/dirsvc/internal/service"
)

// Environment variables that point the fixture at particular binaries.
const (
	EnvSlapd    = "DIRSVC_TEST_SLAPD"
	EnvSlaptest = "DIRSVC_TEST_SLAPTEST"
	EnvModules  = "DIRSVC_TEST_MODULES"
)

// Options describe the fixture directory. DefaultOptions fills every field.
type Options struct {
	RootDir string

	Domain   string
	Suffix   string
	UsersDN  string
	GroupsDN string
	RootDN   string

	ConfigPassword string
	RootPassword   string

	Schemas  []string
	Modules  []string
	DBType   string
	Index    []string
	Access   []string
	AuthzMap []service.AuthzRule

	Users  []service.DirectoryUser
	Groups []service.DirectoryGroup

	SlapdPath    string
	SlaptestPath string
}

// DefaultOptions returns the example.net fixture rooted at rootDir.
func DefaultOptions(rootDir string) Options {
	o := baseOptions(rootDir)
	o.fill()
	return o
}

// baseOptions leaves the domain-derived fields empty.
func baseOptions(rootDir string) Options {
	o := Options{
		RootDir:        rootDir,
		Domain:         "example.net",
		ConfigPassword: "admin",
		RootPassword:   "admin",
		Modules:        []string{"back_mdb.la"},
		DBType:         "mdb",
		Index:          []string{"uid eq,pres,sub"},
		Users:          Users(),
		Groups:         Groups(),
		SlapdPath:      envOr(EnvSlapd, openldap.DefaultSlapdPath),
		SlaptestPath:   envOr(EnvSlaptest, openldap.DefaultSlaptestPath),
	}
	if schemas, err := openldap.SystemSchemas(); err == nil {
		o.Schemas = schemas
	}
	if v, ok := os.LookupEnv(EnvModules); ok {
		o.Modules = strings.Fields(v)
	}
	return o
}

// fill derives the DNs, access rules and authz map from the domain where
// they are unset.
func (o *Options) fill() {
	if o.Suffix == "" {
		o.Suffix = SuffixFromDomain(o.Domain)
	}
	if o.UsersDN == "" {
		o.UsersDN = "ou=users," + o.Suffix
	}
	if o.GroupsDN == "" {
		o.GroupsDN = "ou=groups," + o.Suffix
	}
	if o.RootDN == "" {
		o.RootDN = "cn=admin," + o.Suffix
	}
	if o.Access == nil {
		o.Access = DefaultAccess(o.GroupsDN)
	}
	if o.AuthzMap == nil {
		o.AuthzMap = DefaultAuthzMap(o.Domain, o.UsersDN)
	}
}

// URIs returns the ldapi URI for the socket in the root directory.
func (o Options) URIs() []string {
	return []string{directory.LDAPIURI(filepath.Join(o.RootDir, "ldapi"))}
}

func (o Options) ConfigDir() string { return filepath.Join(o.RootDir, "slapd.d") }
func (o Options) DBDir() string     { return filepath.Join(o.RootDir, "db") }
func (o Options) PIDFile() string   { return filepath.Join(o.RootDir, "slapd.pid") }

// BootstrapSpec describes the directory CreateBasic builds.
func (o Options) BootstrapSpec() service.BootstrapSpec {
	return service.BootstrapSpec{
		URIs:           o.URIs(),
		ConfigDir:      o.ConfigDir(),
		Schemas:        o.Schemas,
		Modules:        o.Modules,
		ConfigPassword: o.ConfigPassword,
		DBType:         o.DBType,
		DBDir:          o.DBDir(),
		Suffix:         o.Suffix,
		RootDN:         o.RootDN,
		RootPassword:   o.RootPassword,
		AuthzMap:       o.AuthzMap,
		Access:         o.Access,
		Index:          o.Index,
		PIDFile:        o.PIDFile(),
	}
}

// SuffixFromDomain turns example.net into dc=example,dc=net.
func SuffixFromDomain(domain string) string {
	parts := strings.Split(domain, ".")
	for i, p := range parts {
		parts[i] = "dc=" + directory.EscapeValue(p)
	}
	return strings.Join(parts, ",")
}

// DefaultAccess lets users manage their own entry, members of the admins
// group read everything, and everyone else only authenticate.
func DefaultAccess(groupsDN string) []string {
	return []string{
		"to attrs=userPassword by self write by anonymous auth by * none",
		`to dn.base="" by * read`,
		`to * by self write by group="cn=admins,` + groupsDN + `" read by anonymous auth by * none`,
	}
}

// DefaultAuthzMap maps SASL identities, with or without a realm, onto
// entries under usersDN.
func DefaultAuthzMap(domain, usersDN string) []service.AuthzRule {
	return []service.AuthzRule{
		{Match: "uid=([^,]*),cn=[^,]*,cn=auth", Replace: "uid=$1," + usersDN},
		{Match: "uid=([^,]*),cn=[^,]*,cn=" + domain + ",cn=auth", Replace: "uid=$1," + usersDN},
	}
}

// Service is a throwaway slapd with the fixture users loaded. It is
// stopped when New returns; Start it with LaunchSpawn to use it.
type Service struct {
	*service.Service
	Options Options
}

// New builds the fixture directory in a fresh root directory: it creates
// the instance, starts slapd, loads the users and groups, and stops it
// again. The directory is removed and slapd stopped when the test ends.
// The test is skipped when no OpenLDAP slapd is installed.
func New(t testing.TB, mutate ...func(*Options)) *Service {
	t.Helper()

	o := baseOptions("")
	SkipWithoutSlapd(t, o.SlapdPath)

	cm := NewCleanupManager(t)
	root, err := CreateRootDir()
	if err != nil {
		t.Fatalf("failed to create fixture root: %v", err)
	}
	cm.Add("root dir", CleanupDir(root))

	o.RootDir = root
	for _, m := range mutate {
		m(&o)
	}
	o.fill()
	if len(o.Schemas) == 0 {
		t.Skipf("Skipping test: %v", openldap.ErrNoSystemSchemas)
	}

	reg := service.NewRegistry()
	if err := openldap.Register(reg, openldap.Options{
		SlapdPath:    o.SlapdPath,
		SlaptestPath: o.SlaptestPath,
		PIDDirs:      []string{root},
		Logger:       log.Discard(),
	}); err != nil {
		t.Fatalf("failed to register openldap: %v", err)
	}
	reg.Freeze()

	ctx := context.Background()
	svc, err := service.CreateBasic(ctx, reg, openldap.ImplName, o.BootstrapSpec())
	if err != nil {
		t.Fatalf("failed to create fixture directory: %v", err)
	}
	svc.SetStopOnClose(true)
	cm.Add("slapd", svc.Close)

	if err := populate(ctx, svc, o); err != nil {
		t.Fatalf("failed to load fixture users: %v", err)
	}
	return &Service{Service: svc, Options: o}
}

// populate starts svc, loads the users and groups, and stops it.
func populate(ctx context.Context, svc *service.Service, o Options) (err error) {
	if _, err := svc.Start(ctx, service.LaunchSpawn); err != nil {
		return err
	}
	defer func() {
		if stopErr := svc.Stop(ctx); err == nil {
			err = stopErr
		}
	}()

	conn, err := svc.Client(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind(o.RootDN, o.RootPassword); err != nil {
		return err
	}
	if err := LoadUsers(conn, o.UsersDN, o.GroupsDN, o.Users, o.Groups); err != nil {
		return err
	}
	return conn.Unbind()
}

// CreateRootDir makes a root directory with empty db and slapd.d
// subdirectories. It lives under the system temp dir rather than
// t.TempDir so the ldapi socket path stays within the unix socket limit.
func CreateRootDir() (string, error) {
	root, err := os.MkdirTemp("", "ldaptest-slapd-")
	if err != nil {
		return "", err
	}
	for _, sub := range []string{"db", "slapd.d"} {
		if err := os.Mkdir(filepath.Join(root, sub), 0700); err != nil {
			os.RemoveAll(root)
			return "", err
		}
	}
	return root, nil
}

// SkipWithoutSlapd skips the test when slapdPath is not an OpenLDAP slapd.
func SkipWithoutSlapd(t testing.TB, slapdPath string) {
	t.Helper()
	if !openldap.Available(context.Background(), slapdPath) {
		t.Skipf("Skipping test: OpenLDAP slapd %q not available (set %s)", slapdPath, EnvSlapd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
