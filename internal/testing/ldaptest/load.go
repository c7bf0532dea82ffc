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
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/service"
)

// LoadUsers adds the users and groups containers, then one inetOrgPerson
// entry per user and one groupOfNames entry per group. conn must be bound
// with write access to both containers' parent.
func LoadUsers(conn directory.Conn, usersDN, groupsDN string, users []service.DirectoryUser, groups []service.DirectoryGroup) error {
	for _, dn := range []string{usersDN, groupsDN} {
		if err := addUnit(conn, dn); err != nil {
			return err
		}
	}

	for _, u := range users {
		add := ldap.NewAddRequest(u.DN(usersDN), nil)
		add.Attribute("objectClass", []string{"inetOrgPerson"})
		add.Attribute("uid", []string{u.Name})
		add.Attribute("displayName", []string{u.DisplayName})
		add.Attribute("cn", []string{u.CommonName})
		add.Attribute("givenName", []string{u.GivenName})
		add.Attribute("sn", []string{u.Surname})
		add.Attribute("userPassword", []string{u.Password})
		if err := conn.Add(add); err != nil {
			return fmt.Errorf("add user %s: %w", u.Name, err)
		}
	}

	for _, g := range groups {
		add := ldap.NewAddRequest(g.DN(groupsDN), nil)
		add.Attribute("objectClass", []string{"groupOfNames"})
		add.Attribute("cn", []string{g.Name})
		add.Attribute("member", g.MemberDNs(usersDN))
		if err := conn.Add(add); err != nil {
			return fmt.Errorf("add group %s: %w", g.Name, err)
		}
	}
	return nil
}

func addUnit(conn directory.Conn, dn string) error {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) != 1 {
		return fmt.Errorf("invalid container DN %q", dn)
	}
	add := ldap.NewAddRequest(dn, nil)
	add.Attribute("objectClass", []string{"organizationalUnit"})
	add.Attribute("ou", []string{parsed.RDNs[0].Attributes[0].Value})
	if err := conn.Add(add); err != nil {
		return fmt.Errorf("add %s: %w", dn, err)
	}
	return nil
}
