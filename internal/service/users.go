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

package service

import "github.com/tombee/dirsvc/internal/directory"

// DirectoryUser is an inetOrgPerson account.
type DirectoryUser struct {
	// Name is the login name, stored as uid.
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	CommonName  string `yaml:"common_name" json:"common_name"`
	GivenName   string `yaml:"given_name" json:"given_name"`
	Surname     string `yaml:"surname" json:"surname"`
	Password    string `yaml:"password" json:"-"`
}

// String returns the login name.
func (u DirectoryUser) String() string { return u.Name }

// DN returns the user's entry DN under usersDN.
func (u DirectoryUser) DN(usersDN string) string {
	return "uid=" + directory.EscapeValue(u.Name) + "," + usersDN
}

// DirectoryGroup is a groupOfNames whose members are users.
type DirectoryGroup struct {
	Name    string          `yaml:"name" json:"name"`
	Members []DirectoryUser `yaml:"members" json:"members"`
}

func (g DirectoryGroup) String() string { return g.Name }

// DN returns the group's entry DN under groupsDN.
func (g DirectoryGroup) DN(groupsDN string) string {
	return "cn=" + directory.EscapeValue(g.Name) + "," + groupsDN
}

// MemberDNs returns the DNs of the group's members under usersDN.
func (g DirectoryGroup) MemberDNs(usersDN string) []string {
	dns := make([]string, len(g.Members))
	for i, m := range g.Members {
		dns[i] = m.DN(usersDN)
	}
	return dns
}
