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

package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrBadSuffix is wrapped by SplitSuffix errors.
var ErrBadSuffix = errors.New("suffix must end in dc=<org>,dc=<tld>")

// Suffix is a database suffix split into its organization and the
// organizational units beneath it.
type Suffix struct {
	// Org and TLD are the values of the last two dc RDNs.
	Org string
	TLD string

	// Units are the ou values, outermost (closest to the org) first.
	Units []string
}

// SplitSuffix parses a suffix of the form [ou=<unit>,...]dc=<org>,dc=<tld>.
func SplitSuffix(suffix string) (*Suffix, error) {
	dn, err := ldap.ParseDN(suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSuffix, err)
	}
	n := len(dn.RDNs)
	if n < 2 {
		return nil, ErrBadSuffix
	}

	org, ok := singleValue(dn.RDNs[n-2], "dc")
	if !ok {
		return nil, ErrBadSuffix
	}
	tld, ok := singleValue(dn.RDNs[n-1], "dc")
	if !ok {
		return nil, ErrBadSuffix
	}

	s := &Suffix{Org: org, TLD: tld}
	for i := n - 3; i >= 0; i-- {
		unit, ok := singleValue(dn.RDNs[i], "ou")
		if !ok {
			return nil, fmt.Errorf("%w: intermediate RDNs must be ou=<unit>", ErrBadSuffix)
		}
		s.Units = append(s.Units, unit)
	}
	return s, nil
}

// OrgDN is the DN of the organization entry.
func (s *Suffix) OrgDN() string {
	return "dc=" + EscapeValue(s.Org) + ",dc=" + EscapeValue(s.TLD)
}

// UnitDNs returns the DN of every organizational unit, outermost first, each
// built on the previous one.
func (s *Suffix) UnitDNs() []string {
	dns := make([]string, 0, len(s.Units))
	parent := s.OrgDN()
	for _, u := range s.Units {
		parent = "ou=" + EscapeValue(u) + "," + parent
		dns = append(dns, parent)
	}
	return dns
}

func singleValue(rdn *ldap.RelativeDN, attr string) (string, bool) {
	if rdn == nil || len(rdn.Attributes) != 1 {
		return "", false
	}
	a := rdn.Attributes[0]
	if !strings.EqualFold(a.Type, attr) {
		return "", false
	}
	return a.Value, true
}

// EscapeValue escapes an attribute value for use in a DN string.
func EscapeValue(v string) string {
	var b strings.Builder
	for i, r := range v {
		switch {
		case strings.ContainsRune(`,+"\<>;=`, r):
			b.WriteByte('\\')
		case r == '#' && i == 0:
			b.WriteByte('\\')
		case r == ' ' && (i == 0 || i == len(v)-1):
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
