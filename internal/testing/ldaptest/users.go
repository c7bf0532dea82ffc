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

import "github.com/tombee/dirsvc/internal/service"

// Fixture accounts. Passwords are stored as given.
var (
	Alice = service.DirectoryUser{
		Name:        "alice",
		DisplayName: "Alice",
		CommonName:  "Alice Hacker",
		GivenName:   "Alice",
		Surname:     "Hacker",
		Password:    "xyzzy",
	}
	Bob = service.DirectoryUser{
		Name:        "bob",
		DisplayName: "Bob",
		CommonName:  "Bob Hacker",
		GivenName:   "Bob",
		Surname:     "Hacker",
		Password:    "chair",
	}
	Carol = service.DirectoryUser{
		Name:        "carol",
		DisplayName: "Carol",
		CommonName:  "Carol Hacker",
		GivenName:   "Carol",
		Surname:     "Hacker",
		Password:    "love",
	}
)

// Users returns the fixture accounts.
func Users() []service.DirectoryUser {
	return []service.DirectoryUser{Alice, Bob, Carol}
}

// Groups returns the fixture groups.
func Groups() []service.DirectoryGroup {
	return []service.DirectoryGroup{
		{Name: "active", Members: []service.DirectoryUser{Alice, Bob}},
		{Name: "admins", Members: []service.DirectoryUser{Alice}},
		{Name: "analysts", Members: []service.DirectoryUser{Bob}},
		{Name: "authors", Members: []service.DirectoryUser{Bob, Carol}},
	}
}
