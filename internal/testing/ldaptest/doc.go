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

/*
Package ldaptest provides a throwaway OpenLDAP directory for tests.

	func TestLogin(t *testing.T) {
	    dir := ldaptest.New(t)
	    if _, err := dir.Start(ctx, service.LaunchSpawn); err != nil {
	        t.Fatal(err)
	    }
	    conn, _ := dir.Client(ctx)
	    err := conn.Bind(ldaptest.Alice.DN(dir.Options.UsersDN), ldaptest.Alice.Password)
	}

The directory lives in a fresh root directory holding db/, slapd.d/ and
the ldapi socket, with suffix dc=example,dc=net, users under ou=users and
groups under ou=groups. Tests are skipped when no OpenLDAP slapd is found;
DIRSVC_TEST_SLAPD, DIRSVC_TEST_SLAPTEST and DIRSVC_TEST_MODULES point the
fixture at a particular installation.
*/
package ldaptest
