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
Package secrets resolves the credentials a directory profile refers to.

Passwords for cn=config and the root DN need not sit in the profile in
plain text. A value of the form $secret:<key> is looked up through a
priority-ordered chain of backends:

	env      - DIRSVC_SECRET_<KEY> environment variables (priority 100)
	keychain - OS keychain, service "dirsvc" (priority 50)

Usage:

	resolver := secrets.DefaultResolver()
	pw, err := secrets.ResolveReference(ctx, resolver, "$secret:openldap/root_password")

Keys are normalized for the environment by upper-casing and replacing
"/", "-" and "." with underscores:

	openldap/root_password -> DIRSVC_SECRET_OPENLDAP_ROOT_PASSWORD

ErrSecretNotFound means no backend holds the key; ErrBackendUnavailable
means no backend could be asked.
*/
package secrets
