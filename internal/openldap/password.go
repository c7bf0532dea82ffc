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
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"regexp"
)

// schemePattern matches a value that already names its hash scheme, such as
// {SSHA}... or {CRYPT}....
var schemePattern = regexp.MustCompile(`^\{(\w+)\}(.*)`)

const saltSize = 4

// HashPassword returns the value slapd should store for password. A value
// that already carries a {SCHEME} prefix is returned unchanged; anything
// else is hashed as {SSHA} with a random 4 byte salt.
func HashPassword(password string) (string, error) {
	if IsHashed(password) {
		return password, nil
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate password salt: %w", err)
	}
	return ssha(password, salt), nil
}

// IsHashed reports whether value starts with a {SCHEME} prefix.
func IsHashed(value string) bool {
	return schemePattern.MatchString(value)
}

// Scheme returns the scheme name of a hashed value, or "".
func Scheme(value string) string {
	m := schemePattern.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return m[1]
}

func ssha(password string, salt []byte) string {
	h := sha1.New()
	h.Write([]byte(password))
	h.Write(salt)
	return "{SSHA}" + base64.StdEncoding.EncodeToString(append(h.Sum(nil), salt...))
}
