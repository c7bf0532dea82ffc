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

package secrets

import (
	"context"
	"fmt"
	"regexp"

	pkgerrors "github.com/tombee/dirsvc/pkg/errors"
)

// ReferencePrefix marks a configuration value that names a secret.
const ReferencePrefix = "$secret:"

var referencePattern = regexp.MustCompile(`^\$secret:(.+)$`)

// IsReference reports whether value is a $secret:<key> reference.
func IsReference(value string) bool {
	return referencePattern.MatchString(value)
}

// Reference builds the reference for key.
func Reference(key string) string {
	return ReferencePrefix + key
}

// ResolveReference returns the secret a $secret:<key> value names. Other
// values are returned unchanged.
func ResolveReference(ctx context.Context, resolver *Resolver, value string) (string, error) {
	m := referencePattern.FindStringSubmatch(value)
	if m == nil {
		return value, nil
	}
	key := m[1]

	secret, err := resolver.Get(ctx, key)
	if err != nil {
		return "", &pkgerrors.ConfigError{
			Key:    key,
			Reason: fmt.Sprintf("failed to resolve secret reference %q", key),
			Cause:  err,
		}
	}
	return secret, nil
}

// DefaultResolver checks the environment first, then the system keychain.
func DefaultResolver() *Resolver {
	return NewResolver(NewEnvBackend(), NewKeychainBackend())
}
