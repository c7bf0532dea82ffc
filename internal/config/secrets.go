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

package config

import (
	"context"
	"fmt"

	"github.com/tombee/dirsvc/internal/secrets"
	pkgerrors "github.com/tombee/dirsvc/pkg/errors"
)

// Prompter reads a credential interactively. label names the setting.
type Prompter func(label string) (string, error)

// ResolveSecrets replaces $secret:<key> references in the bootstrap
// credentials with their values, and asks prompt for any set to "prompt".
// prompt may be nil, in which case "prompt" values are an error.
func (c *Config) ResolveSecrets(ctx context.Context, resolver *secrets.Resolver, prompt Prompter) error {
	fields := []struct {
		key   string
		label string
		value *string
	}{
		{"bootstrap.config_password", "cn=config password", &c.Bootstrap.ConfigPassword},
		{"bootstrap.root_password", "root DN password", &c.Bootstrap.RootPassword},
	}

	for _, f := range fields {
		switch {
		case *f.value == PromptValue:
			if prompt == nil {
				return &pkgerrors.ConfigError{Key: f.key, Reason: "value must be entered interactively but no terminal is attached"}
			}
			v, err := prompt(f.label)
			if err != nil {
				return &pkgerrors.ConfigError{Key: f.key, Reason: "failed to read " + f.label, Cause: err}
			}
			*f.value = v
		case secrets.IsReference(*f.value):
			if resolver == nil {
				return &pkgerrors.ConfigError{Key: f.key, Reason: fmt.Sprintf("no secret backend to resolve %q", *f.value)}
			}
			v, err := secrets.ResolveReference(ctx, resolver, *f.value)
			if err != nil {
				return err
			}
			*f.value = v
		}
	}
	return nil
}
