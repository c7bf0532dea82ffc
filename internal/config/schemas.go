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
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// expandSchemaGlobs replaces bootstrap.schemas entries holding glob
// patterns (including **) with the files they match, sorted. A pattern
// that matches nothing is an error: slaptest would otherwise build a
// directory without the schema the profile asked for.
func (c *Config) expandSchemaGlobs() error {
	if len(c.Bootstrap.Schemas) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Bootstrap.Schemas))
	for _, s := range c.Bootstrap.Schemas {
		if !strings.ContainsAny(s, "*?[{") {
			out = append(out, s)
			continue
		}
		matches, err := doublestar.FilepathGlob(s, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("bootstrap.schemas: bad pattern %q: %w", s, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("bootstrap.schemas: pattern %q matches no files", s)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	c.Bootstrap.Schemas = out
	return nil
}
