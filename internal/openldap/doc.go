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
Package openldap supervises an OpenLDAP slapd over a cn=config directory.

A new instance is created in three steps. A minimal slapd.conf naming the
schemas, a pid file and the config database is written to a temporary file
and compiled into the config directory by slaptest. slapd is then started
and the config database is used to add the backend database and
authentication settings before the suffix entries are loaded as the root
DN. Finally slapd is stopped, leaving an instance ready to be started.

	f := openldap.NewFactory(openldap.Options{Logger: logger})
	impl, err := f.CreateBasic(ctx, spec)

The Supervisor owns one slapd process. Start blocks until slapd prints its
ready marker; Status re-probes the process on every call so a daemon killed
behind the supervisor's back is reported as gone.
*/
package openldap
