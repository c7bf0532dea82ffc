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
	"github.com/tombee/dirsvc/internal/service"
)

const tracerName = "github.com/tombee/dirsvc/internal/openldap"

// Factory creates OpenLDAP service instances.
type Factory struct {
	Options Options
}

var _ service.Factory = (*Factory)(nil)

// NewFactory returns a factory whose instances run with o.
func NewFactory(o Options) *Factory {
	return &Factory{Options: o}
}

// Name returns ImplName.
func (f *Factory) Name() string { return ImplName }

// New returns a supervisor for an existing cn=config directory.
func (f *Factory) New(opts service.InstanceOptions) (service.Impl, error) {
	return NewSupervisor(opts, f.Options)
}

// Register adds an OpenLDAP factory to reg.
func Register(reg *service.Registry, o Options) error {
	return reg.Register(NewFactory(o))
}
