/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package core

import (
	"fmt"
	"os"

	"github.com/sapcc/go-bits/errext"
	"github.com/sapcc/go-bits/secrets"
	yaml "gopkg.in/yaml.v2"

	"github.com/sapcc/swiftlo/pkg/largeobject"
)

// Configuration contains all the configuration data for the swiftlo CLI. It
// is instantiated from YAML.
type Configuration struct {
	Auth               AuthConfiguration `yaml:"auth"`
	Container          string            `yaml:"container"`
	SegmentPrefix      string            `yaml:"segment_prefix"`
	SegmentSizeBytes   int64             `yaml:"segment_size_bytes"`
	MaxParallelUploads int               `yaml:"max_parallel_uploads"`
}

// AuthConfiguration describes how to obtain a Swift token.
type AuthConfiguration struct {
	// Method is either "swauth" or "keystone". For "keystone", the credentials
	// are taken from the usual OS_* environment variables.
	Method string `yaml:"method"`
	// URL, User and Password are only used for "swauth".
	URL      string               `yaml:"url"`
	User     string               `yaml:"user"`
	Password secrets.AuthPassword `yaml:"password"`
}

// LoadConfiguration reads and validates the configuration file at the given
// path.
func LoadConfiguration(path string) (Configuration, errext.ErrorSet) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, errext.ErrorSet{fmt.Errorf("read configuration file: %w", err)}
	}
	return NewConfigurationFromYAML(buf)
}

// NewConfigurationFromYAML parses and validates the given configuration.
func NewConfigurationFromYAML(buf []byte) (cfg Configuration, errs errext.ErrorSet) {
	err := yaml.UnmarshalStrict(buf, &cfg)
	if err != nil {
		errs.Addf("parse configuration: %w", err)
		return Configuration{}, errs
	}

	missing := func(key string) {
		errs.Addf("missing configuration value: %s", key)
	}

	switch cfg.Auth.Method {
	case "":
		missing("auth.method")
	case "swauth":
		if cfg.Auth.URL == "" {
			missing("auth.url")
		}
		if cfg.Auth.User == "" {
			missing("auth.user")
		}
		if cfg.Auth.Password == "" {
			missing("auth.password")
		}
	case "keystone":
		if cfg.Auth.URL != "" || cfg.Auth.User != "" || cfg.Auth.Password != "" {
			errs.Addf("auth.url, auth.user and auth.password may not be given for auth.method %q (use OS_* variables instead)", cfg.Auth.Method)
		}
	default:
		errs.Addf("invalid value for auth.method: %q", cfg.Auth.Method)
	}

	if cfg.Container == "" {
		missing("container")
	}
	if cfg.SegmentSizeBytes < 0 || cfg.SegmentSizeBytes > largeobject.MaxChunkSize {
		errs.Addf("invalid value for segment_size_bytes: %d (must be between 0 and %d)", cfg.SegmentSizeBytes, largeobject.MaxChunkSize)
	}
	if cfg.MaxParallelUploads < 0 {
		errs.Addf("invalid value for max_parallel_uploads: %d", cfg.MaxParallelUploads)
	}

	if !errs.IsEmpty() {
		return Configuration{}, errs
	}
	return cfg, nil
}

// LargeObjectOptions returns the options for building large objects.
func (cfg Configuration) LargeObjectOptions() largeobject.Options {
	return largeobject.Options{MaxParallelUploads: cfg.MaxParallelUploads}
}
