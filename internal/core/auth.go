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
	"context"
	"fmt"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/swiftlo/pkg/swift"
)

// NewAccount prepares the swift.Account for these credentials. No request is
// sent.
func (a AuthConfiguration) NewAccount() (*swift.Account, error) {
	switch a.Method {
	case "swauth":
		return swift.NewSwauthAccount(a.URL, a.User, string(a.Password)), nil
	case "keystone":
		return swift.NewKeystoneAccountFromEnv()
	default:
		return nil, fmt.Errorf("invalid auth method: %q", a.Method)
	}
}

// ConnectToSwift authenticates with the configured credentials and returns
// a handle for the configured container. If createContainer is true, the
// container is created if it does not exist yet.
func (cfg Configuration) ConnectToSwift(ctx context.Context, createContainer bool) (*swift.Container, error) {
	account, err := cfg.Auth.NewAccount()
	if err != nil {
		return nil, err
	}
	err = account.Connect()
	if err != nil {
		return nil, err
	}

	c := account.Container(cfg.Container)
	if createContainer {
		err = c.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot create container %q: %w", cfg.Container, err)
		}
		logg.Debug("container %q is ready", cfg.Container)
	}
	return c, nil
}
