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

package swift

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/objectstorage/v1/swauth"
	"github.com/gophercloud/utils/openstack/clientconfig"
	"github.com/majewsky/schwift"
	"github.com/majewsky/schwift/gopherschwift"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/swiftlo/internal/util"
)

// Session is an authenticated connection to a Swift account. All operations in
// this package and in package largeobject go through a Session.
type Session interface {
	// IsConnected reports whether requests can be sent. When it returns false,
	// operations fail with ErrNotConnected without touching the network.
	IsConnected() bool
	// Backend returns the Schwift backend that requests are sent through, or
	// nil if the Session is not connected. The backend adds the auth token to
	// each request and reauthenticates once when Swift answers with 401.
	Backend() schwift.Backend
}

// UserAgent is reported to Swift in every request.
const UserAgent = "swiftlo"

// Account is the Session implementation that authenticates through
// Gophercloud, either against Swift's builtin auth (swauth, v1) or against
// Keystone. The actual requests are sent through a Schwift backend, which
// takes care of the X-Auth-Token header and of reauthentication.
type Account struct {
	mutex sync.RWMutex

	// credentials (swauth)
	authURL  string
	user     string
	password string
	// credentials (Keystone)
	keystone *keystoneCredentials

	// connection state
	client  *gophercloud.ServiceClient
	backend schwift.Backend
}

type keystoneCredentials struct {
	AuthOptions  gophercloud.AuthOptions
	EndpointOpts gophercloud.EndpointOpts
}

// NewSwauthAccount prepares an Account that authenticates with Swift's
// builtin auth middleware. The authURL is the base URL of the Swift proxy;
// "auth/v1.0" is appended to it. No request is sent until Connect() is called.
func NewSwauthAccount(authURL, user, password string) *Account {
	return &Account{authURL: authURL, user: user, password: password}
}

// NewKeystoneAccount prepares an Account that authenticates with Keystone and
// finds the Swift endpoint in the service catalog.
func NewKeystoneAccount(ao gophercloud.AuthOptions, eo gophercloud.EndpointOpts) *Account {
	return &Account{keystone: &keystoneCredentials{ao, eo}}
}

// NewKeystoneAccountFromEnv is like NewKeystoneAccount, but reads the
// credentials from the usual OS_* environment variables (or clouds.yaml).
func NewKeystoneAccountFromEnv() (*Account, error) {
	ao, err := clientconfig.AuthOptions(nil)
	if err != nil {
		return nil, fmt.Errorf("cannot find OpenStack credentials: %w", err)
	}
	ao.AllowReauth = true

	eo := gophercloud.EndpointOpts{
		Availability: gophercloud.Availability(os.Getenv("OS_INTERFACE")),
		Region:       os.Getenv("OS_REGION_NAME"),
	}
	return NewKeystoneAccount(*ao, eo), nil
}

// Connect obtains a token and the storage URL. Calling Connect on a connected
// Account replaces the existing token.
func (a *Account) Connect() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	client, err := a.authenticate()
	if err != nil {
		return err
	}
	account, err := gopherschwift.Wrap(client, &gopherschwift.Options{UserAgent: UserAgent})
	if err != nil {
		return fmt.Errorf("cannot initialize Swift account: %w", err)
	}

	a.client = client
	a.backend = account.Backend()
	logg.Debug("connected to Swift account at %s", a.backend.EndpointURL())
	return nil
}

func (a *Account) authenticate() (*gophercloud.ServiceClient, error) {
	if a.keystone != nil {
		provider, err := openstack.NewClient(a.keystone.AuthOptions.IdentityEndpoint)
		if err != nil {
			return nil, fmt.Errorf("cannot initialize OpenStack client: %w", err)
		}
		provider.HTTPClient.Transport = util.AddLoggingRoundTripper(http.DefaultTransport)
		err = openstack.Authenticate(provider, a.keystone.AuthOptions)
		if err != nil {
			return nil, fmt.Errorf("cannot authenticate with Keystone: %w", util.UnpackError(err))
		}
		client, err := openstack.NewObjectStorageV1(provider, a.keystone.EndpointOpts)
		if err != nil {
			return nil, fmt.Errorf("cannot find Swift endpoint: %w", util.UnpackError(err))
		}
		return client, nil
	}

	provider, err := openstack.NewClient(a.authURL)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize OpenStack client: %w", err)
	}
	provider.HTTPClient.Transport = util.AddLoggingRoundTripper(http.DefaultTransport)
	client, err := swauth.NewObjectStorageV1(provider, swauth.AuthOpts{
		User: a.user,
		Key:  a.password,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot authenticate with swauth: %w", util.UnpackError(err))
	}
	return client, nil
}

// Disconnect forgets the current token. Afterwards, all operations fail with
// ErrNotConnected until Connect() is called again.
func (a *Account) Disconnect() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.client = nil
	a.backend = nil
}

// SetUsername changes the username used by the next Connect() and disconnects
// the Account.
func (a *Account) SetUsername(user string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.keystone != nil {
		a.keystone.AuthOptions.Username = user
	} else {
		a.user = user
	}
	a.client = nil
	a.backend = nil
}

// SetPassword changes the password used by the next Connect() and disconnects
// the Account.
func (a *Account) SetPassword(password string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.keystone != nil {
		a.keystone.AuthOptions.Password = password
	} else {
		a.password = password
	}
	a.client = nil
	a.backend = nil
}

// IsConnected implements the Session interface.
func (a *Account) IsConnected() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.backend != nil
}

// Backend implements the Session interface.
func (a *Account) Backend() schwift.Backend {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.backend
}

// StorageURL returns the account URL, e.g.
// "https://swift.example.com/v1/AUTH_projectid/", or "" if not connected.
func (a *Account) StorageURL() string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.backend == nil {
		return ""
	}
	return a.backend.EndpointURL()
}

// Token returns the current auth token, or "" if not connected.
func (a *Account) Token() string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.client == nil {
		return ""
	}
	return a.client.ProviderClient.Token()
}

// Container returns a handle for the container with the given name. No
// request is sent.
func (a *Account) Container(name string) *Container {
	return NewContainer(a, name)
}
