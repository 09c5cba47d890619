// Package fixture seeds a simulated authenticated session into a browser's
// localStorage before the application boots.
package fixture

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

// User is the profile the application reads from storage.
type User struct {
	ID     string `json:"_id,omitempty" yaml:"id,omitempty"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Phone  string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Role   string `json:"role,omitempty" yaml:"role,omitempty"`
	ShopID string `json:"myShopId,omitempty" yaml:"shop_id,omitempty"`
}

// Keys names the storage entries an identity is written to.
type Keys struct {
	Token     string `yaml:"token,omitempty"`
	UserToken string `yaml:"user_token,omitempty"`
	User      string `yaml:"user,omitempty"`
}

// DefaultKeys returns the keys the application reads.
func DefaultKeys() Keys {
	return Keys{Token: "token", UserToken: "userToken", User: "user"}
}

func (k Keys) withDefaults() Keys {
	def := DefaultKeys()
	if k.Token == "" {
		k.Token = def.Token
	}
	if k.UserToken == "" {
		k.UserToken = def.UserToken
	}
	if k.User == "" {
		k.User = def.User
	}
	return k
}

// Identity is a simulated signed-in user.
type Identity struct {
	Name  string            `yaml:"name,omitempty"`
	Token string            `yaml:"token"`
	User  User              `yaml:"user"`
	Extra map[string]string `yaml:"extra,omitempty"`
	Keys  Keys              `yaml:"keys,omitempty"`
}

// Validate reports identities that could not be seeded.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.Token) == "" {
		return herrors.New(herrors.ErrCodeFixtureInvalid, "identity needs a token").WithContext("identity", i.Name)
	}
	if i.User.Role == "" {
		return herrors.New(herrors.ErrCodeFixtureInvalid, "identity needs a user role").WithContext("identity", i.Name)
	}
	for k := range i.Extra {
		if strings.TrimSpace(k) == "" {
			return herrors.New(herrors.ErrCodeFixtureInvalid, "extra storage keys must not be empty").WithContext("identity", i.Name)
		}
	}
	return nil
}

// Entry is one localStorage key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Entries returns the storage entries for the identity in write order:
// token, user token, user profile, then extras sorted by key.
func (i Identity) Entries() ([]Entry, error) {
	keys := i.Keys.withDefaults()
	profile, err := sonic.MarshalString(i.User)
	if err != nil {
		return nil, herrors.Wrap(err, herrors.ErrCodeFixtureInvalid, "encoding user profile")
	}
	entries := []Entry{
		{Key: keys.Token, Value: i.Token},
		{Key: keys.UserToken, Value: i.Token},
		{Key: keys.User, Value: profile},
	}
	extra := make([]string, 0, len(i.Extra))
	for k := range i.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		entries = append(entries, Entry{Key: k, Value: i.Extra[k]})
	}
	return entries, nil
}

// Script renders the init script that writes the identity. Every key and
// value is a JSON string literal, so arbitrary content is safe.
func (i Identity) Script() (string, error) {
	return i.scriptRemoving(nil)
}

// scriptRemoving renders Script preceded by removals of stale keys, the
// entries a previous identity wrote that this one does not overwrite.
func (i Identity) scriptRemoving(stale []string) (string, error) {
	entries, err := i.Entries()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("(() => {\n  try {\n")
	for _, k := range stale {
		key, err := sonic.MarshalString(k)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "    localStorage.removeItem(%s);\n", key)
	}
	for _, e := range entries {
		key, err := sonic.MarshalString(e.Key)
		if err != nil {
			return "", err
		}
		value, err := sonic.MarshalString(e.Value)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "    localStorage.setItem(%s, %s);\n", key, value)
	}
	sb.WriteString("  } catch (e) {}\n})();")
	return sb.String(), nil
}

// WithUser returns a copy of i with the user replaced.
func (i Identity) WithUser(u User) Identity {
	i.User = u
	return i
}

// WithExtra returns a copy of i with one more storage entry.
func (i Identity) WithExtra(key, value string) Identity {
	extra := make(map[string]string, len(i.Extra)+1)
	for k, v := range i.Extra {
		extra[k] = v
	}
	extra[key] = value
	i.Extra = extra
	return i
}

type fixtureFile struct {
	Identities map[string]Identity `yaml:"identities"`
}

// LoadFile reads named identities from a YAML file of the form
//
//	identities:
//	  admin:
//	    token: mock-admin-token
//	    user: {id: admin123, name: Admin User, role: admin}
func LoadFile(path string) (map[string]Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.Wrap(err, herrors.ErrCodeFixtureInvalid, "reading fixture file").WithContext("path", path)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, herrors.Wrap(err, herrors.ErrCodeFixtureInvalid, "parsing fixture file").WithContext("path", path)
	}
	for name, id := range file.Identities {
		if id.Name == "" {
			id.Name = name
		}
		if err := id.Validate(); err != nil {
			return nil, err
		}
		file.Identities[name] = id
	}
	return file.Identities, nil
}
