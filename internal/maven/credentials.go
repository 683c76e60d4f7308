package maven

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Server is a <server> entry of settings.xml.
type Server struct {
	ID       string `xml:"id"`
	Username string `xml:"username"`
	Password string `xml:"password"`
}

type settingsFile struct {
	XMLName xml.Name `xml:"settings"`
	Servers []Server `xml:"servers>server"`
}

// envRef matches ${env.NAME} references inside settings values.
var envRef = regexp.MustCompile(`\$\{env\.([A-Za-z_][A-Za-z0-9_]*)\}`)

// Credentials is a read-only store of repository credentials keyed by server id.
type Credentials struct {
	servers map[string]Server
}

// NewCredentials builds a store from explicit server entries.
func NewCredentials(servers ...Server) *Credentials {
	c := &Credentials{servers: make(map[string]Server, len(servers))}
	for _, s := range servers {
		c.servers[s.ID] = s
	}

	return c
}

// DefaultSettingsPath returns ~/.m2/settings.xml.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".m2", "settings.xml")
	}

	return filepath.Join(home, ".m2", "settings.xml")
}

// LoadCredentials reads server credentials from a settings.xml file.
// A missing file yields an empty store.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return NewCredentials(), nil
		}

		return nil, fmt.Errorf("reading maven settings %s: %w", path, err)
	}

	creds, err := ParseCredentials(data)
	if err != nil {
		return nil, fmt.Errorf("parsing maven settings %s: %w", path, err)
	}

	return creds, nil
}

// ParseCredentials decodes the <servers> section of a settings.xml document.
// ${env.NAME} references in usernames and passwords are expanded.
func ParseCredentials(data []byte) (*Credentials, error) {
	var sf settingsFile
	if err := xml.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	for i := range sf.Servers {
		sf.Servers[i].Username = expandEnv(sf.Servers[i].Username)
		sf.Servers[i].Password = expandEnv(sf.Servers[i].Password)
	}

	return NewCredentials(sf.Servers...), nil
}

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envRef.FindStringSubmatch(m)[1])
	})
}

// Lookup returns the server entry for id.
func (c *Credentials) Lookup(id string) (Server, bool) {
	if c == nil || id == "" {
		return Server{}, false
	}

	s, ok := c.servers[id]

	return s, ok
}

// Len returns the number of servers in the store.
func (c *Credentials) Len() int {
	if c == nil {
		return 0
	}

	return len(c.servers)
}

// BasicAuth returns an Authorization header value for server id. A server
// with an empty username or password, e.g. from an unset ${env.X}, has no
// usable credentials and reports false.
func (c *Credentials) BasicAuth(id string) (string, bool) {
	s, ok := c.Lookup(id)
	if !ok || s.Username == "" || s.Password == "" {
		return "", false
	}

	token := base64.StdEncoding.EncodeToString([]byte(s.Username + ":" + s.Password))

	return "Basic " + token, true
}
