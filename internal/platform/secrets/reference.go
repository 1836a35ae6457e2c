package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	schemeSecret = "secret"
	legacyPrefix = "sm://"
	latest       = "latest"
)

// Reference is a parsed secret:// URI. Query parameters `version` and `project` override the
// pinned version and the environment project respectively.
type Reference struct {
	Canonical string
	Name      string
	Version   string
	Project   string
}

// ParseReference parses secret://name[?version=N&project=P]. The legacy sm:// scheme is accepted.
func ParseReference(ref string) (Reference, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return Reference{}, errors.New("secrets: empty reference")
	}
	if strings.HasPrefix(trimmed, legacyPrefix) {
		trimmed = schemeSecret + "://" + strings.TrimPrefix(trimmed, legacyPrefix)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != schemeSecret {
		return Reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return Reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	query := u.Query()
	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	return Reference{
		Canonical: canonical.String(),
		Name:      name,
		Version:   strings.TrimSpace(query.Get("version")),
		Project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

// resourceName returns the Secret Manager version resource path.
func (r Reference) resourceName(project, version string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, strings.ReplaceAll(r.Name, "/", "_"), version)
}

func cacheKey(canonical, version string) string {
	return canonical + "#" + version
}

// mask hashes a reference so that metric attributes never carry secret names.
func mask(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:8])
}
