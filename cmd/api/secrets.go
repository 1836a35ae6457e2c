package main

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/memorial-heritage/api/internal/platform/secrets"
)

func newSecretResolver(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Resolver, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("ARCHIVE_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("ARCHIVE_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("ARCHIVE_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("ARCHIVE_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projects := parseKeyValueList(lookup("ARCHIVE_SECRET_PROJECT_IDS"), strings.ToLower); len(projects) > 0 {
		opts = append(opts, secrets.WithProjectMap(projects))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if pins := secretVersionPins(lookup("ARCHIVE_SECRET_VERSION_PINS")); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if credentialsFile := lookup("ARCHIVE_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewResolver(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve to a non-empty secret.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	switch strings.ToLower(strings.TrimSpace(env["ARCHIVE_STORAGE_SIGNED_URLS"])) {
	case "true", "1", "yes", "on":
		required = append(required, "Storage.SigningKey")
	}
	for _, name := range strings.Split(env["ARCHIVE_REQUIRED_SECRETS"], ",") {
		required = append(required, name)
	}
	return uniqueStrings(required)
}

// secretVersionPins parses "ref=version" pairs. Refs without a scheme are treated as secret://
// references and an optional "env:" prefix scopes a pin to one environment.
func secretVersionPins(raw string) map[string]string {
	pairs := parseKeyValueList(raw, nil)
	pins := make(map[string]string, len(pairs))
	for ref, version := range pairs {
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		switch {
		case strings.HasPrefix(ref, "sm://"):
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		case !strings.HasPrefix(ref, "secret://"):
			ref = "secret://" + ref
		}
		pins[prefix+ref] = version
	}
	return pins
}

func parseKeyValueList(raw string, normaliseKey func(string) string) map[string]string {
	result := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if normaliseKey != nil {
			key = normaliseKey(key)
		}
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
