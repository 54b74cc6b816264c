package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// InfisicalResolver resolves secrets from Infisical, requiring Environment
// and ProjectID and honoring inheritPath semantics relative to the CUE
// field's defining location. HTTP calls use the retry-aware
// github.com/hashicorp/go-retryablehttp client.
type InfisicalResolver struct {
	BaseURL string
	Token   string
	Client  *retryablehttp.Client
}

// NewInfisicalResolver builds a resolver with a retrying HTTP client.
func NewInfisicalResolver(baseURL, token string) *InfisicalResolver {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &InfisicalResolver{BaseURL: baseURL, Token: token, Client: client}
}

// ID implements Resolver.
func (InfisicalResolver) ID() string { return "infisical" }

// SupportsDeterministicFingerprint implements Resolver.
func (InfisicalResolver) SupportsDeterministicFingerprint() bool { return true }

// Resolve implements Resolver. spec.Source is the secret key name;
// spec.Extra must carry "environment", "projectId", and a "path" that has
// already been preprocessed by ResolveInfisicalPath.
func (r *InfisicalResolver) Resolve(ctx context.Context, fieldName string, spec Spec) (string, error) {
	env, _ := spec.Extra["environment"].(string)
	projectID, _ := spec.Extra["projectId"].(string)
	secretPath, _ := spec.Extra["path"].(string)
	if env == "" || projectID == "" {
		return "", fmt.Errorf("secret %q: infisical resolver requires environment and projectId", fieldName)
	}

	url := fmt.Sprintf("%s/api/v3/secrets/raw/%s?workspaceId=%s&environment=%s&secretPath=%s",
		strings.TrimRight(r.BaseURL, "/"), spec.Source, projectID, env, secretPath)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.Token)

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("secret %q: infisical request failed: %w", fieldName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("secret %q: infisical returned status %d", fieldName, resp.StatusCode)
	}

	return decodeInfisicalSecretValue(resp.Body)
}

// ResolveInfisicalPath implements the preprocessing rule set from spec
// §4.6: a relative path is resolved against definedAtDir (the directory of
// the CUE file where the env key was defined, following references, NOT
// where it's consumed); if inheritPath is false, a relative path is
// rejected outright. Replacement rules (e.g. "." -> "-") are applied to the
// path in sorted key order for determinism, and the result is normalized to
// an absolute, forward-slash path with no trailing slash.
func ResolveInfisicalPath(definedAtDir, rawPath string, inheritPath bool, replacements map[string]string) (string, error) {
	if rawPath == "" {
		rawPath = "/"
	}

	isAbsolute := strings.HasPrefix(rawPath, "/")
	if !isAbsolute {
		if !inheritPath {
			return "", fmt.Errorf("infisical: relative path %q requires config.infisical.inheritPath", rawPath)
		}
		rawPath = path.Join(definedAtDir, rawPath)
	}

	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rawPath = strings.ReplaceAll(rawPath, k, replacements[k])
	}

	normalized := path.Clean("/" + strings.ReplaceAll(rawPath, "\\", "/"))
	if normalized != "/" {
		normalized = strings.TrimRight(normalized, "/")
	}
	return normalized, nil
}

// infisicalSecretResponse is the subset of Infisical's raw-secret response
// body this resolver needs.
type infisicalSecretResponse struct {
	Secret struct {
		SecretValue string `json:"secretValue"`
	} `json:"secret"`
}

func decodeInfisicalSecretValue(body io.Reader) (string, error) {
	var resp infisicalSecretResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("infisical: decoding response: %w", err)
	}
	return resp.Secret.SecretValue, nil
}
