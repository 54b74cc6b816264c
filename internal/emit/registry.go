package emit

// DefaultRegistry returns a Registry with every built-in emitter registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GitHubActions{})
	r.Register(GitLabCI{})
	r.Register(Buildkite{})
	r.Register(Terraform{})
	return r
}
