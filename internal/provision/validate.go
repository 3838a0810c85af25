package provision

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mlindqvist/groundwork/internal/workspace"
)

var commitPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// supportedHosts are the repository hosting providers accepted for cloning.
var supportedHosts = map[string]bool{
	"github.com": true,
	"gitlab.com": true,
}

// ValidateRepositoryURL checks the URL is well formed and points at a
// supported hosting provider.
func ValidateRepositoryURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &ValidationError{Field: "repositoryUrl", Reason: "is empty"}
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "repositoryUrl", Reason: "is not a valid URL"}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &ValidationError{Field: "repositoryUrl", Reason: "must use http(s)"}
	}
	if !supportedHosts[strings.ToLower(u.Hostname())] {
		return &ValidationError{Field: "repositoryUrl", Reason: "host is not a supported provider"}
	}
	return nil
}

// ValidateCommitReference checks the commit is a 7-40 character hex string.
func ValidateCommitReference(ref string) error {
	if !commitPattern.MatchString(strings.TrimSpace(ref)) {
		return &ValidationError{Field: "commitReference", Reason: "must be 7-40 hexadecimal characters"}
	}
	return nil
}

// Validate checks every create-project input. Runs before any filesystem
// mutation so rejected input leaves no partial state.
func (p CreateParams) Validate() error {
	if err := ValidateRepositoryURL(p.RepositoryURL); err != nil {
		return err
	}
	if err := ValidateCommitReference(p.CommitReference); err != nil {
		return err
	}
	if err := workspace.ValidateProjectName(p.ProjectName); err != nil {
		return &ValidationError{Field: "projectName", Reason: err.Error()}
	}
	if strings.TrimSpace(p.ToolchainVersion) == "" {
		return &ValidationError{Field: "toolchainVersion", Reason: "is empty"}
	}
	return nil
}
