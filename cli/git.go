package cli

// This file contains Git integration utilities for retrieving the metadata
// of the benchmarked commit.

import (
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
)

// Fields of git log, separated by NUL so the message may contain anything
const gitCommitFormat = "%H%x00%T%x00%an%x00%ae%x00%cn%x00%ce%x00%cI%x00%B"

func (a *App) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = a.gitDir
	output, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "git %s", strings.Join(args, " "))
	}
	return string(output), nil
}

// getGitCommit reads the metadata of HEAD
func (a *App) getGitCommit() (model.Commit, error) {
	output, err := a.git("log", "-1", "--format="+gitCommitFormat, "HEAD")
	if err != nil {
		return model.Commit{}, errors.Wrap(err, "failed to get git commit")
	}
	fields := strings.SplitN(output, "\x00", 8)
	if len(fields) != 8 {
		return model.Commit{}, errors.Newf("unexpected git log output %q", output)
	}

	commit := model.Commit{
		ID:        fields[0],
		TreeID:    fields[1],
		Author:    model.Person{Name: fields[2], Email: fields[3]},
		Committer: model.Person{Name: fields[4], Email: fields[5]},
		Timestamp: fields[6],
		Message:   strings.TrimSpace(fields[7]),
		Distinct:  true,
	}

	// The commit link is best effort, a repository without remote is fine.
	if remote, err := a.git("remote", "get-url", "origin"); err == nil {
		if base := webURL(strings.TrimSpace(remote)); base != "" {
			commit.URL = base + "/commit/" + commit.ID
		}
	}
	return commit, nil
}

// webURL turns a git remote into the https URL of the repository. Remotes
// that cannot be mapped return an empty string.
func webURL(remote string) string {
	remote = strings.TrimSuffix(remote, ".git")
	switch {
	case strings.HasPrefix(remote, "https://"):
		if at := strings.Index(remote, "@"); at >= 0 {
			// Drop credentials
			remote = "https://" + remote[at+1:]
		}
		return remote
	case strings.HasPrefix(remote, "git@"):
		host, path, ok := strings.Cut(strings.TrimPrefix(remote, "git@"), ":")
		if !ok {
			return ""
		}
		return "https://" + host + "/" + path
	case strings.HasPrefix(remote, "ssh://git@"):
		return "https://" + strings.TrimPrefix(remote, "ssh://git@")
	}
	return ""
}
