package updates

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func isGitRepo(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd.Run() == nil
}

// gitCommit stages path and commits only that path with msg.
func gitCommit(ctx context.Context, dir, path, msg string) error {
	if err := runGit(ctx, dir, "add", "--", path); err != nil {
		return err
	}

	return runGit(ctx, dir, "commit", "--no-gpg-sign", "--no-verify", "-m", msg, "--only", "--", path)
}

func runGit(ctx context.Context, dir string, args ...string) error {
	full := append([]string{"-C", dir}, args...)

	//nolint:gosec // args are descriptor paths discovered under the working directory
	cmd := exec.CommandContext(ctx, "git", full...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}

	return nil
}
