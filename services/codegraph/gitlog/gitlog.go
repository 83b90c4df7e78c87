// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gitlog mines commit history for the coupling phase: it shells out
// to git and parses per-commit changed-file sets.
package gitlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrNotARepo is returned when the path has no git history to mine.
var ErrNotARepo = errors.New("gitlog: not a git repository")

// Commit is one commit's hash and the files it changed.
type Commit struct {
	Hash  string
	Files []string
}

// Option configures a Miner.
type Option func(*Miner)

// WithMaxCommits caps how far back history is read. Zero means the
// default (1000).
func WithMaxCommits(n int) Option {
	return func(m *Miner) {
		if n > 0 {
			m.maxCommits = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Miner) {
		if l != nil {
			m.logger = l
		}
	}
}

// Miner reads commit history via the git CLI.
//
// Thread Safety: immutable after construction; Commits may be called
// concurrently.
type Miner struct {
	maxCommits int
	logger     *slog.Logger
}

// NewMiner creates a Miner with the given options.
func NewMiner(opts ...Option) *Miner {
	m := &Miner{maxCommits: 1000, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commits returns recent commits with their changed-file lists, newest
// first. A directory without git history returns ErrNotARepo so the caller
// can skip coupling instead of failing the pipeline.
func (m *Miner) Commits(ctx context.Context, repoPath string) ([]Commit, error) {
	// %H on its own line, then the --name-only file list, blank-line
	// separated per commit.
	cmd := exec.CommandContext(ctx, "git",
		"-C", repoPath,
		"log",
		"--name-only",
		fmt.Sprintf("--max-count=%d", m.maxCommits),
		"--pretty=format:commit %H",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			m.logger.Warn("git executable not found, history unavailable")
			return nil, ErrNotARepo
		}
		msg := stderr.String()
		if strings.Contains(msg, "not a git repository") ||
			strings.Contains(msg, "does not have any commits") {
			return nil, ErrNotARepo
		}
		return nil, fmt.Errorf("git log: %w: %s", err, strings.TrimSpace(msg))
	}

	commits := ParseNameOnlyLog(stdout.String())
	m.logger.Debug("mined git history",
		slog.String("repo", repoPath),
		slog.Int("commits", len(commits)))
	return commits, nil
}

// ParseNameOnlyLog parses `git log --name-only --pretty=format:"commit %H"`
// output into commits. Exposed for tests; the format is stable across git
// versions.
func ParseNameOnlyLog(out string) []Commit {
	var commits []Commit
	var cur *Commit

	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "commit "):
			if cur != nil {
				commits = append(commits, *cur)
			}
			cur = &Commit{Hash: strings.TrimPrefix(line, "commit ")}
		case line == "":
			// Blank separator between header and file list.
		default:
			if cur != nil {
				cur.Files = append(cur.Files, strings.TrimSpace(line))
			}
		}
	}
	if cur != nil {
		commits = append(commits, *cur)
	}
	return commits
}

// CoChangeCounts aggregates pairwise co-change counts over commits.
//
// Commits touching more than maxFilesPerCommit files are skipped: bulk
// reformat and vendoring commits couple everything to everything and drown
// the signal. Only files present in the indexed set are counted. Pair keys
// are ordered (lexically smaller path first) so each pair appears once.
func CoChangeCounts(commits []Commit, indexed map[string]bool, maxFilesPerCommit int) map[[2]string]int {
	counts := make(map[[2]string]int)
	for _, c := range commits {
		if maxFilesPerCommit > 0 && len(c.Files) > maxFilesPerCommit {
			continue
		}
		var files []string
		seen := make(map[string]bool)
		for _, f := range c.Files {
			if indexed[f] && !seen[f] {
				files = append(files, f)
				seen[f] = true
			}
		}
		for i := 0; i < len(files); i++ {
			for j := i + 1; j < len(files); j++ {
				a, b := files[i], files[j]
				if b < a {
					a, b = b, a
				}
				counts[[2]string{a, b}]++
			}
		}
	}
	return counts
}

// FileChangeCounts returns how many (size-capped) commits touched each
// indexed file, the denominator for coupling strength.
func FileChangeCounts(commits []Commit, indexed map[string]bool, maxFilesPerCommit int) map[string]int {
	counts := make(map[string]int)
	for _, c := range commits {
		if maxFilesPerCommit > 0 && len(c.Files) > maxFilesPerCommit {
			continue
		}
		seen := make(map[string]bool)
		for _, f := range c.Files {
			if indexed[f] && !seen[f] {
				counts[f]++
				seen[f] = true
			}
		}
	}
	return counts
}
