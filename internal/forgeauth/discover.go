// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgeauth

import (
	"context"
	"fmt"

	"code.gitea.io/sdk/gitea"
	"github.com/google/go-github/v66/github"
	"github.com/xanzy/go-gitlab"
	"golang.org/x/oauth2"
)

// BranchInfo is the forge-reported shape the Orchestrator reconciles
// against a final `git fetch` before trusting it (SPEC_FULL SUPPLEMENTED
// FEATURES #1).
type BranchInfo struct {
	DefaultBranch string
	Branches      []string
}

// Discover queries the forge API for remoteURL's default branch and branch
// list, returning (nil, false, nil) when no token is configured for the
// remote's host or the host is not a recognized forge — callers fall back
// to the VCS Driver's git-native discovery in that case.
func (p *Provider) Discover(ctx context.Context, remoteURL string) (*BranchInfo, bool, error) {
	host, token := p.tokenFor(remoteURL)
	if token == "" {
		return nil, false, nil
	}
	owner, repo, err := ownerRepoFromURL(remoteURL)
	if err != nil {
		return nil, false, nil
	}

	switch host {
	case HostGitHub:
		info, err := discoverGitHub(ctx, p.github.BaseURL, token, owner, repo)
		return info, true, err
	case HostGitLab:
		info, err := discoverGitLab(ctx, p.gitlab.BaseURL, token, owner, repo)
		return info, true, err
	case HostGitea:
		info, err := discoverGitea(ctx, p.gitea.BaseURL, token, owner, repo)
		return info, true, err
	default:
		return nil, false, nil
	}
}

func discoverGitHub(ctx context.Context, baseURL, token, owner, repo string) (*BranchInfo, error) {
	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(tc)
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("forgeauth: github enterprise client: %w", err)
		}
	}

	ghRepo, _, err := client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("forgeauth: get github repo %s/%s: %w", owner, repo, err)
	}

	var names []string
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		branches, resp, err := client.Repositories.ListBranches(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("forgeauth: list github branches %s/%s: %w", owner, repo, err)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return &BranchInfo{DefaultBranch: ghRepo.GetDefaultBranch(), Branches: names}, nil
}

func discoverGitLab(ctx context.Context, baseURL, token, owner, repo string) (*BranchInfo, error) {
	var client *gitlab.Client
	var err error
	if baseURL != "" {
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	} else {
		client, err = gitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("forgeauth: gitlab client: %w", err)
	}

	projectPath := owner + "/" + repo
	project, _, err := client.Projects.GetProject(projectPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("forgeauth: get gitlab project %s: %w", projectPath, err)
	}

	var names []string
	opts := &gitlab.ListBranchesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		branches, resp, err := client.Branches.ListBranches(projectPath, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("forgeauth: list gitlab branches %s: %w", projectPath, err)
		}
		for _, b := range branches {
			names = append(names, b.Name)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return &BranchInfo{DefaultBranch: project.DefaultBranch, Branches: names}, nil
}

func discoverGitea(ctx context.Context, baseURL, token, owner, repo string) (*BranchInfo, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("forgeauth: gitea base_url not configured")
	}
	client, err := gitea.NewClient(baseURL, gitea.SetToken(token), gitea.SetContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("forgeauth: gitea client: %w", err)
	}

	giteaRepo, _, err := client.GetRepo(owner, repo)
	if err != nil {
		return nil, fmt.Errorf("forgeauth: get gitea repo %s/%s: %w", owner, repo, err)
	}

	var names []string
	page := 1
	for {
		branches, _, err := client.ListRepoBranches(owner, repo, gitea.ListRepoBranchesOptions{
			ListOptions: gitea.ListOptions{Page: page, PageSize: 50},
		})
		if err != nil {
			return nil, fmt.Errorf("forgeauth: list gitea branches %s/%s: %w", owner, repo, err)
		}
		if len(branches) == 0 {
			break
		}
		for _, b := range branches {
			names = append(names, b.Name)
		}
		page++
	}

	return &BranchInfo{DefaultBranch: giteaRepo.DefaultBranch, Branches: names}, nil
}
