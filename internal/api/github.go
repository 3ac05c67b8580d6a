package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/taskops/assignbot/internal/models"
	"golang.org/x/oauth2"
)

// GitHubClient represents a client for the GitHub REST API
type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a new GitHub API client
func NewGitHubClient(token string) *GitHubClient {
	var tc *http.Client

	if token != "" {
		// Create an authenticated client if a token is provided
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(tc)
	return &GitHubClient{client: client}
}

// IsNotFound reports whether an error is a GitHub 404 response.
func IsNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// Issue fetches a single issue.
func (c *GitHubClient) Issue(ctx context.Context, owner, repo string, number int) (*models.Issue, error) {
	issue, _, err := c.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s/%s#%d: %w", owner, repo, number, err)
	}

	return ConvertGitHubIssue(issue, owner, repo), nil
}

// IssueTimeline fetches all assigned/unassigned events for an issue, in
// chronological order.
func (c *GitHubClient) IssueTimeline(ctx context.Context, owner, repo string, number int) ([]models.TimelineEvent, error) {
	var all []models.TimelineEvent
	opts := &github.ListOptions{PerPage: 100}

	for {
		events, resp, err := c.client.Issues.ListIssueTimeline(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list timeline for issue #%d: %w", number, err)
		}

		for _, ev := range events {
			event := ev.GetEvent()
			if event != "assigned" && event != "unassigned" {
				continue
			}
			all = append(all, models.TimelineEvent{
				Event:     event,
				Assignee:  ev.GetAssignee().GetLogin(),
				ActorType: ev.GetActor().GetType(),
				CreatedAt: ev.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// IssueComments fetches all comments for an issue.
func (c *GitHubClient) IssueComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error) {
	var all []models.Comment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments for issue #%d: %w", number, err)
		}

		for _, comment := range comments {
			all = append(all, models.Comment{
				Author:    comment.GetUser().GetLogin(),
				Body:      comment.GetBody(),
				CreatedAt: comment.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// OrgMemberRole returns the user's role in the organization ("admin" or
// "member").
func (c *GitHubClient) OrgMemberRole(ctx context.Context, org, username string) (string, error) {
	membership, _, err := c.client.Organizations.GetOrgMembership(ctx, username, org)
	if err != nil {
		return "", fmt.Errorf("failed to get org membership for %s: %w", username, err)
	}

	return strings.ToLower(membership.GetRole()), nil
}

// RepoPermission returns the user's collaborator permission on the repository
// ("admin", "write", "read", "none").
func (c *GitHubClient) RepoPermission(ctx context.Context, owner, repo, username string) (string, error) {
	level, _, err := c.client.Repositories.GetPermissionLevel(ctx, owner, repo, username)
	if err != nil {
		return "", fmt.Errorf("failed to get repo permission for %s: %w", username, err)
	}

	return strings.ToLower(level.GetPermission()), nil
}

// SearchAssignedIssues finds open issues assigned to the user via the search
// API. The scope clause restricts the query to a repository or organization.
func (c *GitHubClient) SearchAssignedIssues(ctx context.Context, scope, username string) ([]models.Issue, error) {
	query := fmt.Sprintf("is:issue is:open assignee:%s %s", username, scope)

	var all []models.Issue
	opts := &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		result, resp, err := c.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search assigned issues for %s: %w", username, err)
		}

		for _, issue := range result.Issues {
			owner, repo := splitRepositoryURL(issue.GetRepositoryURL())
			all = append(all, *ConvertGitHubIssue(issue, owner, repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListOpenIssuesByAssignee enumerates open issues with the given assignee in
// one repository. Fallback path for users whose activity the search API
// cannot see.
func (c *GitHubClient) ListOpenIssuesByAssignee(ctx context.Context, owner, repo, assignee string) ([]models.Issue, error) {
	var all []models.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Assignee:    assignee,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues for %s/%s: %w", owner, repo, err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, *ConvertGitHubIssue(issue, owner, repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// User fetches a user profile by login.
func (c *GitHubClient) User(ctx context.Context, login string) (*models.User, error) {
	user, _, err := c.client.Users.Get(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", login, err)
	}

	return ConvertGitHubUser(user), nil
}

// UserByID fetches a user profile by numeric ID.
func (c *GitHubClient) UserByID(ctx context.Context, id int64) (*models.User, error) {
	user, _, err := c.client.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return ConvertGitHubUser(user), nil
}

// LatestCommitSHA returns the SHA of the repository's most recent commit.
func (c *GitHubClient) LatestCommitSHA(ctx context.Context, owner, repo string) (string, error) {
	commits, _, err := c.client.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list commits for %s/%s: %w", owner, repo, err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("repository %s/%s has no commits", owner, repo)
	}

	return commits[0].GetSHA(), nil
}

// AddAssignees assigns the given users to an issue in a single request.
func (c *GitHubClient) AddAssignees(ctx context.Context, owner, repo string, number int, usernames []string) error {
	_, _, err := c.client.Issues.AddAssignees(ctx, owner, repo, number, usernames)
	if err != nil {
		return fmt.Errorf("failed to add assignees to issue #%d: %w", number, err)
	}
	return nil
}

// RemoveAssignees removes the given users from an issue.
func (c *GitHubClient) RemoveAssignees(ctx context.Context, owner, repo string, number int, usernames []string) error {
	_, _, err := c.client.Issues.RemoveAssignees(ctx, owner, repo, number, usernames)
	if err != nil {
		return fmt.Errorf("failed to remove assignees from issue #%d: %w", number, err)
	}
	return nil
}

// CreateComment posts a comment on an issue.
func (c *GitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to create comment on issue #%d: %w", number, err)
	}
	return nil
}

// IsPrivateRepo reports whether the repository is private.
func (c *GitHubClient) IsPrivateRepo(ctx context.Context, owner, repo string) (bool, error) {
	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return false, fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}
	return r.GetPrivate(), nil
}

// ConvertGitHubIssue converts a GitHub issue to our model
func ConvertGitHubIssue(issue *github.Issue, owner, repo string) *models.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	return &models.Issue{
		Number:    issue.GetNumber(),
		Owner:     owner,
		Repo:      repo,
		HTMLURL:   issue.GetHTMLURL(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		CreatedAt: issue.GetCreatedAt().Time,
		Labels:    labels,
		Assignees: assignees,
	}
}

// ConvertGitHubUser converts a GitHub user to our model
func ConvertGitHubUser(user *github.User) *models.User {
	if user == nil {
		return nil
	}

	return &models.User{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		Type:      user.GetType(),
		CreatedAt: user.GetCreatedAt().Time,
	}
}

// splitRepositoryURL extracts owner and repo from an API repository URL such
// as "https://api.github.com/repos/owner/repo".
func splitRepositoryURL(url string) (string, string) {
	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
