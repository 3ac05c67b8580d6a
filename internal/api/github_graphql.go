package api

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
	"github.com/taskops/assignbot/internal/models"
	"golang.org/x/oauth2"
)

// GraphQLClient represents a client for the GitHub GraphQL API
type GraphQLClient struct {
	client *githubv4.Client
}

// NewGraphQLClient creates a new GraphQL client
func NewGraphQLClient(token string) *GraphQLClient {
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), src)
	client := githubv4.NewClient(httpClient)
	return &GraphQLClient{client: client}
}

// pullRequestNode mirrors the GraphQL shape of an open pull request with the
// review data the workload counter needs, fetched in a single query instead
// of one REST round trip per review list.
type pullRequestNode struct {
	Number    githubv4.Int
	URL       githubv4.URI `graphql:"url"`
	CreatedAt githubv4.DateTime
	Reviews   struct {
		Nodes []struct {
			State       githubv4.String
			SubmittedAt githubv4.DateTime
			Author      struct {
				Login githubv4.String
			}
		}
	} `graphql:"reviews(first: 50)"`
	ReviewRequests struct {
		Nodes []struct {
			RequestedReviewer struct {
				User struct {
					Login githubv4.String
				} `graphql:"... on User"`
			}
		}
	} `graphql:"reviewRequests(first: 20)"`
	TimelineItems struct {
		Nodes []struct {
			ReviewRequestedEvent struct {
				CreatedAt githubv4.DateTime
			} `graphql:"... on ReviewRequestedEvent"`
		}
	} `graphql:"timelineItems(itemTypes: [REVIEW_REQUESTED_EVENT], first: 1)"`
}

// OpenPullRequestsByAuthor returns the user's open pull requests within the
// scope clause (e.g. "org:acme" or "repo:acme/widgets"), including review
// state and pending review requests.
func (c *GraphQLClient) OpenPullRequestsByAuthor(ctx context.Context, scope, author string) ([]models.PullRequest, error) {
	searchQuery := fmt.Sprintf("is:pr is:open author:%s %s", author, scope)

	var all []models.PullRequest
	var endCursor *githubv4.String

	for {
		var query struct {
			Search struct {
				Nodes []struct {
					PullRequest pullRequestNode `graphql:"... on PullRequest"`
				}
				PageInfo struct {
					EndCursor   githubv4.String
					HasNextPage githubv4.Boolean
				}
			} `graphql:"search(query: $searchQuery, type: ISSUE, first: 50, after: $endCursor)"`
		}

		variables := map[string]interface{}{
			"searchQuery": githubv4.String(searchQuery),
			"endCursor":   endCursor,
		}

		if err := c.client.Query(ctx, &query, variables); err != nil {
			return nil, fmt.Errorf("failed to query open pull requests for %s: %w", author, err)
		}

		for _, node := range query.Search.Nodes {
			all = append(all, convertPullRequestNode(node.PullRequest))
		}

		if !bool(query.Search.PageInfo.HasNextPage) {
			break
		}
		cursor := query.Search.PageInfo.EndCursor
		endCursor = &cursor
	}

	return all, nil
}

func convertPullRequestNode(node pullRequestNode) models.PullRequest {
	pr := models.PullRequest{
		Number:    int(node.Number),
		CreatedAt: node.CreatedAt.Time,
	}
	if node.URL.URL != nil {
		pr.HTMLURL = node.URL.URL.String()
	}

	for _, review := range node.Reviews.Nodes {
		pr.Reviews = append(pr.Reviews, models.Review{
			Author:      string(review.Author.Login),
			State:       string(review.State),
			SubmittedAt: review.SubmittedAt.Time,
		})
	}

	for _, request := range node.ReviewRequests.Nodes {
		if login := string(request.RequestedReviewer.User.Login); login != "" {
			pr.RequestedReviewers = append(pr.RequestedReviewers, login)
		}
	}

	// The first review_requested event marks when the author started
	// waiting, which is a fairer clock than PR creation.
	for _, item := range node.TimelineItems.Nodes {
		t := item.ReviewRequestedEvent.CreatedAt.Time
		if !t.IsZero() {
			requestedAt := t
			pr.ReviewRequestedAt = &requestedAt
			break
		}
	}

	return pr
}
