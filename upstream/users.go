package upstream

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// UserPosts holds the raw user and posts documents for one user id.
type UserPosts struct {
	User  json.RawMessage
	Posts json.RawMessage
}

// Users reads users and their posts from a JSONPlaceholder-style API.
type Users struct {
	client  *Client
	baseURL string
}

// NewUsers creates a Users service rooted at baseURL.
func NewUsers(client *Client, baseURL string) *Users {
	return &Users{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetUserWithPosts fetches /users/{id} and /posts?userId={id} concurrently,
// each with its own retries. The first failure cancels the other request.
func (u *Users) GetUserWithPosts(ctx context.Context, id int64) (UserPosts, error) {
	sid := strconv.FormatInt(id, 10)
	var out UserPosts

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		raw, err := u.client.FetchWithRetry(ctx, u.baseURL+"/users/"+sid)
		out.User = raw
		return err
	})
	p.Go(func(ctx context.Context) error {
		raw, err := u.client.FetchWithRetry(ctx, u.baseURL+"/posts?userId="+sid)
		out.Posts = raw
		return err
	})
	if err := p.Wait(); err != nil {
		return UserPosts{}, err
	}
	return out, nil
}
