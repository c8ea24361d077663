package counters

import (
	"github.com/dalemusser/tallyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/tallyhub/internal/domain/models"
)

type createRequest struct {
	Name string `json:"name"`
}

type createResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type incrementRequest struct {
	Delta *int64 `json:"delta"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type shareResponse struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// shareText accompanies every share-target payload.
const shareText = "Let's count this together!"

// liveView is one message on the live feed. Owner is null until a creator
// is known.
type liveView struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	Owner   *string `json:"owner"`
	IsOwner bool    `json:"isOwner"`
}

// groupResponse is the GET /api/groups/{gid} body.
type groupResponse struct {
	ID string `json:"id"`
	liveView
	Members int    `json:"members"`
	URL     string `json:"url"`
}

func newLiveView(v models.GroupView, pid string) liveView {
	out := liveView{
		Name:    v.Name,
		Count:   v.Count,
		IsOwner: grouppolicy.IsOwner(v, pid),
	}
	if v.Owner != "" {
		owner := v.Owner
		out.Owner = &owner
	}
	return out
}
