package counters

import (
	"context"
	"net/http"

	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/app/system/timeouts"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Create handles POST /api/groups.
//
//	{"name":"Event"} -> 201 {"id":"…","url":"…/g/…"}
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad create body", err, "Request body must be {\"name\": string}.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	gid, err := h.Groups.Create(ctx, req.Name)
	if err != nil {
		h.ErrLog.Write(w, r, "create group failed", err)
		return
	}

	w.Header().Set("Location", "/api/groups/"+gid)
	writeJSON(w, http.StatusCreated, createResponse{ID: gid, URL: h.ShareURL(gid)})
}

// View handles GET /api/groups/{gid}. A group that does not exist (yet) is
// answered with the default view, not 404.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.groupID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, found, err := h.Groups.GetByID(ctx, gid)
	if err != nil {
		h.ErrLog.Write(w, r, "read group failed", err)
		return
	}

	view := models.DefaultGroupView()
	if found {
		view = g.View()
	}
	pid, _ := identity.ParticipantFrom(r.Context())

	writeJSON(w, http.StatusOK, groupResponse{
		ID:       gid,
		liveView: newLiveView(view, pid),
		Members:  len(g.Members),
		URL:      h.ShareURL(gid),
	})
}

// Join handles POST /api/groups/{gid}/join. It always answers 204: a
// membership that can not be recorded is only logged.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.groupID(w, r)
	if !ok {
		return
	}
	h.join(r.Context(), gid)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) join(parent context.Context, gid string) {
	pid, ok := identity.ParticipantFrom(parent)
	if !ok {
		h.Log.Debug("join skipped: no participant", zap.String("group_id", gid))
		return
	}
	ctx, cancel := context.WithTimeout(parent, timeouts.Short())
	defer cancel()
	h.Members.Join(ctx, gid, pid)
}

// Share handles GET /api/groups/{gid}/share and returns the payload handed
// to a share target.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.groupID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, found, err := h.Groups.GetByID(ctx, gid)
	if err != nil {
		h.ErrLog.Write(w, r, "read group failed", err)
		return
	}
	title := models.DefaultGroupName
	if found {
		title = g.View().Name
	}

	writeJSON(w, http.StatusOK, shareResponse{URL: h.ShareURL(gid), Title: title, Text: shareText})
}
