package counters

import (
	"context"
	"net/http"

	"github.com/dalemusser/tallyhub/internal/app/system/timeouts"
)

// Increment handles POST /api/groups/{gid}/increment.
//
//	{"delta":-10} -> 200 {"count":…}
//
// delta may be any integer. The count is changed in one atomic transaction,
// so concurrent increments from other participants are never lost.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.groupID(w, r)
	if !ok {
		return
	}

	var req incrementRequest
	if err := decodeBody(w, r, &req); err != nil || req.Delta == nil {
		h.ErrLog.LogBadRequest(w, r, "bad increment body", err, "Request body must be {\"delta\": integer}.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Counters.Increment(ctx, gid, *req.Delta)
	if err != nil {
		h.ErrLog.Write(w, r, "increment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// Reset handles POST /api/groups/{gid}/reset. The body must carry
// {"confirm":true}; anything else is refused with 409 and nothing is
// written. Any participant may reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.groupID(w, r)
	if !ok {
		return
	}

	var req resetRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad reset body", err, "Request body must be {\"confirm\": true}.")
			return
		}
	}
	if !req.Confirm {
		h.ErrLog.ConfirmationRequired(w, r, "Resetting sets the count to 0 for everyone. Send {\"confirm\": true} to proceed.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Counters.Reset(ctx, gid); err != nil {
		h.ErrLog.Write(w, r, "reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: 0})
}
