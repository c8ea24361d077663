// internal/app/features/counters/handler.go
package counters

import (
	"encoding/json"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tallyhub/internal/app/features/errors"
	counterstore "github.com/dalemusser/tallyhub/internal/app/store/counters"
	groupstore "github.com/dalemusser/tallyhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/tallyhub/internal/app/store/memberships"
	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the shared-counter API and its live feed.
type Handler struct {
	Groups   *groupstore.Store
	Counters *counterstore.Store
	Members  *membershipstore.Store
	ErrLog   *uierrors.ErrorLogger
	BaseURL  string
	Log      *zap.Logger
}

// NewHandler builds the stores over db. Every store resolves the acting
// participant from the request context.
func NewHandler(db syncstore.Store, baseURL string, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Groups:   groupstore.New(db, identity.FromContext, logger),
		Counters: counterstore.New(db, identity.FromContext, logger),
		Members:  membershipstore.New(db, logger),
		ErrLog:   errLog,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Log:      logger,
	}
}

// ShareURL returns the public link for a group.
func (h *Handler) ShareURL(gid string) string {
	return h.BaseURL + "/g/" + gid
}

// groupID reads and checks the {gid} route parameter. On failure it has
// already written the 400 response.
func (h *Handler) groupID(w http.ResponseWriter, r *http.Request) (string, bool) {
	gid := strings.TrimSpace(chi.URLParam(r, "gid"))
	if gid == "" || len(gid) > maxGroupIDLen || syncstore.Validate(syncstore.GroupPath(gid)) != nil {
		h.ErrLog.LogBadRequest(w, r, "invalid group id", nil, "Invalid group id.")
		return "", false
	}
	return gid, true
}

// maxGroupIDLen bounds ids accepted from URLs. Generated ids are shorter.
const maxGroupIDLen = 64

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
