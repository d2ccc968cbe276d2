package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/pkg/handlers"
	"github.com/parleyhq/parley/pkg/routes"
	"github.com/parleyhq/parley/pkg/storage"
)

// recordingsHandler streams archived recording audio for playback.
// Recordings land in blob storage when the pipeline takes the
// binary-download fallback path.
type recordingsHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newRecordingsHandler(store storage.System, logger *slog.Logger) *recordingsHandler {
	return &recordingsHandler{
		store:  store,
		logger: logger.With("handler", "recordings"),
	}
}

func (h *recordingsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/recordings",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{messageId}", Handler: h.download},
		},
	}
}

func (h *recordingsHandler) download(w http.ResponseWriter, r *http.Request) {
	key := "recordings/" + r.PathValue("messageId")

	body, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
