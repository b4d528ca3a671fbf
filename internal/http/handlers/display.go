package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/micro-ha/bloomin-presence/internal/pipeline"
)

type uploadImageRequest struct {
	ImagePath string `json:"image_path"`
}

// UpdateDisplay runs the pipeline with the configured image source.
func (a *API) UpdateDisplay(w http.ResponseWriter, r *http.Request) {
	report, err := a.runner.Run(r.Context(), pipeline.UpdateDisplay())
	a.writeReport(w, report, err)
}

// UploadImage runs the pipeline with a caller-supplied image path.
func (a *API) UploadImage(w http.ResponseWriter, r *http.Request) {
	var payload uploadImageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.ImagePath) == "" {
		writeError(w, http.StatusBadRequest, "missing_image_path", "image_path is required")
		return
	}
	report, err := a.runner.Run(r.Context(), pipeline.UploadImage(payload.ImagePath))
	a.writeReport(w, report, err)
}

func (a *API) writeReport(w http.ResponseWriter, report pipeline.Report, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeJSON(w, outcomeStatus(report.Outcome), map[string]any{
		"error": map[string]any{
			"code":    string(report.Outcome),
			"message": err.Error(),
		},
		"report": report,
	})
}

func outcomeStatus(outcome pipeline.Outcome) int {
	switch outcome {
	case pipeline.OutcomeNoImage:
		return http.StatusNotFound
	case pipeline.OutcomeWakeFailed, pipeline.OutcomeDeliveryFailed, pipeline.OutcomePresenceUnavailable:
		return http.StatusBadGateway
	case pipeline.OutcomeCompositeFailed:
		return http.StatusUnprocessableEntity
	case pipeline.OutcomeDelivered, pipeline.OutcomeSuppressed:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
