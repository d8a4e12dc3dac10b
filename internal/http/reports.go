package http

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/service"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/upload"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/validation"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
)

type reportResponse struct {
	ID            int64   `json:"id"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Content       string  `json:"content"`
	UserID        int64   `json:"user_id"`
	Username      string  `json:"username"`
	Severity      string  `json:"severity"`
	ImageFilename *string `json:"image_filename"`
	CreatedAt     string  `json:"created_at"`
	ZoneName      string  `json:"zone_name"`
}

func toReportResponse(r models.Report) reportResponse {
	return reportResponse{
		ID:            r.ID,
		Lat:           r.Lat,
		Lng:           r.Lng,
		Content:       r.Content,
		UserID:        r.UserID,
		Username:      r.Username,
		Severity:      r.Severity,
		ImageFilename: r.ImageFilename,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
		ZoneName:      r.ZoneName,
	}
}

// ListReports handles GET /api/reports, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toReportResponse(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateReport handles multipart POST /api/reports.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	limit := int64(multipartMemory)
	if h.media != nil && h.media.MaxBytes() > 0 {
		limit = h.media.MaxBytes()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "파일 크기가 너무 큽니다.")
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "요청 형식이 올바르지 않습니다.")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lat")), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lng")), 64)
	if latErr != nil || lngErr != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "위치 정보가 올바르지 않습니다.")
		return
	}
	in := validation.ReportInput{
		Lat:      lat,
		Lng:      lng,
		Content:  r.FormValue("content"),
		Severity: strings.TrimSpace(r.FormValue("severity")),
		ZoneName: r.FormValue("zone_name"),
	}

	var attachment *service.Attachment
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		attachment = &service.Attachment{Filename: header.Filename, Body: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "요청 형식이 올바르지 않습니다.")
		return
	}

	if _, err := h.reports.Create(r.Context(), sess, in, attachment); err != nil {
		switch {
		case errors.Is(err, validation.ErrInvalid):
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", validation.MessageFor(err))
		case errors.Is(err, upload.ErrTooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "파일 크기가 너무 큽니다.")
		default:
			writeInternalError(w, r, h.logger, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "제보가 등록되었습니다."})
}

// UpdateReport handles PUT /api/reports/{id} with JSON {content?, severity?}.
func (h *Handler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var body struct {
		Content  *string `json:"content"`
		Severity *string `json:"severity"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	updated, err := h.reports.Update(r.Context(), sess, id, service.ReportUpdate{Content: body.Content, Severity: body.Severity})
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "제보가 수정되었습니다.",
		"report":  toReportResponse(updated),
	})
}

// DeleteReport handles DELETE /api/reports/{id}.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	if err := h.reports.Delete(r.Context(), sess, id); err != nil {
		h.writeReportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "제보가 삭제되었습니다."})
}

// ServeUpload handles GET /uploads/{filename}.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		http.NotFound(w, r)
		return
	}
	path, err := h.media.Path(mux.Vars(r)["filename"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	user, err := h.sessionUser(r)
	switch {
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrInvalidSession):
		requestLogger(r, h.logger).Debug("session required", zap.Error(err))
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "로그인이 필요합니다.")
		return auth.Session{}, false
	case err != nil:
		writeInternalError(w, r, h.logger, err)
		return auth.Session{}, false
	}
	return auth.Session{UserID: user.ID, Username: user.Username}, true
}

func reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "REPORT_NOT_FOUND", "제보를 찾을 수 없습니다.")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		writeError(w, r, http.StatusNotFound, "REPORT_NOT_FOUND", "제보를 찾을 수 없습니다.")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", "권한이 없습니다.")
	case errors.Is(err, validation.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", validation.MessageFor(err))
	default:
		writeInternalError(w, r, h.logger, err)
	}
}
