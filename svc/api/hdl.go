package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"clipbin/cfg"
	"clipbin/pkg/domain"
	"clipbin/svc/svc"
	"clipbin/svc/util"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/unicode/norm"
)

type Hdl struct {
	paste *svc.Paste
	cfg   *cfg.Cfg
}

type CreateReq struct {
	Owner      string `json:"owner,omitempty"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	LanguageID string `json:"languageId,omitempty"`
	Keeping    string `json:"keeping"`
}

// CreateResp carries the deletion token; this response is the only place it
// ever appears.
type CreateResp struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type DeleteReq struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		log.Warn().
			Str("content_type", contentType).
			Str("request_id", requestID).
			Msg("invalid Content-Type header")
		w.WriteHeader(http.StatusUnsupportedMediaType)
		json.NewEncoder(w).Encode(map[string]string{
			"error":      "expected Content-Type: application/json",
			"request_id": requestID,
		})
		return
	}

	limit := h.cfg.MaxPasteSize * 2
	if clHeader := r.Header.Get("Content-Length"); clHeader != "" {
		cl, err := strconv.ParseInt(clHeader, 10, 64)
		if err != nil || cl < 0 {
			log.Warn().Str("content_length", clHeader).Msg("invalid Content-Length")
			writeErr(w, domain.ErrInvalidRequest, requestID)
			return
		}
		if cl > limit {
			log.Warn().Int64("content_length", cl).Msg("Content-Length exceeds maximum")
			writeErr(w, domain.ErrPasteTooLarge, requestID)
			return
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	var req CreateReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			log.Warn().Msg("empty request body")
		} else {
			log.Warn().Err(err).Msg("invalid request")
		}
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if req.Content == "" {
		log.Warn().Msg("empty content")
		writeErr(w, domain.ErrContentRequired, requestID)
		return
	}
	if int64(len(req.Content)) > h.cfg.MaxPasteSize {
		log.Warn().Int("content_length", len(req.Content)).Msg("content exceeds maximum size")
		writeErr(w, domain.ErrPasteTooLarge, requestID)
		return
	}
	owner := sanitizeField(req.Owner)
	title := sanitizeField(req.Title)
	if len(owner) > h.cfg.MaxFieldLen || len(title) > h.cfg.MaxFieldLen {
		log.Warn().Int("owner_len", len(owner)).Int("title_len", len(title)).Msg("display field too long")
		writeErr(w, domain.ErrFieldTooLong, requestID)
		return
	}

	// Content is stored verbatim: fetch must round-trip it byte for byte, and
	// rendering is entirely a client concern.
	params := domain.CreateParams{
		Owner:    owner,
		Title:    title,
		Content:  req.Content,
		Language: req.LanguageID,
		Keeping:  req.Keeping,
	}
	paste, token, err := h.paste.Create(r.Context(), params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRetention) ||
			errors.Is(err, domain.ErrPasteTooLarge) ||
			errors.Is(err, domain.ErrContentRequired) ||
			errors.Is(err, domain.ErrStoreFull) ||
			errors.Is(err, domain.ErrIDGenerationFailed) {
			log.Warn().Err(err).Msg("create rejected")
			writeErr(w, err, requestID)
			return
		}
		log.Error().Err(err).Msg("failed to create paste")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	log.Info().
		Str("paste_id", paste.ID).
		Str("keeping", paste.Keeping).
		Bool("burn", paste.Burn).
		Msg("paste created")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateResp{ID: paste.ID, Token: token})
}

func (h *Hdl) GetPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	// A token query parameter may arrive for client-side UI convenience; it
	// plays no part in authorization and is deliberately ignored here.
	paste, err := h.paste.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			writeErr(w, domain.ErrPasteNotFound, requestID)
			return
		}
		log.Error().Err(err).Str("paste_id", id).Msg("get failed")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	log.Info().
		Str("paste_id", id).
		Str("client_ip", util.RedactIP(r.RemoteAddr)).
		Bool("burn", paste.Burn).
		Msg("paste retrieved")
	json.NewEncoder(w).Encode(paste)
}

func (h *Hdl) DeletePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	var req DeleteReq
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid delete request")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if req.ID == "" || req.Token == "" {
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	if err := h.paste.Delete(r.Context(), req.ID, req.Token); err != nil {
		if errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrPasteNotFound) {
			// Unknown id and wrong token are reported identically.
			log.Warn().
				Str("paste_id", req.ID).
				Str("token", util.RedactToken(req.Token)).
				Str("client_ip", util.RedactIP(r.RemoteAddr)).
				Msg("delete rejected")
			writeErr(w, domain.ErrForbidden, requestID)
			return
		}
		log.Error().Err(err).Str("paste_id", req.ID).Msg("failed to delete paste")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// GetRetentions publishes the fixed keyword enumeration so clients have one
// source of truth for the wire contract.
func (h *Hdl) GetRetentions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(domain.RetentionKeywords())
}

func writeErr(w http.ResponseWriter, err error, requestID string) {
	statusCode := domain.Status(err)
	w.WriteHeader(statusCode)
	errorMsg := domain.ToResp(err).Error.Msg
	if statusCode >= 500 && statusCode != http.StatusServiceUnavailable {
		errorMsg = "internal server error"
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error with detailed info")
	}
	json.NewEncoder(w).Encode(map[string]string{
		"error":      errorMsg,
		"request_id": requestID,
	})
}

// sanitizeField normalizes an optional display string (owner, title) to NFC
// and strips control characters. Applies only to display metadata, never to
// content.
func sanitizeField(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
