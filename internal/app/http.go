package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"formbuilder/api/internal/auth"
	"formbuilder/api/internal/forms"
	"formbuilder/api/internal/rbac"
	"formbuilder/api/internal/util"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type HTTPServer struct {
	service    *Service
	jwtSecret  []byte
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, jwtSecret, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, jwtSecret: []byte(jwtSecret), corsOrigin: corsOrigin, logger: logger}
}

type abilityHandler func(w http.ResponseWriter, r *http.Request, ability *rbac.Ability)

func (s *HTTPServer) Handler() http.Handler {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	router := mux.NewRouter()
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = methodNotAllowed

	// mux does not hand a subrouter's method mismatch back to the parent.
	api := router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = methodNotAllowed
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/forms/{id}/public", s.handlePublicForm).Methods(http.MethodGet)

	api.Handle("/templates", s.authenticated(s.handleListTemplates)).Methods(http.MethodGet)
	api.Handle("/templates", s.authenticated(s.handleCreateTemplate)).Methods(http.MethodPost)
	api.Handle("/templates/{id}", s.authenticated(s.handleGetTemplate)).Methods(http.MethodGet)
	api.Handle("/templates/{id}", s.authenticated(s.handleUpdateTemplate)).Methods(http.MethodPut)
	api.Handle("/templates/{id}", s.authenticated(s.handleDeleteTemplate)).Methods(http.MethodDelete)
	api.Handle("/templates/{id}/publish", s.authenticated(s.handlePublish)).Methods(http.MethodPut)
	api.Handle("/templates/{id}/users", s.authenticated(s.handleGetUsers)).Methods(http.MethodGet)
	api.Handle("/templates/{id}/users", s.authenticated(s.handleReassignUsers)).Methods(http.MethodPut)
	api.Handle("/templates/{id}/purpose", s.authenticated(s.handleSetPurpose)).Methods(http.MethodPut)
	api.Handle("/templates/{id}/delivery-option", s.authenticated(s.handleSetDeliveryOption)).Methods(http.MethodPut)
	api.Handle("/templates/{id}/delivery-option", s.authenticated(s.handleClearDeliveryOption)).Methods(http.MethodDelete)
	api.Handle("/templates/{id}/closing-date", s.authenticated(s.handleSetClosingDate)).Methods(http.MethodPut)
	api.Handle("/templates/{id}/security-attribute", s.authenticated(s.handleSetSecurityAttribute)).Methods(http.MethodPut)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins(s.corsOrigin),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return s.withMiddleware(c.Handler(router))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handlePublicForm(w http.ResponseWriter, r *http.Request) {
	record := s.service.GetPublicByID(r.Context(), mux.Vars(r)["id"])
	if record == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *HTTPServer) handleListTemplates(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	query := r.URL.Query()
	opts := forms.ListOptions{SortByDateUpdated: forms.SortOrder(query.Get("sort"))}
	switch opts.SortByDateUpdated {
	case forms.SortNone, forms.SortAsc, forms.SortDesc:
	default:
		writeError(w, http.StatusUnprocessableEntity, string(KindInvalidInput), "sort must be asc or desc", nil)
		return
	}
	if raw := query.Get("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, string(KindInvalidInput), "published must be a boolean", nil)
			return
		}
		opts.Published = &published
	}

	var (
		items []forms.Record
		err   error
	)
	if query.Get("scope") == "all" {
		items, err = s.service.ListAll(r.Context(), ability, opts)
	} else {
		items, err = s.service.ListForPrincipal(r.Context(), ability, opts)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleCreateTemplate(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		Form              json.RawMessage         `json:"form"`
		Name              string                  `json:"name"`
		DeliveryOption    *forms.DeliveryOption   `json:"deliveryOption"`
		SecurityAttribute forms.SecurityAttribute `json:"securityAttribute"`
		FormPurpose       string                  `json:"formPurpose"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	record, err := s.service.Create(r.Context(), CreateCommand{
		Ability:           ability,
		FormConfig:        body.Form,
		Name:              body.Name,
		DeliveryOption:    body.DeliveryOption,
		SecurityAttribute: body.SecurityAttribute,
		FormPurpose:       body.FormPurpose,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *HTTPServer) handleGetTemplate(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	record, err := s.service.GetFullByID(r.Context(), ability, mux.Vars(r)["id"])
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleUpdateTemplate(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		Form              json.RawMessage          `json:"form"`
		Name              *string                  `json:"name"`
		DeliveryOption    *forms.DeliveryOption    `json:"deliveryOption"`
		SecurityAttribute *forms.SecurityAttribute `json:"securityAttribute"`
		FormPurpose       *string                  `json:"formPurpose"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	record, err := s.service.Update(r.Context(), UpdateCommand{
		Ability:           ability,
		FormID:            mux.Vars(r)["id"],
		FormConfig:        body.Form,
		Name:              body.Name,
		DeliveryOption:    body.DeliveryOption,
		SecurityAttribute: body.SecurityAttribute,
		FormPurpose:       body.FormPurpose,
	})
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleDeleteTemplate(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	record, err := s.service.SoftDelete(r.Context(), ability, mux.Vars(r)["id"])
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handlePublish(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		IsPublished *bool `json:"isPublished"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.IsPublished == nil {
		writeError(w, http.StatusUnprocessableEntity, string(KindInvalidInput), "isPublished is required", nil)
		return
	}
	record, err := s.service.SetPublished(r.Context(), ability, mux.Vars(r)["id"], *body.IsPublished)
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleGetUsers(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	item, err := s.service.GetWithAssociatedUsers(r.Context(), ability, mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleReassignUsers(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	ids := make([]string, 0, len(body.Users))
	for _, user := range body.Users {
		ids = append(ids, user.ID)
	}
	record, err := s.service.ReassignUsers(r.Context(), ability, mux.Vars(r)["id"], ids)
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleSetPurpose(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		FormPurpose string `json:"formPurpose"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	record, err := s.service.SetFormPurpose(r.Context(), ability, mux.Vars(r)["id"], body.FormPurpose)
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleSetDeliveryOption(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body forms.DeliveryOption
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	record, err := s.service.SetDeliveryOption(r.Context(), ability, mux.Vars(r)["id"], body)
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleClearDeliveryOption(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	record, err := s.service.ClearDeliveryOption(r.Context(), ability, mux.Vars(r)["id"])
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleSetClosingDate(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		ClosingDate string `json:"closingDate"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	record, err := s.service.SetClosingDate(r.Context(), ability, mux.Vars(r)["id"], body.ClosingDate)
	s.writeRecord(w, r, record, err)
}

func (s *HTTPServer) handleSetSecurityAttribute(w http.ResponseWriter, r *http.Request, ability *rbac.Ability) {
	var body struct {
		SecurityAttribute forms.SecurityAttribute `json:"securityAttribute"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	record, err := s.service.SetSecurityAttribute(r.Context(), ability, mux.Vars(r)["id"], body.SecurityAttribute)
	s.writeRecord(w, r, record, err)
}

// authenticated resolves the bearer token into an ability.
func (s *HTTPServer) authenticated(next abilityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		claims, err := auth.ParseToken(s.jwtSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		ability := rbac.NewAbility(claims.Subject, claims.Email, rbac.ParsePrivileges(claims.Privileges))
		next(w, r, ability)
	})
}

func (s *HTTPServer) writeRecord(w http.ResponseWriter, r *http.Request, record *forms.Record, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		s.logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func allowedOrigins(corsOrigin string) []string {
	var origins []string
	for _, origin := range strings.Split(corsOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, string(domainErr.Kind), domainErr.Message, domainErr.Details
	}
	if errors.Is(err, rbac.ErrAccessDenied) {
		return http.StatusForbidden, string(KindAccessDenied), "Forbidden", nil
	}
	return http.StatusInternalServerError, string(KindStorageFailure), "Server error", nil
}
