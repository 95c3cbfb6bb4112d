package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"textrefine/internal/api"
)

const (
	healthPath    = "/health"
	refinePath    = "/v1/refine"
	translatePath = "/v1/translate"

	maxBodyBytes = 1 << 20
)

func (s *Server) registerRoutes() {
	s.app.GET(healthPath, s.handleHealth)
	s.app.POST(refinePath, s.handleRefine)
	s.app.POST(translatePath, s.handleTranslate)
}

type healthResponse struct {
	Status   string   `json:"status"`
	Profiles []string `json:"profiles"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Profiles: s.router.Profiles()})
}

func (s *Server) handleRefine(c echo.Context) error {
	var req api.RefineRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	result, err := s.router.Refine(c.Request().Context(), req.Profile, req.Messages, req.Current)
	if err != nil {
		return toAPIError(err)
	}
	return c.JSON(http.StatusOK, api.FromRefineResult(result))
}

func (s *Server) handleTranslate(c echo.Context) error {
	var req api.TranslateRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	translated, err := s.router.Translate(c.Request().Context(), req.Profile, req.Text)
	if err != nil {
		return toAPIError(err)
	}
	return c.JSON(http.StatusOK, api.TranslateResponse{Translation: translated})
}

// bindJSON decodes exactly one JSON value from the body into target. Request
// types validate themselves in UnmarshalJSON.
func bindJSON(c echo.Context, target any) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	err := dec.Decode(target)

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return newAPIError(http.StatusBadRequest, errTypeInvalidRequest, "request body is required")
	case errors.As(err, &tooLarge):
		return newAPIError(http.StatusRequestEntityTooLarge, errTypeInvalidRequest,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	default:
		return newAPIError(http.StatusBadRequest, errTypeInvalidRequest, "invalid JSON payload: "+err.Error())
	}

	if dec.More() {
		return newAPIError(http.StatusBadRequest, errTypeInvalidRequest, "request body must contain a single JSON object")
	}
	return nil
}
