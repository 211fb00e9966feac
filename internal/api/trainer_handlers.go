package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/replytrainer/internal/trainer"
	"github.com/replytrainer/pkg/models"
)

func (s *Server) generateCandidates(c echo.Context) error {
	fields, err := readObject(c)
	if err != nil {
		return err
	}

	res, err := s.trainer.GenerateCandidates(c.Request().Context(), DecodeGenerationRequest(fields))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) saveFeedback(c echo.Context) error {
	fields, err := readObject(c)
	if err != nil {
		return err
	}

	var sessionID *string
	if raw, ok := fields["sessionId"]; ok {
		_ = json.Unmarshal(raw, &sessionID)
	}

	res, err := s.trainer.SaveTrainerFeedback(c.Request().Context(), sessionID, trainer.DecodeFeedbackItems(fields["feedback"]))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// readObject reads the body as a JSON object. An empty body or a JSON null is
// an empty object; anything else that is not an object is rejected.
func readObject(c echo.Context) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	fields := map[string]json.RawMessage{}
	if strings.TrimSpace(string(body)) == "" {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

// DecodeGenerationRequest reads the request fields leniently. Missing or
// mistyped fields become empty values.
func DecodeGenerationRequest(fields map[string]json.RawMessage) models.GenerationRequest {
	req := models.GenerationRequest{
		Context:          map[string]interface{}{},
		ProfileImageURLs: decodeStrings(fields["profileImageUrls"]),
		ChatImageURLs:    decodeStrings(fields["chatImageUrls"]),
	}
	if raw, ok := fields["context"]; ok {
		var ctx map[string]interface{}
		if json.Unmarshal(raw, &ctx) == nil && ctx != nil {
			req.Context = ctx
		}
	}
	return req
}

func decodeStrings(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func serviceError(err error) error {
	switch {
	case errors.Is(err, trainer.ErrCapability):
		log.Error().Err(err).Msg("Model capability failure")
		return echo.NewHTTPError(http.StatusBadGateway, "model service failed, try again")
	case errors.Is(err, trainer.ErrPersistence):
		log.Error().Err(err).Msg("Persistence failure")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record result")
	default:
		log.Error().Err(err).Msg("Unexpected trainer error")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
