package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reqforge/reqforge/src/engine"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type feedbackRequest struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// httpError maps engine sentinels onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, engine.ErrConversationNotFound),
		errors.Is(err, engine.ErrMessageNotFound),
		errors.Is(err, engine.ErrVersionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrUnknownDocType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNoActiveGeneration):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) listConversations(c echo.Context) error {
	conversations, err := s.engine.ListConversations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conversations)
}

func (s *Server) createConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	conv, err := s.engine.StartConversation(c.Request().Context(), req.Title)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) getConversation(c echo.Context) error {
	conv, err := s.engine.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) renameConversation(c echo.Context) error {
	var req renameConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	if err := s.engine.RenameConversation(c.Request().Context(), c.Param("id"), req.Title); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteConversation(c echo.Context) error {
	if err := s.engine.DeleteConversation(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listMessages(c echo.Context) error {
	messages, err := s.engine.Messages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	msg, err := s.engine.SendMessage(c.Request().Context(), c.Param("id"), req.Text, engine.SendOptions{})
	if err != nil {
		return httpError(err)
	}
	if msg == nil {
		// The turn was stopped or errored before any content arrived.
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) stopGeneration(c echo.Context) error {
	if err := s.engine.StopGeneration(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) retryMessage(c echo.Context) error {
	msg, err := s.engine.RetryMessage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if msg == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) editDraft(c echo.Context) error {
	text, err := s.engine.EditDraft(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (s *Server) setFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.engine.SetMessageFeedback(c.Request().Context(), c.Param("id"), req.Rating, req.Comment); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getProfile(c echo.Context) error {
	profile, err := s.engine.Profile(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, profile)
}
