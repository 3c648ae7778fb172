package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reqforge/reqforge/src/engine"
)

type generateDocumentRequest struct {
	TemplateID   string `json:"template_id"`
	Instructions string `json:"instructions"`
}

type changeTemplateRequest struct {
	TemplateID string `json:"template_id"`
}

type restoreVersionRequest struct {
	Number int `json:"number"`
}

func (s *Server) docTypeParam(c echo.Context) (engine.DocType, error) {
	docType, err := engine.ParseDocType(c.Param("type"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return docType, nil
}

func (s *Server) listDocuments(c echo.Context) error {
	docs, err := s.engine.Documents(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) getDocument(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}

	doc, err := s.engine.Document(c.Request().Context(), c.Param("id"), docType)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) generateDocument(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}

	var req generateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	version, err := s.engine.GenerateDocument(c.Request().Context(), c.Param("id"), engine.GenerationRequest{
		DocType:      docType,
		TemplateID:   req.TemplateID,
		Instructions: req.Instructions,
	})
	if err != nil {
		return httpError(err)
	}
	if version == nil {
		// Generation was stopped before completion.
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, version)
}

func (s *Server) changeTemplate(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}

	var req changeTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TemplateID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "template_id is required")
	}

	version, err := s.engine.ChangeTemplate(c.Request().Context(), c.Param("id"), docType, req.TemplateID)
	if err != nil {
		return httpError(err)
	}
	if version == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, version)
}

func (s *Server) dismissStale(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}

	if err := s.engine.DismissStaleness(c.Request().Context(), c.Param("id"), docType); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listVersions(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}

	versions, err := s.engine.DocumentVersions(c.Request().Context(), c.Param("id"), docType)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, versions)
}

func (s *Server) restoreVersion(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}

	var req restoreVersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Number <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "number must be positive")
	}

	version, err := s.engine.RestoreVersion(c.Request().Context(), c.Param("id"), docType, req.Number)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, version)
}

func (s *Server) listTemplates(c echo.Context) error {
	docType, err := s.docTypeParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.engine.TemplatesFor(docType))
}
