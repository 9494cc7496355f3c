package assessment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/scoring"
	"github.com/ehr/clinscore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/instruments", h.ListInstruments)
	api.GET("/instruments/:code", h.GetInstrument)
	api.POST("/instruments/:code/score", h.Score)
	api.POST("/instruments/:code/normalize", h.Normalize)

	api.GET("/patients/:patient_id/instruments/:code/prefill", h.Prefill)
	api.GET("/patients/:patient_id/results", h.ListResults)
	api.GET("/results/:id", h.GetResult)
}

// httpError maps service errors onto status codes.
func httpError(err error) error {
	var invalid *InvalidInputError
	var missing *scoring.MissingRequiredInputError
	switch {
	case errors.Is(err, scoring.ErrUnknownInstrument):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &missing):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message": err.Error(),
			"missing": missing.Fields,
		})
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPersistenceDisabled):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func (h *Handler) ListInstruments(c echo.Context) error {
	type summary struct {
		Code      instrument.Code `json:"code"`
		Title     string          `json:"title"`
		Version   string          `json:"version"`
		Questions int             `json:"questions"`
	}
	defs := h.svc.Instruments()
	out := make([]summary, 0, len(defs))
	for _, d := range defs {
		out = append(out, summary{Code: d.Code, Title: d.Title, Version: d.Version, Questions: len(d.Questions)})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetInstrument(c echo.Context) error {
	def, err := h.svc.Instrument(c.Param("code"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) Score(c echo.Context) error {
	code, err := parseCode(c.Param("code"))
	if err != nil {
		return httpError(err)
	}
	c.Set("instrument", string(code))

	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sub.Instrument = code

	scored, err := h.svc.Score(c.Request().Context(), sub)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusOK
	if scored.Stored != nil {
		status = http.StatusCreated
	}
	return c.JSON(status, scored)
}

type normalizeRequest struct {
	Record map[string]any `json:"record"`
	Diff   bool           `json:"diff"`
}

func (h *Handler) Normalize(c echo.Context) error {
	var req normalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Normalize(c.Param("code"), req.Record, req.Diff)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Prefill(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	out, err := h.svc.Prefill(c.Request().Context(), pid, c.Param("code"), c.QueryParam("diff") == "true")
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListResults(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListResults(c.Request().Context(), pid, c.QueryParam("instrument"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c.Request().URL))
}

func (h *Handler) GetResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetResult(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}
