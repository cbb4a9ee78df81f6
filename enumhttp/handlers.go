package enumhttp

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cerego/persistent-enum/enum"
	"github.com/cerego/persistent-enum/logger"
)

// Handler serves the enum inspection and reload endpoints over a registry
type Handler struct {
	registry *enum.Registry
	log      *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(registry *enum.Registry, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log,
	}
}

// enumSummary is the list-view JSON shape
type enumSummary struct {
	Name     string `json:"name"`
	Members  int    `json:"members"`
	Required int    `json:"required"`
	Degraded bool   `json:"degraded"`
}

// memberView is the member JSON shape
type memberView struct {
	Key    any            `json:"key"`
	Name   string         `json:"name"`
	Active bool           `json:"active"`
	Dummy  bool           `json:"dummy,omitempty"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

// ListEnums lists every registered enumeration
// GET /api/v1/enums
func (h *Handler) ListEnums(c echo.Context) error {
	enums := h.registry.All()
	out := make([]enumSummary, 0, len(enums))
	for _, e := range enums {
		snap := e.Snapshot()
		out = append(out, enumSummary{
			Name:     e.Name(),
			Members:  snap.Len(),
			Required: len(snap.RequiredMembers()),
			Degraded: snap.Dummy(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"enums": out})
}

// GetEnum dumps one enumeration's current snapshot
// GET /api/v1/enums/:name
func (h *Handler) GetEnum(c echo.Context) error {
	name := c.Param("name")

	e, ok := h.registry.Lookup(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown enum: "+name)
	}

	snap := e.Snapshot()
	members := make([]memberView, 0, snap.Len())
	for _, m := range snap.Members() {
		members = append(members, memberView{
			Key:    m.Key().Native(),
			Name:   m.Name(),
			Active: snap.IsActive(m),
			Dummy:  m.Dummy(),
			Attrs:  nativeAttrs(m),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"name":     e.Name(),
		"degraded": snap.Dummy(),
		"members":  members,
	})
}

// LookupMember resolves one member by name, case-insensitively when the
// snapshot allows it
// GET /api/v1/enums/:name/members/:member
func (h *Handler) LookupMember(c echo.Context) error {
	e, ok := h.registry.Lookup(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown enum: "+c.Param("name"))
	}

	memberName := c.Param("member")
	m := e.ByName(memberName)
	if m == nil {
		folded, err := e.ByNameFold(memberName)
		if err != nil && !errors.Is(err, enum.ErrLookupUnavailable) {
			return err
		}
		m = folded
	}
	if m == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown member: "+memberName)
	}

	return c.JSON(http.StatusOK, memberView{
		Key:    m.Key().Native(),
		Name:   m.Name(),
		Active: e.IsActive(m),
		Dummy:  m.Dummy(),
		Attrs:  nativeAttrs(m),
	})
}

// Reload re-synchronizes every registered enumeration
// POST /api/v1/enums/reload
func (h *Handler) Reload(c echo.Context) error {
	if err := h.registry.ReinitializeAll(c.Request().Context()); err != nil {
		h.log.Error("bulk reinitialization failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.log.Info("reinitialized all enums", "count", len(h.registry.Names()))
	return c.JSON(http.StatusOK, map[string]any{
		"reloaded": h.registry.Names(),
	})
}

func nativeAttrs(m *enum.Member) map[string]any {
	attrs := m.Attrs()
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v.Native()
	}
	return out
}
