package standards

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/project"
	"tga-backend/internal/shared/metrics"
	"tga-backend/internal/shared/server/respond"
)

// Handler serves the read-only catalog and ad-hoc compliance checks.
type Handler struct {
	Catalog  *Catalog
	Checker  *Checker
	Defaults []string
}

// NewHandler constructs a Handler. defaults are checked when a request names
// no standards.
func NewHandler(catalog *Catalog, checker *Checker, defaults []string) *Handler {
	return &Handler{Catalog: catalog, Checker: checker, Defaults: defaults}
}

// RegisterRoutes attaches standards routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/standards", h.list)
	rg.GET("/standards/*id", h.get)
	rg.POST("/standards/classify", h.classify)
	rg.POST("/standards/check", h.check)
}

type ruleView struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Condition      string `json:"condition"`
	Recommendation string `json:"recommendation"`
}

type standardView struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Type     Type       `json:"type"`
	Category string     `json:"category"`
	Rules    []ruleView `json:"rules,omitempty"`
}

func viewOf(s *Standard, withRules bool) standardView {
	v := standardView{ID: s.ID, Title: s.Title, Type: s.Type, Category: s.Category}
	if withRules {
		for _, r := range s.Rules {
			v.Rules = append(v.Rules, ruleView{
				ID:             r.ID,
				Description:    r.Description,
				Condition:      r.Condition.String(),
				Recommendation: r.Recommendation,
			})
		}
	}
	return v
}

func (h *Handler) list(c *gin.Context) {
	all := h.Catalog.Standards()
	resp := make([]standardView, 0, len(all))
	for _, s := range all {
		resp = append(resp, viewOf(s, false))
	}
	respond.OK(c, resp)
}

// get uses a wildcard because ids such as "VOB/C" contain slashes.
func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if len(id) > 0 && id[0] == '/' {
		id = id[1:]
	}
	std := h.Catalog.Get(id)
	if std == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "standard not found", nil)
		return
	}
	respond.OK(c, viewOf(std, true))
}

func (h *Handler) classify(c *gin.Context) {
	var cfg project.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	categories := h.Catalog.Classify(cfg)
	respond.OK(c, gin.H{
		"categories": categories,
		"standards":  nonNil(h.Catalog.StandardsFor(categories)),
	})
}

type checkRequest struct {
	Project   project.Config `json:"project"`
	Standards []string       `json:"standards"`
}

func (h *Handler) check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	cfg, err := project.Normalize(req.Project)
	if err != nil {
		respond.Invalid(c, err)
		return
	}
	ids := req.Standards
	if len(ids) == 0 {
		ids = h.Defaults
	}

	violations := h.Checker.Check(c.Request.Context(), cfg, ids)
	metrics.AddViolations(len(violations))
	respond.OK(c, gin.H{
		"standards":        ids,
		"violations":       violations,
		"complianceReport": h.Checker.Summarize(ids, violations),
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
