package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonwraymond/mercaflow/classify"
	"github.com/jonwraymond/mercaflow/observe"
)

// Prefix is where the router mounts its routes.
const Prefix = "/api/v1"

// ClassifyItem is one name with an optional explicit section.
type ClassifyItem struct {
	Name    string `json:"name" binding:"max=1000"`
	Section string `json:"section"`
}

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Items []ClassifyItem `json:"items" binding:"required,min=1,max=500,dive"`
}

// ClassifyResult pairs an input name with its classification.
type ClassifyResult struct {
	Name string `json:"name"`
	classify.Result
}

// LearnRequest is the body of POST /learn.
type LearnRequest struct {
	Name    string `json:"name" binding:"required"`
	Section string `json:"section" binding:"required"`
}

// ImportRequest is the body of POST /import.
type ImportRequest struct {
	Text string `json:"text"`
}

type handler struct {
	classifier *classify.Classifier
	log        observe.Logger
}

// NewRouter returns a gin engine serving the classifier under Prefix.
func NewRouter(c *classify.Classifier, log observe.Logger) *gin.Engine {
	if log == nil {
		log = observe.NopLogger()
	}
	h := &handler{classifier: c, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.HandleMethodNotAllowed = true

	v1 := r.Group(Prefix)
	v1.GET("/sections", h.sections)
	v1.GET("/mappings", h.mappings)
	v1.POST("/classify", h.classify)
	v1.POST("/learn", h.learn)
	v1.POST("/import", h.importText)
	return r
}

func (h *handler) sections(c *gin.Context) {
	sections := h.classifier.Catalog().Sorted()
	c.JSON(http.StatusOK, gin.H{
		"sections": sections,
		"count":    len(sections),
	})
}

func (h *handler) mappings(c *gin.Context) {
	mappings := h.classifier.Mappings()
	c.JSON(http.StatusOK, gin.H{
		"mappings": mappings,
		"count":    len(mappings),
		"degraded": h.classifier.Degraded(),
	})
}

func (h *handler) classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	results := make([]ClassifyResult, 0, len(req.Items))
	for _, it := range req.Items {
		results = append(results, ClassifyResult{
			Name:   it.Name,
			Result: h.classifier.ClassifyDetail(it.Name, it.Section),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

func (h *handler) learn(c *gin.Context) {
	var req LearnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	accepted, err := h.classifier.Learn(c.Request.Context(), req.Name, req.Section)
	switch {
	case errors.Is(err, classify.ErrEmptyName), errors.Is(err, classify.ErrUnknownSection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error(c.Request.Context(), "learn", observe.F("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "learn failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"key":      classify.NormalizeKey(req.Name, h.classifier.Limits().MaxKeyLength),
		"section":  req.Section,
		"degraded": h.classifier.Degraded(),
	})
}

func (h *handler) importText(c *gin.Context) {
	// JSON escaping can inflate the text up to six times.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(6*h.classifier.Limits().MaxImportBytes))

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	items := h.classifier.Import(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}
