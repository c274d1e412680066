package controllers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"

	"udaay-be/middlewares"
	"udaay-be/models"
	"udaay-be/services"
	"udaay-be/store"
)

// IssueController serves /api/issues.
type IssueController struct {
	submissions *services.SubmissionService
	issues      *services.IssueService
}

func NewIssueController(submissions *services.SubmissionService, issues *services.IssueService) *IssueController {
	return &IssueController{submissions: submissions, issues: issues}
}

// RegisterValidators adds the custom binding tags used by the request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return goerr.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("issuecategory", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseCategory(fl.Field().String())
		return ok
	})
}

type submitForm struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description" binding:"required,max=2000"`
	Category    string `form:"category" binding:"required,issuecategory"`
	Location    string `form:"location" binding:"required"`
	ImageURL    string `form:"imageUrl"`
}

// Submit handles POST /api/issues/submit (multipart)
func (ic *IssueController) Submit(c *gin.Context) {
	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, err)
		return
	}

	req := services.SubmitRequest{
		ReporterID:  c.GetString(middlewares.UserIDKey),
		Title:       form.Title,
		Description: form.Description,
		Category:    form.Category,
		Location:    form.Location,
		ImageURL:    form.ImageURL,
	}

	if fh, err := c.FormFile("image"); err == nil {
		if fh.Size > services.MaxImageBytes {
			respondError(c, goerr.Wrap(models.ErrInvalidInput, "Image exceeds 10MB limit", goerr.V("size", fh.Size)))
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, goerr.Wrap(err, "failed to open upload"))
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, services.MaxImageBytes+1))
		if err != nil {
			respondError(c, goerr.Wrap(err, "failed to read upload"))
			return
		}
		req.Image = data
		req.MimeType = fh.Header.Get("Content-Type")
	}

	issue, err := ic.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Issue submitted successfully. Validation in progress.",
		"data":    gin.H{"issue": issue},
	})
}

// Live handles GET /api/issues/live?lat&lng&radius&category
func (ic *IssueController) Live(c *gin.Context) {
	q, err := liveQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	issues, err := ic.issues.LiveIssues(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(issues),
		"data":    gin.H{"issues": issues},
	})
}

func liveQuery(c *gin.Context) (store.LiveQuery, error) {
	var q store.LiveQuery

	lat, lng := c.Query("lat"), c.Query("lng")
	if lat != "" && lng != "" {
		latF, errLat := strconv.ParseFloat(lat, 64)
		lngF, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			return q, goerr.Wrap(models.ErrInvalidInput, "Invalid coordinates", goerr.V("lat", lat), goerr.V("lng", lng))
		}
		q.Near = &models.Coordinates{Lat: latF, Lng: lngF}
	}

	if radius := c.Query("radius"); radius != "" {
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil || r <= 0 {
			return q, goerr.Wrap(models.ErrInvalidInput, "Invalid radius", goerr.V("radius", radius))
		}
		q.RadiusMeters = r
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" && !strings.EqualFold(category, "all") {
		parsed, ok := models.ParseCategory(category)
		if !ok {
			return q, goerr.Wrap(models.ErrInvalidInput, "Invalid category", goerr.V("category", category))
		}
		q.Category = parsed
	}
	return q, nil
}

// MyIssues handles GET /api/issues/my-issues?status
func (ic *IssueController) MyIssues(c *gin.Context) {
	status := models.IssueStatus(strings.TrimSpace(c.Query("status")))
	issues, err := ic.issues.ReporterIssues(c.Request.Context(), c.GetString(middlewares.UserIDKey), status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(issues),
		"data":    gin.H{"issues": issues},
	})
}

// GetIssue handles GET /api/issues/:id
func (ic *IssueController) GetIssue(c *gin.Context) {
	issue, err := ic.issues.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"issue": issue}})
}

type updateIssueInput struct {
	Status   *string `json:"status"`
	Severity *string `json:"severity"`
	Note     string  `json:"note" binding:"max=1000"`
}

// UpdateIssue handles PATCH /api/issues/:id (officers)
func (ic *IssueController) UpdateIssue(c *gin.Context) {
	var input updateIssueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	upd := services.OfficerUpdate{Note: input.Note}
	if input.Status != nil {
		s := models.IssueStatus(strings.ToLower(strings.TrimSpace(*input.Status)))
		upd.Status = &s
	}
	if input.Severity != nil {
		s := models.Severity(strings.ToLower(strings.TrimSpace(*input.Severity)))
		upd.Severity = &s
	}

	issue, err := ic.issues.UpdateByOfficer(c.Request.Context(), c.Param("id"), c.GetString(middlewares.UserIDKey), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Issue updated", "data": gin.H{"issue": issue}})
}

// Upvote handles POST /api/issues/:id/upvote
func (ic *IssueController) Upvote(c *gin.Context) {
	issue, err := ic.issues.Upvote(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"upvotes": issue.Upvotes}})
}

// Verify handles POST /api/issues/:id/verify
func (ic *IssueController) Verify(c *gin.Context) {
	issue, err := ic.issues.VerifyResolution(c.Request.Context(), c.Param("id"), c.GetString(middlewares.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Resolution confirmed", "data": gin.H{"issue": issue}})
}

type rejectInput struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// Reject handles POST /api/issues/:id/reject
func (ic *IssueController) Reject(c *gin.Context) {
	var input rejectInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
	}

	issue, err := ic.issues.RejectResolution(c.Request.Context(), c.Param("id"), c.GetString(middlewares.UserIDKey), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Issue reopened", "data": gin.H{"issue": issue}})
}

// DeleteIssue handles DELETE /api/issues/:id (reporter only)
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	if err := ic.issues.Delete(c.Request.Context(), c.Param("id"), c.GetString(middlewares.UserIDKey)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Issue deleted successfully"})
}
