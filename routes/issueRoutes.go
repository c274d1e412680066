package routes

import (
	"github.com/gin-gonic/gin"

	"udaay-be/controllers"
	"udaay-be/middlewares"
	authUtils "udaay-be/utils"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, opts Options) {
	auth := middlewares.AuthMiddleware(opts.JWTSecret)

	issue := r.Group("/api/issues")
	{
		issue.POST("/submit", auth, middlewares.IssueRateLimiter(opts.Redis, opts.RateLimitPrefix, opts.DailyLimit), ic.Submit)
		issue.GET("/live", ic.Live)
		issue.GET("/my-issues", auth, ic.MyIssues)
		issue.GET("/:id", ic.GetIssue)
		issue.PATCH("/:id", auth, middlewares.RequireRole(authUtils.RoleOfficer), ic.UpdateIssue)
		issue.POST("/:id/upvote", ic.Upvote)
		issue.POST("/:id/verify", auth, ic.Verify)
		issue.POST("/:id/reject", auth, ic.Reject)
		issue.DELETE("/:id", auth, ic.DeleteIssue)
	}
}
