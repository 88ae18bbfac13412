package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps collects what NewRouter mounts. Metrics may be nil.
type RouterDeps struct {
	Auth           *AuthHandler
	Notes          *NoteHandler
	Tokens         accessTokenParser
	Metrics        http.Handler
	AllowedOrigins []string
	Log            zerolog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Log), CORSMiddleware(deps.AllowedOrigins))

	r.GET("/", Root)
	r.GET("/openapi.json", OpenAPIDoc)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api")
	api.GET("/health", Health)

	requireAuth := AuthMiddleware(deps.Tokens)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", deps.Auth.Register)
	authGroup.POST("/login", deps.Auth.Login)
	authGroup.POST("/refresh", deps.Auth.Refresh)
	authGroup.POST("/logout", deps.Auth.Logout)
	authGroup.GET("/config", deps.Auth.Config)
	authGroup.POST("/logout-all", requireAuth, deps.Auth.LogoutAll)
	authGroup.GET("/profile", requireAuth, deps.Auth.Profile)
	authGroup.PUT("/profile", requireAuth, deps.Auth.UpdateProfile)
	authGroup.PUT("/password", requireAuth, deps.Auth.ChangePassword)

	notes := api.Group("/notes", requireAuth)
	notes.GET("", deps.Notes.ListNotes)
	notes.POST("", deps.Notes.CreateNote)
	notes.GET("/:id", deps.Notes.GetNote)
	notes.PUT("/:id", deps.Notes.UpdateNote)
	notes.DELETE("/:id", deps.Notes.DeleteNote)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	return r
}
