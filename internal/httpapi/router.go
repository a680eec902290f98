package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/support-hub/internal/chat"
	"github.com/suPer8Hu/support-hub/internal/common"
	"github.com/suPer8Hu/support-hub/internal/config"
	"github.com/suPer8Hu/support-hub/internal/httpapi/handlers"
	"github.com/suPer8Hu/support-hub/internal/httpapi/middleware"
	"github.com/suPer8Hu/support-hub/internal/logger"
	"github.com/suPer8Hu/support-hub/internal/store/redisstore"
)

func NewRouter(cfg config.Config, log *logger.Logger, svc *chat.Service, repo *chat.Repo, rds *redisstore.Store) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(cors.Default())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(cfg, log, svc, repo, rds)

	r.GET("/ping", h.Ping)

	r.POST("/send", h.Send)
	r.POST("/admin_reply", h.AdminReply)

	r.GET("/user_stream/:user_id", h.UserStream)
	r.GET("/admin_stream", h.AdminStream)

	return r
}
