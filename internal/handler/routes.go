package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/homepage-api/internal/middleware"
)

// Routes собирает обработчики и middleware для регистрации маршрутов
type Routes struct {
	Auth      *AuthHandler
	Captcha   *CaptchaHandler
	Messages  *MessageHandler
	Health    *HealthHandler
	AuthMW    *middleware.AuthMiddleware
	RateLimit *middleware.RateLimiter
	Throttle  *middleware.PostThrottle
}

// RegisterRoutes регистрирует маршруты API на router
func RegisterRoutes(router gin.IRouter, r Routes) {
	if r.Health != nil {
		router.GET("/healthz", r.Health.Health)
	}

	strict := r.RateLimit.LimitByIP(middleware.StrictAuthRateLimitConfig())

	// Коды подтверждения: собственные лимиты внутри сервиса
	router.GET("/captcha", r.Captcha.GetCaptcha)
	router.POST("/send_email_code", r.Captcha.SendEmailCode)

	router.POST("/register", strict, r.Auth.Register)
	router.POST("/login", strict, r.Auth.Login)
	router.POST("/check_username", r.Auth.CheckUsername)
	router.POST("/check_email", r.Auth.CheckEmail)

	authed := router.Group("")
	authed.Use(r.AuthMW.RequireAuth())
	{
		authed.POST("/logout", r.Auth.Logout)
		authed.POST("/profile", r.Auth.UpdateProfile)
	}

	api := router.Group("/api")
	{
		api.GET("/check_login", r.AuthMW.OptionalAuth(), r.Auth.CheckLogin)

		user := api.Group("")
		user.Use(r.AuthMW.RequireAuth())
		{
			user.GET("/user_info", r.Auth.UserInfo)
			user.POST("/change_password", r.Auth.ChangePassword)

			user.GET("/messages", r.Messages.ListMessages)
			user.POST("/messages", r.Throttle.Limit(), r.Messages.PostMessage)

			messageWithID := user.Group("/messages/:id")
			messageWithID.Use(middleware.ExtractUintParam("id", middleware.ContextMessageID), r.AuthMW.AdminOnly())
			{
				messageWithID.POST("/reply", r.Messages.ReplyMessage)
				messageWithID.DELETE("", r.Messages.DeleteMessage)
			}

			admin := user.Group("/admin")
			admin.Use(r.AuthMW.AdminOnly())
			{
				admin.GET("/messages/export", r.Messages.ExportMessages)
			}
		}
	}
}
