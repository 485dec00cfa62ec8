package routes

import (
	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) *controllers.Srv {
	// 控制器与依赖
	s := controllers.GetSrv(a)

	// 复用的中间件
	authMW := app.AuthRequired(a.Tokens)
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, a.Config.LastSeenThrottle)
	loginMW := app.LoginRateLimit(a.RDB, a.Config.LoginRateLimit)

	r.GET("/healthz", controllers.Health(a.DB, a.RDB))

	// ------------------------------
	// 用户（公开）
	// ------------------------------
	pub := r.Group("/api/users")
	{
		pub.POST("/register", s.Register)
		pub.POST("/login", loginMW, s.Login)
		pub.POST("/login/passkey/begin", loginMW, s.BeginPasskeyLogin)
		pub.POST("/login/passkey/finish", loginMW, s.FinishPasskeyLogin)
		pub.POST("/forgot-password", loginMW, s.ForgotPassword)
		pub.POST("/reset-password", loginMW, s.ResetPassword)
	}

	// ------------------------------
	// 用户（需登录）
	// ------------------------------
	users := r.Group("/api/users", authMW, seenMW)
	{
		users.POST("/register/admin", s.RegisterAdmin)     // super_admin
		users.POST("/register/teacher", s.RegisterTeacher) // admin
		users.POST("/logout", s.Logout)
		users.POST("/change-password", s.ChangePassword)
		users.POST("/passkeys/begin", s.BeginAddCredential)
		users.POST("/passkeys/finish", s.FinishAddCredential)

		users.GET("/me", s.Me)
		users.GET("", s.ListUsers)        // ?q=&page=&size=
		users.GET("/all", s.ListAllUsers) // 含已删除
		users.GET("/:id", s.GetUser)
		users.PUT("/:id", s.UpdateUser)
		users.DELETE("/:id", s.DeleteUser)
	}

	// ------------------------------
	// 房间
	// ------------------------------
	rooms := r.Group("/api/rooms", authMW, seenMW)
	{
		rooms.POST("", s.CreateRoom)
		rooms.GET("", s.ListAvailableRooms)
		rooms.GET("/all", s.ListAllRooms)
		rooms.GET("/all/rent", s.ListRentedRooms)
		rooms.GET("/:id", s.GetRoom)
		rooms.PUT("/:id", s.UpdateRoom)
		rooms.DELETE("/:id", s.DeleteRoom)
		rooms.POST("/rent/start/:id", s.StartRoomRental)
		rooms.POST("/rent/end/:id", s.EndRoomRental)
	}

	// ------------------------------
	// 物品
	// ------------------------------
	items := r.Group("/api/inventories", authMW, seenMW)
	{
		items.POST("", s.CreateItem)
		items.GET("", s.ListAvailableItems)
		items.GET("/all", s.ListAllItems)
		items.GET("/all/rent", s.ListRentedItems)
		items.GET("/:id", s.GetItem)
		items.PUT("/:id", s.UpdateItem)
		items.DELETE("/:id", s.DeleteItem)
		items.POST("/rent/start/:id", s.StartItemRental)
		items.POST("/rent/end/:id", s.EndItemRental)
	}

	// ------------------------------
	// 报表（管理员）
	// ------------------------------
	reports := r.Group("/api/reports", authMW, seenMW)
	{
		reports.GET("/inventory", s.InventoryReport)
		reports.GET("/inventory.pdf", s.InventoryReportPDF)
		reports.GET("/rooms", s.RoomReport)
		reports.GET("/audit", s.AuditLog) // ?action=&page=&size=
	}

	return s
}
