package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/deskhive/deskhive/internal/auth"
	"github.com/deskhive/deskhive/internal/handlers"
	authmw "github.com/deskhive/deskhive/internal/middleware/auth"
	"github.com/deskhive/deskhive/internal/models"
)

type Deps struct {
	TokenConfig        auth.TokenConfig
	AuthHandler        *handlers.AuthHandler
	SpaceHandler       *handlers.SpaceHandler
	EquipmentHandler   *handlers.EquipmentHandler
	ReservationHandler *handlers.ReservationHandler
	MembershipHandler  *handlers.MembershipHandler
	PaymentHandler     *handlers.PaymentHandler
	SearchHandler      *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	requireAuth := authmw.RequireAuth(d.TokenConfig)
	requireStaff := authmw.RequireRole(models.RoleStaff, models.RoleSuperAdmin)

	authGroup := e.Group("/auth")
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/signup", d.AuthHandler.SignUp)
	authGroup.POST("/refresh-token", d.AuthHandler.RefreshToken)
	authGroup.POST("/revoke-token", d.AuthHandler.RevokeToken, requireAuth)
	authGroup.GET("/GetCurrentUser", d.AuthHandler.GetCurrentUser, requireAuth)

	v1 := e.Group("/api/v1")

	v1.GET("/spaces", d.SpaceHandler.GetSpaces)
	v1.GET("/spaces/:id", d.SpaceHandler.GetSpace)
	v1.GET("/equipment", d.EquipmentHandler.ListEquipment)
	v1.GET("/equipment/:id", d.EquipmentHandler.GetEquipment)
	v1.GET("/plans", d.MembershipHandler.ListPlans)
	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}

	reservations := v1.Group("/reservations", requireAuth)
	reservations.POST("", d.ReservationHandler.CreateReservation)
	reservations.GET("", d.ReservationHandler.ListReservations)
	reservations.GET("/:id", d.ReservationHandler.GetReservation)
	reservations.DELETE("/:id", d.ReservationHandler.CancelReservation)

	memberships := v1.Group("/memberships", requireAuth)
	memberships.POST("", d.MembershipHandler.PurchaseMembership)
	memberships.GET("/me", d.MembershipHandler.GetMyMembership)

	payments := v1.Group("/payments", requireAuth)
	payments.POST("", d.PaymentHandler.CreatePayment)
	payments.GET("", d.PaymentHandler.ListPayments)

	admin := v1.Group("/admin", requireAuth, requireStaff)
	admin.POST("/spaces", d.SpaceHandler.CreateSpace)
	admin.PATCH("/spaces/:id", d.SpaceHandler.PatchSpace)
	admin.DELETE("/spaces/:id", d.SpaceHandler.DeleteSpace)
	admin.POST("/spaces/:id/image", d.SpaceHandler.PresignSpaceImage)
	admin.POST("/spaces/:id/image/confirm", d.SpaceHandler.ConfirmSpaceImage)
	admin.POST("/equipment", d.EquipmentHandler.CreateEquipment)
	admin.PATCH("/equipment/:id", d.EquipmentHandler.PatchEquipment)
	admin.DELETE("/equipment/:id", d.EquipmentHandler.DeleteEquipment)
	admin.POST("/plans", d.MembershipHandler.CreatePlan)
	admin.PATCH("/plans/:id", d.MembershipHandler.PatchPlan)
	admin.DELETE("/plans/:id", d.MembershipHandler.DeletePlan)
	admin.GET("/reservations", d.ReservationHandler.ListAllReservations)
	admin.GET("/payments", d.PaymentHandler.ListAllPayments)
}
