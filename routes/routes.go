package routes

import (
	"os"

	"billflow-backend/config"
	"billflow-backend/controllers"
	"billflow-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}
	if origin := os.Getenv("FRONTEND_URL"); origin != "" {
		allowedOrigins = append(allowedOrigins, origin)
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())

	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)

		auth.Use(utils.AuthMiddleware())
		auth.GET("/me", controllers.Me)
	}

	// Public approval link from quote emails, no auth
	r.GET("/quotes/approve/:token", controllers.ApproveQuoteByToken)

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware())
	{
		// Client routes
		clients := api.Group("/clients")
		{
			clients.POST("", controllers.CreateClient)
			clients.GET("", controllers.GetClients)
			clients.GET("/:id", controllers.GetClient)
			clients.PUT("/:id", controllers.UpdateClient)
			clients.DELETE("/:id", controllers.DeleteClient)
		}

		// Contractor routes
		contractors := api.Group("/contractors")
		{
			contractors.POST("", controllers.CreateContractor)
			contractors.GET("", controllers.GetContractors)
			contractors.GET("/:id", controllers.GetContractor)
			contractors.PUT("/:id", controllers.UpdateContractor)
			contractors.DELETE("/:id", controllers.DeleteContractor)
		}

		// Service template routes
		services := api.Group("/services")
		{
			services.POST("", controllers.CreateService)
			services.GET("", controllers.GetServices)
			services.GET("/:id", controllers.GetService)
			services.PUT("/:id", controllers.UpdateService)
			services.DELETE("/:id", controllers.DeleteService)
		}

		// Quote routes
		quotes := api.Group("/quotes")
		{
			quotes.POST("", controllers.CreateQuote)
			quotes.GET("", controllers.GetQuotes)
			quotes.GET("/:id", controllers.GetQuote)
			quotes.PUT("/:id", controllers.UpdateQuote)
			quotes.DELETE("/:id", controllers.DeleteQuote)

			quotes.POST("/:id/send", controllers.SendQuote)
			quotes.POST("/:id/resend", controllers.ResendQuote)
			quotes.POST("/:id/accept", controllers.AcceptQuote)
			quotes.POST("/:id/reject", controllers.RejectQuote)
			quotes.POST("/:id/convert", controllers.ConvertQuote)
			quotes.PUT("/:id/assignments/:assignmentId/include", controllers.ToggleAssignmentInclude)
		}

		// Invoice routes
		invoices := api.Group("/invoices")
		{
			invoices.POST("", controllers.CreateInvoice)
			invoices.GET("", controllers.GetInvoices)
			invoices.GET("/:id", controllers.GetInvoice)
			invoices.PUT("/:id", controllers.UpdateInvoice)
			invoices.DELETE("/:id", controllers.DeleteInvoice)

			invoices.POST("/:id/send", controllers.SendInvoice)
			invoices.POST("/:id/resend", controllers.ResendInvoice)
			invoices.POST("/:id/cancel", controllers.CancelInvoice)
			invoices.POST("/:id/payments", controllers.RecordPayment)
			invoices.GET("/:id/payments", controllers.GetPayments)
		}

		// Reports routes
		api.GET("/reports/receivables", controllers.GetReceivablesReport)

		// Dashboard routes
		api.GET("/dashboard", controllers.GetDashboardOverview)

		// Settings routes
		profile := api.Group("/profile")
		{
			profile.GET("", controllers.GetProfile)
			profile.PUT("/update-company", controllers.UpdateCompanyProfile)
			profile.PUT("/update-settings", controllers.UpdateSettings)
			profile.PUT("/update-notifications", controllers.UpdateNotifications)
		}
	}

	return r
}
