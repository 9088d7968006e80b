package main

import (
	"fmt"
	"log"
	"os"

	"billflow-backend/config"
	"billflow-backend/controllers"
	"billflow-backend/models"
	"billflow-backend/routes"
	"billflow-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func init() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	config.ConnectDB()

	config.DB.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Client{},
		&models.Contractor{},
		&models.ServiceTemplate{},
		&models.Quote{},
		&models.Invoice{},
		&models.LineItem{},
		&models.ContractorAssignment{},
		&models.Payment{},
		&models.Activity{},
	)
}

func main() {
	controllers.Mailer = services.NewMailerService()

	scheduler := services.NewSchedulerService(config.DB)
	scheduler.StartScheduler()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r := routes.SetupRouter()
	printRoutes(r)
	r.Run(":" + port)
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
