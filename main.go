package main

import (
	"fmt"
	"log"
	"os"

	"taskauth/pkg/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	cfg   *Config
	codec *token.Codec
)

func main() {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	codec = token.NewCodec([]byte(cfg.SecretKey), cfg.AccessTTL())

	// Support a lightweight migrate command: `./taskauth migrate`
	// It runs AutoMigrate then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB(cfg.DatabaseDSN)
		fmt.Println("migration completed")
		return
	}

	initDB(cfg.DatabaseDSN)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true, // refresh cookie travels cross-origin
	}))

	setupRoutes(r)

	r.Run(cfg.ListenAddr)
}
