package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kokukuma/sdjwt-demo/internal/server"
)

func main() {
	srv := server.NewServer()

	r := mux.NewRouter()
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"POST", "GET"}),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowCredentials(),
	))

	r.HandleFunc("/issue", srv.IssueCredential).Methods("POST", "OPTIONS")
	r.HandleFunc("/startVerification", srv.StartVerification).Methods("POST", "OPTIONS")
	r.HandleFunc("/createRelease", srv.CreateRelease).Methods("POST", "OPTIONS")
	r.HandleFunc("/verifyPresentation", srv.VerifyPresentation).Methods("POST", "OPTIONS")
	r.HandleFunc("/jwks.json", srv.JWKS).Methods("GET", "OPTIONS")

	serverAddress := ":8080"
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		serverAddress = addr
	}
	log.Println("starting sd-jwt demo server at", serverAddress)
	log.Fatal(http.ListenAndServe(serverAddress, r))
}
