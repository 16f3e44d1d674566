//	@title			AgentGate API
//	@version		1.0
//	@description	OAuth 2.0 authorization server and protected MCP endpoint for AI agents
//	@BasePath		/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/go-authgate/agentgate/internal/bootstrap"
	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/version"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	case "cleanup":
		runCleanup()
	case "delete-client":
		if len(args) != 2 {
			fmt.Println("Usage: delete-client CLIENT_ID")
			os.Exit(1)
		}
		runDeleteClient(args[1])
	case "revoke-tokens":
		if len(args) != 2 {
			fmt.Println("Usage: revoke-tokens CLIENT_ID")
			os.Exit(1)
		}
		runRevokeTokens(args[1])
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("OAuth 2.0 authorization server for AI agents")
	fmt.Println("\nCommands:")
	fmt.Println("  server                   Start the authorization server")
	fmt.Println("  cleanup                  Run one cleanup sweep and exit")
	fmt.Println("  delete-client CLIENT_ID  Delete a client and its credentials")
	fmt.Println("  revoke-tokens CLIENT_ID  Revoke all refresh tokens of a client")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	if err := bootstrap.Run(config.Load()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runCleanup() {
	result, err := bootstrap.RunCleanup(context.Background(), config.Load())
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	out, _ := json.Marshal(result)
	fmt.Println(string(out))
}

func runDeleteClient(clientID string) {
	if err := bootstrap.DeleteClient(context.Background(), config.Load(), clientID); err != nil {
		log.Fatalf("Failed to delete client %s: %v", clientID, err)
	}
	fmt.Printf("Deleted client %s\n", clientID)
}

func runRevokeTokens(clientID string) {
	revoked, err := bootstrap.RevokeTokens(context.Background(), config.Load(), clientID)
	if err != nil {
		log.Fatalf("Failed to revoke tokens for client %s: %v", clientID, err)
	}
	fmt.Printf("Revoked %d refresh tokens for client %s\n", revoked, clientID)
}
