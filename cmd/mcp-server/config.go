package main

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/mcp"
)

// MCPConfig extends the application config with MCP settings.
type MCPConfig struct {
	Base      config.Config
	Name      string
	Version   string
	Transport mcp.TransportConfig
}

// LoadConfig reads the standard application env vars plus:
//   - MCP_SERVER_NAME (default "Event Planning MCP Server")
//   - MCP_SERVER_VERSION (default "1.0.0")
//   - MCP_TRANSPORT, MCP_HOST, MCP_PORT
func LoadConfig(path string) (MCPConfig, error) {
	base, err := config.LoadFile(path)
	if err != nil {
		return MCPConfig{}, fmt.Errorf("failed to load base config: %w", err)
	}
	transport, err := mcp.LoadTransportConfig()
	if err != nil {
		return MCPConfig{}, fmt.Errorf("failed to load transport config: %w", err)
	}
	return MCPConfig{
		Base:      base,
		Name:      getEnv("MCP_SERVER_NAME", "Event Planning MCP Server"),
		Version:   getEnv("MCP_SERVER_VERSION", "1.0.0"),
		Transport: transport,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
