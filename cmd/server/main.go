// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the JobFlow platform service.
//
// The platform serves the job-application assistant backend:
// - Usage accounting and per-tier limit enforcement
// - LLM content generation (cover letters, LinkedIn messages, emails)
// - Saved content with soft delete
//
// Usage:
//
//	./server
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string (required)
//	REDIS_URL - Redis URL for the settings cache (optional)
//	JWT_SECRET - HS256 secret for verifying Supabase tokens (optional)
//	OPENAI_API_KEY - OpenAI API key (optional)
//	ANTHROPIC_API_KEY - Anthropic API key (optional)
//	GEMINI_API_KEY - Gemini API key (optional)
//	CONFIG_FILE - path to a YAML config file (optional)
package main

import (
	"jobflow/platform/server"
)

func main() {
	server.Run()
}
