package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds everything the server reads from the environment besides the database
// connections.
type App struct {
	Port string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	OpenAIKey           string
	RealtimeBaseURL     string
	RealtimeModel       string
	DefaultVoice        string
	DefaultInstructions string

	GCSBucket    string
	GCPProjectID string
	GCPLocation  string
	LLMModel     string

	SummaryWorkers int
	VoiceBufferTTL time.Duration
	AgentCacheTTL  time.Duration
	AllowedOrigins []string
}

const defaultInstructions = "You are a helpful meeting assistant. Keep answers short and conversational."

func LoadApp() App {
	return App{
		Port: env("PORT", "8080"),

		JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:   os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience: os.Getenv("SUPABASE_JWT_AUDIENCE"),

		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		RealtimeBaseURL:     env("REALTIME_BASE_URL", "https://api.openai.com"),
		RealtimeModel:       env("REALTIME_MODEL", "gpt-realtime"),
		DefaultVoice:        env("REALTIME_DEFAULT_VOICE", "alloy"),
		DefaultInstructions: env("REALTIME_DEFAULT_INSTRUCTIONS", defaultInstructions),

		GCSBucket:    os.Getenv("GCS_BUCKET"),
		GCPProjectID: os.Getenv("GCP_PROJECT_ID"),
		GCPLocation:  env("GCP_LOCATION", "us-central1"),
		LLMModel:     env("LLM_MODEL", "gemini-1.5-flash"),

		SummaryWorkers: envInt("SUMMARY_WORKERS", 3),
		VoiceBufferTTL: envDuration("VOICE_BUFFER_TTL", 24*time.Hour),
		AgentCacheTTL:  envDuration("AGENT_CACHE_TTL", 10*time.Minute),
		AllowedOrigins: envList("ALLOWED_ORIGINS"),
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
