package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProcessRequest mirrors the enrichment payload the gateway sends.
type ProcessRequest struct {
	MessageID      string `json:"message_id" binding:"required"`
	ConversationID string `json:"conversation_id" binding:"required"`
	CustomerID     string `json:"customer_id"`
	DistributorID  string `json:"distributor_id"`
	Channel        string `json:"channel"`
	Content        string `json:"content"`
}

// ProcessResponse acknowledges intake. The annotations follow later
// through the gateway's write-back endpoint.
type ProcessResponse struct {
	Accepted  bool   `json:"accepted"`
	RequestID string `json:"request_id,omitempty"`
}

// ExtractedProduct is one recognized order line.
type ExtractedProduct struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Annotation is the write-back body, shaped like the gateway's
// annotation request.
type Annotation struct {
	Confidence         *float64           `json:"confidence"`
	ExtractedIntent    string             `json:"extracted_intent"`
	ExtractedProducts  []ExtractedProduct `json:"extracted_products"`
	SuggestedResponses []string           `json:"suggested_responses"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	ExtractorID string    `json:"extractor_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
}

// "10 cajas de leche", "2 botellas de agua", "5 kilos de arroz"
var orderLine = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s+([a-záéíóúñ]+)\s+de\s+([a-záéíóúñ][a-záéíóúñ ]*)`)

var orderKeywords = []string{
	"necesito", "quiero", "pedido", "orden", "mandame", "enviame",
	"need", "want", "order", "send me",
}

// MockExtractor simulates the AI intent extraction service
type MockExtractor struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	extractorID string
	gateway     *resty.Client
	rng         *rand.Rand
}

// NewMockExtractor creates a new mock extractor instance
func NewMockExtractor(successRate float64, minDelay, maxDelay time.Duration, gatewayURL string) *MockExtractor {
	return &MockExtractor{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		extractorID: "MOCK_EXTRACTOR_" + uuid.New().String()[:8],
		gateway: resty.New().
			SetBaseURL(gatewayURL).
			SetTimeout(5 * time.Second).
			SetHeader("Content-Type", "application/json"),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// analyze runs the stand-in extraction: quantity lines via regex,
// intent via keyword scan.
func (m *MockExtractor) analyze(content string) Annotation {
	lower := strings.ToLower(content)

	var products []ExtractedProduct
	for _, match := range orderLine.FindAllStringSubmatch(content, -1) {
		qty, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		products = append(products, ExtractedProduct{
			Name:     strings.TrimSpace(match[3]),
			Quantity: qty,
			Unit:     strings.ToLower(match[2]),
		})
	}

	intent := "OTHER"
	suggestions := []string{"Gracias por tu mensaje. ¿En qué puedo ayudarte?"}
	switch {
	case len(products) > 0:
		intent = "BUY"
		suggestions = []string{
			"Perfecto, estamos preparando tu pedido.",
			"¿Deseas agregar algo más a tu orden?",
		}
	case containsAny(lower, orderKeywords):
		intent = "BUY"
		suggestions = []string{"¿Qué productos y cantidades necesitas?"}
	case strings.Contains(content, "?"):
		intent = "QUESTION"
		suggestions = []string{"Déjame revisarlo y te confirmo enseguida."}
	}

	confidence := 0.55 + m.rng.Float64()*0.4
	return Annotation{
		Confidence:         &confidence,
		ExtractedIntent:    intent,
		ExtractedProducts:  products,
		SuggestedResponses: suggestions,
	}
}

// writeBack simulates model latency, then posts the annotations to the
// gateway the way the real service does.
func (m *MockExtractor) writeBack(req *ProcessRequest) {
	delay := m.randomDelay()
	time.Sleep(delay)

	annotation := m.analyze(req.Content)

	resp, err := m.gateway.R().
		SetBody(annotation).
		Post("/api/messages/" + req.MessageID + "/annotations")
	if err != nil {
		log.Warn().
			Str("message_id", req.MessageID).
			Err(err).
			Msg("Annotation write-back failed")
		return
	}
	if resp.IsError() {
		log.Warn().
			Str("message_id", req.MessageID).
			Int("status", resp.StatusCode()).
			Str("body", string(resp.Body())).
			Msg("Annotation write-back rejected")
		return
	}

	log.Info().
		Str("message_id", req.MessageID).
		Str("intent", annotation.ExtractedIntent).
		Int("products", len(annotation.ExtractedProducts)).
		Dur("delay", delay).
		Msg("Annotations delivered")
}

func (m *MockExtractor) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockExtractor) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

func (m *MockExtractor) randomErrorCode() string {
	errorCodes := []string{
		"MODEL_OVERLOADED",
		"RATE_LIMITED",
		"CONTEXT_TOO_LONG",
		"UPSTREAM_TIMEOUT",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockExtractor) errorMessage(code string) string {
	messages := map[string]string{
		"MODEL_OVERLOADED": "The model is at capacity, retry later",
		"RATE_LIMITED":     "Too many requests from this tenant",
		"CONTEXT_TOO_LONG": "Message exceeds the context window",
		"UPSTREAM_TIMEOUT": "The model provider timed out",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Handler struct holds the mock extractor and routes
type Handler struct {
	extractor *MockExtractor
}

func NewHandler(extractor *MockExtractor) *Handler {
	return &Handler{extractor: extractor}
}

// ProcessMessage handles enrichment requests
func (h *Handler) ProcessMessage(c *gin.Context) {
	var req ProcessRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("message_id", req.MessageID).
		Str("conversation_id", req.ConversationID).
		Str("channel", req.Channel).
		Msg("Received enrichment request")

	if !h.extractor.shouldSucceed() {
		code := h.extractor.randomErrorCode()
		log.Warn().
			Str("message_id", req.MessageID).
			Str("error_code", code).
			Msg("Enrichment rejected")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error_code": code,
			"error":      h.extractor.errorMessage(code),
		})
		return
	}

	go h.extractor.writeBack(&req)

	c.JSON(http.StatusOK, ProcessResponse{
		Accepted:  true,
		RequestID: uuid.New().String(),
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.extractor.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Extractor temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		ExtractorID: h.extractor.extractorID,
		Timestamp:   time.Now(),
		SuccessRate: h.extractor.successRate,
	})
}

// UpdateConfig allows changing extractor configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.SuccessRate != nil {
		if *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
			h.extractor.successRate = *config.SuccessRate
			log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"success_rate": h.extractor.successRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/v1")
	{
		v1.POST("/messages/process", handler.ProcessMessage)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8090")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 200*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)
	gatewayURL := getEnv("GATEWAY_URL", "http://localhost:8080")

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("gateway_url", gatewayURL).
		Msg("Starting Mock AI Extractor")

	// Create mock extractor
	extractor := NewMockExtractor(successRate, minDelay, maxDelay, gatewayURL)
	handler := NewHandler(extractor)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
