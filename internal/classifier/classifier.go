// Package classifier extracts a structured IncidentAnalysis from a tenant's
// free-text message using the hosted Gemini generateContent API.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/models"
)

var (
	// ErrMissingCredential is returned before any network call when no API key is configured.
	ErrMissingCredential = errors.New("API key is missing, check the environment configuration")
	// ErrMalformedResponse covers empty, unparseable or out-of-schema model output.
	ErrMalformedResponse = errors.New("malformed classification response")
)

const systemInstruction = `Eres el "IncidenBot", un gestor de incidencias experto para un Coliving en Bali.
Gestionamos 50 habitaciones. Los inquilinos pueden escribir mensajes vagos, urgentes o enfadados.

Analiza el texto de entrada y genera los campos requeridos en formato JSON estricto.

CRITERIOS DE URGENCIA:
1: Puede esperar semanas.
5: Requiere acción inmediata (ahora mismo).

CRITERIOS DE CATEGORÍA:
- Mantenimiento (Cosas rotas, fontanería, electricidad).
- Limpieza (Suciedad, basura, sábanas).
- Internet (Wifi lento, sin conexión).
- Administración (Pagos, dudas generales, ruido).
- Emergencia (Fuego, inundación grave, seguridad física).`

// replyLanguage names the language of suggested_reply; action_summary is always Spanish.
var replyLanguage = map[string]string{
	"es": "ESPAÑOL",
	"en": "INGLÉS",
}

// Client calls the generateContent endpoint of a Gemini model.
type Client struct {
	APIKey     string
	Model      string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a classifier from the application config.
func NewClient(cfg *config.AppConfig) *Client {
	return &Client{
		APIKey:     strings.TrimSpace(cfg.GeminiAPIKey),
		Model:      cfg.GeminiModel,
		Endpoint:   strings.TrimRight(cfg.GeminiEndpoint, "/"),
		HTTPClient: &http.Client{Timeout: config.ClassifierTimeout},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
	Temperature      float64        `json:"temperature"`
}

type generateRequest struct {
	SystemInstruction content          `json:"systemInstruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// ResponseSchema is the fixed output contract handed to the model.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"category": map[string]any{
				"type":        "STRING",
				"enum":        []string{"Mantenimiento", "Limpieza", "Internet", "Administración", "Emergencia"},
				"description": "Clasifica la incidencia en una de las categorías permitidas.",
			},
			"urgency_level": map[string]any{
				"type":        "INTEGER",
				"description": "Nivel de urgencia del 1 al 5. 5 es acción inmediata.",
			},
			"sentiment": map[string]any{
				"type":        "STRING",
				"enum":        []string{"Positivo", "Neutro", "Enfadado"},
				"description": "Sentimiento detectado en el mensaje.",
			},
			"action_summary": map[string]any{
				"type":        "STRING",
				"description": "Resumen operativo breve (máximo 5-7 palabras) en ESPAÑOL.",
			},
			"suggested_reply": map[string]any{
				"type":        "STRING",
				"description": "Borrador de respuesta amable y empático dirigido al inquilino.",
			},
		},
		"required": []string{"category", "urgency_level", "sentiment", "action_summary", "suggested_reply"},
	}
}

func instructionFor(lang string) string {
	name, ok := replyLanguage[lang]
	if !ok {
		return systemInstruction
	}
	return systemInstruction + "\n\nRedacta suggested_reply en " + name + "."
}

// Analyze classifies contextText. lang selects the language of the
// suggested reply ("es" or "en"); unknown values leave it to the model.
func (c *Client) Analyze(ctx context.Context, contextText string, lang string) (models.IncidentAnalysis, error) {
	var empty models.IncidentAnalysis
	if c.APIKey == "" {
		return empty, ErrMissingCredential
	}

	reqBody := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: instructionFor(lang)}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: contextText}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   ResponseSchema(),
			Temperature:      config.ClassifierTemperature,
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return empty, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.Endpoint, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return empty, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Printf("ERROR: Error analyzing incident: %v", err)
		return empty, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return empty, fmt.Errorf("gemini error %d: %s", resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return empty, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return ParseAnalysis(parsed.text())
}

func (r generateResponse) text() string {
	var sb strings.Builder
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}

// ParseAnalysis decodes the model's JSON text, normalizes enum tokens and
// validates the result against the schema.
func ParseAnalysis(text string) (models.IncidentAnalysis, error) {
	var analysis models.IncidentAnalysis
	if text == "" {
		return analysis, fmt.Errorf("%w: no response received from Gemini", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return models.IncidentAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := analysis.Validate(); err != nil {
		return models.IncidentAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return analysis.Normalize(), nil
}
