package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/halalscan/halalscan/internal/model"
)

const defaultModel = "gemini-1.5-flash"

// DefaultTimeout bounds one classification call. The remote service gives no
// latency guarantee, so an unbounded call would hang a session forever.
const DefaultTimeout = 90 * time.Second

const prompt = `You are a halal food inspector. Analyze the product photo and
classify the product.

Rules:
- status is exactly one of "HALAL", "HARAM", "DOUBTFUL", "NON_FOOD".
- Use "NON_FOOD" when the image does not show a food product.
- List every ingredient you can read or infer, in the order detected, each
  with its own status.
- confidence is an integer 1-100 for how certain you are overall. Use 0 ONLY
  when you cannot classify at all, and explain why in reason.
- reason is 1-3 sentences a shopper can understand.

Reply with a single JSON object and nothing else:
{
  "status": "<HALAL | HARAM | DOUBTFUL | NON_FOOD>",
  "reason": "<explanation>",
  "ingredientsDetected": [{"name": "<ingredient>", "status": "<verdict>"}],
  "confidence": <0-100>
}`

// GeminiConfig holds the Vertex AI connection settings.
type GeminiConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
	Timeout         time.Duration
}

// Gemini classifies images through Google's Vertex AI generative models.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini connects to Vertex AI and prepares the generative model.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vertex ai client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Gemini{
		client:  client,
		model:   client.GenerativeModel(name),
		timeout: timeout,
	}, nil
}

// Name identifies this provider in logs.
func (g *Gemini) Name() string { return "gemini" }

// Close releases the underlying connection.
func (g *Gemini) Close() error { return g.client.Close() }

// Classify sends the image to Gemini and parses the verdict.
func (g *Gemini) Classify(ctx context.Context, image []byte) (*model.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData("image/jpeg", image),
	)
	if err != nil {
		return nil, wrapTransportError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &Error{Kind: KindBadResponse, Message: "empty model response"}
	}

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	return ParseVerdict(text)
}

// ParseVerdict decodes the model's JSON reply into a ScanResult. Markdown
// code fences around the JSON are tolerated.
func ParseVerdict(text string) (*model.ScanResult, error) {
	raw := extractJSON(text)

	var result model.ScanResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &Error{Kind: KindBadResponse, Message: "unparseable model response", Err: err}
	}

	if !result.Status.Valid() {
		return nil, &Error{Kind: KindBadResponse,
			Message: fmt.Sprintf("unknown status %q in model response", result.Status)}
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}
	for i, ing := range result.IngredientsDetected {
		if !ing.Status.Valid() {
			result.IngredientsDetected[i].Status = model.StatusDoubtful
		}
	}

	return &result, nil
}

var fenceRegexp = regexp.MustCompile("```(?:json|JSON)?\\s*\\n?([\\s\\S]*?)\\n?```")

// extractJSON pulls the JSON object out of a reply that may wrap it in
// markdown code fences or surrounding prose.
func extractJSON(text string) string {
	if m := fenceRegexp.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return text
}

// wrapTransportError maps a failed remote call onto a structured kind using
// the gRPC status code instead of sniffing message text.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Message: "classification timed out", Err: err}
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return &Error{Kind: KindNetwork, Message: "classification service unreachable", Err: err}
	case codes.ResourceExhausted, codes.InvalidArgument:
		if msg := strings.ToLower(err.Error()); strings.Contains(msg, "larger than max") ||
			strings.Contains(msg, "413") || strings.Contains(msg, "payload") {
			return &Error{Kind: KindPayloadTooLarge, Message: "image too large for classification service", Err: err}
		}
		return &Error{Kind: KindUnknown, Message: "classification request rejected", Err: err}
	}

	return &Error{Kind: KindUnknown, Message: "classification failed", Err: err}
}
