package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Classifier labels a piece of user text with a fine-grained emotion.
// Implementations are black boxes; callers must tolerate failure.
type Classifier interface {
	Classify(ctx context.Context, text string) (emotion string, err error)
}

// NeutralEmotion is the degraded label used when no classifier is
// configured or the configured one fails.
const NeutralEmotion = "neutral"

// SentimentFor collapses an emotion label into the three-way sentiment
// used by the metrics rollup.
func SentimentFor(emotion string) string {
	switch emotion {
	case "joy", "surprise", "neutral":
		return "positive"
	case "anger", "fear", "sadness":
		return "negative"
	default:
		return "neutral"
	}
}

// HTTPClassifier calls an external emotion-model service over JSON HTTP.
type HTTPClassifier struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClassifier(baseURL string) *HTTPClassifier {
	return &HTTPClassifier{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type classifyReq struct {
	Text string `json:"text"`
}

type classifyResp struct {
	Emotion string `json:"emotion"`
	Error   string `json:"error,omitempty"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (string, error) {
	if c.Client == nil {
		return "", errors.New("classifier: http client is nil")
	}
	if c.BaseURL == "" {
		return "", errors.New("classifier: base url is required")
	}

	b, err := json.Marshal(classifyReq{Text: text})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/classify", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("classifier: status %d", resp.StatusCode)
	}

	var decoded classifyResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	if decoded.Emotion == "" {
		return "", errors.New("classifier: empty emotion")
	}
	return decoded.Emotion, nil
}
