package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// ProxyResponse is the upstream reply relayed to the caller as is.
type ProxyResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// WordProcessor forwards word lists to the external word-processing
// service. There is no retry and no client-side timeout; the caller's
// context bounds the call.
type WordProcessor struct {
	client   *http.Client
	endpoint string
}

func NewWordProcessor(client *http.Client, endpoint string) *WordProcessor {
	if client == nil {
		client = &http.Client{}
	}

	return &WordProcessor{client: client, endpoint: endpoint}
}

// Endpoint is the URL requests are forwarded to.
func (p *WordProcessor) Endpoint() string {
	return p.endpoint
}

// Process takes the caller's JSON body, extracts its "words" field and
// forwards it as {"words": ...}.
func (p *WordProcessor) Process(ctx context.Context, payload []byte) (*ProxyResponse, error) {
	words := gjson.GetBytes(payload, "words")

	if !hasWords(words) {
		return nil, ErrMissingFields
	}

	body := make([]byte, 0, len(words.Raw)+len(`{"words":}`))
	body = append(body, `{"words":`...)
	body = append(body, words.Raw...)
	body = append(body, '}')

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWordServiceUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWordServiceUnavailable, err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrWordServiceUnavailable, err)
	}

	return &ProxyResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

func hasWords(words gjson.Result) bool {
	switch {
	case !words.Exists():
		return false
	case words.Type == gjson.Null:
		return false
	case words.Type == gjson.String:
		return words.String() != ""
	case words.IsArray():
		return len(words.Array()) > 0
	case words.Type == gjson.False:
		return false
	default:
		return true
	}
}
