package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/genai"

	"cogkernel/internal/logging"
)

// settings is one hot-swappable generation of LLM connection parameters.
type settings struct {
	apiKey         string
	baseURL        string
	model          string
	temperature    float64
	timeoutSeconds int
}

// GenAIService is the production Service, backed by
// google.golang.org/genai's chat-completion surface. Reconfigure bumps a
// generation counter; each ChatAsync call captures the generation's
// settings up front so a later Reconfigure never changes the behavior of
// a call already running.
type GenAIService struct {
	mu  sync.RWMutex
	cur settings
	gen uint64

	newClient func(ctx context.Context, apiKey, baseURL string) (*genai.Client, error)
}

// NewGenAIService constructs a service with apiKey used for every
// generated client (the provider key itself is out of the kernel's scope; the
// kernel only reads it from configuration/environment).
func NewGenAIService(apiKey, baseURL, model string, temperature float64, timeoutSeconds int) *GenAIService {
	return &GenAIService{
		cur: settings{
			apiKey:         apiKey,
			baseURL:        baseURL,
			model:          model,
			temperature:    temperature,
			timeoutSeconds: timeoutSeconds,
		},
		newClient: defaultNewClient,
	}
}

func defaultNewClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return genai.NewClient(ctx, cfg)
}

// Reconfigure replaces the active settings; calls already in flight keep
// the generation's settings they captured at ChatAsync time.
func (s *GenAIService) Reconfigure(baseURL, model string, temperature float64, timeoutSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.baseURL = baseURL
	s.cur.model = model
	s.cur.temperature = temperature
	s.cur.timeoutSeconds = timeoutSeconds
	atomic.AddUint64(&s.gen, 1)
	logging.Get(logging.CategoryLLM).Infow("llm reconfigured", "model", model, "baseUrl", baseURL)
}

// ChatAsync dispatches a chat-completion call on its own goroutine and
// returns a channel that receives exactly one Result.
func (s *GenAIService) ChatAsync(ctx context.Context, messages []Message) <-chan Result {
	s.mu.RLock()
	snap := s.cur
	s.mu.RUnlock()

	out := make(chan Result, 1)
	go func() {
		out <- s.chat(ctx, snap, messages)
		close(out)
	}()
	return out
}

func (s *GenAIService) chat(ctx context.Context, snap settings, messages []Message) Result {
	timeout := time.Duration(snap.timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := s.newClient(ctx, snap.apiKey, snap.baseURL)
	if err != nil {
		return Result{Err: fmt.Errorf("llm: create client: %w", err)}
	}

	var contents []*genai.Content
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := float32(snap.temperature)
	resp, err := client.Models.GenerateContent(ctx, snap.model, contents, &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		logging.Get(logging.CategoryLLM).Errorw("llm call failed", "model", snap.model, "error", err)
		return Result{Err: fmt.Errorf("llm: generate content: %w", err)}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Result{Err: fmt.Errorf("llm: empty response from %s", snap.model)}
	}

	text := resp.Text()
	return Result{Message: text}
}
