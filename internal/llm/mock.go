package llm

import "context"

// MockService is a deterministic Service for tests: it returns a
// caller-supplied Respond function instead of calling a real provider.
type MockService struct {
	Respond func(messages []Message) Result

	lastBaseURL     string
	lastModel       string
	lastTemperature float64
	lastTimeout     int
}

// NewMockService returns a MockService that echoes the final message's
// content unless Respond is overridden.
func NewMockService() *MockService {
	return &MockService{
		Respond: func(messages []Message) Result {
			if len(messages) == 0 {
				return Result{Message: ""}
			}
			return Result{Message: messages[len(messages)-1].Content}
		},
	}
}

func (m *MockService) Reconfigure(baseURL, model string, temperature float64, timeoutSeconds int) {
	m.lastBaseURL = baseURL
	m.lastModel = model
	m.lastTemperature = temperature
	m.lastTimeout = timeoutSeconds
}

func (m *MockService) ChatAsync(ctx context.Context, messages []Message) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		out <- m.Respond(messages)
		close(out)
	}()
	return out
}
