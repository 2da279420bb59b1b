package socialauth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dgellow/socialsign/internal/sdk"
)

type fakeRegistry struct {
	mu    sync.Mutex
	loads []string
	err   error
}

func (r *fakeRegistry) Load(ctx context.Context, src, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads = append(r.loads, id)
	return r.err
}

func (r *fakeRegistry) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loads)
}

type fakeGlobals map[string]any

func (g fakeGlobals) Global(name string) (any, bool) {
	v, ok := g[name]
	return v, ok
}

type fakeGoogle struct {
	mu          sync.Mutex
	cfg         sdk.GoogleIDConfig
	initErr     error
	promptErr   error
	cancelErr   error
	panicValue  any
	cancelCalls atomic.Int32
	onPrompt    func(cfg sdk.GoogleIDConfig, listener func(sdk.PromptNotification))
	listener    func(sdk.PromptNotification)
}

func (f *fakeGoogle) Initialize(cfg sdk.GoogleIDConfig) error {
	if f.panicValue != nil {
		panic(f.panicValue)
	}
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
	return f.initErr
}

func (f *fakeGoogle) Prompt(listener func(sdk.PromptNotification)) error {
	if f.promptErr != nil {
		return f.promptErr
	}
	f.mu.Lock()
	f.listener = listener
	f.mu.Unlock()
	if f.onPrompt != nil {
		f.onPrompt(f.config(), listener)
	}
	return nil
}

// Cancel reports a skipped moment to the prompt listener, as the real
// driver does.
func (f *fakeGoogle) Cancel() error {
	f.cancelCalls.Add(1)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.mu.Lock()
	listener := f.listener
	f.listener = nil
	f.mu.Unlock()
	if listener != nil {
		listener(sdk.PromptNotification{Skipped: true, Reason: sdk.ReasonAutoCancel})
	}
	return nil
}

func (f *fakeGoogle) config() sdk.GoogleIDConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

type fakeApple struct {
	mu        sync.Mutex
	configs   []sdk.AppleIDConfig
	initErr   error
	signInErr error
	response  func(cfg sdk.AppleIDConfig) *sdk.AppleSignInResponse
}

func (f *fakeApple) Init(cfg sdk.AppleIDConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return f.initErr
}

func (f *fakeApple) SignIn(ctx context.Context) (*sdk.AppleSignInResponse, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.mu.Lock()
	cfg := f.configs[len(f.configs)-1]
	f.mu.Unlock()
	if f.response == nil {
		return nil, nil
	}
	return f.response(cfg), nil
}

func (f *fakeApple) lastConfig() sdk.AppleIDConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[len(f.configs)-1]
}
