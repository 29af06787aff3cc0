package gateway

import "sync"

// Credentials identify a Razorpay account.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// Factory builds authenticated provider clients, reusing one per credential pair.
type Factory struct {
	creds     Credentials
	newClient func(Credentials) Client

	mu      sync.Mutex
	clients map[Credentials]Client
}

func NewFactory(creds Credentials) *Factory {
	return &Factory{
		creds:     creds,
		newClient: newRazorpayClient,
		clients:   make(map[Credentials]Client),
	}
}

// CreateClient returns a client for the system-wide credentials.
func (f *Factory) CreateClient() (Client, error) {
	return f.ClientFor(f.creds)
}

// ClientFor returns a client for account-scoped credentials.
func (f *Factory) ClientFor(creds Credentials) (Client, error) {
	if creds.KeyID == "" || creds.KeySecret == "" {
		return nil, ErrMissingCredentials
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[creds]; ok {
		return c, nil
	}
	c := f.newClient(creds)
	f.clients[creds] = c
	return c, nil
}

// KeyID is the public key handed to the checkout widget.
func (f *Factory) KeyID() string {
	return f.creds.KeyID
}
