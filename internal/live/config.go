package live

const defaultModel = "gemini-2.5-flash-native-audio"

// Config carries the upstream live endpoint settings.
type Config struct {
	// Scheme defaults to wss; tests dial plain ws.
	Scheme string
	Host   string
	Path   string
	APIKey string
	Model  string
}

func (c Config) model() string {
	if c.Model == "" {
		return defaultModel
	}
	return c.Model
}

func (c Config) scheme() string {
	if c.Scheme == "" {
		return "wss"
	}
	return c.Scheme
}
